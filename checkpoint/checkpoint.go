package checkpoint

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dselans/ungz/checkpoint/types"
	"github.com/dselans/ungz/validate"
)

// New returns a fresh checkpoint for a run
func New(sourceFile, destinationFile string) *types.Checkpoint {
	now := time.Now()

	return &types.Checkpoint{
		SourceFile:      sourceFile,
		DestinationFile: destinationFile,
		StartedAt:       now,
		LastUpdated:     now,
		Mutex:           &sync.Mutex{},
	}
}

// Load reads a previously saved checkpoint. It returns (nil, nil) when the
// file does not exist.
func Load(checkpointFile string) (*types.Checkpoint, error) {
	startedAt := time.Now()
	logrus.Debugf("checkpoint loading started at '%s'", startedAt)

	defer func() {
		logrus.Debugf("checkpoint loading took '%s'", time.Since(startedAt))
	}()

	data, err := os.ReadFile(checkpointFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "unable to read checkpoint file")
	}

	cp := &types.Checkpoint{Mutex: &sync.Mutex{}}
	if err := json.Unmarshal(data, cp); err != nil {
		return nil, errors.Wrap(err, "unable to unmarshal checkpoint file")
	}

	if err := validate.Checkpoint(cp); err != nil {
		return nil, errors.Wrap(err, "invalid checkpoint file")
	}

	return cp, nil
}
