package types

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Checkpoint records how far a decompression run got
type Checkpoint struct {
	SourceFile         string     `json:"source_file"`
	DestinationFile    string     `json:"destination_file,omitempty"`
	CompressedOffset   int64      `json:"compressed_offset"`
	UncompressedOffset int64      `json:"uncompressed_offset"`
	Member             int        `json:"member"`
	Blocks             int        `json:"blocks"`
	StartedAt          time.Time  `json:"started_at"`
	LastUpdated        time.Time  `json:"last_updated"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	Error              string     `json:"error,omitempty"`

	*sync.Mutex `json:"-"`
}

// Save writes the checkpoint as JSON. The file is replaced atomically.
func (cp *Checkpoint) Save(checkpointFile string) error {
	cp.Lock()
	defer cp.Unlock()

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return errors.Wrap(err, "unable to marshal checkpoint file")
	}

	tmp, err := os.CreateTemp(filepath.Dir(checkpointFile), filepath.Base(checkpointFile)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "unable to create temp checkpoint file")
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrap(err, "unable to write checkpoint file")
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, "unable to close checkpoint file")
	}

	if err := os.Rename(tmp.Name(), checkpointFile); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, "unable to rename checkpoint file")
	}

	return nil
}
