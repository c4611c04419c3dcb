package validate

import (
	"github.com/pkg/errors"

	"github.com/dselans/ungz/checkpoint/types"
)

func Checkpoint(cp *types.Checkpoint) error {
	if cp == nil {
		return errors.New("checkpoint is nil")
	}

	if cp.SourceFile == "" {
		return errors.New("checkpoint source file cannot be empty")
	}

	if cp.CompressedOffset < 0 || cp.UncompressedOffset < 0 {
		return errors.Errorf("checkpoint offsets cannot be negative (compressed %d, uncompressed %d)",
			cp.CompressedOffset, cp.UncompressedOffset)
	}

	if cp.Member < 0 || cp.Blocks < 0 {
		return errors.New("checkpoint member and block counts cannot be negative")
	}

	if cp.StartedAt.IsZero() {
		return errors.New("checkpoint started_at cannot be empty")
	}

	if cp.LastUpdated.Before(cp.StartedAt) {
		return errors.New("checkpoint last_updated cannot be before started_at")
	}

	if cp.CompletedAt != nil && cp.Error != "" {
		return errors.New("checkpoint cannot be both completed and failed")
	}

	return nil
}
