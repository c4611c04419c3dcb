package decompressor

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dselans/ungz/gunzip"
	"github.com/dselans/ungz/validate"
)

// runCheckpointer is responsible for writing checkpoints to disk as decoding
// progresses. It exits once cpChan is closed.
func (d *Decompressor) runCheckpointer(cpChan <-chan *CheckpointJob) {
	llog := d.log.WithFields(logrus.Fields{
		"method": "runCheckpointer",
	})

	for job := range cpChan {
		llog.Debugf("received checkpoint at offset '%v' member '%v'", job.Progress.CompressedOffset, job.Progress.Member)

		if err := d.saveCheckpoint(job, false); err != nil {
			llog.Errorf("error saving checkpoint at offset '%v': %v", job.Progress.CompressedOffset, err)
		}
	}
}

func (d *Decompressor) saveCheckpoint(job *CheckpointJob, force bool) error {
	llog := d.log.WithFields(logrus.Fields{
		"method": "saveCheckpoint",
	})

	d.cp.Lock()
	d.cp.CompressedOffset = job.Progress.CompressedOffset
	d.cp.UncompressedOffset = job.Progress.UncompressedOffset
	d.cp.Member = job.Progress.Member
	d.cp.Blocks = job.Progress.Blocks
	d.cp.LastUpdated = time.Now()
	last := d.last
	d.cp.Unlock()

	// Skip checkpoint if it's NOT zero/unset AND we haven't passed CheckpointInterval
	interval := time.Duration(d.cfg.TOML.Config.CheckpointInterval)
	if !force && !last.IsZero() && last.Add(interval).After(time.Now()) {
		return nil
	}

	llog.Debugf("saving checkpoint to '%s'", d.cfg.TOML.Config.CheckpointFile)

	d.cp.Lock()
	err := validate.Checkpoint(d.cp)
	d.cp.Unlock()

	if err != nil {
		return errors.Wrap(err, "refusing to save invalid checkpoint")
	}

	if err := d.cp.Save(d.cfg.TOML.Config.CheckpointFile); err != nil {
		return errors.Wrap(err, "unable to save checkpoint")
	}

	// Note that a checkpoint save has occurred
	d.cp.Lock()
	d.last = time.Now()
	d.cp.Unlock()

	return nil
}

// finishCheckpoint records the outcome of the run. Must be called after the
// checkpointer has exited.
func (d *Decompressor) finishCheckpoint(z *gunzip.Reader, runErr error) error {
	if !d.cfg.CheckpointingEnabled() {
		return nil
	}

	d.cp.Lock()
	if runErr != nil {
		d.cp.Error = runErr.Error()
	} else {
		now := time.Now()
		d.cp.CompletedAt = &now
	}
	d.cp.Unlock()

	job := &CheckpointJob{
		Progress: gunzip.Progress{
			Member:             z.Members(),
			CompressedOffset:   z.Offset(),
			UncompressedOffset: z.Total(),
			Blocks:             z.Blocks(),
		},
	}

	return d.saveCheckpoint(job, true)
}

func (d *Decompressor) waitCheckpointer(cpWg *sync.WaitGroup) error {
	exitCh := make(chan struct{})

	go func() {
		cpWg.Wait()
		close(exitCh)
	}()

	select {
	case <-exitCh:
		return nil
	case <-time.After(5 * time.Second):
		return errors.New("timed out waiting for checkpointer to exit")
	}
}
