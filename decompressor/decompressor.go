package decompressor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dselans/ungz/checkpoint"
	"github.com/dselans/ungz/checkpoint/types"
	"github.com/dselans/ungz/config"
	"github.com/dselans/ungz/gunzip"
)

// CheckpointJob carries progress from the decoder to the checkpointer
type CheckpointJob struct {
	Progress gunzip.Progress
}

// Result summarizes a successful run
type Result struct {
	Members  []*gunzip.Member
	BytesIn  int64
	BytesOut int64
	Duration time.Duration
}

type Decompressor struct {
	cfg  *config.Config
	log  *logrus.Entry
	cp   *types.Checkpoint
	last time.Time // guarded by cp
}

func New(cfg *config.Config) (*Decompressor, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, errors.Wrap(err, "error validating config")
	}

	d := &Decompressor{
		cfg: cfg,
		cp:  checkpoint.New(cfg.CLI.Source, cfg.CLI.Destination),
		log: logrus.WithField("pkg", "decompressor"),
	}

	if cfg.CheckpointingEnabled() {
		prev, err := checkpoint.Load(cfg.TOML.Config.CheckpointFile)
		if err != nil {
			return nil, errors.Wrap(err, "unable to load checkpoint file")
		}

		if prev != nil && prev.CompletedAt == nil {
			d.log.Warnf("previous run on '%s' stopped at compressed offset %d (uncompressed %d): %s",
				prev.SourceFile, prev.CompressedOffset, prev.UncompressedOffset, prev.Error)
		}
	}

	return d, nil
}

func (d *Decompressor) Run(shutdownCtx context.Context) (*Result, error) {
	llog := d.log.WithFields(logrus.Fields{
		"method": "Run",
	})

	startedAt := time.Now()

	src, err := os.Open(d.cfg.CLI.Source)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open source file")
	}
	defer src.Close()

	dst, closeDst, err := d.openDestination()
	if err != nil {
		return nil, err
	}

	cpWg := &sync.WaitGroup{}
	cpCh := make(chan *CheckpointJob, 1000)

	// Launch checkpointer
	if d.cfg.CheckpointingEnabled() {
		cpWg.Add(1)

		go func() {
			llog.Debug("checkpointer start")
			defer llog.Debug("checkpointer exit")
			defer cpWg.Done()

			d.runCheckpointer(cpCh)
		}()
	}

	opts := &gunzip.Options{
		Multistream: d.cfg.Multistream(),
	}

	if d.cfg.CheckpointingEnabled() {
		opts.Progress = func(p gunzip.Progress) {
			// Never block decoding on a slow checkpointer
			select {
			case cpCh <- &CheckpointJob{Progress: p}:
			default:
			}
		}
	}

	if d.cfg.CLI.ShowHeader {
		opts.OnHeader = d.displayHeader
	}

	z := gunzip.NewReader(bufio.NewReaderSize(src, d.cfg.TOML.Decode.BufferSize), opts)

	members, runErr := z.Decompress(shutdownCtx, dst)

	if err := closeDst(runErr); err != nil && runErr == nil {
		runErr = err
	}

	close(cpCh)
	if err := d.waitCheckpointer(cpWg); err != nil {
		llog.Warn(err)
	}

	if err := d.finishCheckpoint(z, runErr); err != nil {
		llog.Errorf("unable to save final checkpoint: %s", err)
	}

	if runErr != nil {
		return nil, runErr
	}

	res := &Result{
		Members:  members,
		BytesIn:  z.Offset(),
		Duration: time.Since(startedAt),
	}

	for _, m := range members {
		res.BytesOut += m.Written
	}

	return res, nil
}

// openDestination returns the sink and a func that finalizes it. On failure
// the partial destination file is removed unless keep_partial is set.
func (d *Decompressor) openDestination() (io.Writer, func(error) error, error) {
	if d.cfg.CLI.NoEmit {
		return io.Discard, func(error) error { return nil }, nil
	}

	path := d.cfg.CLI.Destination

	f, err := os.Create(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "unable to create destination file")
	}

	bw := bufio.NewWriterSize(f, d.cfg.TOML.Decode.BufferSize)

	closeFn := func(runErr error) error {
		flushErr := bw.Flush()
		closeErr := f.Close()

		if runErr == nil && flushErr == nil && closeErr == nil {
			return nil
		}

		if !d.cfg.TOML.Decode.KeepPartial {
			d.log.Debugf("removing partial output '%s'", path)
			if err := os.Remove(path); err != nil {
				d.log.Errorf("unable to remove partial output '%s': %s", path, err)
			}
		}

		if flushErr != nil {
			return errors.Wrap(flushErr, "unable to flush destination file")
		}

		if closeErr != nil {
			return errors.Wrap(closeErr, "unable to close destination file")
		}

		return nil
	}

	return bw, closeFn, nil
}

func (d *Decompressor) displayHeader(member int, hdr *gunzip.Header) {
	llog := d.log.WithFields(logrus.Fields{
		"method": "displayHeader",
		"member": member,
	})

	notSet := func(s string) string {
		if s == "" {
			return "(not set)"
		}
		return s
	}

	mtime := "(not set)"
	if !hdr.ModTime.IsZero() {
		mtime = hdr.ModTime.UTC().Format(time.RFC3339)
	}

	headerCRC := "(not set)"
	if hdr.HasHeaderCRC() {
		headerCRC = fmt.Sprintf("0x%04x", hdr.HeaderCRC)
	}

	llog.Info("magic number      : 0x1f 0x8b")
	llog.Infof("compression method: 0x%02x", hdr.Method)
	llog.Infof("flags             : 0x%02x", hdr.Flags)
	llog.Infof("         FTEXT    : %v", hdr.IsText())
	llog.Infof("         FHCRC    : %v", hdr.HasHeaderCRC())
	llog.Infof("         FEXTRA   : %v", hdr.HasExtra())
	llog.Infof("         FNAME    : %v", hdr.HasName())
	llog.Infof("         FCOMMENT : %v", hdr.HasComment())
	llog.Infof("modification time : %s", mtime)
	llog.Infof("extra flags       : 0x%02x", hdr.ExtraFlags)
	llog.Infof("os                : %s", hdr.OSName())
	llog.Infof("extra field       : %d bytes", len(hdr.Extra))
	llog.Infof("original file name: %s", notSet(hdr.Name))
	llog.Infof("comment           : %s", notSet(hdr.Comment))
	llog.Infof("header CRC        : %s", headerCRC)
}
