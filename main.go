package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/dselans/ungz/config"
	"github.com/dselans/ungz/decompressor"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}

	// Validated in config
	level, _ := logrus.ParseLevel(cfg.TOML.Config.LogLevel)
	logrus.SetLevel(level)

	if cfg.CLI.Debug {
		logrus.Info("debug mode enabled")
	}

	if !cfg.CLI.Quiet {
		displayConfig(cfg)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := decompressor.New(cfg)
	if err != nil {
		logrus.Errorf("unable to create decompressor: %s", err)
		os.Exit(1)
	}

	res, err := d.Run(ctx)
	if err != nil {
		logrus.Errorf("error during decompression: %s", err)
		stop()
		os.Exit(1)
	}

	if !cfg.CLI.Quiet {
		displayResult(res)
	}
}

func displayConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}

	logrus.Info("ungz settings:")
	logrus.Info("  [CLI]")
	logrus.Infof("  version: %s", config.VERSION)
	logrus.Infof("  source: %s", cfg.CLI.Source)
	logrus.Infof("  destination: %s", cfg.CLI.Destination)
	logrus.Infof("  debug: %v", cfg.CLI.Debug)
	logrus.Infof("  config file: %s", cfg.CLI.ConfigFile)
	logrus.Infof("  show header: %v", cfg.CLI.ShowHeader)
	logrus.Infof("  no emit: %v", cfg.CLI.NoEmit)
	logrus.Info("")
	logrus.Info("  [CONFIG]")
	logrus.Infof("  config.log_level: %s", cfg.TOML.Config.LogLevel)
	logrus.Infof("  config.checkpoint_file: %s", cfg.TOML.Config.CheckpointFile)
	logrus.Infof("  config.checkpoint_interval: %s", cfg.TOML.Config.CheckpointInterval)
	logrus.Infof("  config.disable_checkpointing: %v", cfg.TOML.Config.DisableCheckpointing)
	logrus.Info("")
	logrus.Info("  [DECODE]")
	logrus.Infof("  decode.multistream: %v", cfg.Multistream())
	logrus.Infof("  decode.buffer_size: %d", cfg.TOML.Decode.BufferSize)
	logrus.Infof("  decode.keep_partial: %v", cfg.TOML.Decode.KeepPartial)
}

func displayResult(res *decompressor.Result) {
	if res == nil {
		return
	}

	ratio := 0.0
	if res.BytesOut > 0 {
		ratio = float64(res.BytesIn) / float64(res.BytesOut)
	}

	logrus.Info("ungz done:")
	logrus.Infof("  members: %d", len(res.Members))
	logrus.Infof("  compressed bytes: %d", res.BytesIn)
	logrus.Infof("  uncompressed bytes: %d", res.BytesOut)
	logrus.Infof("  ratio: %.3f", ratio)
	logrus.Infof("  took: %s", res.Duration)
}

// printError reports errors that occur before logging is configured
func printError(w io.Writer, err error) {
	fmt.Fprintln(w, "ERROR: ", err)
}
