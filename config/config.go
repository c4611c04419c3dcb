package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kong"
	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	EnvVarPrefix = "UNGZ"

	DefaultLogLevel           = "info"
	DefaultBufferSize         = 64 * 1024
	DefaultCheckpointInterval = duration(5 * time.Second)

	MinBufferSize         = 512
	MaxBufferSize         = 16 * 1024 * 1024
	MinCheckpointInterval = duration(1 * time.Millisecond)
	MaxCheckpointInterval = duration(1 * time.Hour)
)

var (
	// VERSION gets set during build
	VERSION = "0.0.0"
)

type Config struct {
	CLI  *CLI
	TOML *TOML
}

type TOML struct {
	Config *TOMLConfig `toml:"config"`
	Decode *TOMLDecode `toml:"decode"`
}

type TOMLConfig struct {
	LogLevel             string   `toml:"log_level"`
	CheckpointFile       string   `toml:"checkpoint_file"`
	CheckpointInterval   duration `toml:"checkpoint_interval"`
	DisableCheckpointing bool     `toml:"disable_checkpointing"`
}

type TOMLDecode struct {
	// Pointer so that an absent key keeps the default (true)
	Multistream *bool `toml:"multistream"`
	BufferSize  int   `toml:"buffer_size"`
	KeepPartial bool  `toml:"keep_partial"`
}

type CLI struct {
	Source      string `kong:"arg,help='Path to the gzip file to decompress',type='existingfile'"`
	Destination string `kong:"arg,help='Path to write the decompressed data to',type='path'"`

	ConfigFile         string        `kong:"name='config',help='Path to an optional TOML config file',type='path',short='c'"`
	ShowHeader         bool          `kong:"help='Print the header of every member',short='H'"`
	NoEmit             bool          `kong:"help='Decode and verify only; do not write the destination',short='n'"`
	SingleMember       bool          `kong:"help='Stop after the first gzip member',short='s'"`
	KeepPartial        bool          `kong:"help='Keep partial output when decompression fails',short='k'"`
	CheckpointFile     string        `kong:"help='Write progress checkpoints to this file',type='path'"`
	CheckpointInterval time.Duration `kong:"help='Minimum interval between checkpoint writes'"`

	Debug   bool             `kong:"help='Enable debug output',short='d'"`
	Quiet   bool             `kong:"help='Disable showing pre/post output',short='q'"`
	Version kong.VersionFlag `help:"Show version and exit" short:"v" env:"-"`

	// Internal bits
	Ctx *kong.Context `kong:"-"`
}

// Multistream reports whether every member should be decoded.
func (c *Config) Multistream() bool {
	return c.TOML.Decode.Multistream == nil || *c.TOML.Decode.Multistream
}

// CheckpointingEnabled reports whether progress checkpoints should be written.
func (c *Config) CheckpointingEnabled() bool {
	return !c.TOML.Config.DisableCheckpointing && c.TOML.Config.CheckpointFile != ""
}

func NewConfig() (*Config, error) {
	return New(os.Args[1:])
}

// New builds a Config from command line arguments, an optional TOML file and
// the environment.
func New(args []string) (*Config, error) {
	// Attempt to load .env
	_ = godotenv.Load(".env")

	cli, err := readCLIArgs(args)
	if err != nil {
		return nil, errors.Wrap(err, "error parsing CLI args")
	}

	tomlConfig := &TOML{}

	if cli.ConfigFile != "" {
		tomlConfig, err = readTOML(cli.ConfigFile)
		if err != nil {
			return nil, errors.Wrap(err, "error reading config file")
		}
	}

	if err := setTOMLDefaults(tomlConfig); err != nil {
		return nil, errors.Wrap(err, "error setting TOML defaults")
	}

	applyCLIOverrides(cli, tomlConfig)

	cfg := &Config{
		CLI:  cli,
		TOML: tomlConfig,
	}

	if err := Validate(cfg); err != nil {
		return nil, errors.Wrap(err, "error validating config")
	}

	return cfg, nil
}

func setTOMLDefaults(t *TOML) error {
	if t == nil {
		return errors.New("toml config cannot be nil")
	}

	if t.Config == nil {
		t.Config = &TOMLConfig{}
	}

	if t.Decode == nil {
		t.Decode = &TOMLDecode{}
	}

	// Set defaults for [config]
	if t.Config.LogLevel == "" {
		t.Config.LogLevel = DefaultLogLevel
	}

	if t.Config.CheckpointInterval == 0 {
		t.Config.CheckpointInterval = DefaultCheckpointInterval
	}

	// Set defaults for [decode]
	if t.Decode.BufferSize == 0 {
		t.Decode.BufferSize = DefaultBufferSize
	}

	if t.Decode.Multistream == nil {
		multistream := true
		t.Decode.Multistream = &multistream
	}

	return nil
}

// applyCLIOverrides lets flags that were given on the command line win over
// the TOML file.
func applyCLIOverrides(cli *CLI, t *TOML) {
	if cli.SingleMember {
		multistream := false
		t.Decode.Multistream = &multistream
	}

	if cli.KeepPartial {
		t.Decode.KeepPartial = true
	}

	if cli.CheckpointFile != "" {
		t.Config.CheckpointFile = cli.CheckpointFile
	}

	if cli.CheckpointInterval != 0 {
		t.Config.CheckpointInterval = duration(cli.CheckpointInterval)
	}

	if cli.Debug {
		t.Config.LogLevel = logrus.DebugLevel.String()
	}
}

func Validate(c *Config) error {
	if c == nil {
		return errors.New("config cannot be nil")
	}

	if err := validateCLIArgs(c.CLI); err != nil {
		return errors.Wrap(err, "error validating CLI args")
	}

	if err := validateTOML(c.TOML); err != nil {
		return errors.Wrap(err, "error validating toml config")
	}

	return nil
}

func validateTOML(t *TOML) error {
	if t == nil {
		return errors.New("toml config cannot be nil")
	}

	var result *multierror.Error

	// Validate [config]
	if err := validateTOMLConfig(t.Config); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "config error(s)"))
	}

	// Validate [decode]
	if err := validateTOMLDecode(t.Decode); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "decode error(s)"))
	}

	return result.ErrorOrNil()
}

func validateTOMLConfig(c *TOMLConfig) error {
	if c == nil {
		return errors.New("config cannot be empty")
	}

	var result *multierror.Error

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		result = multierror.Append(result, errors.Errorf("config.log_level %s is invalid", c.LogLevel))
	}

	if c.CheckpointInterval < MinCheckpointInterval || c.CheckpointInterval > MaxCheckpointInterval {
		result = multierror.Append(result, errors.Errorf("config.checkpoint_interval must be between %s and %s",
			time.Duration(MinCheckpointInterval), time.Duration(MaxCheckpointInterval)))
	}

	if c.CheckpointFile != "" {
		if info, err := os.Stat(c.CheckpointFile); err == nil && info.IsDir() {
			result = multierror.Append(result, errors.Errorf("config.checkpoint_file %s is a directory", c.CheckpointFile))
		}
	}

	return result.ErrorOrNil()
}

func validateTOMLDecode(d *TOMLDecode) error {
	if d == nil {
		return errors.New("decode cannot be empty")
	}

	if d.BufferSize < MinBufferSize || d.BufferSize > MaxBufferSize {
		return errors.Errorf("decode.buffer_size must be between %d and %d", MinBufferSize, MaxBufferSize)
	}

	return nil
}

func readCLIArgs(args []string) (*CLI, error) {
	cli := &CLI{}

	parser, err := kong.New(cli,
		kong.Name("ungz"),
		kong.Description("Decompress a gzip file"),
		kong.UsageOnError(),
		kong.DefaultEnvars(EnvVarPrefix),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}),
		kong.Vars{
			"version": VERSION,
		})
	if err != nil {
		return nil, errors.Wrap(err, "unable to create CLI parser")
	}

	cli.Ctx, err = parser.Parse(args)
	if err != nil {
		return nil, err
	}

	if err := validateCLIArgs(cli); err != nil {
		return nil, errors.Wrap(err, "error validating args")
	}

	return cli, nil
}

func readTOML(file string) (*TOML, error) {
	// Attempt to load file
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrap(err, "error reading file")
	}

	tomlConfig := &TOML{}

	if err := toml.Unmarshal(data, tomlConfig); err != nil {
		return nil, errors.Wrap(err, "error parsing TOML config")
	}

	return tomlConfig, nil
}

func validateCLIArgs(cli *CLI) error {
	if cli == nil {
		return errors.New("config cannot be nil")
	}

	var result *multierror.Error

	if cli.Source == "" {
		result = multierror.Append(result, errors.New("source cannot be empty"))
	}

	if cli.Destination == "" {
		result = multierror.Append(result, errors.New("destination cannot be empty"))
	}

	if info, err := os.Stat(cli.Destination); err == nil && info.IsDir() {
		result = multierror.Append(result, errors.Errorf("destination %s is a directory", cli.Destination))
	}

	if cli.Source != "" && !cli.NoEmit && sameFile(cli.Source, cli.Destination) {
		result = multierror.Append(result, errors.New("source and destination must differ"))
	}

	return result.ErrorOrNil()
}

func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return absA == absB
}

// Copied from https://www.kelche.co/blog/go/toml/
type duration time.Duration

func (d duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *duration) UnmarshalText(text []byte) error {
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(dur)
	return nil
}

func (d duration) String() string {
	return time.Duration(d).String()
}
