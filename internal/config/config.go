package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/termtree/internal/config/loader"
)

// Output modes.
const (
	ModeAuto   = "auto"
	ModeLine   = "line"
	ModeScreen = "screen"
)

// Config is the resolved configuration.
type Config struct {
	Output  OutputConfig  `toml:"output"`
	Logging LoggingConfig `toml:"logging"`
	Counter CounterConfig `toml:"counter"`
	Script  ScriptConfig  `toml:"script"`

	// Watch reloads the config file when it changes.
	Watch bool `toml:"watch"`
}

// OutputConfig selects and tunes the output backend.
type OutputConfig struct {
	// Mode is "line", "screen" or "auto".
	Mode string `toml:"mode"`

	// ResetSequence clears the line before each write in line mode.
	ResetSequence string `toml:"resetSequence"`

	// Row is the screen row the line is drawn on in screen mode.
	Row int `toml:"row"`
}

// LoggingConfig configures the diagnostic logger.
type LoggingConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `toml:"level"`

	// File receives log output. Empty means stderr.
	File string `toml:"file"`
}

// CounterConfig configures the built-in counter component.
type CounterConfig struct {
	Initial int    `toml:"initial"`
	Step    int    `toml:"step"`
	Label   string `toml:"label"`
	Hint    string `toml:"hint"`
}

// ScriptConfig selects a Lua component instead of the counter.
type ScriptConfig struct {
	// Path is the Lua file to run. Empty means the built-in counter.
	Path string `toml:"path"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Output: OutputConfig{
			Mode:          ModeLine,
			ResetSequence: "\r\x1b[K",
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
		Counter: CounterConfig{
			Step:  1,
			Label: "当前计数: ",
			Hint:  "(按回车键增加)",
		},
	}
}

// Option configures Load.
type Option func(*loadOptions)

type loadOptions struct {
	fs  loader.FileSystem
	env loader.Loader
}

// WithFS reads the config file from fsys.
func WithFS(fsys loader.FileSystem) Option {
	return func(o *loadOptions) {
		o.fs = fsys
	}
}

// WithEnv replaces the environment source. A nil loader disables it.
func WithEnv(l loader.Loader) Option {
	return func(o *loadOptions) {
		o.env = l
	}
}

// Load resolves defaults, the file at path (if any) and the environment.
// A missing file at an explicit path is ErrFileNotFound.
func Load(path string, opts ...Option) (*Config, error) {
	o := loadOptions{
		fs:  loader.DefaultFS(),
		env: loader.NewEnvLoader(loader.DefaultPrefix).WithSchema(schema()),
	}
	for _, opt := range opts {
		opt(&o)
	}

	merged := make(map[string]any)
	source := "defaults"

	if path != "" {
		l, err := loader.ForPathWithFS(o.fs, path)
		if err != nil {
			return nil, err
		}
		data, err := l.Load()
		if err != nil {
			return nil, err
		}
		if data == nil {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		merged = loader.DeepMerge(merged, data)
		source = path
	}

	if o.env != nil {
		data, err := o.env.Load()
		if err != nil {
			return nil, fmt.Errorf("reading environment: %w", err)
		}
		if len(data) > 0 {
			merged = loader.DeepMerge(merged, data)
			source += " + environment"
		}
	}

	cfg := Default()
	if err := decode(merged, cfg); err != nil {
		return nil, &ValidationError{
			Path:    source,
			Message: err.Error(),
			Code:    ErrCodeTypeMismatch,
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// schema returns the defaults as a nested map, the shape env values are
// typed against.
func schema() map[string]any {
	b, err := toml.Marshal(Default())
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := toml.Unmarshal(b, &m); err != nil {
		return nil
	}
	return m
}

// decode applies a merged map onto cfg; keys absent from data keep their
// current values.
func decode(data map[string]any, cfg *Config) error {
	if len(data) == 0 {
		return nil
	}
	b, err := toml.Marshal(data)
	if err != nil {
		return err
	}
	return toml.Unmarshal(b, cfg)
}

// DefaultPath returns the first existing config file under the user config
// directory, or the config.toml location when none exists.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	base := filepath.Join(dir, "termtree")
	for _, name := range []string{"config.toml", "config.yaml", "config.yml"} {
		p := filepath.Join(base, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return filepath.Join(base, "config.toml")
}

// Validate checks every setting.
func (c *Config) Validate() error {
	var errs []error

	switch c.Output.Mode {
	case ModeAuto, ModeLine, ModeScreen:
	default:
		errs = append(errs, &ValidationError{
			Path:    "output.mode",
			Message: "must be one of auto, line, screen",
			Value:   c.Output.Mode,
			Code:    ErrCodeInvalidEnum,
		})
	}
	if c.Output.Row < 0 {
		errs = append(errs, &ValidationError{
			Path:    "output.row",
			Message: "must not be negative",
			Value:   c.Output.Row,
			Code:    ErrCodeOutOfRange,
		})
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, &ValidationError{
			Path:    "logging.level",
			Message: "must be one of debug, info, warn, error",
			Value:   c.Logging.Level,
			Code:    ErrCodeInvalidEnum,
		})
	}

	if c.Counter.Step == 0 {
		errs = append(errs, &ValidationError{
			Path:    "counter.step",
			Message: "must not be zero",
			Value:   c.Counter.Step,
			Code:    ErrCodeOutOfRange,
		})
	}

	return errors.Join(errs...)
}

// Resolve returns the settings for writing to out with auto replaced by a
// concrete mode. Auto always selects line mode; screen must be asked for.
// When out is not a terminal, auto also swaps the reset sequence for a
// newline so redirected output gets one line per render instead of escape
// codes.
func (o OutputConfig) Resolve(out *os.File) OutputConfig {
	if o.Mode != ModeAuto {
		return o
	}
	o.Mode = ModeLine
	if !isTerminal(out) {
		o.ResetSequence = "\n"
	}
	return o
}

func isTerminal(f *os.File) bool {
	return f != nil && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// Settings returns the counter texts as component settings.
func (c CounterConfig) Settings() map[string]string {
	return map[string]string{
		"label": c.Label,
		"hint":  c.Hint,
	}
}
