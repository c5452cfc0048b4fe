package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dshills/termtree/internal/component/counter"
	"github.com/dshills/termtree/internal/component/script"
	"github.com/dshills/termtree/internal/config"
	"github.com/dshills/termtree/internal/config/watcher"
	"github.com/dshills/termtree/internal/loop"
	"github.com/dshills/termtree/internal/renderer"
	"github.com/dshills/termtree/internal/renderer/backend"
	"github.com/dshills/termtree/internal/tree"
)

// bootstrapper handles component initialization with proper cleanup on failure.
type bootstrapper struct {
	app       *Application
	opts      Options
	initOrder []string
}

// newBootstrapper creates a new bootstrapper for the application.
func newBootstrapper(app *Application, opts Options) *bootstrapper {
	return &bootstrapper{
		app:       app,
		opts:      opts,
		initOrder: make([]string, 0, 6),
	}
}

// bootstrap initializes all components in dependency order.
// On failure, it cleans up already-initialized components.
func (b *bootstrapper) bootstrap() error {
	steps := []struct {
		name string
		init func() error
	}{
		{"config", b.initConfig},
		{"logger", b.initLogger},
		{"backend", b.initBackend},
		{"renderer", b.initRenderer},
		{"component", b.initComponent},
		{"watcher", b.initWatcher},
	}

	for _, step := range steps {
		if err := step.init(); err != nil {
			b.cleanup()
			var ie *InitError
			if errors.As(err, &ie) {
				return err
			}
			return &InitError{Component: step.name, Err: err}
		}
		b.initOrder = append(b.initOrder, step.name)
	}

	b.app.Logger().Debug("bootstrap complete: %s", strings.Join(b.initOrder, ", "))
	return nil
}

// initConfig loads the configuration and applies the option overrides.
// A missing file at the default location is not an error.
func (b *bootstrapper) initConfig() error {
	path := b.opts.ConfigPath
	explicit := path != ""
	if !explicit {
		path = config.DefaultPath()
	}

	cfg, err := config.Load(path, b.opts.ConfigOptions...)
	if err != nil && !explicit && errors.Is(err, config.ErrFileNotFound) {
		// No file to watch either.
		path = ""
		cfg, err = config.Load(path, b.opts.ConfigOptions...)
	}
	if err != nil {
		return err
	}

	applyOverrides(cfg, b.opts)
	if err := cfg.Validate(); err != nil {
		return err
	}

	b.app.cfg = cfg
	b.app.configPath = path
	return nil
}

// applyOverrides copies non-empty options over the loaded configuration.
func applyOverrides(cfg *config.Config, opts Options) {
	if opts.Mode != "" {
		cfg.Output.Mode = opts.Mode
	}
	if opts.ScriptPath != "" {
		cfg.Script.Path = opts.ScriptPath
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	if opts.LogFile != "" {
		cfg.Logging.File = opts.LogFile
	}
}

// initLogger opens the log destination.
func (b *bootstrapper) initLogger() error {
	cfg := b.app.cfg.Logging

	var out io.Writer = os.Stderr
	switch {
	case b.opts.LogOutput != nil:
		out = b.opts.LogOutput
	case cfg.File != "":
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		b.app.logFile = f
		out = f
	}

	lc := DefaultLoggerConfig()
	lc.Level = ParseLogLevel(cfg.Level)
	lc.Output = out
	b.app.logger = NewLogger(lc)
	return nil
}

// initBackend selects the terminal backend for the output mode.
func (b *bootstrapper) initBackend() error {
	if b.opts.Backend != nil {
		b.app.backend = b.opts.Backend
		return nil
	}

	out := b.app.cfg.Output.Resolve(os.Stdout)
	b.app.Logger().Debug("output mode %s", out.Mode)

	switch out.Mode {
	case config.ModeScreen:
		s, err := backend.NewScreen()
		if err != nil {
			return err
		}
		s.SetRow(out.Row)
		b.app.backend = s
	default:
		b.app.backend = backend.NewStdioLine(backend.WithResetSequence(out.ResetSequence))
	}
	return nil
}

// initRenderer creates the loop, the renderer and the root.
// A sink failure stops the loop.
func (b *bootstrapper) initRenderer() error {
	app := b.app
	log := app.Logger().WithComponent("renderer")

	app.loop = loop.New()
	app.renderer = renderer.New(app.backend, app.loop, renderer.Options{
		OnError: func(err error) {
			app.loop.Stop(NewComponentError("renderer", "flush", err))
		},
		OnFlush: func(text string) {
			log.Debug("flushed %q", text)
		},
	})
	app.ops = tree.NewOps(app.renderer)
	app.root = app.ops.CreateRoot()
	return nil
}

// initComponent creates the Lua component when a script is configured and
// the counter otherwise.
func (b *bootstrapper) initComponent() error {
	cfg := b.app.cfg

	if path := cfg.Script.Path; path != "" {
		sc := script.New(b.app.ops, script.WithName(filepath.Base(path)))
		if err := sc.LoadFile(path); err != nil {
			sc.Close()
			return err
		}
		b.app.comp = sc
		return nil
	}

	opts := counter.DefaultOptions()
	opts.Initial = cfg.Counter.Initial
	opts.Step = cfg.Counter.Step
	opts.Label = cfg.Counter.Label
	opts.Hint = cfg.Counter.Hint
	b.app.comp = counter.New(b.app.ops, opts)
	return nil
}

// initWatcher watches the config file when watch is enabled.
func (b *bootstrapper) initWatcher() error {
	app := b.app
	if !app.cfg.Watch || app.configPath == "" {
		return nil
	}

	log := app.Logger().WithComponent("watcher")
	w, err := watcher.New(watcher.WithErrorHandler(func(err error) {
		log.Warn("%v", err)
	}))
	if err != nil {
		return err
	}
	if err := w.Watch(app.configPath); err != nil {
		w.Stop()
		return err
	}
	w.OnChange(app.onConfigChange)
	app.watcher = w
	return nil
}

// cleanup performs cleanup in reverse initialization order.
// Called when bootstrap fails partway through.
func (b *bootstrapper) cleanup() {
	for i := len(b.initOrder) - 1; i >= 0; i-- {
		b.cleanupComponent(b.initOrder[i])
	}
}

// cleanupComponent cleans up a single component.
func (b *bootstrapper) cleanupComponent(name string) {
	switch name {
	case "watcher":
		if b.app.watcher != nil {
			b.app.watcher.Stop()
			b.app.watcher = nil
		}
	case "component":
		if c, ok := b.app.comp.(interface{ Close() }); ok {
			c.Close()
		}
		b.app.comp = nil
	case "renderer":
		if b.app.loop != nil {
			b.app.loop.Stop(nil)
		}
	case "logger":
		if b.app.logFile != nil {
			_ = b.app.logFile.Close()
			b.app.logFile = nil
		}
	}
}
