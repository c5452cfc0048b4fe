// Package app wires the configuration, the event loop, the renderer, a
// component and a terminal backend into a running program, and manages
// its lifecycle.
package app

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dshills/termtree/internal/component"
	"github.com/dshills/termtree/internal/config"
	"github.com/dshills/termtree/internal/config/watcher"
	"github.com/dshills/termtree/internal/loop"
	"github.com/dshills/termtree/internal/renderer"
	"github.com/dshills/termtree/internal/renderer/backend"
	"github.com/dshills/termtree/internal/tree"
)

// Application is the central coordinator. Everything that touches the tree
// runs as a task on the loop goroutine.
type Application struct {
	mu sync.RWMutex

	cfg        *config.Config
	configPath string

	logger  *Logger
	logFile io.Closer

	backend  backend.Backend
	loop     *loop.Loop
	renderer *renderer.Renderer
	ops      *tree.Ops
	root     *tree.Node
	comp     component.Component

	watcher *watcher.Watcher

	sessionID string

	running      atomic.Bool
	inputWG      sync.WaitGroup
	shutdownOnce sync.Once

	opts Options
}

// Options configures the application. Non-empty fields override the
// configuration file and the environment.
type Options struct {
	// ConfigPath is the configuration file. Empty means config.DefaultPath,
	// which may be absent.
	ConfigPath string

	// Mode overrides output.mode.
	Mode string

	// ScriptPath overrides script.path.
	ScriptPath string

	// LogLevel overrides logging.level.
	LogLevel string

	// LogFile overrides logging.file.
	LogFile string

	// Backend replaces the backend selected by the output mode.
	Backend backend.Backend

	// LogOutput replaces the log destination.
	LogOutput io.Writer

	// ConfigOptions are passed to config.Load.
	ConfigOptions []config.Option
}

// New creates an Application with the given options.
func New(opts Options) (*Application, error) {
	app := &Application{opts: opts}

	if err := newBootstrapper(app, opts).bootstrap(); err != nil {
		return nil, err
	}
	return app, nil
}

// Run initializes the backend, mounts the component and processes tasks
// until the context is cancelled or the loop stops. It returns ErrQuit when
// the user quits and nil when ctx is cancelled. The loop cannot be
// restarted, so Run is effective once.
func (app *Application) Run(ctx context.Context) error {
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer app.running.Store(false)

	if err := app.backend.Init(); err != nil {
		return &InitError{Component: "backend", Err: err}
	}

	id := uuid.NewString()
	log := app.Logger().WithField("session", id)
	app.mu.Lock()
	app.sessionID = id
	app.logger = log
	app.mu.Unlock()

	log.Info("starting %s component", app.comp.Name())

	app.loop.Post(app.mountTask)

	if app.watcher != nil {
		if err := app.watcher.Start(); err != nil {
			log.Warn("config watcher: %v", err)
		}
	}

	app.startInputPump()

	err := app.loop.Run(ctx)

	app.backend.Shutdown()
	app.inputWG.Wait()

	if err != nil {
		log.Info("stopped: %v", err)
	} else {
		log.Info("stopped")
	}
	return err
}

// mountTask attaches the component to the root. A mount failure is fatal.
func (app *Application) mountTask() error {
	if err := app.comp.Mount(app.root); err != nil {
		return NewComponentError(app.comp.Name(), "mount", err)
	}
	return nil
}

// Post queues a command for the component.
func (app *Application) Post(cmd component.Command) error {
	if !app.loop.Post(app.commandTask(cmd)) {
		return ErrNotRunning
	}
	return nil
}

// Quit stops the loop after the tasks already queued have run.
func (app *Application) Quit() {
	if !app.loop.Post(quitTask) {
		app.loop.Stop(ErrQuit)
	}
}

func quitTask() error { return ErrQuit }

// Shutdown stops the loop and releases the watcher, the script state and
// the log file. It is safe to call more than once.
func (app *Application) Shutdown() {
	app.shutdownOnce.Do(func() {
		app.loop.Stop(nil)
		if app.watcher != nil {
			app.watcher.Stop()
		}
		if c, ok := app.comp.(interface{ Close() }); ok {
			c.Close()
		}
		if app.logFile != nil {
			_ = app.logFile.Close()
		}
	})
}

// Config returns the current configuration.
func (app *Application) Config() *config.Config {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.cfg
}

// Renderer returns the renderer.
func (app *Application) Renderer() *renderer.Renderer {
	return app.renderer
}

// Root returns the root node. It must only be inspected from the loop
// goroutine or after Run returns.
func (app *Application) Root() *tree.Node {
	return app.root
}

// Component returns the mounted component.
func (app *Application) Component() component.Component {
	return app.comp
}

// SessionID returns the identifier of the current run.
func (app *Application) SessionID() string {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.sessionID
}

// IsRunning returns true if Run is in progress.
func (app *Application) IsRunning() bool {
	return app.running.Load()
}
