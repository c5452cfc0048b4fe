package app

import (
	"github.com/dshills/termtree/internal/component"
	"github.com/dshills/termtree/internal/config"
	"github.com/dshills/termtree/internal/config/watcher"
)

// onConfigChange reloads the configuration file and reconfigures the
// component. Output mode, script path and log file are fixed for the run;
// the log level and the counter texts take effect immediately.
func (app *Application) onConfigChange(ev watcher.Event) {
	log := app.Logger().WithComponent("config")

	switch ev.Op {
	case watcher.OpRemove, watcher.OpRename:
		log.Warn("%s %s; keeping current settings", ev.Path, ev.Op)
		return
	}

	cfg, err := config.Load(ev.Path, app.opts.ConfigOptions...)
	if err != nil {
		log.Warn("reload %s: %v", ev.Path, err)
		return
	}
	applyOverrides(cfg, app.opts)

	app.mu.Lock()
	prev := app.cfg
	cfg.Output = prev.Output
	cfg.Script = prev.Script
	cfg.Logging.File = prev.Logging.File
	app.cfg = cfg
	app.mu.Unlock()

	app.Logger().SetLevel(ParseLogLevel(cfg.Logging.Level))
	log.Info("reloaded %s", ev.Path)

	cmd := component.Command{
		Kind:     component.CommandConfigure,
		Settings: cfg.Counter.Settings(),
	}
	if err := app.Post(cmd); err != nil {
		log.Debug("configure not delivered: %v", err)
	}
}
