package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dshills/termtree/internal/config"
	"github.com/dshills/termtree/internal/config/watcher"
	"github.com/dshills/termtree/internal/renderer/backend"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LogLevelDebug},
		{"Info", LogLevelInfo},
		{"warn", LogLevelWarn},
		{"WARNING", LogLevelWarn},
		{"error", LogLevelError},
		{"verbose", LogLevelInfo},
		{"", LogLevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLogLevel(tt.in); got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLogger_LineFormat(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultLoggerConfig()
	cfg.Output = &buf
	logger := NewLogger(cfg)

	logger.WithFields(map[string]any{"session": "s1", "component": "renderer"}).
		Warn("flush %d bytes", 12)

	line := buf.String()
	for _, want := range []string{
		"[WARN] termtree: flush 12 bytes",
		"{component=renderer, session=s1}",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("log line %q missing %q", line, want)
		}
	}
	if !strings.HasSuffix(line, "\n") {
		t.Error("log line should end with a newline")
	}
}

func TestRunLogsSessionField(t *testing.T) {
	app := newTestApp(t, "[logging]\nlevel = \"info\"\n", Options{})

	errc := make(chan error, 1)
	go func() { errc <- app.Run(context.Background()) }()
	waitFor(t, "first write", func() bool { return len(app.sink.Writes()) > 0 })
	sid := app.SessionID()
	app.Quit()
	if err := <-errc; !errors.Is(err, ErrQuit) {
		t.Fatalf("Run() = %v, want ErrQuit", err)
	}

	if sid == "" {
		t.Fatal("SessionID should be set while running")
	}
	logs := app.logs.String()
	for _, msg := range []string{"starting counter component", "stopped"} {
		found := false
		for _, line := range strings.Split(logs, "\n") {
			if strings.Contains(line, msg) && strings.Contains(line, "session="+sid) {
				found = true
			}
		}
		if !found {
			t.Errorf("no %q line tagged with session=%s in:\n%s", msg, sid, logs)
		}
	}
}

func TestComponentLoggersFollowLevel(t *testing.T) {
	app := newTestApp(t, "[logging]\nlevel = \"error\"\n", Options{})
	input := app.Logger().WithComponent("input")

	input.Info("hidden")
	app.Logger().SetLevel(LogLevelDebug)
	input.Debug("shown")

	errc := make(chan error, 1)
	go func() { errc <- app.Run(context.Background()) }()
	waitFor(t, "first write", func() bool { return len(app.sink.Writes()) > 0 })
	app.Quit()
	<-errc

	logs := app.logs.String()
	if strings.Contains(logs, "hidden") {
		t.Error("info should be filtered at error level")
	}
	if !strings.Contains(logs, "shown {component=input}") {
		t.Errorf("derived input logger should pick up the new level:\n%s", logs)
	}
	if !strings.Contains(logs, "flushed") || !strings.Contains(logs, "component=renderer") {
		t.Errorf("renderer logger should log flushes at debug:\n%s", logs)
	}
}

func TestConfigReloadSetsLevel(t *testing.T) {
	app := newTestApp(t, "[logging]\nlevel = \"warn\"\n", Options{})
	renderLog := app.Logger().WithComponent("renderer")
	path := writeFile(t, app.dir, "config.toml", "[logging]\nlevel = \"debug\"\n")

	app.onConfigChange(watcher.Event{Path: path, Op: watcher.OpWrite})

	if app.Logger().Level() != LogLevelDebug {
		t.Errorf("level = %v, want DEBUG after reload", app.Logger().Level())
	}
	if renderLog.Level() != LogLevelDebug {
		t.Error("component loggers share the reloaded level")
	}
	if !strings.Contains(app.logs.String(), "reloaded "+path) {
		t.Errorf("missing reload message:\n%s", app.logs.String())
	}
}

func TestConfigReloadRemovedKeepsLevel(t *testing.T) {
	app := newTestApp(t, "[logging]\nlevel = \"warn\"\n", Options{})
	path := filepath.Join(app.dir, "config.toml")

	app.onConfigChange(watcher.Event{Path: path, Op: watcher.OpRemove})

	if app.Logger().Level() != LogLevelWarn {
		t.Errorf("level = %v, want WARN", app.Logger().Level())
	}
	logs := app.logs.String()
	if !strings.Contains(logs, "keeping current settings") || !strings.Contains(logs, "component=config") {
		t.Errorf("expected config warning, got:\n%s", logs)
	}
}

func TestLogFileOption(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "termtree.log")

	app, err := New(Options{
		ConfigPath:    writeFile(t, dir, "config.toml", ""),
		LogFile:       logPath,
		LogLevel:      "debug",
		Backend:       backend.NewNullBackend(),
		ConfigOptions: []config.Option{config.WithEnv(nil)},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	app.Shutdown()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "bootstrap complete") {
		t.Errorf("log file = %q, want bootstrap message", data)
	}
}

func TestApplication_LoggerFallback(t *testing.T) {
	app := &Application{}
	if app.Logger() != NullLogger {
		t.Error("expected NullLogger when no logger is configured")
	}
	app.logComponentError("counter", errors.New("dropped"))
	NullLogger.WithComponent("input").Error("dropped")
}
