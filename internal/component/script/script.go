// Package script provides a component whose reconciler is a Lua script.
//
// The script receives the mutation primitives as the global table "ui" and
// defines up to three globals:
//
//	mount(root)        build the initial tree under root (required)
//	on_command(cmd)    apply a command table {kind, key, rune, settings}
//	unmount(root)      tear down; when absent every child of root is removed
//
// Nodes are userdata with methods kind(), tag(), content() and len().
// A function passed to ui.set_property under an "on<Event>" key becomes an
// event handler; it receives {type, key, rune} and may return false to
// prevent the default action.
package script

import (
	"context"
	"errors"
	"fmt"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/termtree/internal/component"
	"github.com/dshills/termtree/internal/tree"
)

// DefaultExecutionTimeout bounds each call into the script.
const DefaultExecutionTimeout = 5 * time.Second

const nodeTypeName = "termtree.node"

// Script errors.
var (
	// ErrClosed indicates the Lua state was closed.
	ErrClosed = errors.New("script closed")

	// ErrNoMount indicates the script does not define mount(root).
	ErrNoMount = errors.New("script does not define mount")
)

// Component runs a Lua script as a component.
//
// gopher-lua states are not goroutine-safe; every method must be called from
// the loop goroutine.
type Component struct {
	L   *lua.LState
	ops tree.NodeOps

	name    string
	timeout time.Duration

	root   *tree.Node
	nodes  map[*tree.Node]*lua.LUserData
	closed bool

	// handlerErr carries a failure out of a Lua event handler.
	handlerErr error
}

var _ component.Component = (*Component)(nil)

// Option configures a Component.
type Option func(*Component)

// WithName sets the component name used in logs.
func WithName(name string) Option {
	return func(c *Component) {
		c.name = name
	}
}

// WithExecutionTimeout bounds each call into the script.
func WithExecutionTimeout(d time.Duration) Option {
	return func(c *Component) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New creates a sandboxed Lua state with the ui module installed.
func New(ops tree.NodeOps, opts ...Option) *Component {
	c := &Component{
		ops:     ops,
		name:    "script",
		timeout: DefaultExecutionTimeout,
		nodes:   make(map[*tree.Node]*lua.LUserData),
	}
	for _, opt := range opts {
		opt(c)
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(L)
	c.L = L
	c.register(L)
	return c
}

// openSafeLibraries opens only libraries without file or process access.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		L.SetGlobal(name, lua.LNil)
	}
}

// Name returns the component name.
func (c *Component) Name() string { return c.name }

// LoadFile executes a script file, defining its globals.
func (c *Component) LoadFile(path string) error {
	return c.protect(func() error { return c.L.DoFile(path) })
}

// LoadString executes script source, defining its globals.
func (c *Component) LoadString(src string) error {
	return c.protect(func() error { return c.L.DoString(src) })
}

// Mount calls mount(root).
func (c *Component) Mount(root *tree.Node) error {
	if c.closed {
		return ErrClosed
	}
	fn, ok := c.global("mount")
	if !ok {
		return ErrNoMount
	}
	c.root = root
	return c.call(fn, c.wrap(root))
}

// Handle calls on_command(cmd) if the script defines it.
func (c *Component) Handle(cmd component.Command) error {
	if c.closed {
		return ErrClosed
	}
	if c.root == nil {
		return component.ErrNotMounted
	}
	fn, ok := c.global("on_command")
	if !ok {
		return nil
	}

	t := c.L.NewTable()
	t.RawSetString("kind", lua.LString(cmd.Kind.String()))
	t.RawSetString("key", lua.LString(cmd.Key))
	if cmd.Rune != 0 {
		t.RawSetString("rune", lua.LString(string(cmd.Rune)))
	}
	if len(cmd.Settings) > 0 {
		settings := c.L.NewTable()
		for k, v := range cmd.Settings {
			settings.RawSetString(k, lua.LString(v))
		}
		t.RawSetString("settings", settings)
	}

	if err := c.call(fn, t); err != nil {
		return err
	}
	err := c.handlerErr
	c.handlerErr = nil
	return err
}

// Unmount calls unmount(root), or removes every child of root.
func (c *Component) Unmount() error {
	if c.closed || c.root == nil {
		return nil
	}
	root := c.root
	c.root = nil

	if fn, ok := c.global("unmount"); ok {
		return c.call(fn, c.wrap(root))
	}
	for _, child := range root.Children() {
		if err := c.ops.Remove(child); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the Lua state.
func (c *Component) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.L.Close()
	c.nodes = nil
}

func (c *Component) global(name string) (*lua.LFunction, bool) {
	fn, ok := c.L.GetGlobal(name).(*lua.LFunction)
	return fn, ok
}

// call invokes fn with a per-call deadline.
func (c *Component) call(fn *lua.LFunction, args ...lua.LValue) error {
	return c.protect(func() error {
		return c.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, args...)
	})
}

// protect runs fn under the execution timeout with panic recovery.
func (c *Component) protect(fn func() error) (err error) {
	if c.closed {
		return ErrClosed
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	c.L.SetContext(ctx)
	defer c.L.RemoveContext()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	if err := fn(); err != nil {
		return fmt.Errorf("%s: %w", c.name, err)
	}
	return nil
}
