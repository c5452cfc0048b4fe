// Package counter implements the demo counter component: a line showing a
// count and a hint, incremented by the enter key.
package counter

import (
	"fmt"

	"github.com/dshills/termtree/internal/component"
	"github.com/dshills/termtree/internal/tree"
)

// Default texts.
const (
	DefaultLabel = "当前计数: "
	DefaultHint  = "(按回车键增加)"
)

// Settings keys understood by CommandConfigure.
const (
	SettingLabel = "label"
	SettingHint  = "hint"
)

// Options configures a Counter.
type Options struct {
	// Initial is the starting count.
	Initial int
	// Step is added on every increment. Zero means 1.
	Step int
	// Label precedes the count.
	Label string
	// Hint follows the count.
	Hint string
}

// DefaultOptions returns the demo defaults.
func DefaultOptions() Options {
	return Options{
		Step:  1,
		Label: DefaultLabel,
		Hint:  DefaultHint,
	}
}

// Counter renders
//
//	div
//	├── text  "<label><count>  "
//	└── text  "<hint>"
//
// and updates only the first text node when the count changes.
type Counter struct {
	ops   tree.NodeOps
	opts  Options
	count int

	host      *tree.Node
	countText *tree.Node
	hintText  *tree.Node

	// handlerErr carries a failure out of the keypress handler.
	handlerErr error
}

var _ component.Component = (*Counter)(nil)

// New creates an unmounted counter.
func New(ops tree.NodeOps, opts Options) *Counter {
	if opts.Step == 0 {
		opts.Step = 1
	}
	return &Counter{ops: ops, opts: opts, count: opts.Initial}
}

// Name returns "counter".
func (c *Counter) Name() string { return "counter" }

// Count returns the current count.
func (c *Counter) Count() int { return c.count }

// Mount builds the subtree detached and attaches it with a single insert.
func (c *Counter) Mount(root *tree.Node) error {
	host := c.ops.CreateElement("div")
	countText := c.ops.CreateText(c.countLabel())
	hintText := c.ops.CreateText(c.opts.Hint)

	if err := c.ops.Insert(countText, host, nil); err != nil {
		return err
	}
	if err := c.ops.Insert(hintText, host, nil); err != nil {
		return err
	}
	if err := c.ops.SetProperty(host, "onKeypress", nil, tree.Handler(c.onKeypress)); err != nil {
		return err
	}
	if err := c.ops.Insert(host, root, nil); err != nil {
		return err
	}

	c.host, c.countText, c.hintText = host, countText, hintText
	return nil
}

// Handle applies a command.
func (c *Counter) Handle(cmd component.Command) error {
	if c.host == nil {
		return component.ErrNotMounted
	}

	switch cmd.Kind {
	case component.CommandKey:
		ev := tree.NewEvent("keypress")
		ev.Key = cmd.Key
		ev.Rune = cmd.Rune
		tree.Dispatch(c.countText, ev)
		err := c.handlerErr
		c.handlerErr = nil
		return err

	case component.CommandIncrement:
		return c.Increment()

	case component.CommandConfigure:
		return c.configure(cmd.Settings)

	default:
		return nil
	}
}

// Increment steps the count and updates the count text.
func (c *Counter) Increment() error {
	if c.countText == nil {
		return component.ErrNotMounted
	}
	c.count += c.opts.Step
	return c.ops.SetText(c.countText, c.countLabel())
}

// Unmount detaches the subtree from its root.
func (c *Counter) Unmount() error {
	if c.host == nil {
		return nil
	}
	err := c.ops.Remove(c.host)
	c.host, c.countText, c.hintText = nil, nil, nil
	return err
}

func (c *Counter) onKeypress(ev *tree.Event) {
	if ev.Key != "enter" {
		return
	}
	ev.PreventDefault()
	c.handlerErr = c.Increment()
}

func (c *Counter) configure(settings map[string]string) error {
	if label, ok := settings[SettingLabel]; ok {
		c.opts.Label = label
		if err := c.ops.SetText(c.countText, c.countLabel()); err != nil {
			return err
		}
	}
	if hint, ok := settings[SettingHint]; ok {
		c.opts.Hint = hint
		if err := c.ops.SetText(c.hintText, hint); err != nil {
			return err
		}
	}
	return nil
}

func (c *Counter) countLabel() string {
	return fmt.Sprintf("%s%d  ", c.opts.Label, c.count)
}
