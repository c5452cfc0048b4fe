// Package component defines the contract between the application and the
// reconcilers that drive the output tree.
//
// A component owns everything below the root it is mounted on and changes it
// only through tree.NodeOps. The application never reaches into component
// state; it delivers Commands to Handle over the loop channel.
package component

import (
	"errors"
	"fmt"

	"github.com/dshills/termtree/internal/tree"
)

// ErrNotMounted is returned by Handle before Mount or after Unmount.
var ErrNotMounted = errors.New("component not mounted")

// CommandKind identifies a command.
type CommandKind int

const (
	// CommandKey delivers a key press.
	CommandKey CommandKind = iota
	// CommandIncrement asks a counter-like component to step its state.
	CommandIncrement
	// CommandConfigure delivers new settings after a config reload.
	CommandConfigure
)

// String returns the string representation of the command kind.
func (k CommandKind) String() string {
	switch k {
	case CommandKey:
		return "key"
	case CommandIncrement:
		return "increment"
	case CommandConfigure:
		return "configure"
	default:
		return "unknown"
	}
}

// Command is a message from the application into a component's state
// update entry point.
type Command struct {
	Kind CommandKind

	// Key is the key name for CommandKey (e.g., "enter", "rune").
	Key string
	// Rune is the typed character for CommandKey, if any.
	Rune rune

	// Settings carries string settings for CommandConfigure.
	Settings map[string]string
}

func (c Command) String() string {
	switch c.Kind {
	case CommandKey:
		if c.Rune != 0 {
			return fmt.Sprintf("key(%q)", c.Rune)
		}
		return "key(" + c.Key + ")"
	default:
		return c.Kind.String()
	}
}

// Component is a reconciler mounted on a root.
type Component interface {
	// Name identifies the component in logs.
	Name() string

	// Mount builds the component's initial tree under root.
	Mount(root *tree.Node) error

	// Handle applies a command. Called on the loop goroutine only.
	Handle(cmd Command) error

	// Unmount removes the component's nodes from the root.
	Unmount() error
}
