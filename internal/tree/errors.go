package tree

import (
	"errors"
	"fmt"
)

// Tree errors.
var (
	// ErrInvalidNodeKind indicates a primitive was invoked on a node kind
	// that does not support it.
	ErrInvalidNodeKind = errors.New("invalid node kind")

	// ErrAnchorNotFound indicates an insert anchor is not a child of the parent.
	ErrAnchorNotFound = errors.New("anchor not found")

	// ErrDetachedMutation indicates a node has no path to a root.
	// Primitives never return it; they skip scheduling instead.
	ErrDetachedMutation = errors.New("node is not attached to a root")

	// ErrCycle indicates an insert would make a node its own ancestor.
	ErrCycle = errors.New("insert would create a cycle")

	// ErrNilNode indicates a nil node was passed to a primitive.
	ErrNilNode = errors.New("nil node")
)

// OpError describes a failed primitive.
type OpError struct {
	Op   string // Primitive name (e.g., "insert", "setText")
	Kind Kind   // Kind of the offending node
	Err  error  // Underlying error
}

func newOpError(op string, n *Node, err error) *OpError {
	e := &OpError{Op: op, Err: err}
	if n != nil {
		e.Kind = n.kind
	}
	return e
}

func (e *OpError) Error() string {
	if e == nil {
		return ""
	}
	if errors.Is(e.Err, ErrNilNode) {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s on %s node: %v", e.Op, e.Kind, e.Err)
}

func (e *OpError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
