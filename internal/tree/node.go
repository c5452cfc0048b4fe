// Package tree provides the mutable output tree and the mutation primitives
// an external reconciler uses to keep it in sync.
//
// A tree has exactly one root. Ownership flows from a node's children slice
// outward; the parent pointer is a plain back-reference and never owns
// anything. Nodes are created detached and become part of a tree through
// Insert.
package tree

import "iter"

// Kind identifies the variant of a Node.
type Kind uint8

const (
	// KindRoot is the single top-level container of a tree.
	KindRoot Kind = iota
	// KindElement is a tagged container with properties and handlers.
	KindElement
	// KindText holds displayable text.
	KindText
	// KindComment holds text that is never displayed.
	KindComment
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindElement:
		return "element"
	case KindText:
		return "text"
	case KindComment:
		return "comment"
	default:
		return "unknown"
	}
}

// IsContainer reports whether nodes of this kind may hold children.
func (k Kind) IsContainer() bool {
	return k == KindRoot || k == KindElement
}

// IsLeaf reports whether nodes of this kind carry content.
func (k Kind) IsLeaf() bool {
	return k == KindText || k == KindComment
}

// Handler is an event callback registered on an element.
type Handler func(ev *Event)

// Node is an element of the output tree.
//
// Fields are unexported; the tree is changed only through Ops so that the
// renderer is notified of every change to an attached node.
type Node struct {
	kind   Kind
	parent *Node

	// Containers only.
	children []*Node

	// Elements only.
	tag        string
	properties map[string]any
	handlers   map[string]Handler

	// Leaves only.
	content string
}

func newElement(tag string) *Node {
	return &Node{
		kind:       KindElement,
		tag:        tag,
		children:   []*Node{},
		properties: make(map[string]any),
		handlers:   make(map[string]Handler),
	}
}

func newLeaf(kind Kind, content string) *Node {
	return &Node{kind: kind, content: content}
}

// Kind returns the node variant.
func (n *Node) Kind() Kind { return n.kind }

// Tag returns the element tag, or "" for other kinds.
func (n *Node) Tag() string { return n.tag }

// Content returns the text of a text or comment node.
func (n *Node) Content() string { return n.content }

// Parent returns the node's parent or nil when detached.
func (n *Node) Parent() *Node { return n.parent }

// Len returns the number of children.
func (n *Node) Len() int { return len(n.children) }

// Child returns the i-th child or nil when out of range.
func (n *Node) Child(i int) *Node {
	if i < 0 || i >= len(n.children) {
		return nil
	}
	return n.children[i]
}

// Children returns a copy of the ordered children.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// All iterates over the children in order.
func (n *Node) All() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		for _, c := range n.children {
			if !yield(c) {
				return
			}
		}
	}
}

// Property returns the value stored under key.
func (n *Node) Property(key string) (any, bool) {
	v, ok := n.properties[key]
	return v, ok
}

// Handler returns the handler registered for the event name.
func (n *Node) Handler(event string) (Handler, bool) {
	h, ok := n.handlers[event]
	return h, ok
}

// HandlerCount returns the number of registered handlers.
func (n *Node) HandlerCount() int { return len(n.handlers) }

// indexOf returns the position of child among n's children or -1.
func (n *Node) indexOf(child *Node) int {
	for i, c := range n.children {
		if c == child {
			return i
		}
	}
	return -1
}

// isAncestorOf reports whether n is child or one of child's ancestors.
func (n *Node) isAncestorOf(child *Node) bool {
	for cur := child; cur != nil; cur = cur.parent {
		if cur == n {
			return true
		}
	}
	return false
}

// RootOf returns the root the node is attached to.
// ErrDetachedMutation is returned when the topmost ancestor is not a root.
func RootOf(n *Node) (*Node, error) {
	if n == nil {
		return nil, ErrNilNode
	}
	cur := n
	for cur.parent != nil {
		cur = cur.parent
	}
	if cur.kind != KindRoot {
		return nil, ErrDetachedMutation
	}
	return cur, nil
}

// Walk visits n and its descendants depth-first in document order.
// Returning false from fn skips the node's subtree.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.children {
		Walk(c, fn)
	}
}
