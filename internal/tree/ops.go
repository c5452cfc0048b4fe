package tree

import "strings"

// handlerPrefix marks property keys that carry event handlers.
const handlerPrefix = "on"

// Scheduler is notified after a change to a node attached to root.
type Scheduler interface {
	ScheduleRender(root *Node)
}

// SchedulerFunc adapts a function to the Scheduler interface.
type SchedulerFunc func(root *Node)

// ScheduleRender calls f(root).
func (f SchedulerFunc) ScheduleRender(root *Node) { f(root) }

// NodeOps is the fixed operation set a reconciler drives the tree with.
// Any tree-diffing engine can be written against it without knowing how
// the tree is rendered.
type NodeOps interface {
	CreateElement(tag string) *Node
	CreateText(content string) *Node
	CreateComment(content string) *Node
	SetText(node *Node, content string) error
	SetElementText(node *Node, content string) error
	Insert(child, parent, anchor *Node) error
	Remove(child *Node) error
	SetProperty(node *Node, key string, prevValue, nextValue any) error
	ParentOf(node *Node) *Node
	NextSiblingOf(node *Node) *Node
}

// Ops implements NodeOps. Every call that changes a node attached to a root
// notifies the scheduler exactly once before returning; changes to detached
// nodes are silent.
//
// Ops is not safe for concurrent use. All calls must come from the goroutine
// that owns the tree.
type Ops struct {
	sched Scheduler
}

var _ NodeOps = (*Ops)(nil)

// NewOps creates the primitives. A nil scheduler disables notifications.
func NewOps(sched Scheduler) *Ops {
	return &Ops{sched: sched}
}

// CreateRoot returns an empty root for a host application to mount on.
func (o *Ops) CreateRoot() *Node {
	return &Node{kind: KindRoot, children: []*Node{}}
}

// CreateElement returns a new detached element.
func (o *Ops) CreateElement(tag string) *Node {
	return newElement(tag)
}

// CreateText returns a new detached text node.
func (o *Ops) CreateText(content string) *Node {
	return newLeaf(KindText, content)
}

// CreateComment returns a new detached comment node.
func (o *Ops) CreateComment(content string) *Node {
	return newLeaf(KindComment, content)
}

// SetText replaces the content of a text or comment node.
func (o *Ops) SetText(node *Node, content string) error {
	if node == nil {
		return newOpError("setText", nil, ErrNilNode)
	}
	if !node.kind.IsLeaf() {
		return newOpError("setText", node, ErrInvalidNodeKind)
	}
	node.content = content
	o.notify(node)
	return nil
}

// SetElementText replaces all children of an element with a single text
// node. Discarded children are detached and left unreachable.
func (o *Ops) SetElementText(node *Node, content string) error {
	if node == nil {
		return newOpError("setElementText", nil, ErrNilNode)
	}
	if node.kind != KindElement {
		return newOpError("setElementText", node, ErrInvalidNodeKind)
	}
	for _, c := range node.children {
		c.parent = nil
	}
	text := newLeaf(KindText, content)
	text.parent = node
	node.children = []*Node{text}
	o.notify(node)
	return nil
}

// Insert places child in parent before anchor, or at the end when anchor is
// nil. A child that already has a parent is moved: it is detached from its
// old position first.
func (o *Ops) Insert(child, parent, anchor *Node) error {
	if child == nil || parent == nil {
		return newOpError("insert", nil, ErrNilNode)
	}
	if !parent.kind.IsContainer() {
		return newOpError("insert", parent, ErrInvalidNodeKind)
	}
	if child.kind == KindRoot {
		return newOpError("insert", child, ErrInvalidNodeKind)
	}
	if child.isAncestorOf(parent) {
		return newOpError("insert", child, ErrCycle)
	}
	if anchor != nil && parent.indexOf(anchor) < 0 {
		return newOpError("insert", parent, ErrAnchorNotFound)
	}

	if anchor == child {
		o.notify(parent)
		return nil
	}
	var oldRoot *Node
	if old := child.parent; old != nil {
		oldRoot, _ = RootOf(old)
		old.children = removeAt(old.children, old.indexOf(child))
	}

	if anchor == nil {
		parent.children = append(parent.children, child)
	} else {
		i := parent.indexOf(anchor)
		parent.children = append(parent.children, nil)
		copy(parent.children[i+1:], parent.children[i:])
		parent.children[i] = child
	}
	child.parent = parent
	o.notify(parent)

	// A move out of an attached tree changes that tree too.
	if oldRoot != nil && o.sched != nil {
		if newRoot, _ := RootOf(parent); newRoot != oldRoot {
			o.sched.ScheduleRender(oldRoot)
		}
	}
	return nil
}

// Remove detaches child from its parent. Removing a detached node is a no-op.
func (o *Ops) Remove(child *Node) error {
	if child == nil {
		return newOpError("remove", nil, ErrNilNode)
	}
	parent := child.parent
	if parent == nil {
		return nil
	}
	if i := parent.indexOf(child); i >= 0 {
		parent.children = removeAt(parent.children, i)
	}
	child.parent = nil
	o.notify(parent)
	return nil
}

// SetProperty stores a property on an element.
//
// Keys of the form "on<Event>" manage handlers instead: a callable next value
// registers it under the lower-cased event name, anything else removes the
// handler. prevValue is accepted for reconcilers that diff props and is not
// consulted.
func (o *Ops) SetProperty(node *Node, key string, prevValue, nextValue any) error {
	_ = prevValue
	if node == nil {
		return newOpError("setProperty", nil, ErrNilNode)
	}
	if node.kind != KindElement {
		return newOpError("setProperty", node, ErrInvalidNodeKind)
	}

	if event, ok := handlerEvent(key); ok {
		if h, callable := asHandler(nextValue); callable {
			node.handlers[event] = h
		} else {
			delete(node.handlers, event)
		}
	} else {
		node.properties[key] = nextValue
	}
	o.notify(node)
	return nil
}

// ParentOf returns the node's parent.
func (o *Ops) ParentOf(node *Node) *Node {
	if node == nil {
		return nil
	}
	return node.parent
}

// NextSiblingOf returns the node following node in its parent, or nil.
func (o *Ops) NextSiblingOf(node *Node) *Node {
	if node == nil || node.parent == nil {
		return nil
	}
	i := node.parent.indexOf(node)
	if i < 0 {
		return nil
	}
	return node.parent.Child(i + 1)
}

// notify schedules a render of the root n is attached to, if any.
func (o *Ops) notify(n *Node) {
	if o.sched == nil {
		return
	}
	root, err := RootOf(n)
	if err != nil {
		return
	}
	o.sched.ScheduleRender(root)
}

func handlerEvent(key string) (string, bool) {
	if len(key) <= len(handlerPrefix) || !strings.HasPrefix(key, handlerPrefix) {
		return "", false
	}
	return strings.ToLower(key[len(handlerPrefix):]), true
}

func asHandler(v any) (Handler, bool) {
	switch h := v.(type) {
	case Handler:
		return h, h != nil
	case func(*Event):
		return h, h != nil
	case func():
		if h == nil {
			return nil, false
		}
		return func(*Event) { h() }, true
	default:
		return nil, false
	}
}

func removeAt(s []*Node, i int) []*Node {
	if i < 0 {
		return s
	}
	copy(s[i:], s[i+1:])
	s[len(s)-1] = nil
	return s[:len(s)-1]
}
