package tree

import "time"

// Event is delivered to element handlers by Dispatch.
type Event struct {
	// Type is the handler name the event is routed to (e.g., "keypress").
	Type string

	// Key names a key for keyboard events (e.g., "enter", "q").
	Key string

	// Rune is the typed character for keyboard events, if any.
	Rune rune

	// Target is the node the event was dispatched to.
	Target *Node

	// CurrentTarget is the node whose handler is running.
	CurrentTarget *Node

	// TimeStamp is when the event was created.
	TimeStamp time.Time

	defaultPrevented   bool
	propagationStopped bool
}

// NewEvent creates an event of the given type.
func NewEvent(typ string) *Event {
	return &Event{Type: typ, TimeStamp: time.Now()}
}

// PreventDefault marks the event's default action as cancelled.
func (e *Event) PreventDefault() { e.defaultPrevented = true }

// StopPropagation stops the event from reaching further ancestors.
func (e *Event) StopPropagation() { e.propagationStopped = true }

// DefaultPrevented reports whether PreventDefault was called.
func (e *Event) DefaultPrevented() bool { return e.defaultPrevented }

// PropagationStopped reports whether StopPropagation was called.
func (e *Event) PropagationStopped() bool { return e.propagationStopped }

// Dispatch delivers ev to the handler registered for ev.Type on target and
// then on each ancestor, until a handler stops propagation.
// It returns false if any handler called PreventDefault.
func Dispatch(target *Node, ev *Event) bool {
	if target == nil || ev == nil {
		return true
	}
	ev.Target = target
	for cur := target; cur != nil; cur = cur.parent {
		if h, ok := cur.handlers[ev.Type]; ok {
			ev.CurrentTarget = cur
			h(ev)
			if ev.propagationStopped {
				break
			}
		}
	}
	ev.CurrentTarget = nil
	return !ev.defaultPrevented
}
