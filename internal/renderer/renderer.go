package renderer

import (
	"fmt"
	"strings"
	"time"

	"github.com/dshills/termtree/internal/loop"
	"github.com/dshills/termtree/internal/renderer/backend"
	"github.com/dshills/termtree/internal/tree"
)

// Options configures the renderer.
type Options struct {
	// OnError receives sink failures from deferred renders.
	// Sink failures are fatal; the hook is expected to stop the program.
	OnError func(err error)

	// OnFlush is called after every write with the text written.
	OnFlush func(output string)
}

// DefaultOptions returns options with no hooks installed.
func DefaultOptions() Options {
	return Options{}
}

// Renderer coalesces mutation notifications into one serialization and at
// most one write per scheduling quantum.
//
// Renderer is owned by the loop goroutine. pending and lastOutput are only
// touched inside ScheduleRender and Render.
type Renderer struct {
	opts     Options
	sink     backend.Sink
	deferrer loop.Deferrer

	pending    bool
	lastOutput string

	stats *Stats
}

var _ tree.Scheduler = (*Renderer)(nil)

// New creates a renderer writing to sink and deferring flushes through d.
func New(sink backend.Sink, d loop.Deferrer, opts Options) *Renderer {
	return &Renderer{
		opts:     opts,
		sink:     sink,
		deferrer: d,
		stats:    NewStats(),
	}
}

// ScheduleRender queues a render of root for the end of the current quantum.
// While a render is already queued it does nothing: the queued render reads
// the live tree when it runs.
func (r *Renderer) ScheduleRender(root *tree.Node) {
	r.stats.recordSchedule(r.pending)
	if r.pending {
		return
	}
	r.pending = true
	r.deferrer.Defer(func() {
		if err := r.Render(root); err != nil && r.opts.OnError != nil {
			r.opts.OnError(err)
		}
	})
}

// Render serializes root and writes it to the sink when it differs from the
// last written output. pending is cleared whether or not a write happens.
func (r *Renderer) Render(root *tree.Node) error {
	defer func() { r.pending = false }()
	if root == nil {
		return nil
	}

	start := time.Now()
	out := Serialize(root)
	if out == r.lastOutput {
		r.stats.recordRender(time.Since(start), false)
		return nil
	}

	if err := r.sink.ResetLine(); err != nil {
		return fmt.Errorf("reset output: %w", err)
	}
	if err := r.sink.Write(out); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	r.lastOutput = out
	r.stats.recordRender(time.Since(start), true)

	if r.opts.OnFlush != nil {
		r.opts.OnFlush(out)
	}
	return nil
}

// Pending reports whether a render is queued.
func (r *Renderer) Pending() bool { return r.pending }

// LastOutput returns the text most recently written to the sink.
func (r *Renderer) LastOutput() string { return r.lastOutput }

// Stats returns a snapshot of the renderer counters.
func (r *Renderer) Stats() StatsSnapshot { return r.stats.Snapshot() }

// Serialize flattens a tree to text: text nodes contribute their content,
// comments contribute nothing, containers contribute their children in order.
func Serialize(n *tree.Node) string {
	var sb strings.Builder
	serialize(&sb, n)
	return sb.String()
}

func serialize(sb *strings.Builder, n *tree.Node) {
	if n == nil {
		return
	}
	switch n.Kind() {
	case tree.KindText:
		sb.WriteString(n.Content())
	case tree.KindComment:
	case tree.KindElement, tree.KindRoot:
		for c := range n.All() {
			serialize(sb, c)
		}
	}
}
