package renderer

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dshills/termtree/internal/loop"
	"github.com/dshills/termtree/internal/renderer/backend"
	"github.com/dshills/termtree/internal/tree"
)

type fixture struct {
	queue *loop.Queue
	sink  *backend.NullBackend
	r     *Renderer
	ops   *tree.Ops
	root  *tree.Node
}

func newFixture(opts Options) *fixture {
	f := &fixture{
		queue: &loop.Queue{},
		sink:  backend.NewNullBackend(),
	}
	f.r = New(f.sink, f.queue, opts)
	f.ops = tree.NewOps(f.r)
	f.root = f.ops.CreateRoot()
	return f
}

// quantum ends the current scheduling quantum.
func (f *fixture) quantum() { f.queue.Drain() }

func TestCounterScenario(t *testing.T) {
	f := newFixture(DefaultOptions())

	div := f.ops.CreateElement("div")
	count := f.ops.CreateText("当前计数: 0  ")
	hint := f.ops.CreateText("(按回车键增加)")
	_ = f.ops.Insert(count, div, nil)
	_ = f.ops.Insert(hint, div, nil)
	_ = f.ops.Insert(div, f.root, nil)
	f.quantum()

	if got, want := Serialize(f.root), "当前计数: 0  (按回车键增加)"; got != want {
		t.Errorf("Serialize = %q, want %q", got, want)
	}

	if err := f.ops.SetText(count, "当前计数: 1  "); err != nil {
		t.Fatalf("SetText: %v", err)
	}
	f.quantum()

	want := []backend.Op{
		{Kind: backend.OpReset},
		{Kind: backend.OpWrite, Text: "当前计数: 0  (按回车键增加)"},
		{Kind: backend.OpReset},
		{Kind: backend.OpWrite, Text: "当前计数: 1  (按回车键增加)"},
	}
	if diff := cmp.Diff(want, f.sink.Ops()); diff != "" {
		t.Errorf("sink ops mismatch (-want +got):\n%s", diff)
	}
}

func TestInsertAnchorRemoveScenario(t *testing.T) {
	f := newFixture(DefaultOptions())
	parent := f.ops.CreateElement("div")
	_ = f.ops.Insert(parent, f.root, nil)
	f.quantum()

	textA := f.ops.CreateText("A")
	textB := f.ops.CreateText("B")
	_ = f.ops.Insert(textA, parent, nil)
	_ = f.ops.Insert(textB, parent, textA)
	_ = f.ops.Remove(textA)
	f.quantum()

	if diff := cmp.Diff([]string{"B"}, f.sink.Writes()); diff != "" {
		t.Errorf("writes mismatch (-want +got):\n%s", diff)
	}
	if parent.Len() != 1 || parent.Child(0) != textB {
		t.Error("parent should hold only textB")
	}
}

func TestCoalescing(t *testing.T) {
	for _, k := range []int{1, 2, 10, 100} {
		f := newFixture(DefaultOptions())
		txt := f.ops.CreateText("start")
		_ = f.ops.Insert(txt, f.root, nil)
		f.quantum()
		before := len(f.sink.Writes())

		for i := 0; i < k; i++ {
			_ = f.ops.SetText(txt, "step")
			_ = f.ops.SetText(txt, string(rune('a'+i%26)))
		}
		final := txt.Content()
		if f.queue.Len() != 1 {
			t.Errorf("k=%d: %d renders queued, want 1", k, f.queue.Len())
		}
		f.quantum()

		writes := f.sink.Writes()[before:]
		if len(writes) != 1 || writes[0] != final {
			t.Errorf("k=%d: writes = %q, want exactly [%q]", k, writes, final)
		}
	}
}

func TestRenderReadsLiveState(t *testing.T) {
	f := newFixture(DefaultOptions())
	txt := f.ops.CreateText("scheduled")
	_ = f.ops.Insert(txt, f.root, nil)
	// Mutations after scheduling are observed by the queued render.
	_ = f.ops.SetText(txt, "final")
	f.quantum()

	if diff := cmp.Diff([]string{"final"}, f.sink.Writes()); diff != "" {
		t.Errorf("writes mismatch (-want +got):\n%s", diff)
	}
}

func TestNoOpSuppression(t *testing.T) {
	f := newFixture(DefaultOptions())
	txt := f.ops.CreateText("same")
	_ = f.ops.Insert(txt, f.root, nil)
	f.quantum()

	_ = f.ops.SetText(txt, "same")
	_ = f.ops.SetProperty(f.ops.CreateElement("x"), "id", nil, 1) // detached
	f.quantum()

	div := f.ops.CreateElement("div")
	_ = f.ops.Insert(div, f.root, nil)
	_ = f.ops.SetProperty(div, "id", nil, "x")
	f.quantum()

	if got := len(f.sink.Ops()); got != 2 {
		t.Errorf("sink saw %d ops, want 2 (one reset + one write)", got)
	}
	s := f.r.Stats()
	if s.Writes != 1 || s.Suppressed != 2 {
		t.Errorf("stats writes=%d suppressed=%d, want 1 and 2", s.Writes, s.Suppressed)
	}
	if f.r.Pending() {
		t.Error("pending should be cleared after a suppressed render")
	}
}

func TestDetachmentSilence(t *testing.T) {
	f := newFixture(DefaultOptions())
	div := f.ops.CreateElement("div")
	txt := f.ops.CreateText("x")
	_ = f.ops.Insert(txt, div, nil)
	_ = f.ops.SetText(txt, "y")
	_ = f.ops.SetElementText(div, "z")

	if f.r.Pending() || f.queue.Len() != 0 {
		t.Error("mutating a detached subtree must not schedule a render")
	}
	f.quantum()
	if len(f.sink.Ops()) != 0 {
		t.Error("sink should be untouched")
	}
}

func TestMoveOutOfTreeRerenders(t *testing.T) {
	f := newFixture(DefaultOptions())
	div := f.ops.CreateElement("div")
	txt := f.ops.CreateText("hello")
	_ = f.ops.Insert(txt, div, nil)
	_ = f.ops.Insert(div, f.root, nil)
	f.quantum()

	span := f.ops.CreateElement("span")
	if err := f.ops.Insert(txt, span, nil); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	f.quantum()

	if diff := cmp.Diff([]string{"hello", ""}, f.sink.Writes()); diff != "" {
		t.Errorf("writes mismatch (-want +got):\n%s", diff)
	}
	if f.r.LastOutput() != Serialize(f.root) {
		t.Errorf("LastOutput = %q, tree serializes to %q", f.r.LastOutput(), Serialize(f.root))
	}
}

func TestOrderPreservation(t *testing.T) {
	f := newFixture(DefaultOptions())
	parent := f.ops.CreateElement("p")
	_ = f.ops.Insert(parent, f.root, nil)

	anchor := f.ops.CreateText("[anchor]")
	_ = f.ops.Insert(f.ops.CreateText("<first>"), parent, nil)
	_ = f.ops.Insert(anchor, parent, nil)
	_ = f.ops.Insert(f.ops.CreateText("<last>"), parent, nil)
	_ = f.ops.Insert(f.ops.CreateText("(child)"), parent, anchor)
	f.quantum()

	if got, want := f.r.LastOutput(), "<first>(child)[anchor]<last>"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestCommentSuppression(t *testing.T) {
	f := newFixture(DefaultOptions())
	_ = f.ops.Insert(f.ops.CreateComment("v-if"), f.root, nil)
	_ = f.ops.Insert(f.ops.CreateComment("another"), f.root, nil)

	if got := Serialize(f.root); got != "" {
		t.Errorf("Serialize = %q, want empty", got)
	}
	f.quantum()
	if len(f.sink.Ops()) != 0 {
		t.Error("empty output equal to initial lastOutput should not be written")
	}
}

func TestSerializeNested(t *testing.T) {
	ops := tree.NewOps(nil)
	root := ops.CreateRoot()
	outer := ops.CreateElement("div")
	inner := ops.CreateElement("span")
	_ = ops.Insert(outer, root, nil)
	_ = ops.Insert(ops.CreateText("a"), outer, nil)
	_ = ops.Insert(inner, outer, nil)
	_ = ops.Insert(ops.CreateText("b"), inner, nil)
	_ = ops.Insert(ops.CreateComment("hidden"), inner, nil)
	_ = ops.Insert(ops.CreateText("c"), outer, nil)

	if got := Serialize(root); got != "abc" {
		t.Errorf("Serialize = %q, want %q", got, "abc")
	}
	if got := Serialize(nil); got != "" {
		t.Errorf("Serialize(nil) = %q, want empty", got)
	}
}

func TestSinkFailureIsReported(t *testing.T) {
	var reported error
	f := newFixture(Options{OnError: func(err error) { reported = err }})
	boom := errors.New("broken pipe")
	f.sink.SetWriteError(boom)

	_ = f.ops.Insert(f.ops.CreateText("x"), f.root, nil)
	f.quantum()

	if !errors.Is(reported, boom) {
		t.Errorf("OnError got %v, want broken pipe", reported)
	}
	if f.r.Pending() {
		t.Error("pending must be cleared even when the write fails")
	}
	if f.r.LastOutput() != "" {
		t.Error("lastOutput must not change when the write fails")
	}

	// The next quantum retries with the current tree.
	f.sink.SetWriteError(nil)
	_ = f.ops.Insert(f.ops.CreateText("y"), f.root, nil)
	f.quantum()
	if diff := cmp.Diff([]string{"xy"}, f.sink.Writes()); diff != "" {
		t.Errorf("writes mismatch (-want +got):\n%s", diff)
	}
}

func TestOnFlushAndStats(t *testing.T) {
	var flushed []string
	f := newFixture(Options{OnFlush: func(out string) { flushed = append(flushed, out) }})
	txt := f.ops.CreateText("1")
	_ = f.ops.Insert(txt, f.root, nil)
	_ = f.ops.SetText(txt, "2")
	_ = f.ops.SetText(txt, "3")
	f.quantum()

	if diff := cmp.Diff([]string{"3"}, flushed); diff != "" {
		t.Errorf("flushes mismatch (-want +got):\n%s", diff)
	}

	s := f.r.Stats()
	if s.Schedules != 3 || s.Coalesced != 2 || s.Renders != 1 || s.Writes != 1 {
		t.Errorf("stats = %+v, want 3 schedules, 2 coalesced, 1 render, 1 write", s)
	}
}

func TestRenderNilRoot(t *testing.T) {
	f := newFixture(DefaultOptions())
	if err := f.r.Render(nil); err != nil {
		t.Errorf("Render(nil) = %v", err)
	}
	if len(f.sink.Ops()) != 0 {
		t.Error("Render(nil) should not write")
	}
}

func TestRendererWithLoop(t *testing.T) {
	l := loop.New()
	sink := backend.NewNullBackend()
	r := New(sink, l, DefaultOptions())
	ops := tree.NewOps(r)
	root := ops.CreateRoot()
	txt := ops.CreateText("")
	_ = ops.Insert(txt, root, nil)

	for i := 0; i < 3; i++ {
		n := i
		l.Post(func() error {
			_ = ops.SetText(txt, "tick")
			return ops.SetText(txt, string(rune('0'+n)))
		})
	}
	l.Post(func() error {
		l.Stop(nil)
		return nil
	})

	if err := l.Run(t.Context()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// The pre-run insert flushes "" which is suppressed; each task flushes once.
	if diff := cmp.Diff([]string{"0", "1", "2"}, sink.Writes()); diff != "" {
		t.Errorf("writes mismatch (-want +got):\n%s", diff)
	}
}
