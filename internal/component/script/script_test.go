package script

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/termtree/internal/component"
	"github.com/dshills/termtree/internal/loop"
	"github.com/dshills/termtree/internal/renderer"
	"github.com/dshills/termtree/internal/renderer/backend"
	"github.com/dshills/termtree/internal/tree"
)

type harness struct {
	queue *loop.Queue
	sink  *backend.NullBackend
	ops   *tree.Ops
	root  *tree.Node
	c     *Component
}

func newHarness(t *testing.T, src string) *harness {
	t.Helper()
	h := &harness{queue: &loop.Queue{}, sink: backend.NewNullBackend()}
	r := renderer.New(h.sink, h.queue, renderer.DefaultOptions())
	h.ops = tree.NewOps(r)
	h.root = h.ops.CreateRoot()
	h.c = New(h.ops)
	t.Cleanup(h.c.Close)
	if src != "" {
		if err := h.c.LoadString(src); err != nil {
			t.Fatalf("LoadString: %v", err)
		}
	}
	return h
}

func TestCounterScript(t *testing.T) {
	h := newHarness(t, "")
	if err := h.c.LoadFile("../../../examples/counter.lua"); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if err := h.c.Mount(h.root); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if h.queue.Len() != 1 {
		t.Errorf("mount queued %d renders, want 1", h.queue.Len())
	}
	h.queue.Drain()

	if err := h.c.Handle(component.Command{Kind: component.CommandKey, Key: "enter"}); err != nil {
		t.Fatalf("Handle(enter): %v", err)
	}
	h.queue.Drain()
	_ = h.c.Handle(component.Command{Kind: component.CommandKey, Key: "rune", Rune: 'x'})
	h.queue.Drain()
	_ = h.c.Handle(component.Command{Kind: component.CommandIncrement})
	_ = h.c.Handle(component.Command{Kind: component.CommandIncrement})
	h.queue.Drain()

	want := []string{
		"当前计数: 0  (按回车键增加)",
		"当前计数: 1  (按回车键增加)",
		"当前计数: 3  (按回车键增加)",
	}
	if diff := cmp.Diff(want, h.sink.Writes()); diff != "" {
		t.Errorf("writes mismatch (-want +got):\n%s", diff)
	}

	err := h.c.Handle(component.Command{
		Kind:     component.CommandConfigure,
		Settings: map[string]string{"label": "n=", "hint": "!"},
	})
	if err != nil {
		t.Fatalf("Handle(configure): %v", err)
	}
	h.queue.Drain()
	if got := renderer.Serialize(h.root); got != "n=3  !" {
		t.Errorf("Serialize = %q, want %q", got, "n=3  !")
	}

	if err := h.c.Unmount(); err != nil {
		t.Fatalf("Unmount: %v", err)
	}
	if h.root.Len() != 0 {
		t.Error("root should be empty after unmount")
	}
}

func TestMountRequired(t *testing.T) {
	h := newHarness(t, `x = 1`)
	if err := h.c.Mount(h.root); !errors.Is(err, ErrNoMount) {
		t.Errorf("Mount = %v, want ErrNoMount", err)
	}
	if err := h.c.Handle(component.Command{Kind: component.CommandIncrement}); !errors.Is(err, component.ErrNotMounted) {
		t.Errorf("Handle = %v, want ErrNotMounted", err)
	}
}

func TestNodeIdentityAndAccessors(t *testing.T) {
	h := newHarness(t, `
function mount(root)
  local div = ui.create_element("div")
  local a = ui.create_text("a")
  local b = ui.create_text("b")
  ui.insert(a, div)
  ui.insert(b, div)
  ui.insert(div, root)
  assert(ui.parent(a) == div, "parent identity")
  assert(ui.next_sibling(a) == b, "sibling identity")
  assert(ui.next_sibling(b) == nil, "last sibling")
  assert(ui.parent(div) == root, "root identity")
  assert(div:kind() == "element" and div:tag() == "div")
  assert(a:kind() == "text" and a:content() == "a")
  assert(div:len() == 2)
  assert(tostring(div) == "<div>")
end
`)
	if err := h.c.Mount(h.root); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if got := renderer.Serialize(h.root); got != "ab" {
		t.Errorf("Serialize = %q, want %q", got, "ab")
	}
}

func TestAnchorAndElementText(t *testing.T) {
	h := newHarness(t, `
function mount(root)
  local p = ui.create_element("p")
  local last = ui.create_text("C")
  ui.insert(last, p)
  ui.insert(ui.create_text("A"), p, last)
  ui.insert(ui.create_comment("skip"), p, last)
  ui.insert(p, root)
  local q = ui.create_element("q")
  ui.insert(q, root)
  ui.set_element_text(q, "!")
end
`)
	if err := h.c.Mount(h.root); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	h.queue.Drain()
	if diff := cmp.Diff([]string{"AC!"}, h.sink.Writes()); diff != "" {
		t.Errorf("writes mismatch (-want +got):\n%s", diff)
	}
}

func TestOperationErrorsRaise(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "set_text on element",
			src:  `function mount(root) ui.set_text(ui.create_element("div"), "x") end`,
			want: "set_text",
		},
		{
			name: "insert into text",
			src:  `function mount(root) ui.insert(ui.create_text("a"), ui.create_text("b")) end`,
			want: "insert",
		},
		{
			name: "non-node argument",
			src:  `function mount(root) ui.remove("nope") end`,
			want: "userdata",
		},
		{
			name: "runtime error",
			src:  `function mount(root) error("boom") end`,
			want: "boom",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.src)
			err := h.c.Mount(h.root)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Mount = %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestHandlerEvents(t *testing.T) {
	h := newHarness(t, `
seen = {}
function mount(root)
  outer = ui.create_element("div")
  inner = ui.create_element("span")
  leaf = ui.create_text("x")
  ui.insert(leaf, inner)
  ui.insert(inner, outer)
  ui.insert(outer, root)
  ui.set_property(inner, "onPing", function(ev)
    table.insert(seen, "inner:" .. ev.key)
    assert(ev.target == leaf)
    if ev.key == "stop" then ev.stop_propagation() end
  end)
  ui.set_property(outer, "onPing", function(ev)
    table.insert(seen, "outer:" .. ev.key)
    return false
  end)
end

function on_command(cmd)
  result = ui.dispatch(leaf, "ping", cmd.key)
end
`)
	if err := h.c.Mount(h.root); err != nil {
		t.Fatalf("Mount: %v", err)
	}

	_ = h.c.Handle(component.Command{Kind: component.CommandKey, Key: "go"})
	if got := h.c.L.GetGlobal("result"); got != lua.LFalse {
		t.Errorf("dispatch result = %v, want false (outer prevented default)", got)
	}
	_ = h.c.Handle(component.Command{Kind: component.CommandKey, Key: "stop"})
	if got := h.c.L.GetGlobal("result"); got != lua.LTrue {
		t.Errorf("dispatch result = %v, want true (propagation stopped)", got)
	}

	seen := h.c.L.GetGlobal("seen").(*lua.LTable)
	var got []string
	seen.ForEach(func(_, v lua.LValue) { got = append(got, v.String()) })
	want := []string{"inner:go", "outer:go", "inner:stop"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("handler order mismatch (-want +got):\n%s", diff)
	}
}

func TestHandlerErrorPropagates(t *testing.T) {
	h := newHarness(t, `
function mount(root)
  n = ui.create_element("div")
  ui.insert(n, root)
  ui.set_property(n, "onKeypress", function(ev) error("handler failed") end)
end
function on_command(cmd)
  if cmd.kind == "key" then ui.dispatch(n, "keypress", cmd.key) end
end
`)
	if err := h.c.Mount(h.root); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	err := h.c.Handle(component.Command{Kind: component.CommandKey, Key: "enter"})
	if err == nil || !strings.Contains(err.Error(), "handler failed") {
		t.Errorf("Handle = %v, want handler failure", err)
	}
	// The error is reported once.
	if err := h.c.Handle(component.Command{Kind: component.CommandIncrement}); err != nil {
		t.Errorf("Handle after failure = %v", err)
	}
}

func TestSetPropertyValues(t *testing.T) {
	h := newHarness(t, `
function mount(root)
  n = ui.create_element("div")
  ui.insert(n, root)
  ui.set_property(n, "id", "main")
  ui.set_property(n, "width", 42)
  ui.set_property(n, "onKeypress", function() end)
  ui.set_property(n, "onClick", function() end)
  ui.set_property(n, "onClick", nil)
end
`)
	if err := h.c.Mount(h.root); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	div := h.root.Child(0)
	if v, _ := div.Property("id"); v != "main" {
		t.Errorf("id = %v, want main", v)
	}
	if v, _ := div.Property("width"); v != float64(42) {
		t.Errorf("width = %v, want 42", v)
	}
	if div.HandlerCount() != 1 {
		t.Errorf("HandlerCount = %d, want 1", div.HandlerCount())
	}
	if _, ok := div.Handler("keypress"); !ok {
		t.Error("keypress handler should be registered")
	}
}

func TestSandbox(t *testing.T) {
	h := newHarness(t, "")
	err := h.c.LoadString(`
assert(os == nil, "os")
assert(io == nil, "io")
assert(dofile == nil, "dofile")
assert(loadfile == nil, "loadfile")
assert(load == nil, "load")
assert(string.upper("x") == "X")
assert(math.floor(1.5) == 1)
`)
	if err != nil {
		t.Errorf("sandbox check: %v", err)
	}
}

func TestExecutionTimeout(t *testing.T) {
	c := New(tree.NewOps(nil), WithExecutionTimeout(50*time.Millisecond))
	defer c.Close()
	if err := c.LoadString(`while true do end`); err == nil {
		t.Error("infinite loop should be cancelled")
	}
}

func TestClosed(t *testing.T) {
	c := New(tree.NewOps(nil), WithName("demo"))
	if c.Name() != "demo" {
		t.Errorf("Name = %q, want demo", c.Name())
	}
	c.Close()
	c.Close()
	if err := c.LoadString(`x = 1`); !errors.Is(err, ErrClosed) {
		t.Errorf("LoadString after Close = %v, want ErrClosed", err)
	}
	if err := c.Mount(tree.NewOps(nil).CreateRoot()); !errors.Is(err, ErrClosed) {
		t.Errorf("Mount after Close = %v, want ErrClosed", err)
	}
}
