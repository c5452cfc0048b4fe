package script

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/termtree/internal/tree"
)

// register installs the ui module and the node metatable.
func (c *Component) register(L *lua.LState) {
	mt := L.NewTypeMetatable(nodeTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"kind":    c.nodeKind,
		"tag":     c.nodeTag,
		"content": c.nodeContent,
		"len":     c.nodeLen,
	}))
	L.SetField(mt, "__tostring", L.NewFunction(c.nodeString))

	mod := L.NewTable()
	L.SetField(mod, "create_element", L.NewFunction(c.createElement))
	L.SetField(mod, "create_text", L.NewFunction(c.createText))
	L.SetField(mod, "create_comment", L.NewFunction(c.createComment))
	L.SetField(mod, "set_text", L.NewFunction(c.setText))
	L.SetField(mod, "set_element_text", L.NewFunction(c.setElementText))
	L.SetField(mod, "insert", L.NewFunction(c.insert))
	L.SetField(mod, "remove", L.NewFunction(c.remove))
	L.SetField(mod, "set_property", L.NewFunction(c.setProperty))
	L.SetField(mod, "parent", L.NewFunction(c.parent))
	L.SetField(mod, "next_sibling", L.NewFunction(c.nextSibling))
	L.SetField(mod, "dispatch", L.NewFunction(c.dispatch))
	L.SetGlobal("ui", mod)
}

// wrap returns the userdata for n, reusing it so == holds in Lua.
func (c *Component) wrap(n *tree.Node) lua.LValue {
	if n == nil {
		return lua.LNil
	}
	if ud, ok := c.nodes[n]; ok {
		return ud
	}
	ud := c.L.NewUserData()
	ud.Value = n
	c.L.SetMetatable(ud, c.L.GetTypeMetatable(nodeTypeName))
	c.nodes[n] = ud
	return ud
}

func checkNode(L *lua.LState, idx int) *tree.Node {
	ud := L.CheckUserData(idx)
	if n, ok := ud.Value.(*tree.Node); ok {
		return n
	}
	L.ArgError(idx, "node expected")
	return nil
}

func optNode(L *lua.LState, idx int) *tree.Node {
	if L.Get(idx) == lua.LNil {
		return nil
	}
	return checkNode(L, idx)
}

// create_element(tag) -> node
func (c *Component) createElement(L *lua.LState) int {
	L.Push(c.wrap(c.ops.CreateElement(L.CheckString(1))))
	return 1
}

// create_text(content) -> node
func (c *Component) createText(L *lua.LState) int {
	L.Push(c.wrap(c.ops.CreateText(L.OptString(1, ""))))
	return 1
}

// create_comment(content) -> node
func (c *Component) createComment(L *lua.LState) int {
	L.Push(c.wrap(c.ops.CreateComment(L.OptString(1, ""))))
	return 1
}

// set_text(node, content) -> nil
func (c *Component) setText(L *lua.LState) int {
	if err := c.ops.SetText(checkNode(L, 1), L.CheckString(2)); err != nil {
		L.RaiseError("set_text: %v", err)
	}
	return 0
}

// set_element_text(node, content) -> nil
func (c *Component) setElementText(L *lua.LState) int {
	if err := c.ops.SetElementText(checkNode(L, 1), L.CheckString(2)); err != nil {
		L.RaiseError("set_element_text: %v", err)
	}
	return 0
}

// insert(child, parent, anchor?) -> nil
func (c *Component) insert(L *lua.LState) int {
	child := checkNode(L, 1)
	parent := checkNode(L, 2)
	anchor := optNode(L, 3)
	if err := c.ops.Insert(child, parent, anchor); err != nil {
		L.RaiseError("insert: %v", err)
	}
	return 0
}

// remove(node) -> nil
func (c *Component) remove(L *lua.LState) int {
	if err := c.ops.Remove(checkNode(L, 1)); err != nil {
		L.RaiseError("remove: %v", err)
	}
	return 0
}

// set_property(node, key, value) -> nil
// A function value under an "on<Event>" key registers a handler; any other
// value under such a key removes it.
func (c *Component) setProperty(L *lua.LState) int {
	node := checkNode(L, 1)
	key := L.CheckString(2)
	prev, _ := node.Property(key)

	var next any
	switch v := L.Get(3).(type) {
	case *lua.LFunction:
		next = c.handler(v)
	default:
		next = fromLua(v)
	}

	if err := c.ops.SetProperty(node, key, prev, next); err != nil {
		L.RaiseError("set_property: %v", err)
	}
	return 0
}

// parent(node) -> node or nil
func (c *Component) parent(L *lua.LState) int {
	L.Push(c.wrap(c.ops.ParentOf(optNode(L, 1))))
	return 1
}

// next_sibling(node) -> node or nil
func (c *Component) nextSibling(L *lua.LState) int {
	L.Push(c.wrap(c.ops.NextSiblingOf(optNode(L, 1))))
	return 1
}

// dispatch(node, type, key?, rune?) -> bool
// Bubbles an event from node to its ancestors. Returns false if a handler
// prevented the default action.
func (c *Component) dispatch(L *lua.LState) int {
	target := checkNode(L, 1)
	ev := tree.NewEvent(L.CheckString(2))
	ev.Key = L.OptString(3, "")
	if r := []rune(L.OptString(4, "")); len(r) > 0 {
		ev.Rune = r[0]
	}

	ok := tree.Dispatch(target, ev)
	if err := c.handlerErr; err != nil {
		c.handlerErr = nil
		L.RaiseError("dispatch %s: %v", ev.Type, err)
		return 0
	}
	L.Push(lua.LBool(ok))
	return 1
}

// handler adapts a Lua function to a tree handler. The function receives an
// event table; returning false prevents the default action.
func (c *Component) handler(fn *lua.LFunction) tree.Handler {
	return func(ev *tree.Event) {
		L := c.L
		t := L.NewTable()
		t.RawSetString("type", lua.LString(ev.Type))
		t.RawSetString("key", lua.LString(ev.Key))
		if ev.Rune != 0 {
			t.RawSetString("rune", lua.LString(string(ev.Rune)))
		}
		t.RawSetString("target", c.wrap(ev.Target))
		t.RawSetString("prevent_default", L.NewFunction(func(*lua.LState) int {
			ev.PreventDefault()
			return 0
		}))
		t.RawSetString("stop_propagation", L.NewFunction(func(*lua.LState) int {
			ev.StopPropagation()
			return 0
		}))

		if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, t); err != nil {
			if c.handlerErr == nil {
				c.handlerErr = err
			}
			return
		}
		ret := L.Get(-1)
		L.Pop(1)
		if ret == lua.LFalse {
			ev.PreventDefault()
		}
	}
}

// fromLua converts a scalar Lua value to Go. Tables and userdata are kept as
// the Lua value.
func fromLua(v lua.LValue) any {
	switch v := v.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(v)
	case lua.LString:
		return string(v)
	case lua.LNumber:
		return float64(v)
	case *lua.LUserData:
		return v.Value
	default:
		return v
	}
}

func (c *Component) nodeKind(L *lua.LState) int {
	L.Push(lua.LString(checkNode(L, 1).Kind().String()))
	return 1
}

func (c *Component) nodeTag(L *lua.LState) int {
	L.Push(lua.LString(checkNode(L, 1).Tag()))
	return 1
}

func (c *Component) nodeContent(L *lua.LState) int {
	L.Push(lua.LString(checkNode(L, 1).Content()))
	return 1
}

func (c *Component) nodeLen(L *lua.LState) int {
	L.Push(lua.LNumber(checkNode(L, 1).Len()))
	return 1
}

func (c *Component) nodeString(L *lua.LState) int {
	n := checkNode(L, 1)
	switch n.Kind() {
	case tree.KindElement:
		L.Push(lua.LString("<" + n.Tag() + ">"))
	case tree.KindText, tree.KindComment:
		L.Push(lua.LString(n.Kind().String() + "(" + n.Content() + ")"))
	default:
		L.Push(lua.LString(n.Kind().String()))
	}
	return 1
}
