package luavm

import (
	"context"

	lua "github.com/yuin/gopher-lua"

	"github.com/kepler-wiki/wikireader/template"
	"github.com/kepler-wiki/wikireader/title"
	"github.com/kepler-wiki/wikireader/wikitext"
)

// newFrameTable builds the Lua value passed as #invoke's function's
// sole argument: a plain table carrying .args and the getParent/
// getArgument/getAllArguments/expandTemplate/preprocess methods from
// spec §4.6 point 2. A plain table (rather than userdata+metatable)
// is enough since every method is just a stored Go closure and Lua's
// `frame:method()` sugar works on any table value.
func newFrameTable(L *lua.LState, frame *template.Frame, bridge template.HostBridge, ctx context.Context) *lua.LTable {
	t := L.NewTable()

	argsTable := argsToTable(L, frame)
	t.RawSetString("args", argsTable)

	t.RawSetString("getParent", L.NewFunction(func(L *lua.LState) int {
		if frame.Parent == nil {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(newFrameTable(L, frame.Parent, bridge, ctx))
		return 1
	}))

	t.RawSetString("getArgument", L.NewFunction(func(L *lua.LState) int {
		// self is argument 1 (method-call sugar); the argument name/index
		// the caller wants is argument 2.
		key := L.CheckAny(2)
		L.Push(argsTable.RawGet(key))
		return 1
	}))

	t.RawSetString("getAllArguments", L.NewFunction(func(L *lua.LState) int {
		L.Push(argsTable)
		return 1
	}))

	t.RawSetString("preprocess", L.NewFunction(func(L *lua.LState) int {
		src := L.CheckString(2)
		out, err := bridge.Preprocess(ctx, src, frame)
		if err != nil {
			L.RaiseError("preprocess: %s", err.Error())
			return 0
		}
		L.Push(lua.LString(out))
		return 1
	}))

	t.RawSetString("expandTemplate", L.NewFunction(func(L *lua.LState) int {
		opts := L.CheckTable(2)
		rawTitle, ok := opts.RawGetString("title").(lua.LString)
		if !ok {
			L.RaiseError("expandTemplate requires a title field")
			return 0
		}
		target := template.ResolveTemplateTitle(string(rawTitle), vmNSMapFrom(ctx))
		child := &template.Frame{
			InvokingTitle: target,
			Named:         map[string][]template.Node{},
			Parent:        frame,
			Depth:         frame.Depth + 1,
		}
		if argsVal := opts.RawGetString("args"); argsVal != lua.LNil {
			if argsT, ok := argsVal.(*lua.LTable); ok {
				bindLuaArgsToFrame(argsT, child)
			}
		}
		out, err := bridge.ExpandTemplateCall(ctx, target, child)
		if err != nil {
			L.RaiseError("expandTemplate: %s", err.Error())
			return 0
		}
		L.Push(lua.LString(out))
		return 1
	}))

	t.RawSetString("newChild", L.NewFunction(func(L *lua.LState) int {
		L.Push(newFrameTable(L, frame, bridge, ctx))
		return 1
	}))

	return t
}

// argsToTable flattens frame's positional and named arguments into one
// Lua table: 1-based integer keys for positional args, string keys for
// named ones, matching Scribunto's frame.args.
func argsToTable(L *lua.LState, frame *template.Frame) *lua.LTable {
	t := L.NewTable()
	for i, nodes := range frame.Positional {
		t.RawSetInt(i+1, lua.LString(template.RenderPlainText(nodes)))
	}
	for k, nodes := range frame.Named {
		t.RawSetString(k, lua.LString(template.RenderPlainText(nodes)))
	}
	return t
}

// bindLuaArgsToFrame copies a Lua args table (from
// frame:expandTemplate{args=...}) into child's Positional/Named slices
// as text nodes, since the expander's frame machinery is node-based.
func bindLuaArgsToFrame(argsT *lua.LTable, child *template.Frame) {
	maxIdx := argsT.MaxN()
	for i := 1; i <= maxIdx; i++ {
		v := argsT.RawGetInt(i)
		child.Positional = append(child.Positional, textNodes(v.String()))
	}
	argsT.ForEach(func(k, v lua.LValue) {
		if _, isNum := k.(lua.LNumber); isNum {
			return
		}
		child.Named[k.String()] = textNodes(v.String())
	})
}

func textNodes(s string) []template.Node {
	return []template.Node{&wikitext.Text{Base: wikitext.Base{K: wikitext.KindText}, Value: s}}
}

// vmNSMapFrom recovers the namespace map stashed in ctx by Invoke, so
// expandTemplate can resolve a bare template name the same way a
// {{name|...}} call would without needing a direct VM reference.
func vmNSMapFrom(ctx context.Context) *title.Map {
	if m, ok := ctx.Value(nsMapContextKey{}).(*title.Map); ok {
		return m
	}
	return title.Default
}

type nsMapContextKey struct{}
