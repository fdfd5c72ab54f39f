package luavm

import (
	"net/url"
	"strings"
	"unicode/utf8"

	lua "github.com/yuin/gopher-lua"

	"github.com/kepler-wiki/wikireader/template"
)

// installMwLibrary populates the global "mw" table with the subset of
// MediaWiki's Scribunto library spec §4.6 point 3 requires, stubbed
// where the dump carries no data to back a field (interwiki, media
// info, message catalogs).
func installMwLibrary(L *lua.LState, frame *template.Frame) {
	mw := L.NewTable()
	L.SetGlobal("mw", mw)

	mw.RawSetString("text", mwText(L))
	mw.RawSetString("title", mwTitle(L, frame))
	mw.RawSetString("ustring", mwUstring(L))
	mw.RawSetString("html", mwHTML(L))
	mw.RawSetString("uri", mwURI(L))
	mw.RawSetString("language", mwLanguage(L))
	mw.RawSetString("message", mwMessage(L))

	mw.RawSetString("log", L.NewFunction(func(L *lua.LState) int { return 0 }))
	mw.RawSetString("logObject", L.NewFunction(func(L *lua.LState) int { return 0 }))
	mw.RawSetString("allToString", L.NewFunction(func(L *lua.LState) int {
		var parts []string
		for i := 1; i <= L.GetTop(); i++ {
			parts = append(parts, L.Get(i).String())
		}
		L.Push(lua.LString(strings.Join(parts, "\t")))
		return 1
	}))
	mw.RawSetString("getCurrentFrame", L.NewFunction(func(L *lua.LState) int {
		// Invoke in vm.go stores the call's frame table in the
		// __wr_frame global just before calling the module function;
		// while the module chunk itself is loading, this returns nil.
		L.Push(L.GetGlobal("__wr_frame"))
		return 1
	}))
}

func mwText(L *lua.LState) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("trim", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString(strings.TrimSpace(L.CheckString(1))))
		return 1
	}))
	t.RawSetString("split", L.NewFunction(func(L *lua.LState) int {
		s := L.CheckString(1)
		pattern := L.OptString(2, "%s+")
		parts := splitOnLuaPattern(s, pattern)
		out := L.NewTable()
		for i, p := range parts {
			out.RawSetInt(i+1, lua.LString(p))
		}
		L.Push(out)
		return 1
	}))
	t.RawSetString("nowiki", L.NewFunction(func(L *lua.LState) int {
		s := L.CheckString(1)
		s = strings.ReplaceAll(s, "{{", "&#123;&#123;")
		s = strings.ReplaceAll(s, "}}", "&#125;&#125;")
		s = strings.ReplaceAll(s, "[[", "&#91;&#91;")
		L.Push(lua.LString(s))
		return 1
	}))
	t.RawSetString("tag", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		content := L.OptString(2, "")
		L.Push(lua.LString("<" + name + ">" + content + "</" + name + ">"))
		return 1
	}))
	t.RawSetString("jsonEncode", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString(luaToJSON(L.CheckAny(1))))
		return 1
	}))
	t.RawSetString("truncate", L.NewFunction(func(L *lua.LState) int {
		s := L.CheckString(1)
		n := int(L.CheckNumber(2))
		if n >= 0 && len(s) > n {
			L.Push(lua.LString(s[:n] + "..."))
			return 1
		}
		L.Push(lua.LString(s))
		return 1
	}))
	return t
}

// splitOnLuaPattern approximates mw.text.split for the common
// whitespace/literal-separator case: "%s+" splits on whitespace runs
// and any other pattern is used as a literal separator. Lua pattern
// syntax is not interpreted here, nor by mw.ustring.find, which is a
// plain substring search.
func splitOnLuaPattern(s, pattern string) []string {
	if pattern == "%s+" {
		return strings.Fields(s)
	}
	return strings.Split(s, pattern)
}

func mwTitle(L *lua.LState, frame *template.Frame) *lua.LTable {
	t := L.NewTable()

	newTitleObj := func(L *lua.LState, text, ns string) *lua.LTable {
		obj := L.NewTable()
		obj.RawSetString("text", lua.LString(text))
		obj.RawSetString("prefixedText", lua.LString(text))
		obj.RawSetString("namespace", lua.LString(ns))
		obj.RawSetString("exists", L.NewFunction(func(L *lua.LState) int {
			// Existence requires a dump lookup this bridge doesn't carry;
			// callers needing it use #ifexist at the wikitext level.
			L.Push(lua.LFalse)
			return 1
		}))
		obj.RawSetString("getContent", L.NewFunction(func(L *lua.LState) int {
			L.Push(lua.LNil)
			return 1
		}))
		return obj
	}

	t.RawSetString("new", L.NewFunction(func(L *lua.LState) int {
		text := L.CheckString(1)
		ns := L.OptString(2, "")
		L.Push(newTitleObj(L, text, ns))
		return 1
	}))
	t.RawSetString("getCurrentTitle", L.NewFunction(func(L *lua.LState) int {
		L.Push(newTitleObj(L, frame.InvokingTitle.Text, frame.InvokingTitle.Key()))
		return 1
	}))
	return t
}

// mwUstring provides Unicode-aware string helpers over Go's native
// (already UTF-8) strings; gopher-lua's builtin string library, like
// PUC Lua 5.1's, is byte-oriented.
func mwUstring(L *lua.LState) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("len", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(utf8.RuneCountInString(L.CheckString(1))))
		return 1
	}))
	t.RawSetString("sub", L.NewFunction(func(L *lua.LState) int {
		s := []rune(L.CheckString(1))
		i := luaStringIndex(int(L.CheckNumber(2)), len(s))
		j := len(s)
		if L.GetTop() >= 3 {
			j = luaStringIndex(int(L.CheckNumber(3)), len(s))
		}
		if i < 1 {
			i = 1
		}
		if j > len(s) {
			j = len(s)
		}
		if i > j {
			L.Push(lua.LString(""))
			return 1
		}
		L.Push(lua.LString(string(s[i-1 : j])))
		return 1
	}))
	t.RawSetString("upper", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString(strings.ToUpper(L.CheckString(1))))
		return 1
	}))
	t.RawSetString("lower", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString(strings.ToLower(L.CheckString(1))))
		return 1
	}))
	t.RawSetString("find", L.NewFunction(func(L *lua.LState) int {
		s, pattern := L.CheckString(1), L.CheckString(2)
		idx := strings.Index(s, pattern)
		if idx < 0 {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LNumber(utf8.RuneCountInString(s[:idx]) + 1))
		return 1
	}))
	t.RawSetString("gsub", L.NewFunction(func(L *lua.LState) int {
		s, old, new := L.CheckString(1), L.CheckString(2), L.CheckString(3)
		L.Push(lua.LString(strings.ReplaceAll(s, old, new)))
		return 1
	}))
	return t
}

// luaStringIndex converts a 1-based, possibly-negative Lua string index
// (negative counts from the end) to a 1-based positive index.
func luaStringIndex(i, length int) int {
	if i < 0 {
		i = length + i + 1
	}
	return i
}

// mwHTML is a minimal chainable HTML builder matching the shape of
// Scribunto's mw.html (tag/attr/wikitext/done), enough for infobox-style
// modules that build a small fragment and call tostring() on it.
func mwHTML(L *lua.LState) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("create", L.NewFunction(func(L *lua.LState) int {
		tagName := L.OptString(1, "div")
		L.Push(newHTMLBuilder(L, tagName))
		return 1
	}))
	return t
}

// htmlBuilderState is the mutable state behind one mw.html node; tag()
// nests a child builder directly into the parent's children list so
// tostring() can recurse into it without any index bookkeeping.
type htmlBuilderState struct {
	tagName  string
	attrs    []string
	children []*htmlBuilderState
	text     []string
}

func (s *htmlBuilderState) render() string {
	open := "<" + s.tagName
	if len(s.attrs) > 0 {
		open += " " + strings.Join(s.attrs, " ")
	}
	open += ">"
	var body strings.Builder
	for _, t := range s.text {
		body.WriteString(t)
	}
	for _, c := range s.children {
		body.WriteString(c.render())
	}
	return open + body.String() + "</" + s.tagName + ">"
}

func newHTMLBuilder(L *lua.LState, tagName string) *lua.LTable {
	state := &htmlBuilderState{tagName: tagName}
	return htmlBuilderTable(L, state)
}

func htmlBuilderTable(L *lua.LState, state *htmlBuilderState) *lua.LTable {
	node := L.NewTable()
	node.RawSetString("tag", L.NewFunction(func(L *lua.LState) int {
		child := &htmlBuilderState{tagName: L.CheckString(2)}
		state.children = append(state.children, child)
		L.Push(htmlBuilderTable(L, child))
		return 1
	}))
	node.RawSetString("attr", L.NewFunction(func(L *lua.LState) int {
		name, val := L.CheckString(2), L.OptString(3, "")
		state.attrs = append(state.attrs, name+`="`+val+`"`)
		L.Push(node)
		return 1
	}))
	node.RawSetString("wikitext", L.NewFunction(func(L *lua.LState) int {
		state.text = append(state.text, L.OptString(2, ""))
		L.Push(node)
		return 1
	}))
	node.RawSetString("newline", L.NewFunction(func(L *lua.LState) int {
		state.text = append(state.text, "\n")
		L.Push(node)
		return 1
	}))
	node.RawSetString("done", L.NewFunction(func(L *lua.LState) int {
		L.Push(node)
		return 1
	}))
	tostringFn := L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString(state.render()))
		return 1
	})
	node.RawSetString("__tostring", tostringFn)
	mt := L.NewTable()
	mt.RawSetString("__tostring", tostringFn)
	L.SetMetatable(node, mt)
	return node
}

func mwURI(L *lua.LState) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("encode", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString(url.QueryEscape(L.CheckString(1))))
		return 1
	}))
	t.RawSetString("decode", L.NewFunction(func(L *lua.LState) int {
		s, err := url.QueryUnescape(L.CheckString(1))
		if err != nil {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LString(s))
		return 1
	}))
	return t
}

// mwLanguage stubs a single, fixed content language since this reader
// has no live locale data to draw from.
func mwLanguage(L *lua.LState) *lua.LTable {
	t := L.NewTable()
	contLang := L.NewTable()
	contLang.RawSetString("getCode", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString("en"))
		return 1
	}))
	t.RawSetString("getContLang", L.NewFunction(func(L *lua.LState) int {
		L.Push(contLang)
		return 1
	}))
	return t
}

// mwMessage stubs MediaWiki's i18n message system: without a message
// catalog, a message's rendered forms fall back to its key.
func mwMessage(L *lua.LState) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("new", L.NewFunction(func(L *lua.LState) int {
		key := L.CheckString(1)
		msg := L.NewTable()
		for _, method := range []string{"plain", "text", "parse"} {
			msg.RawSetString(method, L.NewFunction(func(L *lua.LState) int {
				L.Push(lua.LString(key))
				return 1
			}))
		}
		msg.RawSetString("exists", L.NewFunction(func(L *lua.LState) int {
			L.Push(lua.LFalse)
			return 1
		}))
		L.Push(msg)
		return 1
	}))
	return t
}

// luaToJSON is a minimal encoder for mw.text.jsonEncode: strings,
// numbers and booleans encode as JSON scalars, and every table encodes
// as a JSON array of its values (keys are dropped, so no JSON object is
// ever produced). It is not a general-purpose JSON library.
func luaToJSON(v lua.LValue) string {
	switch v.Type() {
	case lua.LTString, lua.LTNumber, lua.LTBool:
		if s, ok := v.(lua.LString); ok {
			return `"` + strings.ReplaceAll(string(s), `"`, `\"`) + `"`
		}
		return v.String()
	case lua.LTTable:
		t := v.(*lua.LTable)
		var parts []string
		t.ForEach(func(_, elem lua.LValue) {
			parts = append(parts, luaToJSON(elem))
		})
		return "[" + strings.Join(parts, ",") + "]"
	default:
		return "null"
	}
}
