package template

import "github.com/kepler-wiki/wikireader/title"

// Frame is a TemplateFrame: the per-invocation context a template body
// is walked with. Argument values are already fully expanded in the
// caller's frame before being bound here (strict evaluation), while
// {{{n|default}}} references inside the body are substituted lazily as
// the walk reaches them.
type Frame struct {
	InvokingTitle title.Title
	Positional    [][]Node // 0-indexed; {{{1}}} is Positional[0]
	Named         map[string][]Node
	Parent        *Frame
	Depth         int
}

// rootFrame is the frame a page being viewed (not transcluded) is
// walked with: no arguments, depth 0, no parent.
func rootFrame(t title.Title) *Frame {
	return &Frame{InvokingTitle: t, Named: map[string][]Node{}}
}

// lookup resolves a {{{name}}} reference against this frame's bindings.
// name is "1", "2", ... for positional references or an arbitrary
// string for named ones.
func (f *Frame) lookup(name string) ([]Node, bool) {
	if idx, ok := positionalIndex(name); ok && idx >= 0 && idx < len(f.Positional) {
		return f.Positional[idx], true
	}
	if v, ok := f.Named[name]; ok {
		return v, true
	}
	return nil, false
}

func positionalIndex(name string) (int, bool) {
	if name == "" {
		return 0, false
	}
	n := 0
	for _, c := range name {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n - 1, true
}

// getParent implements the Lua frame bridge's getParent(): the frame of
// the page that invoked this template, or nil at the outermost frame.
func (f *Frame) getParent() *Frame { return f.Parent }
