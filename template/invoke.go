package template

import (
	"context"
	"strings"

	"github.com/kepler-wiki/wikireader/title"
	"github.com/kepler-wiki/wikireader/wikitext"
)

// dispatchInvoke handles {{#invoke:Module|func|arg1|arg2=...}}: it
// resolves Module into the Module namespace, builds the Lua frame's
// arguments from the already-expanded remaining args, calls into C6,
// and re-enters expansion on whatever wikitext the Lua function
// returned (per §4.6's return-conversion contract).
func (e *Expander) dispatchInvoke(ctx context.Context, args []string, v *wikitext.TemplateCall, frame *Frame) []Node {
	if len(args) < 2 {
		return []Node{wikitext.NewErrorMarker(v.At(), "#invoke requires a module and function name")}
	}
	moduleName, fn := args[0], args[1]
	module := resolveModuleTitle(moduleName, e.NSMap)

	invokeFrame := &Frame{
		InvokingTitle: module,
		Named:         map[string][]Node{},
		Parent:        frame,
		Depth:         frame.Depth,
	}
	if len(v.Args) == 0 {
		return []Node{wikitext.NewErrorMarker(v.At(), "#invoke requires a function name")}
	}
	for _, extra := range v.Args[1:] {
		expanded := e.expandNodes(ctx, extra.Value, frame)
		if extra.Name == "" {
			invokeFrame.Positional = append(invokeFrame.Positional, expanded)
		} else {
			invokeFrame.Named[strings.TrimSpace(extra.Name)] = expanded
		}
	}

	if e.Invoke == nil {
		return []Node{wikitext.NewErrorMarker(v.At(), "Lua module execution is unavailable")}
	}
	result, err := e.Invoke.Invoke(ctx, module, fn, invokeFrame, e)
	if err != nil {
		return []Node{wikitext.NewErrorMarker(v.At(), "Lua error: "+err.Error())}
	}

	tree := wikitext.Parse(result, wikitext.NoInclude)
	return e.expandNodes(ctx, tree.Children(), frame)
}

func resolveModuleTitle(rawName string, nsmap *title.Map) title.Title {
	if strings.HasPrefix(rawName, ":") {
		return title.Normalize(rawName[1:], nsmap)
	}
	if idx := strings.IndexByte(rawName, ':'); idx > 0 {
		if ns, ok := nsmap.ByName(rawName[:idx]); ok && ns.ID == title.Module {
			return title.Normalize(rawName, nsmap)
		}
	}
	return title.Normalize("Module:"+rawName, nsmap)
}
