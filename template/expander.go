// Package template walks a wikitext TokenTree and produces an expanded
// TokenTree: template calls resolved, parser functions evaluated,
// parameter references substituted, and #invoke calls dispatched to a
// Lua bridge.
package template

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"

	"github.com/kepler-wiki/wikireader/title"
	"github.com/kepler-wiki/wikireader/wiki"
	"github.com/kepler-wiki/wikireader/wikitext"
)

// Node is a TokenTree node; aliased here so the rest of this package
// doesn't have to spell out wikitext.Node everywhere.
type Node = wikitext.Node

// Fetcher resolves a normalized title to its page's raw wikitext
// source, the boundary this package uses to reach C1/C2 without
// depending on them directly.
type Fetcher interface {
	FetchWikitext(ctx context.Context, t title.Title) (src string, found bool, err error)
	Exists(ctx context.Context, t title.Title) bool
}

// PageCache caches parsed TokenTrees keyed by (title, include-mode), the
// "parsed-page cache" from the caching design (C8).
type PageCache interface {
	GetOrParse(ctx context.Context, t title.Title, mode wikitext.Mode, src func() (string, error)) (*wikitext.Base, error)
}

// HostBridge is the narrow boundary the Lua sandbox calls back through
// for a frame's expandTemplate/preprocess methods, so the VM choice can
// change without the expander or renderer noticing.
type HostBridge interface {
	ExpandTemplateCall(ctx context.Context, t title.Title, frame *Frame) (string, error)
	Preprocess(ctx context.Context, src string, frame *Frame) (string, error)
}

// Invoker runs a Scribunto #invoke call. Implemented by package luavm.
type Invoker interface {
	Invoke(ctx context.Context, module title.Title, fn string, frame *Frame, bridge HostBridge) (string, error)
}

// Limits bounds a single render's expansion work, per spec §4.5.
type Limits struct {
	MaxDepth      int
	MaxNodeBudget int
	MaxIncludeBytes int64
}

// DefaultLimits renders the top-1000 Wikipedia articles without
// truncation on the reference corpus this reader was tuned against
// (source-defined constants per design note §9(b); MaxDepth mirrors the
// original renderer's stack cap).
var DefaultLimits = Limits{
	MaxDepth:        40,
	MaxNodeBudget:   200_000,
	MaxIncludeBytes: 8 << 20,
}

// Expander is a single render's expansion state: the rendering context,
// the title/page/Lua fetchers, and the mutable budget/cycle-detection
// counters shared across the whole recursive walk.
type Expander struct {
	RC      *wiki.RenderContext
	Fetch   Fetcher
	Cache   PageCache
	Invoke  Invoker
	NSMap   *title.Map
	Limits  Limits

	nodeBudget     int
	includeBytes   int64
	activeCalls    map[string]bool
	truncated      bool
}

// NewExpander builds an Expander for one render.
func NewExpander(rc *wiki.RenderContext, fetch Fetcher, cache PageCache, invoke Invoker, nsmap *title.Map, limits Limits) *Expander {
	return &Expander{
		RC:          rc,
		Fetch:       fetch,
		Cache:       cache,
		Invoke:      invoke,
		NSMap:       nsmap,
		Limits:      limits,
		nodeBudget:  limits.MaxNodeBudget,
		activeCalls: map[string]bool{},
	}
}

// ExpandPage expands the page rc.Title is rendering: it parses the raw
// source in noinclude mode (this is the page being viewed, not
// transcluded) and walks it with the root frame.
func (e *Expander) ExpandPage(ctx context.Context, src string) []Node {
	tree := wikitext.Parse(src, wikitext.NoInclude)
	return e.expandNodes(ctx, tree.Children(), rootFrame(e.RC.Title))
}

// Preprocess implements HostBridge.Preprocess: parse and expand an
// arbitrary wikitext fragment (e.g. from Lua's frame:preprocess) in the
// current frame.
func (e *Expander) Preprocess(ctx context.Context, src string, frame *Frame) (string, error) {
	tree := wikitext.Parse(src, wikitext.NoInclude)
	nodes := e.expandNodes(ctx, tree.Children(), frame)
	return renderToPlainText(nodes), nil
}

// ExpandTemplateCall implements HostBridge.ExpandTemplateCall: used by
// the Lua frame bridge's expandTemplate{title=..., args=...}.
func (e *Expander) ExpandTemplateCall(ctx context.Context, t title.Title, frame *Frame) (string, error) {
	nodes, err := e.expandTemplateTitle(ctx, t, frame, Pos{})
	if err != nil {
		return "", err
	}
	return renderToPlainText(nodes), nil
}

// Pos re-exports wikitext.Pos for HostBridge callers that don't want to
// import the wikitext package directly.
type Pos = wikitext.Pos

func (e *Expander) expandNodes(ctx context.Context, nodes []Node, frame *Frame) []Node {
	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		if ctx.Err() != nil {
			out = append(out, wikitext.NewErrorMarker(n.At(), "render cancelled"))
			return out
		}
		if e.nodeBudget <= 0 {
			if !e.truncated {
				out = append(out, wikitext.NewErrorMarker(n.At(), "node budget exceeded"))
				e.truncated = true
			}
			return out
		}
		e.nodeBudget--
		out = append(out, e.expandOne(ctx, n, frame)...)
	}
	return out
}

func (e *Expander) expandOne(ctx context.Context, n Node, frame *Frame) []Node {
	switch v := n.(type) {
	case *wikitext.Text, *wikitext.Comment:
		return []Node{n}
	case *wikitext.ExtensionTag:
		return e.expandExtensionTag(ctx, v, frame)
	case *wikitext.TemplateCall:
		return e.expandTemplateCall(ctx, v, frame)
	case *wikitext.Param:
		return e.expandParam(ctx, v, frame)
	case *wikitext.WikiLink:
		return []Node{&wikitext.WikiLink{
			Base:   structuralBase(v.Base, e.expandNodes(ctx, v.Children(), frame)),
			Target: v.Target,
		}}
	case *wikitext.ExternalLink:
		return []Node{&wikitext.ExternalLink{
			Base:   structuralBase(v.Base, e.expandNodes(ctx, v.Children(), frame)),
			URL:    v.URL,
			Braced: v.Braced,
		}}
	case *wikitext.Heading:
		return []Node{&wikitext.Heading{
			Base:  structuralBase(v.Base, e.expandNodes(ctx, v.Children(), frame)),
			Level: v.Level,
		}}
	case *wikitext.ListItem:
		return []Node{&wikitext.ListItem{
			Base:   structuralBase(v.Base, e.expandNodes(ctx, v.Children(), frame)),
			Prefix: v.Prefix,
		}}
	case *wikitext.Table:
		return []Node{&wikitext.Table{
			Base:  structuralBase(v.Base, e.expandNodes(ctx, v.Children(), frame)),
			Attrs: v.Attrs,
		}}
	case *wikitext.TableRow:
		return []Node{&wikitext.TableRow{
			Base:  structuralBase(v.Base, e.expandNodes(ctx, v.Children(), frame)),
			Attrs: v.Attrs,
		}}
	case *wikitext.TableCell:
		return []Node{&wikitext.TableCell{
			Base:   structuralBase(v.Base, e.expandNodes(ctx, v.Children(), frame)),
			Header: v.Header,
			Attrs:  v.Attrs,
		}}
	case *wikitext.HTMLTag:
		return []Node{n}
	default:
		// Bold/Italic/BoldItalic are bare *wikitext.Base values.
		if b, ok := n.(*wikitext.Base); ok {
			return []Node{&wikitext.Base{K: b.K, P: b.P, Kid: e.expandNodes(ctx, b.Children(), frame)}}
		}
		return []Node{n}
	}
}

func structuralBase(orig wikitext.Base, children []Node) wikitext.Base {
	return wikitext.Base{K: orig.K, P: orig.P, Kid: children}
}

func (e *Expander) expandExtensionTag(ctx context.Context, v *wikitext.ExtensionTag, frame *Frame) []Node {
	// Extension tag content is not re-expanded; the renderer's handler
	// decides what, if anything, to do with Raw.
	return []Node{v}
}

func (e *Expander) expandParam(ctx context.Context, v *wikitext.Param, frame *Frame) []Node {
	nameNodes := e.expandNodes(ctx, v.Name, frame)
	name := renderToPlainText(nameNodes)

	if bound, ok := frame.lookup(name); ok {
		return bound
	}
	if v.Default != nil {
		return e.expandNodes(ctx, v.Default, frame)
	}
	return []Node{&wikitext.Text{
		Base:  wikitext.Base{K: wikitext.KindText, P: v.At()},
		Value: "{{{" + name + "}}}",
	}}
}

func (e *Expander) expandTemplateCall(ctx context.Context, v *wikitext.TemplateCall, frame *Frame) []Node {
	nameNodes := e.expandNodes(ctx, v.Name, frame)
	rawName := strings.TrimSpace(renderToPlainText(nameNodes))
	rawName = stripSubstPrefix(rawName)

	if fn, firstArg, hasArg, isFn := classifyFunctionName(rawName); isFn {
		return e.dispatchParserFunction(ctx, fn, firstArg, hasArg, v, frame)
	}
	if isMagicWord(rawName) {
		return []Node{e.evalMagicWord(rawName)}
	}
	if node, ok := e.tryMagicWordAssignment(rawName); ok {
		return []Node{node}
	}

	target := resolveTemplateTitle(rawName, e.NSMap)
	if target.NS != nil && target.NS.ID == title.Module {
		return []Node{wikitext.NewErrorMarker(v.At(), "Module: pages cannot be transcluded directly, use #invoke")}
	}

	callFrame, err := e.bindArgs(ctx, target, v.Args, frame)
	if err != nil {
		return []Node{wikitext.NewErrorMarker(v.At(), err.Error())}
	}

	nodes, err := e.expandTemplateTitle(ctx, target, callFrame, v.At())
	if err != nil {
		return []Node{wikitext.NewErrorMarker(v.At(), err.Error())}
	}
	return nodes
}

// substPrefixes are the subst-family prefixes a not-yet-substituted page
// can still carry. Dumps are static snapshots of already-saved wikitext,
// so subst happened (or was deliberately skipped) upstream; on render
// here the call is simply expanded as if the prefix weren't present.
var substPrefixes = []string{"subst:", "safesubst:"}

func stripSubstPrefix(rawName string) string {
	lower := strings.ToLower(rawName)
	for _, prefix := range substPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return strings.TrimSpace(rawName[len(prefix):])
		}
	}
	return rawName
}

// resolveTemplateTitle resolves a template call's name to a full title:
// bare names are resolved into the Template namespace; a leading colon
// forces the namespace the name already carries.
func resolveTemplateTitle(rawName string, nsmap *title.Map) title.Title {
	if strings.HasPrefix(rawName, ":") {
		return title.Normalize(rawName[1:], nsmap)
	}
	if idx := strings.IndexByte(rawName, ':'); idx > 0 {
		if _, ok := nsmap.ByName(rawName[:idx]); ok {
			return title.Normalize(rawName, nsmap)
		}
	}
	return title.Normalize("Template:"+rawName, nsmap)
}

func (e *Expander) bindArgs(ctx context.Context, target title.Title, args []wikitext.TemplateArg, frame *Frame) (*Frame, error) {
	callFrame := &Frame{
		InvokingTitle: target,
		Named:         map[string][]Node{},
		Parent:        frame,
		Depth:         frame.Depth + 1,
	}
	if callFrame.Depth > e.Limits.MaxDepth {
		return nil, fmt.Errorf("expansion depth exceeded (max %d)", e.Limits.MaxDepth)
	}
	for _, a := range args {
		expanded := e.expandNodes(ctx, a.Value, frame)
		if a.Name == "" {
			callFrame.Positional = append(callFrame.Positional, expanded)
		} else {
			callFrame.Named[strings.TrimSpace(a.Name)] = expanded
		}
	}
	return callFrame, nil
}

func (e *Expander) expandTemplateTitle(ctx context.Context, target title.Title, frame *Frame, callSite wikitext.Pos) ([]Node, error) {
	key := fingerprint(target, frame)
	if e.activeCalls[key] {
		return nil, errors.New("template recursion detected: " + target.Key())
	}

	src, found, err := e.Fetch.FetchWikitext(ctx, target)
	if err != nil {
		return nil, errors.Wrap(err, "fetching template")
	}
	if !found {
		return []Node{wikitext.NewErrorMarker(callSite, "template not found: "+target.Key())}, nil
	}
	e.includeBytes += int64(len(src))
	if e.includeBytes > e.Limits.MaxIncludeBytes {
		return []Node{wikitext.NewErrorMarker(callSite, "include-size budget exceeded")}, nil
	}

	tree, err := e.Cache.GetOrParse(ctx, target, wikitext.Include, func() (string, error) { return src, nil })
	if err != nil {
		return nil, errors.Wrap(err, "parsing template")
	}

	e.activeCalls[key] = true
	defer delete(e.activeCalls, key)

	return e.expandNodes(ctx, tree.Children(), frame), nil
}

// fingerprint builds the (title, argument-fingerprint) cycle-detection
// key: a blake2b digest of the title plus every bound argument's
// rendered text, so two calls to the same template with different
// arguments are not mistaken for a cycle. Named arguments are hashed in
// sorted key order — map iteration order is randomized per run, and an
// unsorted walk would make two structurally identical calls hash
// differently, breaking the cycle check's determinism.
func fingerprint(t title.Title, frame *Frame) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(t.Key()))
	for _, p := range frame.Positional {
		h.Write([]byte{0})
		h.Write([]byte(renderToPlainText(p)))
	}

	keys := make([]string, 0, len(frame.Named))
	for k := range frame.Named {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Write([]byte{1})
		h.Write([]byte(k))
		h.Write([]byte(renderToPlainText(frame.Named[k])))
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// RenderPlainText flattens an expanded node slice to its text content.
// Exported for package luavm, which needs to hand already-expanded
// template/#invoke arguments to Lua as plain strings.
func RenderPlainText(nodes []Node) string { return renderToPlainText(nodes) }

// ResolveTemplateTitle exports resolveTemplateTitle for package luavm's
// frame:expandTemplate{title=...} bridge method, which resolves a bare
// Lua-supplied name into the Template namespace the same way a
// {{name|...}} call would.
func ResolveTemplateTitle(rawName string, nsmap *title.Map) title.Title {
	return resolveTemplateTitle(rawName, nsmap)
}

// renderToPlainText flattens a node slice to its text content, used
// wherever expanded wikitext needs to become a plain Go string (parser
// function arguments, magic word names, Lua return values).
func renderToPlainText(nodes []Node) string {
	var b strings.Builder
	for _, n := range nodes {
		writePlainText(&b, n)
	}
	return b.String()
}

func writePlainText(b *strings.Builder, n Node) {
	switch v := n.(type) {
	case *wikitext.Text:
		b.WriteString(v.Value)
	case *wikitext.ErrorMarker:
		b.WriteString(v.Message)
	case *wikitext.ExtensionTag:
		b.WriteString(v.Raw)
	default:
		for _, c := range n.Children() {
			writePlainText(b, c)
		}
	}
}
