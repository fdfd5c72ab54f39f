// Package render implements C7: lowering an expanded wikitext TokenTree
// to sanitized HTML. It never runs template expansion itself (package
// template has already replaced every TemplateCall/Param/#invoke node
// by the time a tree reaches here) — its job is purely structural:
// headings, lists, tables, links, extension tags, and a table of
// contents built the same way the teacher built one for Markdown
// output, by reparsing the emitted HTML and walking it with goquery.
package render

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/kepler-wiki/wikireader/title"
	"github.com/kepler-wiki/wikireader/wiki"
	"github.com/kepler-wiki/wikireader/wikitext"
)

// HTMLRenderer lowers an expanded wikitext tree to HTML. Passthrough
// HTMLTag content (generic <span>/<div>/... from the source) is run
// through a bluemonday policy rather than trusted verbatim, since it
// originates from page wikitext, not from this renderer.
type HTMLRenderer struct {
	policy *bluemonday.Policy
	nsmap  *title.Map
}

// NewHTMLRenderer builds a renderer. nsmap resolves [[wiki link]]
// targets to normalized titles for existence coloring and href
// construction.
func NewHTMLRenderer(nsmap *title.Map) *HTMLRenderer {
	return &HTMLRenderer{
		policy: wikiHTMLPolicy(),
		nsmap:  nsmap,
	}
}

// wikiHTMLPolicy allows the passthrough HTML tags MediaWiki articles
// commonly carry (span/div/abbr/small/sup/sub/center and their
// class/style/id/lang/dir attributes) while stripping anything
// script-capable, grounded on the teacher's reliance on bluemonday for
// the same purpose in its Markdown renderer's rendered-comment path.
func wikiHTMLPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowStandardURLs()
	p.AllowAttrs("class", "id", "style", "lang", "dir", "title").Globally()
	p.AllowElements("span", "div", "abbr", "small", "sup", "sub", "center", "kbd", "samp", "var", "cite", "q", "s", "u", "big")
	p.AllowElements("b", "i", "em", "strong", "code", "pre", "blockquote")
	p.AllowElements("br", "hr")
	p.AllowTables()
	return p
}

// TOCEntry is one nested heading in the table of contents.
type TOCEntry struct {
	ID       string
	Text     string
	Children []TOCEntry
}

// refEntry is one <ref>...</ref> collected while walking the tree,
// rendered into the <references/> list at its tag's position.
type refEntry struct {
	group   string
	content string
}

// renderState threads the per-render bookkeeping a single recursive
// walk needs: collected footnotes and a heading-slug dedup set. It is
// not part of HTMLRenderer itself since HTMLRenderer is reused across
// concurrent renders (spec's worker-pool concurrency model).
type renderState struct {
	rc       *wiki.RenderContext
	renderer *HTMLRenderer
	refs     map[string][]refEntry
	refOrder []string
	slugs    map[string]int
}

// Render lowers nodes (an already fully expanded tree, per C5) to a
// complete HTML fragment with an injected table of contents, the same
// two-pass technique (render, reparse, find headings, inject) the
// teacher used for its Markdown pipeline.
func (r *HTMLRenderer) Render(rc *wiki.RenderContext, nodes []wikitext.Node) (string, error) {
	st := &renderState{rc: rc, renderer: r, refs: map[string][]refEntry{}, slugs: map[string]int{}}

	var b strings.Builder
	st.writeNodes(&b, nodes)
	st.writeReferenceLists(&b)
	rawhtml := b.String()

	return injectTOC(rawhtml)
}

func (st *renderState) writeNodes(b *strings.Builder, nodes []wikitext.Node) {
	groups := groupListItems(nodes)
	for _, g := range groups {
		if g.list != nil {
			st.writeListGroup(b, g.list)
			continue
		}
		st.writeNode(b, g.node)
	}
}

func (st *renderState) writeNode(b *strings.Builder, n wikitext.Node) {
	if n == nil {
		return
	}
	switch v := n.(type) {
	case *wikitext.Text:
		b.WriteString(htmltemplate.HTMLEscapeString(v.Value))
	case *wikitext.Comment:
		// dropped: comments never render
	case *wikitext.ErrorMarker:
		fmt.Fprintf(b, `<strong class="error">%s</strong>`, htmltemplate.HTMLEscapeString(v.Message))
	case *wikitext.Heading:
		st.writeHeading(b, v)
	case *wikitext.WikiLink:
		st.writeWikiLink(b, v)
	case *wikitext.ExternalLink:
		st.writeExternalLink(b, v)
	case *wikitext.Table:
		fmt.Fprintf(b, `<table class="wikitable" %s>`, sanitizedAttrs(st.renderer, v.Attrs))
		st.writeNodes(b, v.Children())
		b.WriteString("</table>")
	case *wikitext.TableRow:
		fmt.Fprintf(b, `<tr %s>`, sanitizedAttrs(st.renderer, v.Attrs))
		st.writeNodes(b, v.Children())
		b.WriteString("</tr>")
	case *wikitext.TableCell:
		tag := "td"
		if v.Header {
			tag = "th"
		}
		fmt.Fprintf(b, `<%s %s>`, tag, sanitizedAttrs(st.renderer, v.Attrs))
		st.writeNodes(b, v.Children())
		fmt.Fprintf(b, `</%s>`, tag)
	case *wikitext.ExtensionTag:
		st.writeExtensionTag(b, v)
	case *wikitext.HTMLTag:
		st.writeHTMLTag(b, v)
	case *wikitext.TemplateCall, *wikitext.Param:
		// Only reachable if the expander gave up without fully expanding
		// (e.g. Invoke is nil); render nothing rather than raw wikitext.
	default:
		st.writeKindWrapped(b, n)
	}
}

// writeKindWrapped handles the Bold/Italic/BoldItalic/ListItem/
// HorizontalRule/Break/Root kinds, which don't need their own *T case
// above since their tags are purely a function of Kind().
func (st *renderState) writeKindWrapped(b *strings.Builder, n wikitext.Node) {
	switch n.Kind() {
	case wikitext.KindBold:
		b.WriteString("<b>")
		st.writeNodes(b, n.Children())
		b.WriteString("</b>")
	case wikitext.KindItalic:
		b.WriteString("<i>")
		st.writeNodes(b, n.Children())
		b.WriteString("</i>")
	case wikitext.KindBoldItalic:
		b.WriteString("<b><i>")
		st.writeNodes(b, n.Children())
		b.WriteString("</i></b>")
	case wikitext.KindListItem:
		st.writeNodes(b, n.Children())
	case wikitext.KindRoot:
		st.writeNodes(b, n.Children())
	case wikitext.KindHorizontalRule:
		b.WriteString("<hr/>")
	case wikitext.KindBreak:
		b.WriteString("<br/>")
	}
}

func (st *renderState) writeHeading(b *strings.Builder, h *wikitext.Heading) {
	level := h.Level
	if level < 1 {
		level = 1
	}
	if level > 6 {
		level = 6
	}
	var text strings.Builder
	st.writeNodes(&text, h.Children())
	slug := st.uniqueSlug(stripTags(text.String()))
	fmt.Fprintf(b, `<h%d id="%s">`, level, slug)
	b.WriteString(text.String())
	fmt.Fprintf(b, `</h%d>`, level)
}

// uniqueSlug mimics MediaWiki's anchor-dedup behavior: repeat headings
// get "_2", "_3", ... suffixes.
func (st *renderState) uniqueSlug(text string) string {
	base := slugify(text)
	n := st.slugs[base]
	st.slugs[base] = n + 1
	if n == 0 {
		return base
	}
	return base + "_" + strconv.Itoa(n+1)
}

func slugify(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), " ", "_")
}

// stripTags removes the inline tags writeNodes may have already
// emitted around a heading's text (e.g. bold) so the resulting slug
// and ID text are plain.
func stripTags(htmlFragment string) string {
	var b strings.Builder
	inTag := false
	for _, r := range htmlFragment {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return html.UnescapeString(b.String())
}

func (st *renderState) writeWikiLink(b *strings.Builder, wl *wikitext.WikiLink) {
	target := title.Normalize(wl.Target, st.renderer.nsmap)
	var label strings.Builder
	if len(wl.Children()) > 0 {
		st.writeNodes(&label, wl.Children())
	} else {
		label.WriteString(htmltemplate.HTMLEscapeString(wl.Target))
	}

	class := ""
	if st.rc != nil && st.rc.ExistingTitles != nil && !st.rc.ExistingTitles(target) {
		class = ` class="new"`
	}
	href := "/wiki/" + htmltemplate.URLQueryEscaper(target.Key())
	fmt.Fprintf(b, `<a href="%s"%s>%s</a>`, href, class, label.String())
}

func (st *renderState) writeExternalLink(b *strings.Builder, el *wikitext.ExternalLink) {
	var label strings.Builder
	if len(el.Children()) > 0 {
		st.writeNodes(&label, el.Children())
	} else {
		label.WriteString(htmltemplate.HTMLEscapeString(el.URL))
	}
	fmt.Fprintf(b, `<a href="%s" rel="nofollow noopener" class="external">%s</a>`,
		htmltemplate.HTMLEscapeString(el.URL), label.String())
}

func (st *renderState) writeHTMLTag(b *strings.Builder, t *wikitext.HTMLTag) {
	if t.Closing {
		fmt.Fprintf(b, "</%s>", t.Name)
		return
	}
	raw := fmt.Sprintf("<%s %s>", t.Name, t.Attrs)
	b.WriteString(st.renderer.policy.Sanitize(raw))
}

func sanitizedAttrs(r *HTMLRenderer, raw string) string {
	if raw == "" {
		return ""
	}
	sanitized := r.policy.Sanitize("<div " + raw + ">x</div>")
	start := strings.Index(sanitized, " ")
	end := strings.LastIndex(sanitized, ">")
	if start < 0 || end < 0 || end <= start {
		return ""
	}
	return sanitized[start+1 : end]
}

// groupListItems folds runs of adjacent ListItem nodes that share a
// common prefix root into a single nested <ul>/<ol>/<dl> tree; non-list
// nodes pass through untouched. This mirrors the teacher's habit of
// doing a post-parse structural pass over a flat node stream rather
// than building list nesting into the parser itself (kept flat there
// too, per wikitext.ListItem's doc comment).
type listOrNode struct {
	node wikitext.Node
	list []wikitext.Node
}

func groupListItems(nodes []wikitext.Node) []listOrNode {
	rootTag := func(n wikitext.Node) string {
		if li, ok := n.(*wikitext.ListItem); ok && li.Prefix != "" {
			return listTag(li.Prefix[0])
		}
		return ""
	}
	var out []listOrNode
	i := 0
	for i < len(nodes) {
		if nodes[i].Kind() != wikitext.KindListItem {
			out = append(out, listOrNode{node: nodes[i]})
			i++
			continue
		}
		j := i
		for j < len(nodes) && nodes[j].Kind() == wikitext.KindListItem && rootTag(nodes[j]) == rootTag(nodes[i]) {
			j++
		}
		out = append(out, listOrNode{list: nodes[i:j]})
		i = j
	}
	return out
}

func (st *renderState) writeListGroup(b *strings.Builder, items []wikitext.Node) {
	st.writeListLevel(b, items, "")
}

// writeListLevel renders items whose Prefix all share rootPrefix as its
// direct children, recursing into runs of items with one extra prefix
// character as nested sublists.
func (st *renderState) writeListLevel(b *strings.Builder, items []wikitext.Node, rootPrefix string) {
	tag := ""
	for _, it := range items {
		li, ok := it.(*wikitext.ListItem)
		if !ok || !strings.HasPrefix(li.Prefix, rootPrefix) || len(li.Prefix) <= len(rootPrefix) {
			continue
		}
		tag = listTag(li.Prefix[len(rootPrefix)])
		break
	}
	if tag == "" {
		return
	}
	fmt.Fprintf(b, "<%s>", tag)
	i := 0
	for i < len(items) {
		li, ok := items[i].(*wikitext.ListItem)
		if !ok || li.Prefix == rootPrefix || !strings.HasPrefix(li.Prefix, rootPrefix) {
			i++
			continue
		}
		childPrefix := rootPrefix + li.Prefix[len(rootPrefix):len(rootPrefix)+1]
		j := i
		for j < len(items) {
			lj, ok := items[j].(*wikitext.ListItem)
			if !ok || !strings.HasPrefix(lj.Prefix, childPrefix) {
				break
			}
			j++
		}
		itemTag := "li"
		last := childPrefix[len(childPrefix)-1]
		if last == ';' {
			itemTag = "dt"
		} else if last == ':' {
			itemTag = "dd"
		}
		fmt.Fprintf(b, "<%s>", itemTag)
		if headLi, ok := items[i].(*wikitext.ListItem); ok && headLi.Prefix == childPrefix {
			st.writeNodes(b, headLi.Children())
		}
		st.writeListLevel(b, items[i:j], childPrefix)
		fmt.Fprintf(b, "</%s>", itemTag)
		i = j
	}
	fmt.Fprintf(b, "</%s>", tag)
}

func listTag(c byte) string {
	switch c {
	case '#':
		return "ol"
	case ';', ':':
		return "dl"
	default:
		return "ul"
	}
}

// injectTOC reparses rawhtml, collects h2/h3/h4 headings, and if at
// least two exist, builds and inserts a nested TOC before the first h2 — the
// teacher's exact approach for its Markdown renderer, carried over
// unchanged since it never depended on Markdown, only on the emitted
// HTML's heading structure.
func injectTOC(rawhtml string) (string, error) {
	root, err := html.Parse(strings.NewReader(rawhtml))
	if err != nil {
		return "", err
	}

	document := goquery.NewDocumentFromNode(root)
	headers := document.Find("h2, h3, h4")
	if headers.Length() < 2 {
		return rawhtml, nil
	}

	var nodes []*html.Node
	headers.Each(func(_ int, s *goquery.Selection) {
		nodes = append(nodes, s.Nodes[0])
	})
	tocTree := buildTOCTree(nodes)
	if len(tocTree) == 0 {
		return rawhtml, nil
	}

	tocHTML, err := renderTOCFragment(tocTree)
	if err != nil {
		return "", err
	}

	fakeBody := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	newnodes, err := html.ParseFragment(strings.NewReader(tocHTML), fakeBody)
	if err != nil {
		return "", err
	}
	var tocNode *html.Node
	for _, n := range newnodes {
		if n.Type == html.ElementNode {
			tocNode = n
			break
		}
	}
	if tocNode == nil {
		return rawhtml, nil
	}

	h2s := document.Find("h2")
	if h2s.Length() == 0 {
		return rawhtml, nil
	}
	firstH2 := h2s.Nodes[0]
	firstH2.Parent.InsertBefore(tocNode, firstH2)

	var out bytes.Buffer
	if err := html.Render(&out, root); err != nil {
		return "", err
	}
	return out.String(), nil
}

// buildTOCTree constructs a nested TOC from a flat list of heading
// nodes. h2 is top-level, h3 nests under h2, h4 under h3. Headings
// appearing before any parent of the expected level are dropped.
func buildTOCTree(nodes []*html.Node) []TOCEntry {
	var rootEntries []TOCEntry
	for _, n := range nodes {
		level := headingLevel(n)
		if level < 2 || level > 4 {
			continue
		}
		entry := TOCEntry{ID: getAttr(n, "id"), Text: textContent(n)}
		switch level {
		case 2:
			rootEntries = append(rootEntries, entry)
		case 3:
			if len(rootEntries) > 0 {
				rootEntries[len(rootEntries)-1].Children = append(rootEntries[len(rootEntries)-1].Children, entry)
			}
		case 4:
			if len(rootEntries) > 0 {
				parent := &rootEntries[len(rootEntries)-1]
				if len(parent.Children) > 0 {
					parent.Children[len(parent.Children)-1].Children = append(
						parent.Children[len(parent.Children)-1].Children, entry)
				}
			}
		}
	}
	return rootEntries
}

func headingLevel(n *html.Node) int {
	switch n.Data {
	case "h2":
		return 2
	case "h3":
		return 3
	case "h4":
		return 4
	default:
		return 0
	}
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textContent(c))
	}
	return b.String()
}

var tocTmpl = htmltemplate.Must(htmltemplate.New("toc").Parse(`
<div id="toc" class="toc"><div class="toctitle">Contents</div>{{template "list" .Entries}}</div>
{{define "list"}}<ul>{{range .}}<li><a href="#{{.ID}}">{{.Text}}</a>{{if .Children}}{{template "list" .Children}}{{end}}</li>{{end}}</ul>{{end}}
`))

func renderTOCFragment(entries []TOCEntry) (string, error) {
	var b strings.Builder
	if err := tocTmpl.Execute(&b, map[string]any{"Entries": entries}); err != nil {
		return "", err
	}
	return b.String(), nil
}
