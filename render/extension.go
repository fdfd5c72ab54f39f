package render

import (
	"fmt"
	htmltemplate "html/template"
	"regexp"
	"strings"

	"github.com/kepler-wiki/wikireader/wikitext"
)

// writeExtensionTag dispatches on an ExtensionTag's Name, covering the
// extension surface spec §4.7 names. Tags this reader has no real
// handling for (templatedata, timeline) render as an inert, visible
// placeholder rather than being silently dropped, so a page missing a
// feature is obvious in the output instead of quietly losing content.
func (st *renderState) writeExtensionTag(b *strings.Builder, t *wikitext.ExtensionTag) {
	switch strings.ToLower(t.Name) {
	case "nowiki":
		b.WriteString(htmltemplate.HTMLEscapeString(t.Raw))
	case "pre":
		fmt.Fprintf(b, "<pre>%s</pre>", htmltemplate.HTMLEscapeString(t.Raw))
	case "poem":
		st.writePoem(b, t)
	case "syntaxhighlight", "source":
		st.writeSyntaxHighlight(b, t)
	case "math":
		fmt.Fprintf(b, `<span class="math">%s</span>`, htmltemplate.HTMLEscapeString(t.Raw))
	case "ref":
		st.collectRef(t)
	case "references":
		st.writeReferencesMarker(b, t)
	case "indicator":
		st.writeIndicator(b, t)
	case "section":
		// Section markers are consumed at template-expansion time by
		// #lst/#lsth/#lstx (package template), which read them from the
		// raw wikitext before this parse, so the markers themselves have
		// no visible rendering.
	case "templatestyles":
		st.writeTemplateStyles(b, t)
	case "templatedata":
		b.WriteString(`<div class="templatedata-placeholder">TemplateData</div>`)
	case "timeline":
		b.WriteString(`<div class="timeline-placeholder">Timeline</div>`)
	default:
		fmt.Fprintf(b, "<pre>%s</pre>", htmltemplate.HTMLEscapeString(t.Raw))
	}
}

func (st *renderState) writePoem(b *strings.Builder, t *wikitext.ExtensionTag) {
	lines := strings.Split(t.Raw, "\n")
	b.WriteString(`<div class="poem">`)
	for i, line := range lines {
		b.WriteString(htmltemplate.HTMLEscapeString(line))
		if i < len(lines)-1 {
			b.WriteString("<br/>\n")
		}
	}
	b.WriteString("</div>")
}

func (st *renderState) writeSyntaxHighlight(b *strings.Builder, t *wikitext.ExtensionTag) {
	lang := attrValue(t.Attrs, "lang")
	class := "syntaxhighlight"
	if lang != "" {
		class += " language-" + lang
	}
	fmt.Fprintf(b, `<pre class="%s"><code>%s</code></pre>`, class, htmltemplate.HTMLEscapeString(t.Raw))
}

// writeTemplateStyles surfaces a <templatestyles> tag's src attribute
// as an HTML comment, so the skipped stylesheet stays visible in the
// page source. The referenced stylesheet page is not loaded and no
// <style> block is emitted; a tag without src produces no output.
func (st *renderState) writeTemplateStyles(b *strings.Builder, t *wikitext.ExtensionTag) {
	src := attrValue(t.Attrs, "src")
	if src == "" {
		return
	}
	fmt.Fprintf(b, "<!-- templatestyles: %s -->", htmltemplate.HTMLEscapeString(src))
}

func (st *renderState) writeIndicator(b *strings.Builder, t *wikitext.ExtensionTag) {
	name := attrValue(t.Attrs, "name")
	fmt.Fprintf(b, `<div class="indicator" data-indicator-name="%s">%s</div>`,
		htmltemplate.HTMLEscapeString(name), htmltemplate.HTMLEscapeString(t.Raw))
}

// collectRef records a footnote for later rendering at its matching
// <references/> tag's position; ref content is plain wikitext-derived
// text at this point since the expander has already run.
func (st *renderState) collectRef(t *wikitext.ExtensionTag) {
	group := attrValue(t.Attrs, "group")
	st.refs[group] = append(st.refs[group], refEntry{group: group, content: t.Raw})
	found := false
	for _, g := range st.refOrder {
		if g == group {
			found = true
			break
		}
	}
	if !found {
		st.refOrder = append(st.refOrder, group)
	}
}

func (st *renderState) writeReferencesMarker(b *strings.Builder, t *wikitext.ExtensionTag) {
	group := attrValue(t.Attrs, "group")
	st.writeOneReferenceList(b, group)
}

// writeReferenceLists emits any reference groups that were collected
// but never consumed by an explicit <references/> tag, matching
// MediaWiki's behavior of appending an implicit references section at
// the end of the article.
func (st *renderState) writeReferenceLists(b *strings.Builder) {
	for _, group := range st.refOrder {
		if len(st.refs[group]) == 0 {
			continue
		}
		st.writeOneReferenceList(b, group)
	}
}

func (st *renderState) writeOneReferenceList(b *strings.Builder, group string) {
	entries := st.refs[group]
	if len(entries) == 0 {
		return
	}
	b.WriteString(`<ol class="references">`)
	for i, e := range entries {
		fmt.Fprintf(b, `<li id="cite_note-%d">%s</li>`, i+1, htmltemplate.HTMLEscapeString(e.content))
	}
	b.WriteString("</ol>")
	delete(st.refs, group)
}

var attrRe = regexp.MustCompile(`([a-zA-Z_:][-a-zA-Z0-9_:.]*)\s*=\s*"([^"]*)"`)

// attrValue extracts one double-quoted attribute's value from an
// ExtensionTag's raw attribute text; wikitext extension tag attributes
// are consistently double-quoted by convention, unlike arbitrary HTML.
func attrValue(attrs, name string) string {
	for _, m := range attrRe.FindAllStringSubmatch(attrs, -1) {
		if strings.EqualFold(m[1], name) {
			return m[2]
		}
	}
	return ""
}
