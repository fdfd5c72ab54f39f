package render

import (
	"strings"
	"testing"
	"time"

	"github.com/kepler-wiki/wikireader/title"
	"github.com/kepler-wiki/wikireader/wiki"
	"github.com/kepler-wiki/wikireader/wikitext"
)

func newTestContext(exists map[string]bool) *wiki.RenderContext {
	nsmap := title.Default
	return wiki.NewRenderContext(title.Normalize("Test Page", nsmap), time.Now(), func(t title.Title) bool {
		return exists[t.Key()]
	})
}

func renderWikitext(t *testing.T, src string, exists map[string]bool) string {
	t.Helper()
	tree := wikitext.Parse(src, wikitext.NoInclude)
	r := NewHTMLRenderer(title.Default)
	out, err := r.Render(newTestContext(exists), tree.Children())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	return out
}

func TestRenderBoldItalic(t *testing.T) {
	out := renderWikitext(t, "'''bold''' and ''italic''", nil)
	if !strings.Contains(out, "<b>bold</b>") {
		t.Errorf("missing bold, got %s", out)
	}
	if !strings.Contains(out, "<i>italic</i>") {
		t.Errorf("missing italic, got %s", out)
	}
}

func TestRenderWikiLinkExistingVsNew(t *testing.T) {
	out := renderWikitext(t, "[[Existing]] and [[Missing]]", map[string]bool{"Existing": true})
	if strings.Contains(out, `href="/wiki/Existing" class="new"`) {
		t.Errorf("existing link incorrectly marked new: %s", out)
	}
	if !strings.Contains(out, `href="/wiki/Missing" class="new"`) {
		t.Errorf("missing link not marked new: %s", out)
	}
}

func TestRenderWikiLinkWithLabel(t *testing.T) {
	out := renderWikitext(t, "[[Target|custom label]]", map[string]bool{"Target": true})
	if !strings.Contains(out, ">custom label</a>") {
		t.Errorf("expected custom label, got %s", out)
	}
}

func TestRenderExternalLink(t *testing.T) {
	out := renderWikitext(t, "[https://example.com Example]", nil)
	if !strings.Contains(out, `href="https://example.com"`) || !strings.Contains(out, ">Example</a>") {
		t.Errorf("got %s", out)
	}
}

func TestRenderHeadingGetsID(t *testing.T) {
	out := renderWikitext(t, "== Section One ==\ntext", nil)
	if !strings.Contains(out, `<h2 id="Section_One">`) {
		t.Errorf("got %s", out)
	}
}

func TestRenderTOCInjectedForMultipleHeadings(t *testing.T) {
	out := renderWikitext(t, "== One ==\na\n== Two ==\nb", nil)
	if !strings.Contains(out, `id="toc"`) {
		t.Errorf("expected TOC, got %s", out)
	}
	if !strings.Contains(out, `href="#One"`) || !strings.Contains(out, `href="#Two"`) {
		t.Errorf("TOC missing entries: %s", out)
	}
}

func TestRenderTOCNestedHeadings(t *testing.T) {
	out := renderWikitext(t, "== Top ==\n=== Child ===\ntext\n== Second ==\ntext", nil)
	if !strings.Contains(out, `id="toc"`) {
		t.Fatalf("expected TOC, got %s", out)
	}
	tocStart := strings.Index(out, `id="toc"`)
	firstHeading := strings.Index(out, "<h2")
	if firstHeading < 0 || tocStart > firstHeading {
		t.Fatalf("expected TOC to precede first heading, got %s", out)
	}
	tocSection := out[tocStart:firstHeading]
	if !strings.Contains(tocSection, "Child") {
		t.Errorf("expected nested entry Child inside TOC, got %s", tocSection)
	}
}

func TestRenderNoTOCForSingleHeading(t *testing.T) {
	out := renderWikitext(t, "== Only ==\ntext", nil)
	if strings.Contains(out, `id="toc"`) {
		t.Errorf("unexpected TOC for a single heading: %s", out)
	}
}

func TestRenderUnorderedList(t *testing.T) {
	out := renderWikitext(t, "* one\n* two\n** nested", nil)
	if !strings.Contains(out, "<ul>") || !strings.Contains(out, "<li>") {
		t.Errorf("got %s", out)
	}
}

func TestRenderOrderedList(t *testing.T) {
	out := renderWikitext(t, "# first\n# second", nil)
	if !strings.Contains(out, "<ol>") {
		t.Errorf("got %s", out)
	}
}

func TestRenderTable(t *testing.T) {
	out := renderWikitext(t, "{|\n|-\n! Header\n|-\n| Cell\n|}", nil)
	if !strings.Contains(out, "<table") || !strings.Contains(out, "<th") || !strings.Contains(out, "<td") {
		t.Errorf("got %s", out)
	}
}

func TestRenderNowikiEscapesContent(t *testing.T) {
	out := renderWikitext(t, "<nowiki>[[not a link]]</nowiki>", nil)
	if strings.Contains(out, `<a href`) {
		t.Errorf("nowiki content should not produce a link: %s", out)
	}
}

func TestRenderRefAndReferences(t *testing.T) {
	out := renderWikitext(t, "claim<ref>citation text</ref>\n<references/>", nil)
	if !strings.Contains(out, `class="references"`) {
		t.Errorf("expected a references list, got %s", out)
	}
	if !strings.Contains(out, "citation text") {
		t.Errorf("expected footnote content, got %s", out)
	}
}

func TestRenderImplicitReferencesWithoutExplicitTag(t *testing.T) {
	out := renderWikitext(t, "claim<ref>orphan citation</ref>", nil)
	if !strings.Contains(out, "orphan citation") {
		t.Errorf("expected implicit references section, got %s", out)
	}
}

func TestRenderErrorMarker(t *testing.T) {
	r := NewHTMLRenderer(title.Default)
	node := wikitext.NewErrorMarker(wikitext.Pos{}, "boom")
	out, err := r.Render(newTestContext(nil), []wikitext.Node{node})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(out, `class="error"`) || !strings.Contains(out, "boom") {
		t.Errorf("got %s", out)
	}
}

func TestRenderSanitizesDangerousHTML(t *testing.T) {
	out := renderWikitext(t, `<div onclick="alert(1)">text</div>`, nil)
	if strings.Contains(out, "onclick") {
		t.Errorf("expected onclick to be stripped, got %s", out)
	}
}

func TestRenderNeverPanics(t *testing.T) {
	inputs := []string{
		"", "[[", "{{", "'''", "<ref>", "<references/>", "{|", "* ** ***",
		"== ===", "[http://", "<nowiki", strings.Repeat("[[a]]", 200),
	}
	for _, in := range inputs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("panic rendering %q: %v", in, r)
				}
			}()
			renderWikitext(t, in, nil)
		}()
	}
}
