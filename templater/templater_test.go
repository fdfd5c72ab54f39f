package templater

import (
	"bytes"
	"strings"
	"testing"
	"testing/fstest"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"layout.html": &fstest.MapFile{Data: []byte(
			`{{define "layout"}}<html><body>{{template "content" .}}</body></html>{{end}}`,
		)},
		"article.html": &fstest.MapFile{Data: []byte(
			`{{define "article"}}<h1>{{.Title}}</h1>{{end}}`,
		)},
		"search.html": &fstest.MapFile{Data: []byte(
			`{{define "search"}}<ul>{{range .Results}}<li><a href="{{articleURL .Title}}">{{.Title}}</a></li>{{end}}</ul>{{end}}`,
		)},
	}
}

func TestRenderBindsNamedBlockToContent(t *testing.T) {
	tpl, err := New(testFS(), "*.html")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var buf bytes.Buffer
	if err := tpl.Render(&buf, "article", map[string]any{"Title": "Gopher"}); err != nil {
		t.Fatalf("Render: %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "<h1>Gopher</h1>") {
		t.Errorf("expected article content, got %q", got)
	}
	if !strings.HasPrefix(got, "<html><body>") {
		t.Errorf("expected layout wrapper, got %q", got)
	}
}

func TestRenderDoesNotLeakBetweenContentBlocks(t *testing.T) {
	tpl, err := New(testFS(), "*.html")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var articleBuf, searchBuf bytes.Buffer
	if err := tpl.Render(&articleBuf, "article", map[string]any{"Title": "A"}); err != nil {
		t.Fatalf("Render article: %v", err)
	}
	if err := tpl.Render(&searchBuf, "search", map[string]any{
		"Results": []map[string]any{{"Title": "B"}},
	}); err != nil {
		t.Fatalf("Render search: %v", err)
	}

	if strings.Contains(articleBuf.String(), "<ul>") {
		t.Errorf("article render leaked search content: %q", articleBuf.String())
	}
	if strings.Contains(searchBuf.String(), "<h1>") {
		t.Errorf("search render leaked article content: %q", searchBuf.String())
	}
}

func TestRenderUnknownContentName(t *testing.T) {
	tpl, err := New(testFS(), "*.html")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var buf bytes.Buffer
	if err := tpl.Render(&buf, "nonexistent", nil); err == nil {
		t.Error("expected error for unknown content template")
	}
}

func TestArticleURLEscapesTitle(t *testing.T) {
	tpl, err := New(testFS(), "*.html")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var buf bytes.Buffer
	if err := tpl.Render(&buf, "search", map[string]any{
		"Results": []map[string]any{{"Title": "C++ & Go"}},
	}); err != nil {
		t.Fatalf("Render: %v", err)
	}

	if !strings.Contains(buf.String(), `href="/wiki/C%2B%2B%20%26%20Go"`) {
		t.Errorf("expected escaped href, got %q", buf.String())
	}
}
