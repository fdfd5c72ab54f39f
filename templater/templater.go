// Package templater renders the page-chrome HTML templates (article
// wrapper, search results, source/tree views, eval form) that sit
// around the HTML render.HTMLRenderer produces for a given request.
// These templates are the "thin shell" spec §1 excludes from the hard
// core; this package is a small generalization of the teacher's own
// Templater, swapped from text/template + on-disk globs to
// html/template + an fs.FS (internal/embedded's compiled-in tree),
// since wikireader ships with no on-disk templates/ directory.
package templater

import (
	"fmt"
	htmltemplate "html/template"
	"io"
	"io/fs"
	"net/url"

	"github.com/Masterminds/sprig/v3"
)

// Templater holds the parsed "layout" template plus every named
// content block (article, search, source, tree, eval, notfound) and
// the shared function map every page uses.
type Templater struct {
	set *htmltemplate.Template
}

// New parses every *.html file under pattern in fsys into one shared
// template set, keyed by each file's own {{define "name"}} block (one
// per content file, plus "layout").
func New(fsys fs.FS, pattern string) (*Templater, error) {
	// sprig supplies the page-chrome templates' string/default helpers
	// (trunc, default, trimSuffix, ...) so content blocks don't need
	// Go-side formatting code for things like truncated search snippets.
	funcs := sprig.HtmlFuncMap()
	funcs["pathEscape"] = url.PathEscape
	funcs["queryEscape"] = url.QueryEscape
	funcs["articleURL"] = articleURL
	funcs["searchURL"] = searchURL
	funcs["sourceURL"] = sourceURL
	funcs["treeURL"] = treeURL
	set, err := htmltemplate.New("").Funcs(funcs).ParseFS(fsys, pattern)
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	return &Templater{set: set}, nil
}

// Render executes "layout" with contentName's block bound to the name
// "content", which layout.html invokes via {{template "content" .}}.
// Each content file defines its own uniquely-named block (so parsing
// the whole set doesn't collide), and Render rebinds the requested
// one to "content" on a clone of the set before executing, so the same
// layout.html serves every page.
func (t *Templater) Render(w io.Writer, contentName string, data any) error {
	tmpl := t.set.Lookup(contentName)
	if tmpl == nil {
		return fmt.Errorf("content template %q not found", contentName)
	}
	clone, err := t.set.Clone()
	if err != nil {
		return fmt.Errorf("cloning template set: %w", err)
	}
	if _, err := clone.AddParseTree("content", tmpl.Tree); err != nil {
		return fmt.Errorf("binding content block: %w", err)
	}
	return clone.ExecuteTemplate(w, "layout", data)
}
