package wiki

import (
	"time"

	"github.com/kepler-wiki/wikireader/title"
)

// RenderContext is the per-request state shared across the template
// expander, Lua bridge, and renderer: the page being rendered, the
// clock expansion's #time and other time-sensitive magic words read
// from, and page-scoped variables set by DISPLAYTITLE/DEFAULTSORT while
// walking the tree.
type RenderContext struct {
	Title title.Title
	Clock time.Time

	// DisplayTitle overrides the page's rendered heading, set by the
	// {{DISPLAYTITLE:...}} magic word.
	DisplayTitle string
	// DefaultSort overrides the page's category sort key, set by the
	// {{DEFAULTSORT:...}} magic word. Categories themselves are out of
	// scope, but the variable is still tracked since templates commonly
	// read it back via {{PAGENAME}}-adjacent magic words.
	DefaultSort string

	// ExistingTitles reports whether a title has a page in the dump, for
	// [[wiki link]] existence coloring (red/blue) and #ifexist.
	ExistingTitles func(title.Title) bool
}

// NewRenderContext builds a RenderContext for rendering t at clock,
// reporting title existence via exists.
func NewRenderContext(t title.Title, clock time.Time, exists func(title.Title) bool) *RenderContext {
	return &RenderContext{Title: t, Clock: clock, ExistingTitles: exists}
}
