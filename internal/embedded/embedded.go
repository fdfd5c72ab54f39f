// Package embedded holds the page-chrome HTML templates compiled into
// the wikireader binary. Unlike the teacher, which kept its templates
// on disk and loaded them by glob, this reader has no installation
// directory to ship a templates/ tree alongside: the binary is expected
// to run next to nothing but index.txt and the archive, so the chrome
// (article wrapper, search results, source/tree views, the eval form)
// is embedded at build time instead.
package embedded

import (
	"embed"
	"io/fs"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Templates returns the embedded page-chrome template tree, rooted so
// that its entries are "templates/*.html" — the same shape
// html/template.ParseFS expects and the same shape render.HashFS walks
// for the ETag ambient-stack piece described in render/templatehash.go.
func Templates() fs.FS { return templatesFS }
