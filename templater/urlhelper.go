package templater

import (
	"net/url"
	"strings"
)

// articleURL returns the URL for viewing a rendered article. "+" and
// "&", which url.PathEscape leaves as is, are percent-encoded too.
// Example: articleURL("Barack Obama") -> "/wiki/Barack%20Obama"
func articleURL(title string) string {
	return "/wiki/" + strings.NewReplacer("+", "%2B", "&", "%26").Replace(url.PathEscape(title))
}

// searchURL returns the URL for a title search.
func searchURL(q string) string {
	return "/search?q=" + url.QueryEscape(q)
}

// sourceURL returns the URL for an article's raw-wikitext source view.
func sourceURL(title string) string {
	return "/source/" + url.PathEscape(title)
}

// treeURL returns the URL for an article's pretty-printed token tree,
// in the given include mode ("include" or "" for noinclude).
func treeURL(title string, include bool) string {
	u := "/source/" + url.PathEscape(title) + "?mode=tree"
	if include {
		u += "&include"
	}
	return u
}
