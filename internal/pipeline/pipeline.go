// Package pipeline wires the hard core (C1-C8) into the single object
// the HTTP front end actually calls: given a title, produce rendered
// HTML, raw wikitext, a parsed tree, or a ranked search list, with every
// cache and budget from SPEC_FULL already threaded through.
package pipeline

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/kepler-wiki/wikireader/cache"
	"github.com/kepler-wiki/wikireader/dump"
	"github.com/kepler-wiki/wikireader/page"
	"github.com/kepler-wiki/wikireader/render"
	"github.com/kepler-wiki/wikireader/template"
	"github.com/kepler-wiki/wikireader/title"
	"github.com/kepler-wiki/wikireader/wiki"
	"github.com/kepler-wiki/wikireader/wikitext"
)

// pageCacheKey is the parsed-page cache's (canonical title, include-mode)
// key from the caching design (C8).
type pageCacheKey struct {
	title string
	mode  wikitext.Mode
}

// Service is the assembled rendering pipeline: the dump store (C1/C2),
// the namespace map (C3), the parsed-page cache (C8), the template
// expander's Invoker (C6), and the HTML renderer (C7). It is the single
// object internal/server's handlers call into.
type Service struct {
	Store    *dump.Store
	NSMap    *title.Map
	Invoke   template.Invoker
	Renderer *render.HTMLRenderer
	Limits   template.Limits

	pages *cache.Cache[pageCacheKey, *wikitext.Base]
}

// New assembles a Service. pageCacheBytes bounds the parsed-page cache
// (C8); limits bounds template expansion depth/budget/include-size
// per render (C5).
func New(store *dump.Store, nsmap *title.Map, invoke template.Invoker, pageCacheBytes int64, limits template.Limits) *Service {
	return &Service{
		Store:    store,
		NSMap:    nsmap,
		Invoke:   invoke,
		Renderer: render.NewHTMLRenderer(nsmap),
		Limits:   limits,
		pages: cache.New[pageCacheKey](pageCacheBytes, func(t *wikitext.Base) int64 {
			return int64(approxNodeCount(t))
		}),
	}
}

// approxNodeCount is a cheap stand-in for a parsed tree's byte size,
// since wikitext.Base carries no byte-length accessor of its own; it
// counts nodes instead, which tracks memory pressure well enough for
// LRU eviction purposes.
func approxNodeCount(n wikitext.Node) int64 {
	count := int64(1)
	for _, c := range n.Children() {
		count += approxNodeCount(c)
	}
	return count
}

// FetchWikitext implements template.Fetcher: resolves t against the
// index, fetches its block, and extracts the page's current wikitext
// source, following a single-hop redirect per spec §4.2 and §8
// scenario 6.
func (s *Service) FetchWikitext(ctx context.Context, t title.Title) (string, bool, error) {
	p, err := s.fetchPage(ctx, t)
	if err != nil {
		if errors.Is(err, dump.ErrTitleNotFound) || errors.Is(err, page.ErrPageNotInBlock) {
			return "", false, nil
		}
		return "", false, err
	}
	if p.Redirect != nil {
		target, err := s.fetchPage(ctx, p.Redirect.Target)
		if err != nil {
			if errors.Is(err, dump.ErrTitleNotFound) || errors.Is(err, page.ErrPageNotInBlock) {
				return "", false, nil
			}
			return "", false, err
		}
		return target.Text(), true, nil
	}
	return p.Text(), true, nil
}

// Exists implements template.Fetcher: reports whether t resolves to an
// index entry, for [[wiki link]] existence coloring and #ifexist.
func (s *Service) Exists(ctx context.Context, t title.Title) bool {
	_, ok := s.Store.Index.LookupTitle(t)
	return ok
}

// NormalizeTitle applies the same namespace/capitalization rules
// RenderArticle resolves raw titles with, for callers (the render
// queue's HTTP-facing handler) that need the canonical display title
// without redoing a fetch.
func (s *Service) NormalizeTitle(raw string) title.Title {
	return title.Normalize(raw, s.NSMap)
}

// fetchPage resolves t to its block and extracts the matching <page>
// element (C1 + C2).
func (s *Service) fetchPage(ctx context.Context, t title.Title) (*page.Page, error) {
	entry, ok := s.Store.Index.LookupTitle(t)
	if !ok {
		return nil, dump.ErrTitleNotFound
	}
	block, err := s.Store.FetchEntry(ctx, entry)
	if err != nil {
		return nil, err
	}
	pages, err := page.ParseBlock(block, s.NSMap)
	if err != nil {
		return nil, errors.Wrap(err, "extracting page from block")
	}
	for _, p := range pages {
		if p.Title.Key() == t.Key() {
			return p, nil
		}
	}
	return nil, page.ErrPageNotInBlock
}

// GetOrParse implements template.PageCache (C8's parsed-page cache): it
// parses src into a TokenTree in mode, or returns the cached tree from a
// prior parse of the same (title, mode) pair.
func (s *Service) GetOrParse(ctx context.Context, t title.Title, mode wikitext.Mode, src func() (string, error)) (*wikitext.Base, error) {
	key := pageCacheKey{title: t.Key(), mode: mode}
	return s.pages.GetOrLoad(ctx, key, func(ctx context.Context) (*wikitext.Base, error) {
		source, err := src()
		if err != nil {
			return nil, err
		}
		return wikitext.Parse(source, mode), nil
	})
}

// RenderResult is one fully rendered article: the HTML body plus the
// (possibly redirected-to) title it was actually rendered from.
type RenderResult struct {
	Title title.Title
	HTML  string
}

// RenderArticle resolves raw, fetches and expands its wikitext in
// noinclude mode (the page is being viewed directly, not transcluded),
// and lowers the result to HTML. Returns wiki.ErrPageNotFound if raw has
// no index entry.
func (s *Service) RenderArticle(ctx context.Context, raw string) (*RenderResult, error) {
	t := title.Normalize(raw, s.NSMap)
	src, found, err := s.FetchWikitext(ctx, t)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, wiki.ErrPageNotFound
	}

	rc := wiki.NewRenderContext(t, time.Now(), func(check title.Title) bool { return s.Exists(ctx, check) })
	expander := template.NewExpander(rc, s, s, s.Invoke, s.NSMap, s.Limits)
	nodes := expander.ExpandPage(ctx, src)

	html, err := s.Renderer.Render(rc, nodes)
	if err != nil {
		return nil, errors.Wrap(err, "rendering")
	}
	return &RenderResult{Title: t, HTML: html}, nil
}

// SourceResult is the raw-source view backing GET /source/{title}.
type SourceResult struct {
	Title title.Title
	Text  string
}

// Source resolves raw and returns the exact wikitext body of the
// matching page, without following redirects: a redirect stub's own
// body (effectively empty) is what /source shows, since the endpoint's
// round-trip contract (spec §8) is about the page actually stored at
// that title, not its render target.
func (s *Service) Source(ctx context.Context, raw string) (*SourceResult, error) {
	t := title.Normalize(raw, s.NSMap)
	p, err := s.fetchPage(ctx, t)
	if err != nil {
		if errors.Is(err, dump.ErrTitleNotFound) || errors.Is(err, page.ErrPageNotInBlock) {
			return nil, wiki.ErrPageNotFound
		}
		return nil, err
	}
	return &SourceResult{Title: t, Text: p.Text()}, nil
}

// Tree parses raw's current source in the requested mode and returns
// the TokenTree, for GET /source/{title}?mode=tree.
func (s *Service) Tree(ctx context.Context, raw string, mode wikitext.Mode) (*wikitext.Base, error) {
	src, err := s.Source(ctx, raw)
	if err != nil {
		return nil, err
	}
	return wikitext.Parse(src.Text, mode), nil
}

// Eval parses and expands an arbitrary wikitext fragment as if it were
// the body of a page titled under title, backing GET/POST /eval.
func (s *Service) Eval(ctx context.Context, src string) (string, error) {
	t := title.Of(s.NSMap.Main(), "Eval")
	rc := wiki.NewRenderContext(t, time.Now(), func(check title.Title) bool { return s.Exists(ctx, check) })
	expander := template.NewExpander(rc, s, s, s.Invoke, s.NSMap, s.Limits)
	nodes := expander.ExpandPage(ctx, src)
	return s.Renderer.Render(rc, nodes)
}

// SearchResult is one ranked title match backing GET /search.
type SearchResult struct {
	Title  string `json:"title"`
	PageID int64  `json:"page_id"`
}

// Search ranks index titles against q per spec §4.1.
func (s *Service) Search(q string, limit int) []SearchResult {
	entries := s.Store.Index.Search(q, limit)
	out := make([]SearchResult, len(entries))
	for i, e := range entries {
		out[i] = SearchResult{Title: e.Title.Key(), PageID: e.PageID}
	}
	return out
}

// RandomTitle returns the indexed title's key at position idx mod the
// index size, for Special:Random. The caller supplies the randomness
// (idx); this package never needs math/rand itself.
func (s *Service) RandomTitle(idx int) (string, bool) {
	n := s.Store.Index.Len()
	if n == 0 {
		return "", false
	}
	return s.Store.Index.TitleAt(((idx % n) + n) % n), true
}
