package server

import (
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/kepler-wiki/wikireader/internal/pipeline"
	"github.com/kepler-wiki/wikireader/internal/renderqueue"
	"github.com/kepler-wiki/wikireader/special"
	"github.com/kepler-wiki/wikireader/templater"
	"github.com/kepler-wiki/wikireader/wiki"
	"github.com/kepler-wiki/wikireader/wikitext"
)

// App holds everything the HTTP front end needs: the assembled
// rendering pipeline, the page-chrome templates, the special-page
// registry, the render queue, and the loaded config. It is a thin
// shell per spec §1 — none of the hard core lives here, only request
// parsing and response formatting around pipeline.Service.
type App struct {
	Service      *pipeline.Service
	Templater    *templater.Templater
	SpecialPages *special.Registry
	Config       *wiki.Config
	Queue        *renderqueue.Queue
}

// responseWriter wraps http.ResponseWriter to capture the status code
// and size for access logging.
type responseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

// SlogLoggingMiddleware logs every HTTP request with slog, grounded on
// the teacher's own access-logging middleware.
func SlogLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"size", wrapped.size,
			"duration", time.Since(start),
			"remote", r.RemoteAddr,
		)
	})
}

// HomeHandler serves "/": an empty search form, doubling as the site's
// landing page since this reader has no fixed "main page" concept
// without knowing the dump's configured main title.
func (a *App) HomeHandler(w http.ResponseWriter, r *http.Request) {
	a.renderSearch(w, "", defaultSearchLimit)
}

// ArticleHandler serves GET /wiki/{title}: the core "hard core" path,
// spec §8 scenario 1. Rendering goes through the render queue so that
// concurrent requests for the same title coalesce onto one worker and
// so the client's disconnect can stop this handler from waiting
// without aborting or poisoning the in-flight render itself (spec §5:
// "completed work is still published").
func (a *App) ArticleHandler(w http.ResponseWriter, r *http.Request) {
	rawTitle := mux.Vars(r)["title"]
	if strings.HasPrefix(rawTitle, "Special:") {
		a.SpecialPageHandler(w, r)
		return
	}

	waitCh := make(chan renderqueue.Result, 1)
	job := renderqueue.Job{
		Title:       rawTitle,
		Source:      rawTitle,
		Tier:        renderqueue.TierInteractive,
		SubmittedAt: time.Now(),
	}
	if err := a.Queue.Submit(r.Context(), job, waitCh); err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var result renderqueue.Result
	select {
	case result = <-waitCh:
	case <-r.Context().Done():
		return
	}
	if result.Err != nil {
		a.handleArticleError(w, rawTitle, result.Err)
		return
	}

	t := titleKey(rawTitle, a.Service)
	etag := `W/"` + t + `"`
	if checkNotModified(w, r, etag, time.Time{}) {
		return
	}
	setCacheConditional(w, etag, time.Time{})

	a.renderPage(w, "article", map[string]any{
		"Title": t,
		"Query": "",
		"Body":  template.HTML(result.HTML),
	})
}

// titleKey normalizes rawTitle the same way pipeline.Service does, for
// display and ETag purposes after a render queue round trip that only
// hands back HTML, not the resolved title.Title.
func titleKey(rawTitle string, svc *pipeline.Service) string {
	return svc.NormalizeTitle(rawTitle).Key()
}

func (a *App) handleArticleError(w http.ResponseWriter, rawTitle string, err error) {
	if errors.Is(err, wiki.ErrPageNotFound) {
		w.WriteHeader(http.StatusNotFound)
		a.renderPage(w, "notfound", map[string]any{"Title": rawTitle})
		return
	}
	slog.Error("render failed", "title", rawTitle, "error", err)
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// defaultSearchLimit and maxSearchLimit bound GET /search?q=...&limit=N
// per spec §6: a caller-supplied limit is honored up to maxSearchLimit,
// and anything missing, non-numeric, or non-positive falls back to the
// default.
const (
	defaultSearchLimit = 50
	maxSearchLimit     = 500
)

// SearchHandler serves GET /search?q=...&limit=N: ranked title
// matches, spec §4.1 and §6.
func (a *App) SearchHandler(w http.ResponseWriter, r *http.Request) {
	a.renderSearch(w, r.URL.Query().Get("q"), parseSearchLimit(r.URL.Query().Get("limit")))
}

func parseSearchLimit(raw string) int {
	if raw == "" {
		return defaultSearchLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultSearchLimit
	}
	if n > maxSearchLimit {
		return maxSearchLimit
	}
	return n
}

func (a *App) renderSearch(w http.ResponseWriter, q string, limit int) {
	var results []pipeline.SearchResult
	if q != "" {
		results = a.Service.Search(q, limit)
	}
	a.renderPage(w, "search", map[string]any{
		"Query":   q,
		"Results": results,
	})
}

// SourceHandler serves GET /source/{title}?mode={raw|tree}&include per
// spec §6: raw returns a byte-offset/line/text listing of the page's
// exact wikitext body; tree parses and pretty-prints the TokenTree,
// with the include mode selected by the presence of the "include"
// query flag.
func (a *App) SourceHandler(w http.ResponseWriter, r *http.Request) {
	rawTitle := mux.Vars(r)["title"]
	mode := r.URL.Query().Get("mode")
	_, include := r.URL.Query()["include"]

	parseMode := wikitext.NoInclude
	if include {
		parseMode = wikitext.Include
	}

	if mode == "tree" {
		tree, err := a.Service.Tree(r.Context(), rawTitle, parseMode)
		if err != nil {
			a.handleArticleError(w, rawTitle, err)
			return
		}
		a.renderPage(w, "tree", map[string]any{
			"Title": rawTitle,
			"Tree":  wikitext.Print(tree),
		})
		return
	}

	src, err := a.Service.Source(r.Context(), rawTitle)
	if err != nil {
		a.handleArticleError(w, rawTitle, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	writeByteOffsetColumns(w, src.Text)
}

// writeByteOffsetColumns writes src as a three-column listing: byte
// offset, line number, text, per spec §6's /source?mode=raw contract.
func writeByteOffsetColumns(w http.ResponseWriter, src string) {
	offset := 0
	line := 1
	for _, text := range strings.Split(src, "\n") {
		w.Write([]byte(strconv.Itoa(offset)))
		w.Write([]byte{'\t'})
		w.Write([]byte(strconv.Itoa(line)))
		w.Write([]byte{'\t'})
		w.Write([]byte(text))
		w.Write([]byte{'\n'})
		offset += len(text) + 1
		line++
	}
}

// EvalHandler serves GET /eval (the form) and POST /eval (render
// arbitrary wikitext), per spec §6.
func (a *App) EvalHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		a.renderPage(w, "eval", map[string]any{"Input": ""})
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	input := r.FormValue("wikitext")

	html, err := a.Service.Eval(r.Context(), input)
	if err != nil {
		slog.Error("eval render failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	a.renderPage(w, "eval", map[string]any{
		"Input":    input,
		"Rendered": template.HTML(html),
	})
}

// SpecialPageHandler dispatches Special:{page} requests to the
// registered special-page handler, 404ing on an unknown page name.
func (a *App) SpecialPageHandler(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(mux.Vars(r)["title"], "Special:")
	handler, ok := a.SpecialPages.Get(name)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		a.renderPage(w, "notfound", map[string]any{"Title": "Special:" + name})
		return
	}
	handler.Handle(w, r)
}

func (a *App) renderPage(w http.ResponseWriter, contentName string, data map[string]any) {
	if _, ok := data["Query"]; !ok {
		data["Query"] = ""
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := a.Templater.Render(w, contentName, data); err != nil {
		slog.Error("template render failed", "template", contentName, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
