package special

import (
	"math/rand"
	"net/http"
	"net/url"
)

// RandomTitler is the interface needed by RandomPage: anything that can
// hand back an arbitrary indexed title by position, per
// pipeline.Service.RandomTitle.
type RandomTitler interface {
	RandomTitle(idx int) (title string, ok bool)
}

// RandomPage handles Special:Random requests by redirecting to an
// arbitrary indexed article.
type RandomPage struct {
	titler RandomTitler
}

// NewRandomPage creates a new Random special page handler.
func NewRandomPage(titler RandomTitler) *RandomPage {
	return &RandomPage{titler: titler}
}

// Handle redirects to a random article, or to the home page if the
// index is empty.
func (p *RandomPage) Handle(rw http.ResponseWriter, req *http.Request) {
	title, ok := p.titler.RandomTitle(rand.Int())
	if !ok {
		http.Redirect(rw, req, "/", http.StatusSeeOther)
		return
	}
	http.Redirect(rw, req, "/wiki/"+url.PathEscape(title), http.StatusSeeOther)
}
