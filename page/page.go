// Package page extracts individual <page> elements out of a
// decompressed multistream block and recognizes redirects, without
// concerning itself with how the block was fetched or decompressed.
package page

import (
	"bytes"
	"encoding/xml"
	"io"
	"strconv"

	"github.com/pkg/errors"

	"github.com/kepler-wiki/wikireader/title"
)

// Redirect is the target of a page's #REDIRECT, parsed from the dump's
// own <redirect title="..."/> element rather than re-derived from
// wikitext, matching how the dump format already resolves it.
type Redirect struct {
	Target title.Title
}

// Contributor is the user who made a revision, kept mainly for
// attribution display; anonymous contributors have only an IP in
// Username and a zero ID.
type Contributor struct {
	ID       uint64 `xml:"id"`
	Username string `xml:"username"`
}

// Revision is one revision of a page. Dumps used by this reader carry
// exactly one (the latest) revision per page.
type Revision struct {
	ID          uint64      `xml:"id"`
	Timestamp   string      `xml:"timestamp"`
	Contributor Contributor `xml:"contributor"`
	Comment     string      `xml:"comment"`
	Text        string      `xml:"text"`
}

// rawRedirect mirrors the dump's <redirect title="..."/> element.
type rawRedirect struct {
	Title string `xml:"title,attr"`
}

// rawPage is the wire shape of a <page> element, decoded directly via
// encoding/xml struct tags, grounded on dustin/go-wikiparse's Page.
type rawPage struct {
	Title    string       `xml:"title"`
	NS       int          `xml:"ns"`
	ID       uint64       `xml:"id"`
	Redirect *rawRedirect `xml:"redirect"`
	Revision Revision     `xml:"revision"`
}

// Page is one article, template, module, or other namespaced document
// extracted from a block.
type Page struct {
	Title    title.Title
	ID       uint64
	Redirect *Redirect // non-nil if this page is a #REDIRECT stub
	Revision Revision
}

// Text is the page's current wikitext source.
func (p *Page) Text() string { return p.Revision.Text }

// ParseBlock decodes every <page> element out of a decompressed block in
// document order. A multistream block is a bare concatenation of <page>
// elements (no enclosing <mediawiki> root), which encoding/xml handles
// fine since Decoder.Decode scans forward to the next matching start
// element regardless of what, if anything, encloses it.
func ParseBlock(block []byte, nsmap *title.Map) ([]*Page, error) {
	dec := xml.NewDecoder(bytes.NewReader(block))

	var pages []*Page
	for {
		var raw rawPage
		err := dec.Decode(&raw)
		if err == io.EOF {
			break
		}
		if err != nil {
			return pages, errors.Wrap(ErrMalformedXML, err.Error())
		}
		pages = append(pages, fromRaw(&raw, nsmap))
	}
	return pages, nil
}

func fromRaw(raw *rawPage, nsmap *title.Map) *Page {
	ns := nsmap.ByID(raw.NS)
	t := title.Of(ns, stripNamespacePrefix(raw.Title, ns))

	p := &Page{
		Title:    t,
		ID:       raw.ID,
		Revision: raw.Revision,
	}
	if raw.Redirect != nil {
		p.Redirect = &Redirect{Target: title.Normalize(raw.Redirect.Title, nsmap)}
	}
	return p
}

// stripNamespacePrefix removes a namespace's "Name:" prefix from a raw
// dump title, if present; the dump always writes the fully-prefixed form
// even though it also reports the namespace ID separately in <ns>.
func stripNamespacePrefix(raw string, ns *title.Namespace) string {
	if ns == nil || ns.Name == "" {
		return raw
	}
	prefix := ns.Name + ":"
	if len(raw) > len(prefix) && raw[:len(prefix)] == prefix {
		return raw[len(prefix):]
	}
	return raw
}

// SiteInfo is the subset of a dump's <siteinfo> block this reader uses:
// the installation's namespace names, for building a title.Map tailored
// to the dump rather than relying on Default.
type SiteInfo struct {
	SiteName   string
	Namespaces map[int]string
}

type rawSiteInfo struct {
	SiteName   string `xml:"sitename"`
	Namespaces []struct {
		Key  string `xml:"key,attr"`
		Name string `xml:",chardata"`
	} `xml:"namespaces>namespace"`
}

// ParseSiteInfo decodes the <siteinfo> element from the dump's leading
// (pages-less) stream, for building a title.Map via title.Map.WithSiteInfo.
func ParseSiteInfo(r io.Reader) (*SiteInfo, error) {
	dec := xml.NewDecoder(r)
	var raw rawSiteInfo
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "decoding siteinfo")
	}

	si := &SiteInfo{
		SiteName:   raw.SiteName,
		Namespaces: make(map[int]string, len(raw.Namespaces)),
	}
	for _, ns := range raw.Namespaces {
		id, err := strconv.Atoi(ns.Key)
		if err != nil {
			continue
		}
		si.Namespaces[id] = ns.Name
	}
	return si, nil
}
