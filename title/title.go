package title

import (
	"html"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// titleCaser upper-cases exactly one leading code point; reused across
// calls since cases.Caser holds no per-string state.
var titleCaser = cases.Upper(language.Und)

// Title is a normalized (namespace, page-name) pair. Two Titles compare
// equal with == only if built through Normalize or Of, since both funnel
// through the same canonicalization.
type Title struct {
	NS   *Namespace
	Text string // the page name, without the namespace prefix
}

// Key returns the title's canonical "Namespace:Text" form (just "Text"
// for the main namespace), suitable for use as a cache/index key.
func (t Title) Key() string {
	if t.NS == nil || t.NS.ID == Main {
		return t.Text
	}
	return t.NS.Name + ":" + t.Text
}

func (t Title) String() string { return t.Key() }

// IsRedirectable reports whether t names a real page (as opposed to the
// empty title produced by normalizing an empty/whitespace string).
func (t Title) IsRedirectable() bool { return t.Text != "" }

// bidiControl reports whether c is a bidirectional text control character.
// These occasionally slip into titles that were copy-pasted from RTL text.
func bidiControl(c rune) bool {
	return (c >= '‎' && c <= '‏') || (c >= '‪' && c <= '‮')
}

// spacelike reports whether c should be treated as inter-word whitespace
// in a title: real whitespace, or the underscore MediaWiki uses as a
// URL-safe space substitute.
func spacelike(c rune) bool {
	return c == '_' || unicode.IsSpace(c)
}

func trimmable(c rune) bool {
	return bidiControl(c) || spacelike(c)
}

// collapseSpace decodes HTML entities, strips bidi control characters,
// converts underscores to spaces, and collapses runs of whitespace to a
// single space, trimming the result. This is idempotent: collapseSpace
// applied to its own output returns the same string.
func collapseSpace(raw string) string {
	decoded := html.UnescapeString(raw)

	var b strings.Builder
	b.Grow(len(decoded))
	pendingSpace := false
	started := false

	for _, r := range decoded {
		switch {
		case bidiControl(r):
			continue
		case spacelike(r):
			if started {
				pendingSpace = true
			}
		default:
			if pendingSpace {
				b.WriteByte(' ')
				pendingSpace = false
			}
			b.WriteRune(r)
			started = true
		}
	}
	return b.String()
}

// upperFirst uppercases the first code point of s, leaving the rest
// untouched. Used for first-letter namespaces, MediaWiki's default title
// casing rule.
func upperFirst(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	if !unicode.IsLower(r) {
		return s
	}
	return titleCaser.String(string(r)) + s[size:]
}

// Normalize canonicalizes a raw title string against nsmap. It trims and
// collapses whitespace/underscores, strips a leading colon (which in
// MediaWiki forces interpretation as an article title rather than a
// namespace-prefixed special link), splits on the first colon to detect a
// namespace prefix, and upper-cases the first code point of the remainder
// according to that namespace's case rule. Magic suffixes like "/doc" are
// untouched since '/' is not collapsed.
//
// Normalize is idempotent: Normalize(Normalize(t).Key(), nsmap) ==
// Normalize(t, nsmap).
func Normalize(raw string, nsmap *Map) Title {
	if nsmap == nil {
		nsmap = Default
	}

	text := collapseSpace(raw)
	text = strings.TrimPrefix(text, ":")
	text = collapseSpace(text)

	ns := nsmap.Main()
	if idx := strings.IndexByte(text, ':'); idx > 0 {
		candidate := text[:idx]
		if resolved, ok := nsmap.ByName(candidate); ok {
			ns = resolved
			text = collapseSpace(text[idx+1:])
		}
	}

	if ns.Case == FirstLetter {
		text = upperFirst(text)
	}

	return Title{NS: ns, Text: text}
}

// Of builds a Title directly from a known namespace and an already
// namespace-stripped page name, applying the same case rule Normalize
// would. Used when a caller already knows the namespace (e.g. resolving
// a bare template name into the Template namespace).
func Of(ns *Namespace, text string) Title {
	text = collapseSpace(text)
	if ns != nil && ns.Case == FirstLetter {
		text = upperFirst(text)
	}
	return Title{NS: ns, Text: text}
}
