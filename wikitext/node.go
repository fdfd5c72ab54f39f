// Package wikitext implements a total, parsing-expression-style grammar
// over MediaWiki wikitext, producing a fixed-kind TokenTree rather than
// an open-class AST, so the expander (template) and renderer packages
// can exhaustively switch over node kinds.
package wikitext

// Kind tags every Node with one of a fixed, enumerable set of node
// kinds. Keep this enum exhaustive: adding a new wikitext construct
// means adding a Kind here and a case everywhere that switches on it.
type Kind int

const (
	KindRoot Kind = iota
	KindText
	KindBold
	KindItalic
	KindBoldItalic
	KindHeading
	KindListItem
	KindTable
	KindTableRow
	KindTableCell
	KindWikiLink
	KindExternalLink
	KindTemplateCall    // {{name|args}}, {{#fn:args}}, and bare magic words
	KindParam           // {{{name|default}}}
	KindExtensionTag    // <ref>, <nowiki>, <pre>, ...
	KindHTMLTag         // generic passthrough HTML like <span>, <div>
	KindComment         // <!-- ... -->
	KindHorizontalRule  // ----
	KindBreak           // <br/>
	KindErrorMarker     // produced during expansion: a budget/cycle/missing-template error
)

func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "Root"
	case KindText:
		return "Text"
	case KindBold:
		return "Bold"
	case KindItalic:
		return "Italic"
	case KindBoldItalic:
		return "BoldItalic"
	case KindHeading:
		return "Heading"
	case KindListItem:
		return "ListItem"
	case KindTable:
		return "Table"
	case KindTableRow:
		return "TableRow"
	case KindTableCell:
		return "TableCell"
	case KindWikiLink:
		return "WikiLink"
	case KindExternalLink:
		return "ExternalLink"
	case KindTemplateCall:
		return "TemplateCall"
	case KindParam:
		return "Param"
	case KindExtensionTag:
		return "ExtensionTag"
	case KindHTMLTag:
		return "HTMLTag"
	case KindComment:
		return "Comment"
	case KindHorizontalRule:
		return "HorizontalRule"
	case KindBreak:
		return "Break"
	case KindErrorMarker:
		return "ErrorMarker"
	default:
		return "Unknown"
	}
}

// Pos is a node's source provenance: its byte range in the original
// page text (not the include-filtered buffer) and the 1-based line its
// range starts on.
type Pos struct {
	Start, End int
	Line       int
}

// Node is a tagged-variant TokenTree element. Every concrete node type
// in this package embeds Base and implements Kind/At/Children, making
// Node a closed set switchable exhaustively by callers; it is
// deliberately not an "open class" — new node types are added here, not
// by third parties.
type Node interface {
	Kind() Kind
	At() Pos
	Children() []Node
}

// Base carries the fields common to every node kind.
type Base struct {
	K   Kind
	P   Pos
	Kid []Node
}

func (b *Base) Kind() Kind      { return b.K }
func (b *Base) At() Pos         { return b.P }
func (b *Base) Children() []Node { return b.Kid }

// Text is a run of literal characters with no further structure.
type Text struct {
	Base
	Value string
}

// Heading is "= … =" through six levels.
type Heading struct {
	Base
	Level int // 1..6
}

// ListItem is one line of a list, e.g. prefix "**" or "#:"; nesting is
// derived by the renderer from adjacent items' prefixes rather than
// computed here, since a flat sequence of prefixed items is enough to
// reconstruct nesting and keeps the parser simple and total.
type ListItem struct {
	Base
	Prefix string
}

// TableCell is one "|" or "!" delimited cell; Header is true for "!"
// cells. Attrs holds the raw (unexpanded) attribute text preceding the
// first unescaped "|" inside the cell, if any.
type TableCell struct {
	Base
	Header bool
	Attrs  string
}

// TableRow is one "|-" delimited row; Attrs is the raw row-attribute
// text on the "|-" line.
type TableRow struct {
	Base
	Attrs string
}

// Table is one "{| … |}" construct; Attrs is the raw attribute text on
// the opening line.
type Table struct {
	Base
	Attrs string
}

// WikiLink is "[[target|label]]"; its children are the parsed label,
// empty when no pipe was present (label defaults to Target at render time).
type WikiLink struct {
	Base
	Target string
}

// ExternalLink is "[url label]" or a bare autolinked URL.
type ExternalLink struct {
	Base
	URL    string
	Braced bool // true if written with enclosing [ ]
}

// TemplateArg is one "|" separated argument to a template call or
// parser function. Name is empty for positional arguments.
type TemplateArg struct {
	Name  string // empty if positional; the raw name text if named
	Value []Node
}

// TemplateCall is "{{...}}": covers ordinary templates, parser-function
// calls ({{#if:...}}), and bare magic words ({{PAGENAME}}), which are
// syntactically identical at the parser level — the expander (package
// template) is what decides which of the three a given Name denotes.
// Name holds the raw, unexpanded node sequence before the first "|" (or
// the entire content if there is no "|").
type TemplateCall struct {
	Base
	Name []Node
	Args []TemplateArg
}

// Param is "{{{name|default}}}"; Default is nil when no "|" was given.
type Param struct {
	Base
	Name    []Node
	Default []Node
}

// ExtensionTag is a "<tag attrs>...</tag>" span matched greedily to the
// first same-named close tag. SelfClosed is true for "<tag attrs/>".
type ExtensionTag struct {
	Base
	Name       string
	Attrs      string
	Raw        string // the tag's inner source, verbatim
	SelfClosed bool
}

// ErrorMarker is a visible, inline error produced during template
// expansion (budget exceeded, a cycle, a missing template, a Lua
// runtime error) — never by the parser, which is total and never fails.
// The renderer emits it as `<strong class="error">Message</strong>`.
type ErrorMarker struct {
	Base
	Message string
}

// NewErrorMarker builds an ErrorMarker node at pos with no children.
func NewErrorMarker(pos Pos, message string) *ErrorMarker {
	return &ErrorMarker{Base: newBase(KindErrorMarker, pos, nil), Message: message}
}

// HTMLTag is generic passthrough HTML that isn't one of the recognized
// extension tags — kept as a single opening or closing tag node; content
// between a matching pair is parsed normally as sibling nodes, not
// nested under the tag, since HTML nesting in wikitext is frequently
// unbalanced and this reader does not attempt to validate it.
type HTMLTag struct {
	Base
	Name    string
	Attrs   string
	Closing bool
}

// Comment is "<!-- ... -->"; Value is the comment's inner text.
type Comment struct {
	Base
	Value string
}

func newBase(k Kind, p Pos, children []Node) Base {
	return Base{K: k, P: p, Kid: children}
}
