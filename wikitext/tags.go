package wikitext

import "strings"

// extensionTagNames is the set of tags whose content is captured raw
// (not re-parsed as wikitext) and handed to a dedicated renderer
// handler, per spec §6's extension tag set.
var extensionTagNames = map[string]bool{
	"indicator":      true,
	"math":           true,
	"nowiki":         true,
	"poem":           true,
	"pre":            true,
	"ref":            true,
	"references":     true,
	"section":        true,
	"syntaxhighlight": true,
	"templatedata":   true,
	"templatestyles": true,
	"timeline":       true,
}

// tryComment matches "<!-- ... -->", tolerating an unterminated comment
// by consuming through EOF.
func (p *parser) tryComment() (Node, bool) {
	if !p.hasPrefix("<!--") {
		return nil, false
	}
	start := p.pos
	p.pos += 4
	closeIdx := strings.Index(p.buf[p.pos:], "-->")
	var value string
	if closeIdx >= 0 {
		value = p.buf[p.pos : p.pos+closeIdx]
		p.pos += closeIdx + 3
	} else {
		value = p.buf[p.pos:]
		p.pos = len(p.buf)
	}
	return &Comment{
		Base:  newBase(KindComment, p.rangePos(start, p.pos), nil),
		Value: value,
	}, true
}

// tryTagOrExtension matches "<name attrs>...</name>" or "<name attrs/>"
// at the current position. Known extension tag names produce an
// ExtensionTag node holding their raw (unparsed) inner source; anything
// else is treated as generic passthrough HTML and produces a lone
// opening or closing HTMLTag node (content between a pair is parsed as
// ordinary sibling nodes, not nested, since wikitext's HTML is often not
// well-nested).
func (p *parser) tryTagOrExtension() (Node, bool) {
	if !p.hasPrefix("<") || p.hasPrefix("<!--") {
		return nil, false
	}
	start := p.pos
	name, attrs, selfClosed, closing, tagEnd, ok := parseTagHead(p.buf, p.pos)
	if !ok {
		return nil, false
	}
	lname := strings.ToLower(name)

	if closing {
		p.pos = tagEnd
		return &HTMLTag{
			Base:    newBase(KindHTMLTag, p.rangePos(start, p.pos), nil),
			Name:    lname,
			Closing: true,
		}, true
	}

	if selfClosed && extensionTagNames[lname] {
		p.pos = tagEnd
		return &ExtensionTag{
			Base:       newBase(KindExtensionTag, p.rangePos(start, p.pos), nil),
			Name:       lname,
			Attrs:      attrs,
			SelfClosed: true,
		}, true
	}

	if !extensionTagNames[lname] {
		p.pos = tagEnd
		return &HTMLTag{
			Base:  newBase(KindHTMLTag, p.rangePos(start, p.pos), nil),
			Name:  lname,
			Attrs: attrs,
		}, true
	}

	// Known extension tag: find the first same-named close tag, greedily,
	// and capture everything between as raw (unparsed) source.
	closeTag := "</" + lname + ">"
	bodyStart := tagEnd
	idx := strings.Index(strings.ToLower(p.buf[bodyStart:]), closeTag)
	var raw string
	var end int
	if idx < 0 {
		raw = p.buf[bodyStart:]
		end = len(p.buf)
	} else {
		raw = p.buf[bodyStart : bodyStart+idx]
		end = bodyStart + idx + len(closeTag)
	}
	p.pos = end
	return &ExtensionTag{
		Base:  newBase(KindExtensionTag, p.rangePos(start, p.pos), nil),
		Name:  lname,
		Attrs: attrs,
		Raw:   raw,
	}, true
}

// parseTagHead parses a "<...>" tag head starting at pos: its name,
// attribute text, and whether it is self-closing ("/>") or a closing tag
// ("</name>"). It returns ok=false if pos doesn't begin a syntactically
// plausible tag (e.g. "<3" or a bare "<" at end of input).
func parseTagHead(buf string, pos int) (name, attrs string, selfClosed, closing bool, end int, ok bool) {
	i := pos + 1
	if i < len(buf) && buf[i] == '/' {
		closing = true
		i++
	}
	nameStart := i
	for i < len(buf) && isTagNameByte(buf[i]) {
		i++
	}
	if i == nameStart {
		return "", "", false, false, 0, false
	}
	name = buf[nameStart:i]

	gt := strings.IndexByte(buf[i:], '>')
	if gt < 0 {
		return "", "", false, false, 0, false
	}
	rest := buf[i : i+gt]
	if strings.HasSuffix(strings.TrimSpace(rest), "/") {
		selfClosed = true
		rest = strings.TrimSuffix(strings.TrimSpace(rest), "/")
	}
	attrs = strings.TrimSpace(rest)
	end = i + gt + 1
	return name, attrs, selfClosed, closing, end, true
}

func isTagNameByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '-'
}
