package wikitext

import "strings"

// tryWikiLink matches "[[target|label]]" or "[[target]]". Only the
// first top-level "|" (one not inside a nested "{{...}}") splits target
// from label; a link to a page whose label itself contains a piped
// template still parses correctly because the nested template consumes
// its own pipes before this function's loop sees them.
func (p *parser) tryWikiLink() (Node, bool) {
	if !p.hasPrefix("[[") {
		return nil, false
	}
	start := p.pos
	p.pos += 2

	targetStart := p.pos
	for !p.eof() && !p.hasPrefix("|") && !p.hasPrefix("]]") {
		if p.hasPrefix("{{") {
			p.skipBalanced("{{", "}}")
			continue
		}
		p.advanceRune()
	}
	targetText := strings.TrimSpace(p.buf[targetStart:p.pos])

	var label []Node
	if p.hasPrefix("|") {
		p.pos++
		label = p.parseNodes([]string{"]]"})
	}
	if p.hasPrefix("]]") {
		p.pos += 2
	}

	return &WikiLink{
		Base:   newBase(KindWikiLink, p.rangePos(start, p.pos), label),
		Target: targetText,
	}, true
}

// skipBalanced advances p.pos past a balanced open/close pair assumed to
// start at the current position, counting nested occurrences of open.
func (p *parser) skipBalanced(open, close string) {
	depth := 0
	for !p.eof() {
		switch {
		case p.hasPrefix(open):
			depth++
			p.pos += len(open)
		case p.hasPrefix(close):
			depth--
			p.pos += len(close)
			if depth <= 0 {
				return
			}
		default:
			p.advanceRune()
		}
	}
}

// tryExternalLink matches "[url label]" (bracketed) or a bare
// "http://..."/"https://..." URL run (unbracketed autolink).
func (p *parser) tryExternalLink() (Node, bool) {
	if p.hasPrefix("[") && !p.hasPrefix("[[") {
		return p.tryBracketedExternalLink()
	}
	if p.hasPrefix("http://") || p.hasPrefix("https://") {
		return p.tryAutolink()
	}
	return nil, false
}

func (p *parser) tryBracketedExternalLink() (Node, bool) {
	start := p.pos
	p.pos++ // consume "["

	urlStart := p.pos
	for !p.eof() && !p.hasPrefix("]") && p.buf[p.pos] != ' ' && p.buf[p.pos] != '\n' {
		p.advanceRune()
	}
	url := p.buf[urlStart:p.pos]
	if url == "" {
		p.pos = start
		return nil, false
	}

	var label []Node
	if p.hasPrefix(" ") {
		p.pos++
		label = p.parseNodes([]string{"]"})
	}
	if p.hasPrefix("]") {
		p.pos++
	}

	return &ExternalLink{
		Base:   newBase(KindExternalLink, p.rangePos(start, p.pos), label),
		URL:    url,
		Braced: true,
	}, true
}

func (p *parser) tryAutolink() (Node, bool) {
	start := p.pos
	for !p.eof() {
		c := p.buf[p.pos]
		if c == ' ' || c == '\n' || c == ']' || c == '|' || c == '<' {
			break
		}
		p.advanceRune()
	}
	return &ExternalLink{
		Base:   newBase(KindExternalLink, p.rangePos(start, p.pos), nil),
		URL:    p.buf[start:p.pos],
		Braced: false,
	}, true
}
