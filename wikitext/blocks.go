package wikitext

import "strings"

// tryHeading matches "= Title =" through "====== Title ======" at the
// start of a line. The closing run of equals signs may be shorter than
// the opening one (MediaWiki takes the min of the two as the level); if
// there is no closing run at all, this falls through to plain text.
func (p *parser) tryHeading() (Node, bool) {
	start := p.pos
	rest := p.buf[p.pos:]
	level := 0
	for level < 6 && level < len(rest) && rest[level] == '=' {
		level++
	}
	if level == 0 {
		return nil, false
	}

	lineEnd := strings.IndexByte(rest, '\n')
	line := rest
	if lineEnd >= 0 {
		line = rest[:lineEnd]
	}
	trimmed := strings.TrimRight(line, " \t")

	closeLevel := 0
	for closeLevel < len(trimmed) && closeLevel < 6 && trimmed[len(trimmed)-1-closeLevel] == '=' {
		closeLevel++
	}
	if closeLevel == 0 || len(trimmed) < level+closeLevel {
		return nil, false
	}
	useLevel := level
	if closeLevel < useLevel {
		useLevel = closeLevel
	}

	// Spaces and tabs around the title text are not part of the heading.
	inner := trimmed[useLevel : len(trimmed)-useLevel]
	innerText := strings.TrimLeft(inner, " \t")
	innerStart := start + useLevel + len(inner) - len(innerText)
	innerText = strings.TrimRight(innerText, " \t")
	innerEnd := innerStart + len(innerText)

	end := start + len(line)
	if lineEnd >= 0 {
		end++ // include the newline in the node's range
	}

	sub := &parser{buf: innerText, mapping: shiftedMapping(p, innerStart, len(innerText)), origLen: p.origLen, lineStarts: p.lineStarts}
	children := sub.parseNodes(nil)
	_ = innerEnd

	h := &Heading{
		Base:  newBase(KindHeading, p.rangePos(start, end), children),
		Level: useLevel,
	}
	p.pos = start + len(line)
	if lineEnd >= 0 {
		p.pos++
	}
	return h, true
}

// shiftedMapping builds a mapping array for a substring of p.buf
// starting at local offset localStart and length n, reusing p's mapping
// when available and falling back to identity+offset translation
// otherwise (used for headings/list-items where we re-parse a slice of
// the already-filtered buffer as its own mini-document).
func shiftedMapping(p *parser, localStart, n int) []int {
	out := make([]int, n)
	for i := 0; i < n; i++ {
		out[i] = p.origOffset(localStart + i)
	}
	return out
}

// tryHorizontalRule matches a line consisting of "----" or more dashes.
func (p *parser) tryHorizontalRule() (Node, bool) {
	rest := p.buf[p.pos:]
	if !strings.HasPrefix(rest, "----") {
		return nil, false
	}
	lineEnd := strings.IndexByte(rest, '\n')
	line := rest
	if lineEnd >= 0 {
		line = rest[:lineEnd]
	}
	for _, c := range line {
		if c != '-' {
			return nil, false
		}
	}
	start := p.pos
	end := start + len(line)
	if lineEnd >= 0 {
		end++
	}
	n := &Base{K: KindHorizontalRule, P: p.rangePos(start, end)}
	p.pos = end
	return n, true
}

// tryListItem matches a line beginning with a run of *, #, ;, or :
// characters, recording the run verbatim as Prefix; nesting across
// adjacent items is reconstructed by the renderer from Prefix, not here.
func (p *parser) tryListItem() (Node, bool) {
	rest := p.buf[p.pos:]
	end := 0
	for end < len(rest) && strings.ContainsRune("*#;:", rune(rest[end])) {
		end++
	}
	if end == 0 {
		return nil, false
	}
	prefix := rest[:end]

	lineEnd := strings.IndexByte(rest, '\n')
	lineLen := len(rest)
	if lineEnd >= 0 {
		lineLen = lineEnd
	}
	contentStart := p.pos + end
	contentEnd := p.pos + lineLen

	innerText := p.buf[contentStart:contentEnd]
	sub := &parser{buf: innerText, mapping: shiftedMapping(p, contentStart, len(innerText)), origLen: p.origLen, lineStarts: p.lineStarts}
	children := sub.parseNodes(nil)

	nodeEnd := contentEnd
	if lineEnd >= 0 {
		nodeEnd++
	}
	item := &ListItem{
		Base:   newBase(KindListItem, p.rangePos(p.pos, nodeEnd), children),
		Prefix: prefix,
	}
	p.pos = nodeEnd
	return item, true
}
