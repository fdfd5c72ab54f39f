package wikitext

import (
	"sort"
	"strings"
)

// Parse produces a TokenTree for src in the given mode. Parse never
// returns an error: any construct it cannot make sense of is emitted as
// literal Text, per the "total parser" contract.
func Parse(src string, mode Mode) *Base {
	filtered, mapping := filteredSource(src, mode)

	lineStarts := []int{0}
	for i, c := range src {
		if c == '\n' {
			lineStarts = append(lineStarts, i+1)
		}
	}

	p := &parser{
		buf:        filtered,
		mapping:    mapping,
		origLen:    len(src),
		lineStarts: lineStarts,
	}
	children := p.parseNodes(nil)
	root := &Base{K: KindRoot, P: Pos{Start: 0, End: len(src), Line: 1}, Kid: children}
	return root
}

type parser struct {
	buf        string
	mapping    []int
	origLen    int
	lineStarts []int
	pos        int
}

func (p *parser) origOffset(i int) int {
	if i < 0 {
		i = 0
	}
	if i < len(p.mapping) {
		return p.mapping[i]
	}
	if len(p.mapping) > 0 {
		return p.mapping[len(p.mapping)-1] + 1
	}
	return p.origLen
}

func (p *parser) lineAt(off int) int {
	idx := sort.Search(len(p.lineStarts), func(i int) bool { return p.lineStarts[i] > off })
	return idx // lineStarts[idx-1] <= off < lineStarts[idx]; idx is 1-based line number
}

func (p *parser) rangePos(start, end int) Pos {
	o1, o2 := p.origOffset(start), p.origOffset(end)
	return Pos{Start: o1, End: o2, Line: p.lineAt(o1)}
}

func (p *parser) eof() bool { return p.pos >= len(p.buf) }

func (p *parser) atLineStart() bool {
	return p.pos == 0 || p.buf[p.pos-1] == '\n'
}

func (p *parser) hasPrefix(s string) bool {
	return strings.HasPrefix(p.buf[p.pos:], s)
}

func (p *parser) matchesAny(stopSet []string) bool {
	for _, s := range stopSet {
		if p.hasPrefix(s) {
			return true
		}
	}
	return false
}

// parseNodes consumes tokens until EOF or a stopSet prefix is seen at
// the current position (the stop sequence itself is left unconsumed for
// the caller to handle).
func (p *parser) parseNodes(stopSet []string) []Node {
	var nodes []Node
	var textStart = -1

	flushText := func() {
		if textStart >= 0 && textStart < p.pos {
			nodes = append(nodes, &Text{
				Base:  newBase(KindText, p.rangePos(textStart, p.pos), nil),
				Value: p.buf[textStart:p.pos],
			})
		}
		textStart = -1
	}

	for !p.eof() {
		if len(stopSet) > 0 && p.matchesAny(stopSet) {
			break
		}

		if p.atLineStart() {
			if n, ok := p.tryHeading(); ok {
				flushText()
				nodes = append(nodes, n)
				continue
			}
			if n, ok := p.tryHorizontalRule(); ok {
				flushText()
				nodes = append(nodes, n)
				continue
			}
			if n, ok := p.tryListItem(); ok {
				flushText()
				nodes = append(nodes, n)
				continue
			}
			if n, ok := p.tryTable(); ok {
				flushText()
				nodes = append(nodes, n)
				continue
			}
		}

		if n, ok := p.tryComment(); ok {
			flushText()
			nodes = append(nodes, n)
			continue
		}
		if n, ok := p.tryParam(); ok {
			flushText()
			nodes = append(nodes, n)
			continue
		}
		if n, ok := p.tryTemplate(); ok {
			flushText()
			nodes = append(nodes, n)
			continue
		}
		if n, ok := p.tryWikiLink(); ok {
			flushText()
			nodes = append(nodes, n)
			continue
		}
		if n, ok := p.tryExternalLink(); ok {
			flushText()
			nodes = append(nodes, n)
			continue
		}
		if n, ok := p.tryTagOrExtension(); ok {
			flushText()
			nodes = append(nodes, n)
			continue
		}
		if n, ok := p.tryFormatting(); ok {
			flushText()
			nodes = append(nodes, n)
			continue
		}

		if textStart < 0 {
			textStart = p.pos
		}
		p.advanceRune()
	}

	flushText()
	return nodes
}

func (p *parser) advanceRune() {
	_, size := decodeRune(p.buf[p.pos:])
	p.pos += size
}

// decodeRune is a minimal UTF-8 decoder sufficient for advancing the
// cursor by one code point; we don't need the rune value itself here.
func decodeRune(s string) (rune, int) {
	if len(s) == 0 {
		return 0, 0
	}
	b := s[0]
	switch {
	case b < 0x80:
		return rune(b), 1
	case b&0xE0 == 0xC0 && len(s) >= 2:
		return 0, 2
	case b&0xF0 == 0xE0 && len(s) >= 3:
		return 0, 3
	case b&0xF8 == 0xF0 && len(s) >= 4:
		return 0, 4
	default:
		return 0, 1
	}
}
