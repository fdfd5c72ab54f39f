package wikitext

import "strings"

// tryTable matches a "{| attrs ... |}" construct starting at the
// current line. Rows are delimited by "|-" lines; cells by a leading "|"
// or "!" (header) followed by segments split on "||" (or "!!" on header
// lines). A cell's content may continue across following lines that
// don't themselves begin a new row, cell, or the table's close — those
// lines are absorbed into the preceding cell, matching how MediaWiki
// treats multi-line cell bodies.
//
// This is a pragmatic subset of MediaWiki's table grammar (it does not,
// for instance, handle caption lines "|+" or nested same-line attribute
// escaping with "||" inside a link), acceptable since bit-exact table
// output is explicitly not required.
func (p *parser) tryTable() (Node, bool) {
	if !p.hasPrefix("{|") {
		return nil, false
	}
	start := p.pos
	line, lineLen, hasNL := p.currentLine()
	attrs := strings.TrimSpace(line[2:])
	p.pos += lineLen
	if hasNL {
		p.pos++
	}

	tbl := &Table{Base: newBase(KindTable, Pos{}, nil), Attrs: attrs}
	var rows []Node

	type pendingCell struct {
		header     bool
		attrs      string
		contentLo  int
		rowIdxOpen bool
	}
	var curRowStart int = p.pos
	var curRowAttrs string
	var cells []Node
	var pending *pendingCell
	var pendingStart int

	flushPending := func(upto int) {
		if pending == nil {
			return
		}
		inner := p.buf[pending.contentLo:upto]
		sub := &parser{buf: inner, mapping: shiftedMapping(p, pending.contentLo, len(inner)), origLen: p.origLen, lineStarts: p.lineStarts}
		children := sub.parseNodes(nil)
		cells = append(cells, &TableCell{
			Base:   newBase(KindTableCell, p.rangePos(pendingStart, upto), children),
			Header: pending.header,
			Attrs:  pending.attrs,
		})
		pending = nil
	}
	flushRow := func(upto int) {
		flushPending(upto)
		if len(cells) > 0 || curRowAttrs != "" {
			rows = append(rows, &TableRow{
				Base:  newBase(KindTableRow, p.rangePos(curRowStart, upto), cells),
				Attrs: curRowAttrs,
			})
		}
		cells = nil
	}

	for !p.eof() {
		lineStart := p.pos
		line, lineLen, hasNL = p.currentLine()
		lineEndExcl := lineStart + lineLen

		switch {
		case strings.HasPrefix(line, "|}"):
			flushRow(lineStart)
			end := lineEndExcl
			if hasNL {
				end++
			}
			p.pos = end
			tbl.P = p.rangePos(start, end)
			tbl.Kid = rows
			return tbl, true

		case strings.HasPrefix(line, "|-"):
			flushRow(lineStart)
			curRowAttrs = strings.TrimSpace(line[2:])
			curRowStart = lineStart
			end := lineEndExcl
			if hasNL {
				end++
			}
			p.pos = end

		case strings.HasPrefix(line, "!") || strings.HasPrefix(line, "|"):
			flushPending(lineStart)
			header := line[0] == '!'
			body := line[1:]
			sep := "||"
			if header {
				sep = splitSepFor(body, "!!")
			}
			bodyOffset := lineStart + 1
			segments := splitOnTop(body, sep)
			for i, seg := range segments {
				segStart := bodyOffset
				for _, prior := range segments[:i] {
					segStart += len(prior) + len(sep)
				}
				cellAttrs, _, contentOffset := splitCellAttrs(seg, segStart)
				isLast := i == len(segments)-1
				if isLast {
					pending = &pendingCell{header: header, attrs: cellAttrs}
					pendingStart = segStart
					pending.contentLo = contentOffset
				} else {
					inner := p.buf[contentOffset : segStart+len(seg)]
					sub := &parser{buf: inner, mapping: shiftedMapping(p, contentOffset, len(inner)), origLen: p.origLen, lineStarts: p.lineStarts}
					children := sub.parseNodes(nil)
					cells = append(cells, &TableCell{
						Base:   newBase(KindTableCell, p.rangePos(segStart, segStart+len(seg)), children),
						Header: header,
						Attrs:  cellAttrs,
					})
				}
			}
			end := lineEndExcl
			if hasNL {
				end++
			}
			p.pos = end

		default:
			// Continuation of the pending cell's content, or a stray line
			// before any cell was opened (ignored, but still consumed).
			end := lineEndExcl
			if hasNL {
				end++
			}
			p.pos = end
		}
	}

	// Ran off the end of input without a closing "|}": total parser, so
	// emit what we have rather than failing.
	flushRow(p.pos)
	tbl.P = p.rangePos(start, p.pos)
	tbl.Kid = rows
	return tbl, true
}

// currentLine returns the text of the line beginning at p.pos (not
// including the newline), its length, and whether a trailing newline was
// found.
func (p *parser) currentLine() (string, int, bool) {
	rest := p.buf[p.pos:]
	if idx := strings.IndexByte(rest, '\n'); idx >= 0 {
		return rest[:idx], idx, true
	}
	return rest, len(rest), false
}

// splitSepFor returns preferred if it occurs in body, else falls back to
// "||", since MediaWiki allows "||" as a cell separator even on "!" lines.
func splitSepFor(body, preferred string) string {
	if strings.Contains(body, preferred) {
		return preferred
	}
	return "||"
}

// splitOnTop splits s on sep without attempting to respect nested
// brackets; adequate for the common case of simple cell content.
func splitOnTop(s, sep string) []string {
	return strings.Split(s, sep)
}

// splitCellAttrs separates a cell segment's optional leading "attr|"
// prefix from its content, using the heuristic that attributes precede
// the first "|" that appears before any link-opening "[[" (a real "|"
// inside a link's own syntax would otherwise be misread as the
// attribute delimiter).
func splitCellAttrs(seg string, segOffset int) (attrs, content string, contentOffset int) {
	linkIdx := strings.Index(seg, "[[")
	barIdx := strings.IndexByte(seg, '|')
	if barIdx < 0 || (linkIdx >= 0 && linkIdx < barIdx) {
		return "", seg, segOffset
	}
	return strings.TrimSpace(seg[:barIdx]), seg[barIdx+1:], segOffset + barIdx + 1
}
