package wikitext

import "strings"

// Mode selects which of the three include-control tags survive into the
// parsed tree.
type Mode int

const (
	// NoInclude is used when a page is rendered for direct viewing:
	// <noinclude> content is kept, <includeonly> content is dropped.
	NoInclude Mode = iota
	// Include is used when a page is being transcluded into another:
	// <includeonly> content is kept, <noinclude> content is dropped, and
	// if any <onlyinclude> span exists, it alone survives.
	Include
)

type spanKind int

const (
	spanIncludeOnly spanKind = iota
	spanNoInclude
	spanOnlyInclude
)

type controlSpan struct {
	kind       spanKind
	start, end int // [start,end) of the tag's entire span, including the tags themselves
	innerStart, innerEnd int // [innerStart,innerEnd) of the content between the tags
}

// findControlSpans scans src for <includeonly>, <noinclude>, and
// <onlyinclude> spans, each matched greedily to its first same-named
// closing tag. Unterminated tags (no matching close) are ignored: their
// literal text falls through to the ordinary parser, which is the
// "total, never raises" behavior the parser promises throughout.
func findControlSpans(src string) []controlSpan {
	var spans []controlSpan
	for _, name := range []struct {
		kind spanKind
		tag  string
	}{
		{spanOnlyInclude, "onlyinclude"},
		{spanIncludeOnly, "includeonly"},
		{spanNoInclude, "noinclude"},
	} {
		open := "<" + name.tag + ">"
		close := "</" + name.tag + ">"
		pos := 0
		for {
			oi := indexFrom(src, open, pos)
			if oi < 0 {
				break
			}
			ci := indexFrom(src, close, oi+len(open))
			if ci < 0 {
				pos = oi + len(open)
				continue
			}
			spans = append(spans, controlSpan{
				kind:       name.kind,
				start:      oi,
				end:        ci + len(close),
				innerStart: oi + len(open),
				innerEnd:   ci,
			})
			pos = ci + len(close)
		}
	}
	return spans
}

func indexFrom(s, sub string, from int) int {
	if from >= len(s) {
		return -1
	}
	idx := strings.Index(s[from:], sub)
	if idx < 0 {
		return -1
	}
	return from + idx
}

// filteredSource applies include-mode filtering to src, returning a new
// buffer containing only the bytes that survive in the given mode, plus
// a mapping from each byte of that buffer back to its offset in src (so
// nodes parsed from the filtered buffer can still record true source
// positions).
//
// Per the source's resolved ambiguity over onlyinclude-inside-noinclude
// (§9(c) of the design notes): onlyinclude always wins, regardless of
// what other control tag encloses it.
func filteredSource(src string, mode Mode) (string, []int) {
	spans := findControlSpans(src)

	var onlyIncludes []controlSpan
	for _, s := range spans {
		if s.kind == spanOnlyInclude {
			onlyIncludes = append(onlyIncludes, s)
		}
	}

	if mode == Include && len(onlyIncludes) > 0 {
		var buf strings.Builder
		var mapping []int
		for _, s := range onlyIncludes {
			appendMapped(&buf, &mapping, src[s.innerStart:s.innerEnd], s.innerStart)
		}
		return buf.String(), mapping
	}

	// Build a drop-set of byte ranges to exclude, in source order.
	type dropRange struct{ start, end int }
	var drops []dropRange
	for _, s := range spans {
		switch {
		case s.kind == spanOnlyInclude:
			// In noinclude mode with no qualifying use, onlyinclude tags
			// are transparent: drop only the tag markers, not their content.
			drops = append(drops, dropRange{s.start, s.innerStart})
			drops = append(drops, dropRange{s.innerEnd, s.end})
		case s.kind == spanIncludeOnly && mode == NoInclude:
			drops = append(drops, dropRange{s.start, s.end})
		case s.kind == spanIncludeOnly && mode == Include:
			drops = append(drops, dropRange{s.start, s.innerStart})
			drops = append(drops, dropRange{s.innerEnd, s.end})
		case s.kind == spanNoInclude && mode == Include:
			drops = append(drops, dropRange{s.start, s.end})
		case s.kind == spanNoInclude && mode == NoInclude:
			drops = append(drops, dropRange{s.start, s.innerStart})
			drops = append(drops, dropRange{s.innerEnd, s.end})
		}
	}

	keep := make([]bool, len(src)+1)
	for i := range keep {
		keep[i] = true
	}
	for _, d := range drops {
		for i := d.start; i < d.end && i < len(keep); i++ {
			keep[i] = false
		}
	}

	var buf strings.Builder
	var mapping []int
	for i := 0; i < len(src); i++ {
		if keep[i] {
			buf.WriteByte(src[i])
			mapping = append(mapping, i)
		}
	}
	return buf.String(), mapping
}

func appendMapped(buf *strings.Builder, mapping *[]int, s string, origStart int) {
	for i := 0; i < len(s); i++ {
		buf.WriteByte(s[i])
		*mapping = append(*mapping, origStart+i)
	}
}
