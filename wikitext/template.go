package wikitext

import "strings"

// tryParam matches "{{{name|default}}}". It always consumes when the
// opening "{{{" is present, even if no closing "}}}" is ever found
// (falling back to consuming through EOF or an enclosing stop), so that
// callers never see an unconsumed "{{{" prefix.
func (p *parser) tryParam() (Node, bool) {
	if !p.hasPrefix("{{{") {
		return nil, false
	}
	start := p.pos
	p.pos += 3

	name := p.parseNodes([]string{"|", "}}}"})
	var def []Node
	hasDefault := false
	if p.hasPrefix("|") {
		p.pos++
		hasDefault = true
		def = p.parseNodes([]string{"}}}"})
	}
	if p.hasPrefix("}}}") {
		p.pos += 3
	}
	if !hasDefault {
		def = nil
	}
	return &Param{
		Base:    newBase(KindParam, p.rangePos(start, p.pos), nil),
		Name:    name,
		Default: def,
	}, true
}

// tryTemplate matches "{{name|arg1|name2=arg2|...}}". Argument segments
// are classified positional or named by scanning for a top-level "="
// before the segment's closing "|" or "}}", respecting nested "{{...}}"
// and "[[...]]" so an "=" inside a nested construct doesn't get
// misread as this argument's name separator.
func (p *parser) tryTemplate() (Node, bool) {
	if !p.hasPrefix("{{") {
		return nil, false
	}
	start := p.pos
	p.pos += 2

	name := p.parseNodes([]string{"|", "}}"})

	var args []TemplateArg
	for p.hasPrefix("|") {
		p.pos++
		eqPos, hasName, _ := scanTopLevelEquals(p.buf, p.pos)
		var argName string
		if hasName {
			argName = strings.TrimSpace(p.buf[p.pos:eqPos])
			p.pos = eqPos + 1
		}
		value := p.parseNodes([]string{"|", "}}"})
		args = append(args, TemplateArg{Name: argName, Value: value})
	}
	if p.hasPrefix("}}") {
		p.pos += 2
	}

	return &TemplateCall{
		Base: newBase(KindTemplateCall, p.rangePos(start, p.pos), nil),
		Name: name,
		Args: args,
	}, true
}

// scanTopLevelEquals scans buf starting at pos for a "=" at nesting
// depth 0, tracking "{{"/"}}" and "[["/"]]" pairs. It returns the first
// of: a top-level "=" (found=true, eqPos set), or the position of the
// enclosing "|" or "}}" that would otherwise end this argument
// (found=false, stopAt set).
func scanTopLevelEquals(buf string, pos int) (eqPos int, found bool, stopAt int) {
	depth := 0
	i := pos
	for i < len(buf) {
		switch {
		case strings.HasPrefix(buf[i:], "{{"):
			depth++
			i += 2
		case strings.HasPrefix(buf[i:], "}}"):
			if depth == 0 {
				return -1, false, i
			}
			depth--
			i += 2
		case strings.HasPrefix(buf[i:], "[["):
			depth++
			i += 2
		case strings.HasPrefix(buf[i:], "]]"):
			if depth > 0 {
				depth--
			}
			i += 2
		case depth == 0 && buf[i] == '|':
			return -1, false, i
		case depth == 0 && buf[i] == '=':
			return i, true, i
		default:
			i++
		}
	}
	return -1, false, i
}
