package template

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kepler-wiki/wikireader/title"
	"github.com/kepler-wiki/wikireader/wikitext"
)

// stringFunctionNames is the subset of StringFunctions recognized here,
// invocable with or without a leading "#" ({{uc:x}} and {{#uc:x}} are
// both accepted, matching the extension's own behavior). explode,
// urlencode and anchorencode are recognized but have no implementation
// in dispatchParserFunction, so they expand to empty text.
var stringFunctionNames = map[string]bool{
	"lc": true, "uc": true, "lcfirst": true, "ucfirst": true,
	"len": true, "pos": true, "rpos": true, "sub": true,
	"replace": true, "explode": true, "padleft": true, "padright": true,
	"urlencode": true, "anchorencode": true,
}

// classifyFunctionName decides whether rawName (a TemplateCall's fully
// expanded Name text) denotes a parser-function or string-function
// call. fn is the lowercased function name with any "#" stripped;
// firstArg is the text before the first "|" but after the function
// name's colon, present whenever rawName contains a colon.
func classifyFunctionName(rawName string) (fn, firstArg string, hasArg, isFunction bool) {
	colon := strings.IndexByte(rawName, ':')
	if colon < 0 {
		if strings.HasPrefix(rawName, "#") {
			return strings.ToLower(strings.TrimPrefix(rawName, "#")), "", false, true
		}
		return "", "", false, false
	}
	namePart := strings.TrimSpace(rawName[:colon])
	arg := strings.TrimSpace(rawName[colon+1:])
	if strings.HasPrefix(namePart, "#") {
		return strings.ToLower(strings.TrimPrefix(namePart, "#")), arg, true, true
	}
	lower := strings.ToLower(namePart)
	if stringFunctionNames[lower] {
		return lower, arg, true, true
	}
	return "", "", false, false
}

func (e *Expander) dispatchParserFunction(ctx context.Context, fn, firstArg string, hasFirstArg bool, v *wikitext.TemplateCall, frame *Frame) []Node {
	args := make([]string, 0, len(v.Args)+1)
	if hasFirstArg {
		args = append(args, firstArg)
	}
	for _, a := range v.Args {
		s := renderToPlainText(e.expandNodes(ctx, a.Value, frame))
		if a.Name != "" {
			// Parser functions see a named argument as its raw
			// "name=value" text; #switch cases depend on it.
			s = a.Name + "=" + s
		}
		args = append(args, s)
	}
	get := func(i int) string {
		if i < len(args) {
			return args[i]
		}
		return ""
	}

	text := func(s string) []Node {
		return []Node{&wikitext.Text{Base: wikitext.Base{K: wikitext.KindText, P: v.At()}, Value: s}}
	}

	switch fn {
	case "if":
		if strings.TrimSpace(get(0)) != "" {
			return text(get(1))
		}
		return text(get(2))

	case "ifeq":
		if strings.TrimSpace(get(0)) == strings.TrimSpace(get(1)) {
			return text(get(2))
		}
		return text(get(3))

	case "ifexist":
		t := title.Normalize(get(0), e.NSMap)
		if e.Fetch.Exists(ctx, t) {
			return text(get(1))
		}
		return text(get(2))

	case "ifexpr":
		result, err := evalExpr(get(0))
		if err == nil && result != 0 {
			return text(get(1))
		}
		return text(get(2))

	case "switch":
		return text(evalSwitch(get(0), args[1:]))

	case "expr":
		result, err := evalExpr(get(0))
		if err != nil {
			return []Node{wikitext.NewErrorMarker(v.At(), "Expression error: "+err.Error())}
		}
		return text(formatNumber(result))

	case "time":
		return text(formatTime(e.RC.Clock, get(0)))

	case "tag":
		return []Node{buildTagNode(v.At(), args)}

	case "invoke":
		return e.dispatchInvoke(ctx, args, v, frame)

	case "lst", "lsth", "lstx":
		return e.transcludeSection(ctx, fn, get(0), get(1), v, frame)

	case "titleparts":
		return text(titleParts(get(0), get(1), get(2)))

	case "rel2abs":
		return text(rel2abs(get(0), get(1), e.RC.Title))

	case "lc":
		return text(strings.ToLower(get(0)))
	case "uc":
		return text(strings.ToUpper(get(0)))
	case "lcfirst":
		return text(mapFirstRune(get(0), strings.ToLower))
	case "ucfirst":
		return text(mapFirstRune(get(0), strings.ToUpper))
	case "len":
		return text(strconv.Itoa(utf8.RuneCountInString(get(0))))
	case "pos":
		return text(strIndexResult(get(0), get(1)))
	case "rpos":
		return text(strRIndexResult(get(0), get(1)))
	case "sub":
		return text(strSub(get(0), get(1), get(2)))
	case "replace":
		return text(strings.ReplaceAll(get(0), get(1), get(2)))
	case "padleft":
		return text(strPad(get(0), get(1), get(2), true))
	case "padright":
		return text(strPad(get(0), get(1), get(2), false))
	default:
		return text("")
	}
}

// sectionTagRe matches the Labeled Section Transclusion extension's
// self-closing <section begin=name/> and <section end=name/> markers,
// quoted or bare.
var sectionTagRe = regexp.MustCompile(`(?i)<section\s+(begin|end)\s*=\s*("?)([^">/\s]+)"?\s*/?>`)

// sectionSpan locates a named <section> pair's body and marker extent
// within a page's raw wikitext.
type sectionSpan struct {
	bodyStart, bodyEnd int
	markStart, markEnd int
	ok                 bool
}

// findSection scans src for the named section's begin/end markers. A
// begin with no matching end runs to the end of the page, matching the
// extension's own behavior for an unterminated section.
func findSection(src, name string) sectionSpan {
	matches := sectionTagRe.FindAllStringSubmatchIndex(src, -1)
	beginMarkStart, beginBodyStart := -1, -1
	for _, m := range matches {
		kind := src[m[2]:m[3]]
		tagName := src[m[6]:m[7]]
		if !strings.EqualFold(tagName, name) {
			continue
		}
		if strings.EqualFold(kind, "begin") {
			if beginBodyStart < 0 {
				beginMarkStart, beginBodyStart = m[0], m[1]
			}
			continue
		}
		if beginBodyStart >= 0 {
			return sectionSpan{bodyStart: beginBodyStart, bodyEnd: m[0], markStart: beginMarkStart, markEnd: m[1], ok: true}
		}
	}
	if beginBodyStart >= 0 {
		return sectionSpan{bodyStart: beginBodyStart, bodyEnd: len(src), markStart: beginMarkStart, markEnd: len(src), ok: true}
	}
	return sectionSpan{}
}

func extractSection(src, name string) (string, bool) {
	s := findSection(src, name)
	if !s.ok {
		return "", false
	}
	return src[s.bodyStart:s.bodyEnd], true
}

// excludeSection returns src with the named section's markers and body
// removed, for #lstx.
func excludeSection(src, name string) (string, bool) {
	s := findSection(src, name)
	if !s.ok {
		return "", false
	}
	return src[:s.markStart] + src[s.markEnd:], true
}

// headingLineRe matches a standalone "== Heading ==" line, any level.
var headingLineRe = regexp.MustCompile(`(?m)^(=+)\s*(.+?)\s*=+[ \t]*$`)

// extractHeadingSection finds the heading line whose text equals name
// and returns the wikitext between it and the next heading of equal or
// shallower level (or EOF), for #lsth, which transcludes by the
// section's wikitext heading rather than a <section> marker.
func extractHeadingSection(src, name string) (string, bool) {
	matches := headingLineRe.FindAllStringSubmatchIndex(src, -1)
	for i, m := range matches {
		heading := src[m[4]:m[5]]
		if !strings.EqualFold(heading, name) {
			continue
		}
		level := m[3] - m[2]
		bodyStart := m[1]
		bodyEnd := len(src)
		for _, next := range matches[i+1:] {
			if next[3]-next[2] <= level {
				bodyEnd = next[0]
				break
			}
		}
		return strings.TrimSpace(src[bodyStart:bodyEnd]), true
	}
	return "", false
}

// transcludeSection implements #lst ("transclude_section"), #lsth
// ("transclude_heading"), and #lstx ("transclude_except"): fetch
// pageArg's wikitext and transclude the part of it the named section
// denotes, parsed and expanded in the caller's frame.
func (e *Expander) transcludeSection(ctx context.Context, fn, pageArg, sectionArg string, v *wikitext.TemplateCall, frame *Frame) []Node {
	target := title.Normalize(pageArg, e.NSMap)
	src, found, err := e.Fetch.FetchWikitext(ctx, target)
	if err != nil || !found {
		return []Node{wikitext.NewErrorMarker(v.At(), "Labeled section transclusion: page not found: "+target.Key())}
	}

	var body string
	var ok bool
	switch fn {
	case "lstx":
		body, ok = excludeSection(src, sectionArg)
	case "lsth":
		body, ok = extractHeadingSection(src, sectionArg)
	default:
		body, ok = extractSection(src, sectionArg)
	}
	if !ok {
		return []Node{wikitext.NewErrorMarker(v.At(), "Labeled section transclusion: section not found: "+sectionArg)}
	}

	tree := wikitext.Parse(body, wikitext.Include)
	return e.expandNodes(ctx, tree.Children(), frame)
}

// evalSwitch implements {{#switch:value|case1=r1|case2=r2|#default=rd}}.
// A case with no value before "=" falls through to the next case that
// does have a value, matching MediaWiki's grouping semantics.
func evalSwitch(value string, rest []string) string {
	value = strings.TrimSpace(value)
	var fallthroughGroup []string
	var defaultVal string
	haveDefault := false

	for _, raw := range rest {
		eq := strings.IndexByte(raw, '=')
		if eq < 0 {
			fallthroughGroup = append(fallthroughGroup, strings.TrimSpace(raw))
			continue
		}
		caseVal := strings.TrimSpace(raw[:eq])
		result := raw[eq+1:]
		if caseVal == "#default" {
			defaultVal = result
			haveDefault = true
			continue
		}
		fallthroughGroup = append(fallthroughGroup, caseVal)
		for _, candidate := range fallthroughGroup {
			if candidate == value {
				return result
			}
		}
		fallthroughGroup = nil
	}
	if haveDefault {
		return defaultVal
	}
	// No matching case and no #default: MediaWiki returns the last
	// unlabeled value if there is one, else empty.
	if len(fallthroughGroup) > 0 {
		return fallthroughGroup[len(fallthroughGroup)-1]
	}
	return ""
}

func mapFirstRune(s string, f func(string) string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return f(string(r)) + s[size:]
}

func strIndexResult(haystack, needle string) string {
	idx := strings.Index(haystack, needle)
	if idx < 0 {
		return ""
	}
	return strconv.Itoa(utf8.RuneCountInString(haystack[:idx]))
}

func strRIndexResult(haystack, needle string) string {
	idx := strings.LastIndex(haystack, needle)
	if idx < 0 {
		return ""
	}
	return strconv.Itoa(utf8.RuneCountInString(haystack[:idx]))
}

func strSub(s, startStr, lenStr string) string {
	runes := []rune(s)
	start, _ := strconv.Atoi(strings.TrimSpace(startStr))
	if start < 0 {
		start = len(runes) + start
	}
	if start < 0 {
		start = 0
	}
	if start > len(runes) {
		return ""
	}
	length := len(runes) - start
	if strings.TrimSpace(lenStr) != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(lenStr)); err == nil {
			if n < 0 {
				n = len(runes) - start + n
			}
			if n < length {
				length = n
			}
		}
	}
	if length < 0 {
		length = 0
	}
	end := start + length
	if end > len(runes) {
		end = len(runes)
	}
	return string(runes[start:end])
}

func strPad(s, lenStr, padStr string, left bool) string {
	n, err := strconv.Atoi(strings.TrimSpace(lenStr))
	if err != nil || n <= utf8.RuneCountInString(s) {
		return s
	}
	pad := padStr
	if pad == "" {
		pad = "0"
	}
	need := n - utf8.RuneCountInString(s)
	var b strings.Builder
	for utf8.RuneCountInString(b.String()) < need {
		b.WriteString(pad)
	}
	padding := string([]rune(b.String())[:need])
	if left {
		return padding + s
	}
	return s + padding
}

func titleParts(t, numStr, offsetStr string) string {
	parts := strings.Split(t, "/")
	num, err := strconv.Atoi(strings.TrimSpace(numStr))
	if err != nil || num <= 0 {
		num = len(parts)
	}
	offset, _ := strconv.Atoi(strings.TrimSpace(offsetStr))
	if offset < 0 {
		offset = len(parts) + offset
	}
	if offset < 0 {
		offset = 0
	}
	if offset > len(parts) {
		return ""
	}
	end := offset + num
	if end > len(parts) {
		end = len(parts)
	}
	return strings.Join(parts[offset:end], "/")
}

func rel2abs(rel, base string, current title.Title) string {
	if base == "" {
		base = current.Key()
	}
	baseParts := strings.Split(base, "/")
	relParts := strings.Split(rel, "/")
	for _, p := range relParts {
		switch p {
		case ".":
			// stay
		case "..":
			if len(baseParts) > 0 {
				baseParts = baseParts[:len(baseParts)-1]
			}
		default:
			baseParts = append(baseParts, p)
		}
	}
	return strings.Join(baseParts, "/")
}

func buildTagNode(pos wikitext.Pos, args []string) Node {
	name := ""
	content := ""
	var attrParts []string
	for i, a := range args {
		switch i {
		case 0:
			name = strings.TrimSpace(a)
		case 1:
			content = a
		default:
			attrParts = append(attrParts, a)
		}
	}
	return &wikitext.ExtensionTag{
		Base:  wikitext.Base{K: wikitext.KindExtensionTag, P: pos},
		Name:  strings.ToLower(name),
		Attrs: strings.Join(attrParts, " "),
		Raw:   content,
	}
}

func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// formatTime implements a deliberately partial subset of MediaWiki's
// #time format-character language (PHP date()-derived), covering the
// characters real articles use most: year, month, day, and weekday
// names/numbers. Anything else passes through literally.
func formatTime(clock time.Time, format string) string {
	if format == "" {
		format = "Y-m-d"
	}
	var b strings.Builder
	for _, c := range format {
		switch c {
		case 'Y':
			fmt.Fprintf(&b, "%04d", clock.Year())
		case 'y':
			fmt.Fprintf(&b, "%02d", clock.Year()%100)
		case 'n':
			fmt.Fprintf(&b, "%d", int(clock.Month()))
		case 'm':
			fmt.Fprintf(&b, "%02d", int(clock.Month()))
		case 'j':
			fmt.Fprintf(&b, "%d", clock.Day())
		case 'd':
			fmt.Fprintf(&b, "%02d", clock.Day())
		case 'F':
			b.WriteString(clock.Month().String())
		case 'M':
			b.WriteString(clock.Month().String()[:3])
		case 'l':
			b.WriteString(clock.Weekday().String())
		case 'D':
			b.WriteString(clock.Weekday().String()[:3])
		case 'H':
			fmt.Fprintf(&b, "%02d", clock.Hour())
		case 'i':
			fmt.Fprintf(&b, "%02d", clock.Minute())
		case 's':
			fmt.Fprintf(&b, "%02d", clock.Second())
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}
