package template

import (
	"strconv"
	"strings"

	"github.com/kepler-wiki/wikireader/wikitext"
)

// magicWordNames are the page/site-scoped variables this reader computes
// from the RenderContext rather than from a template body, per the
// variable-magic-word set supplemented from the original implementation.
var magicWordNames = map[string]bool{
	"pagename": true, "fullpagename": true, "basepagename": true,
	"subpagename": true, "rootpagename": true,
	"namespace": true, "namespacenumber": true,
	"talkspace": true, "subjectspace": true,
	"pagenamee": true, "fullpagenamee": true,
	"displaytitle": true, "defaultsort": true, "defaultsortkey": true,
	"currentyear": true, "currentmonth": true, "currentmonthname": true,
	"currentday": true, "currentday2": true, "currentdow": true,
	"currentdayname": true, "currenttime": true, "currenthour": true,
	"currenttimestamp": true,
	"revisionid": true, "revisionuser": true, "revisionday": true,
	"revisionyear": true, "revisionmonth": true, "revisiontimestamp": true,
	"sitename": true, "server": true, "servername": true,
	"numberofarticles": true, "contentlanguage": true,
}

// isMagicWord reports whether rawName (as it would appear before a
// ":"-bearing argument, i.e. a bare {{NAME}} call) is one of the known
// page/site variable magic words, case-insensitively.
func isMagicWord(rawName string) bool {
	return magicWordNames[strings.ToLower(strings.TrimSpace(rawName))]
}

// assignmentMagicWordNames are the magic words whose colon-argument form
// writes a page-scoped variable instead of rendering text, per the
// page_var store SPEC_FULL.md describes.
var assignmentMagicWordNames = map[string]bool{
	"displaytitle": true, "defaultsort": true, "defaultsortkey": true,
}

// tryMagicWordAssignment recognizes a colon-argument call such as
// "DISPLAYTITLE:Some Title" or "DEFAULTSORT:Key, Name" and, if its name
// part is one of assignmentMagicWordNames, writes the argument into the
// RenderContext and reports true. These magic words never produce
// visible output — the assignment is their entire effect, read back
// later by the bare {{DISPLAYTITLE}}/{{DEFAULTSORT}} forms in
// evalMagicWord.
func (e *Expander) tryMagicWordAssignment(rawName string) (Node, bool) {
	colon := strings.IndexByte(rawName, ':')
	if colon < 0 {
		return nil, false
	}
	name := strings.ToLower(strings.TrimSpace(rawName[:colon]))
	if !assignmentMagicWordNames[name] {
		return nil, false
	}
	arg := strings.TrimSpace(rawName[colon+1:])
	switch name {
	case "displaytitle":
		e.RC.DisplayTitle = arg
	case "defaultsort", "defaultsortkey":
		e.RC.DefaultSort = arg
	}
	return &wikitext.Text{Base: wikitext.Base{K: wikitext.KindText}}, true
}

// evalMagicWord computes the constant a variable magic word yields from
// the current render's RenderContext. DISPLAYTITLE/DEFAULTSORT
// invocations taking an argument are intercepted earlier by
// tryMagicWordAssignment; only the bare, argument-less form reaches
// here.
func (e *Expander) evalMagicWord(rawName string) Node {
	pos := wikitext.Pos{}
	text := func(s string) Node {
		return &wikitext.Text{Base: wikitext.Base{K: wikitext.KindText, P: pos}, Value: s}
	}

	t := e.RC.Title
	clock := e.RC.Clock

	switch strings.ToLower(strings.TrimSpace(rawName)) {
	case "pagename":
		return text(t.Text)
	case "fullpagename":
		return text(t.Key())
	case "pagenamee":
		return text(strings.ReplaceAll(t.Text, " ", "_"))
	case "fullpagenamee":
		return text(strings.ReplaceAll(t.Key(), " ", "_"))
	case "basepagename", "rootpagename":
		name := t.Text
		if idx := strings.LastIndex(name, "/"); idx >= 0 {
			name = name[:idx]
		}
		return text(name)
	case "subpagename":
		name := t.Text
		if idx := strings.LastIndex(name, "/"); idx >= 0 {
			name = name[idx+1:]
		}
		return text(name)
	case "namespace":
		if t.NS == nil {
			return text("")
		}
		return text(t.NS.Name)
	case "namespacenumber":
		if t.NS == nil {
			return text("0")
		}
		return text(strconv.Itoa(t.NS.ID))
	case "talkspace", "subjectspace":
		if t.NS == nil {
			return text("")
		}
		return text(t.NS.Name)
	case "displaytitle":
		if e.RC.DisplayTitle != "" {
			return text(e.RC.DisplayTitle)
		}
		return text(t.Text)
	case "defaultsort", "defaultsortkey":
		return text(e.RC.DefaultSort)
	case "currentyear":
		return text(strconv.Itoa(clock.Year()))
	case "currentmonth":
		return text(formatTime(clock, "m"))
	case "currentmonthname":
		return text(clock.Month().String())
	case "currentday":
		return text(strconv.Itoa(clock.Day()))
	case "currentday2":
		return text(formatTime(clock, "d"))
	case "currentdow":
		return text(strconv.Itoa(int(clock.Weekday())))
	case "currentdayname":
		return text(clock.Weekday().String())
	case "currenttime":
		return text(formatTime(clock, "H:i"))
	case "currenthour":
		return text(formatTime(clock, "H"))
	case "currenttimestamp":
		return text(formatTime(clock, "YmdHis"))
	case "revisionid", "revisionuser", "revisionday", "revisionyear", "revisionmonth", "revisiontimestamp":
		// Revision metadata isn't carried in a dump read offline; these
		// resolve to empty rather than faking a value.
		return text("")
	case "sitename":
		return text("Wikipedia")
	case "server", "servername":
		return text("")
	case "numberofarticles":
		return text("")
	case "contentlanguage":
		return text("en")
	default:
		return text("")
	}
}
