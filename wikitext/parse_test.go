package wikitext

import (
	"strings"
	"testing"
)

func textOf(n Node) string {
	var b strings.Builder
	collectText(n, &b)
	return b.String()
}

func collectText(n Node, b *strings.Builder) {
	if t, ok := n.(*Text); ok {
		b.WriteString(t.Value)
	}
	for _, c := range n.Children() {
		collectText(c, b)
	}
}

func TestParsePlainTextIsIdentity(t *testing.T) {
	src := "Hello, world. This has no wiki markup at all."
	root := Parse(src, NoInclude)
	if got := textOf(root); got != src {
		t.Fatalf("got %q, want %q", got, src)
	}
}

func TestParseHeading(t *testing.T) {
	root := Parse("== Title ==\nbody", NoInclude)
	if len(root.Kid) == 0 {
		t.Fatal("expected at least one child")
	}
	h, ok := root.Kid[0].(*Heading)
	if !ok {
		t.Fatalf("first child is %T, want *Heading", root.Kid[0])
	}
	if h.Level != 2 {
		t.Fatalf("Level = %d, want 2", h.Level)
	}
	if got := textOf(h); got != "Title" {
		t.Fatalf("heading text = %q", got)
	}
}

func TestParseTemplateCall(t *testing.T) {
	root := Parse("{{Hi|world|name=Bob}}", NoInclude)
	tc, ok := root.Kid[0].(*TemplateCall)
	if !ok {
		t.Fatalf("got %T, want *TemplateCall", root.Kid[0])
	}
	if got := textOf(&Base{Kid: tc.Name}); got != "Hi" {
		t.Fatalf("name = %q", got)
	}
	if len(tc.Args) != 2 {
		t.Fatalf("got %d args, want 2", len(tc.Args))
	}
	if tc.Args[0].Name != "" || textOf(&Base{Kid: tc.Args[0].Value}) != "world" {
		t.Fatalf("arg0 = %+v", tc.Args[0])
	}
	if tc.Args[1].Name != "name" || textOf(&Base{Kid: tc.Args[1].Value}) != "Bob" {
		t.Fatalf("arg1 = %+v", tc.Args[1])
	}
}

func TestParseParam(t *testing.T) {
	root := Parse("{{{1|friend}}}", NoInclude)
	pm, ok := root.Kid[0].(*Param)
	if !ok {
		t.Fatalf("got %T, want *Param", root.Kid[0])
	}
	if textOf(&Base{Kid: pm.Name}) != "1" {
		t.Fatalf("name = %q", textOf(&Base{Kid: pm.Name}))
	}
	if textOf(&Base{Kid: pm.Default}) != "friend" {
		t.Fatalf("default = %q", textOf(&Base{Kid: pm.Default}))
	}
}

func TestParseWikiLink(t *testing.T) {
	root := Parse("See [[Target page|here]] for more.", NoInclude)
	var link *WikiLink
	for _, n := range root.Kid {
		if l, ok := n.(*WikiLink); ok {
			link = l
		}
	}
	if link == nil {
		t.Fatal("no WikiLink found")
	}
	if link.Target != "Target page" {
		t.Fatalf("target = %q", link.Target)
	}
	if textOf(link) != "here" {
		t.Fatalf("label = %q", textOf(link))
	}
}

func TestIncludeModeFiltering(t *testing.T) {
	src := "before<includeonly>INC</includeonly><noinclude>NOI</noinclude>after"

	inc := Parse(src, Include)
	if s := textOf(inc); !strings.Contains(s, "INC") || strings.Contains(s, "NOI") {
		t.Fatalf("include mode text = %q", s)
	}

	noi := Parse(src, NoInclude)
	if s := textOf(noi); strings.Contains(s, "INC") || !strings.Contains(s, "NOI") {
		t.Fatalf("noinclude mode text = %q", s)
	}
}

func TestOnlyIncludeWinsOverNoInclude(t *testing.T) {
	// Per the resolved open question: <onlyinclude> wins even nested
	// inside <noinclude>.
	src := "<noinclude><onlyinclude>KEEP</onlyinclude></noinclude>DROPPED"
	inc := Parse(src, Include)
	if s := textOf(inc); s != "KEEP" {
		t.Fatalf("include mode text = %q, want exactly KEEP", s)
	}
}

func TestParseIsTotalNeverPanics(t *testing.T) {
	inputs := []string{
		"{{unterminated",
		"[[unterminated",
		"<!-- unterminated",
		"{{{unterminated",
		"{| unterminated table",
		"'''unterminated bold",
		"<ref>unterminated extension tag",
		"",
		"}}}}}}]]]]]]",
	}
	for _, in := range inputs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("Parse(%q) panicked: %v", in, r)
				}
			}()
			Parse(in, NoInclude)
		}()
	}
}

func TestParseDeterministic(t *testing.T) {
	src := "== H ==\n{{T|a|b=c}}\n[[L|x]]\n* item\n{| \n|a\n|}"
	a := Print(Parse(src, NoInclude))
	b := Print(Parse(src, NoInclude))
	if a != b {
		t.Fatalf("parsing twice produced different trees:\n%s\nvs\n%s", a, b)
	}
}

func TestByteRangesWithinSourceBounds(t *testing.T) {
	src := "Some [[Link]] and {{Template|x}} and ''italic'' text."
	var check func(n Node)
	check = func(n Node) {
		p := n.At()
		if p.Start < 0 || p.End > len(src) || p.Start > p.End {
			t.Errorf("node %s has out-of-bounds range %+v (len=%d)", n.Kind(), p, len(src))
		}
		for _, c := range n.Children() {
			check(c)
		}
	}
	check(Parse(src, NoInclude))
}
