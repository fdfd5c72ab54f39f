package wikitext

import (
	"fmt"
	"strings"
)

// Print renders a TokenTree as an indented, human-readable listing of
// kind, byte range, and any kind-specific detail — the payload behind
// GET /source/{title}?mode=tree.
func Print(n Node) string {
	var b strings.Builder
	printNode(&b, n, 0)
	return b.String()
}

func printNode(b *strings.Builder, n Node, depth int) {
	if n == nil {
		return
	}
	pos := n.At()
	fmt.Fprintf(b, "%s%s [%d:%d] line %d%s\n", strings.Repeat("  ", depth), n.Kind(), pos.Start, pos.End, pos.Line, detail(n))
	for _, c := range n.Children() {
		printNode(b, c, depth+1)
	}
}

func detail(n Node) string {
	switch v := n.(type) {
	case *Text:
		return fmt.Sprintf(" %q", truncate(v.Value, 40))
	case *Heading:
		return fmt.Sprintf(" level=%d", v.Level)
	case *ListItem:
		return fmt.Sprintf(" prefix=%q", v.Prefix)
	case *WikiLink:
		return fmt.Sprintf(" target=%q", v.Target)
	case *ExternalLink:
		return fmt.Sprintf(" url=%q braced=%v", v.URL, v.Braced)
	case *TemplateCall:
		return fmt.Sprintf(" args=%d", len(v.Args))
	case *ExtensionTag:
		return fmt.Sprintf(" name=%q", v.Name)
	case *HTMLTag:
		return fmt.Sprintf(" name=%q closing=%v", v.Name, v.Closing)
	case *TableCell:
		return fmt.Sprintf(" header=%v attrs=%q", v.Header, v.Attrs)
	case *Comment:
		return fmt.Sprintf(" %q", truncate(v.Value, 40))
	default:
		return ""
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
