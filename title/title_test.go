package title

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello world", "Hello world"},
		{"underscore", "Foo_bar", "Foo bar"},
		{"collapses_runs", "A_______b", "A b"},
		{"mixed_runs", "A__  __b", "A b"},
		{"outer_whitespace", "   A b   ", "A b"},
		{"leading_colon", ":Foo", "Foo"},
		{"namespace_alias", "WP:Foo", "Project:Foo"},
		{"namespace_case_insensitive", "template:Hi", "Template:Hi"},
		{"image_alias_to_file", "Image:Cat.png", "File:Cat.png"},
		{"html_entity", "Caf&eacute;", "Café"},
		{"magic_suffix_preserved", "Foo/doc", "Foo/doc"},
		{"already_upper", "HELLO", "HELLO"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Normalize(tc.in, Default).Key()
			if got != tc.want {
				t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"hello world", "Template:Foo bar", "  A___b  ", ":Category:X", "Module:Foo/doc"}
	for _, in := range inputs {
		once := Normalize(in, Default).Key()
		twice := Normalize(once, Default).Key()
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: once=%q twice=%q", in, once, twice)
		}
	}
}

func TestNamespaceMapByName(t *testing.T) {
	ns, ok := Default.ByName("file")
	if !ok || ns.ID != File {
		t.Fatalf("ByName(file) = %v, %v; want File namespace", ns, ok)
	}
	if _, ok := Default.ByName("NotANamespace"); ok {
		t.Fatalf("expected no match for bogus namespace name")
	}
	if main := Default.ByID(Main); main.Name != "" {
		t.Fatalf("main namespace name = %q, want empty", main.Name)
	}
}
