// Package title implements MediaWiki-style title parsing, normalization,
// and namespace resolution for pages read out of a wiki dump.
package title

import "strings"

// Case describes how the first character of a title in a namespace is
// folded for comparison purposes.
type Case int

const (
	// FirstLetter namespaces uppercase only the first code point of the
	// title; this is the MediaWiki default ("Case" = "first-letter" in
	// siteinfo).
	FirstLetter Case = iota
	// CaseSensitive namespaces preserve the title's casing exactly.
	CaseSensitive
)

// Well-known namespace IDs, matching MediaWiki's canonical numbering.
const (
	Media         = -2
	Special       = -1
	Main          = 0
	Talk          = 1
	User          = 2
	UserTalk      = 3
	Project       = 4
	ProjectTalk   = 5
	File          = 6
	FileTalk      = 7
	MediaWiki     = 8
	MediaWikiTalk = 9
	Template      = 10
	TemplateTalk  = 11
	Help          = 12
	HelpTalk      = 13
	Category      = 14
	CategoryTalk  = 15
	Module        = 828
	ModuleTalk    = 829
)

// Namespace describes one MediaWiki namespace: its numeric ID, canonical
// display name, case-folding rule, and any alias names that also resolve
// to it (e.g. "WP" for "Wikipedia" on enwiki, "Image" for "File").
type Namespace struct {
	ID      int
	Name    string
	Case    Case
	Aliases []string
}

// Map is an immutable, queryable namespace table: the built-in Default
// table, or a table derived from it by WithSiteInfo.
type Map struct {
	byID   map[int]*Namespace
	byName map[string]*Namespace // lowercased name/alias -> namespace
}

// Default is the canonical namespace table shared by essentially all
// MediaWiki installations. Installation-specific names (e.g. a project
// namespace named after the wiki itself) can be layered on top of it
// with WithSiteInfo; the server uses Default as is.
var Default = NewMap([]*Namespace{
	{ID: Media, Name: "Media", Case: FirstLetter},
	{ID: Special, Name: "Special", Case: FirstLetter},
	{ID: Main, Name: "", Case: FirstLetter},
	{ID: Talk, Name: "Talk", Case: FirstLetter},
	{ID: User, Name: "User", Case: FirstLetter},
	{ID: UserTalk, Name: "User talk", Case: FirstLetter},
	{ID: Project, Name: "Project", Case: FirstLetter, Aliases: []string{"WP"}},
	{ID: ProjectTalk, Name: "Project talk", Case: FirstLetter, Aliases: []string{"WT"}},
	{ID: File, Name: "File", Case: FirstLetter, Aliases: []string{"Image"}},
	{ID: FileTalk, Name: "File talk", Case: FirstLetter, Aliases: []string{"Image talk"}},
	{ID: MediaWiki, Name: "MediaWiki", Case: FirstLetter},
	{ID: MediaWikiTalk, Name: "MediaWiki talk", Case: FirstLetter},
	{ID: Template, Name: "Template", Case: FirstLetter, Aliases: []string{"T"}},
	{ID: TemplateTalk, Name: "Template talk", Case: FirstLetter},
	{ID: Help, Name: "Help", Case: FirstLetter},
	{ID: HelpTalk, Name: "Help talk", Case: FirstLetter},
	{ID: Category, Name: "Category", Case: FirstLetter, Aliases: []string{"CAT"}},
	{ID: CategoryTalk, Name: "Category talk", Case: FirstLetter},
	{ID: Module, Name: "Module", Case: FirstLetter},
	{ID: ModuleTalk, Name: "Module talk", Case: FirstLetter},
})

// NewMap builds a Map from an explicit namespace list, indexing names and
// aliases case-insensitively.
func NewMap(namespaces []*Namespace) *Map {
	m := &Map{
		byID:   make(map[int]*Namespace, len(namespaces)),
		byName: make(map[string]*Namespace, len(namespaces)*2),
	}
	for _, ns := range namespaces {
		m.byID[ns.ID] = ns
		m.byName[strings.ToLower(ns.Name)] = ns
		for _, alias := range ns.Aliases {
			m.byName[strings.ToLower(alias)] = ns
		}
	}
	return m
}

// ByID returns the namespace with the given ID, or nil.
func (m *Map) ByID(id int) *Namespace {
	return m.byID[id]
}

// ByName resolves a namespace name or alias case-insensitively. An empty
// string resolves to the Main namespace.
func (m *Map) ByName(name string) (*Namespace, bool) {
	ns, ok := m.byName[strings.ToLower(strings.TrimSpace(name))]
	return ns, ok
}

// Main returns the main (ID 0) namespace.
func (m *Map) Main() *Namespace {
	return m.byID[Main]
}

// WithSiteInfo returns a derived Map that additionally indexes the
// installation-specific namespace names parsed from a dump's <siteinfo>
// block, keyed by their MediaWiki numeric IDs. Names the base table
// doesn't know about (custom namespaces) are added; for a known ID the
// siteinfo name becomes the namespace's Name, and the base entry's name
// and aliases stay on as aliases, with its case rule kept.
func (m *Map) WithSiteInfo(entries map[int]string) *Map {
	merged := make(map[int]*Namespace, len(m.byID)+len(entries))
	for id, ns := range m.byID {
		merged[id] = ns
	}
	for id, name := range entries {
		if existing, ok := merged[id]; ok {
			aliases := append([]string{existing.Name}, existing.Aliases...)
			merged[id] = &Namespace{ID: id, Name: name, Case: existing.Case, Aliases: aliases}
		} else {
			merged[id] = &Namespace{ID: id, Name: name, Case: FirstLetter}
		}
	}
	list := make([]*Namespace, 0, len(merged))
	for _, ns := range merged {
		list = append(list, ns)
	}
	return NewMap(list)
}
