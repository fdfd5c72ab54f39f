package dump

import (
	"strconv"
	"strings"
	"testing"

	"github.com/kepler-wiki/wikireader/title"
)

const sampleIndex = `597:10:AccessibleComputing
597:12:Anarchism
597:13:AfghanistanHistory
12345:14:Template:Infobox
12345:15:Category:Living people
99999999999:16:Zebra
`

func buildSampleIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := BuildIndex(strings.NewReader(sampleIndex), title.Default)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	return idx
}

func TestBuildIndex(t *testing.T) {
	idx := buildSampleIndex(t)
	if idx.Len() != 6 {
		t.Fatalf("Len() = %d, want 6", idx.Len())
	}

	e, ok := idx.Lookup("anarchism")
	if !ok {
		t.Fatalf("expected lookup of anarchism to resolve via case folding")
	}
	if e.Title.Key() != "Anarchism" || e.StreamOffset != 597 {
		t.Fatalf("got %+v", e)
	}

	if _, ok := idx.Lookup("Nonexistent Page"); ok {
		t.Fatalf("expected no match for nonexistent page")
	}
}

func TestBuildIndexSkipsMalformedLines(t *testing.T) {
	input := "597:10:Good\nnotanumber:1:Bad\njustonecolon\n1000:2:AlsoGood\n"
	idx, err := BuildIndex(strings.NewReader(input), title.Default)
	if err != nil {
		t.Fatalf("BuildIndex returned error for I/O-clean but line-malformed input: %v", err)
	}
	if idx.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (malformed lines skipped)", idx.Len())
	}
}

func TestIndexSearchRanking(t *testing.T) {
	idx := buildSampleIndex(t)

	results := idx.Search("an", 10)
	if len(results) == 0 {
		t.Fatalf("expected at least one match for %q", "an")
	}
	// "Anarchism" is a prefix match on "an"; "AfghanistanHistory" only
	// contains "an" as a substring, so Anarchism must rank first.
	if results[0].Title.Key() != "Anarchism" {
		t.Fatalf("first result = %q, want Anarchism", results[0].Title.Key())
	}

	exact := idx.Search("Zebra", 10)
	if len(exact) == 0 || exact[0].Title.Key() != "Zebra" {
		t.Fatalf("expected exact match to rank first, got %+v", exact)
	}
}

func TestIndexSearchLimit(t *testing.T) {
	idx := buildSampleIndex(t)
	if got := idx.Search("a", 2); len(got) != 2 {
		t.Fatalf("Search with limit=2 returned %d results", len(got))
	}
}

func TestIndexSearchEmptyQuery(t *testing.T) {
	idx := buildSampleIndex(t)
	if got := idx.Search("", 10); got != nil {
		t.Fatalf("expected nil for empty query, got %v", got)
	}
}

// TestIndexSearchRankSurvivesEarlyLexicographicNoise builds an index
// where dozens of substring-only matches for "Linux" sort well before
// the exact/prefix matches ("Linux", "Linux kernel"). A scan that
// truncates once it has accumulated limit*N candidates of any rank
// would fill its budget on the early substring hits and never see the
// true top matches.
func TestIndexSearchRankSurvivesEarlyLexicographicNoise(t *testing.T) {
	var sb strings.Builder
	offset := int64(0)
	pageID := int64(0)
	// 40 titles starting with letters before "L" that merely contain
	// "linux" as a substring.
	for i := 0; i < 40; i++ {
		sb.WriteString(strconv.FormatInt(offset, 10))
		sb.WriteByte(':')
		sb.WriteString(strconv.FormatInt(pageID, 10))
		sb.WriteByte(':')
		sb.WriteString("Comparison_of_Linux_distributions_")
		sb.WriteString(strconv.Itoa(i))
		sb.WriteByte('\n')
		offset++
		pageID++
	}
	for _, title := range []string{"Linux", "Linux kernel", "Linux Mint"} {
		sb.WriteString(strconv.FormatInt(offset, 10))
		sb.WriteByte(':')
		sb.WriteString(strconv.FormatInt(pageID, 10))
		sb.WriteByte(':')
		sb.WriteString(title)
		sb.WriteByte('\n')
		offset++
		pageID++
	}

	idx, err := BuildIndex(strings.NewReader(sb.String()), title.Default)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}

	results := idx.Search("Linux", 3)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d: %+v", len(results), results)
	}
	if results[0].Title.Key() != "Linux" {
		t.Fatalf("first result = %q, want exact match Linux", results[0].Title.Key())
	}
	got := map[string]bool{}
	for _, r := range results {
		got[r.Title.Key()] = true
	}
	for _, want := range []string{"Linux", "Linux kernel", "Linux Mint"} {
		if !got[want] {
			t.Errorf("expected %q among results, got %+v", want, results)
		}
	}
}
