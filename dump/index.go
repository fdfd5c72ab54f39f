package dump

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/kepler-wiki/wikireader/title"
)

// Entry is one line of a multistream index: the byte offset of the bz2
// stream holding the page, the page's numeric ID, and its normalized
// title. Many Entries share the same StreamOffset — that's a block.
//
// Grounded on dustin/go-wikiparse's IndexEntry; StreamOffset here is not
// reconstructed via the 32-bit-rollover heuristic go-wikiparse uses for
// the old "index file written with a signed 32 bit counter" quirk, since
// this reader trusts the decimal offsets in index.txt verbatim.
type Entry struct {
	StreamOffset int64
	PageID       int64
	Title        title.Title
}

// Index maps titles to their Entry and supports exact, prefix, and
// substring title search. It is built once at startup and is read-only
// thereafter.
type Index struct {
	nsmap   *title.Map
	byTitle map[string]*Entry // keyed by Entry.Title.Key()
	sorted  []*Entry          // sorted by key, for search
}

// Len returns the number of indexed titles.
func (idx *Index) Len() int { return len(idx.sorted) }

// TitleAt returns the i'th title in sort order, for callers (Special:
// Random) that want an arbitrary indexed title without a query string.
// Panics if i is out of range; callers are expected to mod against Len.
func (idx *Index) TitleAt(i int) string {
	return idx.sorted[i].Title.Key()
}

// Lookup resolves a raw (not yet normalized) title to its index entry.
func (idx *Index) Lookup(raw string) (*Entry, bool) {
	key := title.Normalize(raw, idx.nsmap).Key()
	e, ok := idx.byTitle[key]
	return e, ok
}

// LookupTitle resolves an already-normalized title.
func (idx *Index) LookupTitle(t title.Title) (*Entry, bool) {
	e, ok := idx.byTitle[t.Key()]
	return e, ok
}

// matchRank classifies how well a candidate key matches a lowercased
// query: 0 = exact, 1 = prefix, 2 = substring, -1 = no match.
func matchRank(lowerKey, lowerQuery string) int {
	switch {
	case lowerKey == lowerQuery:
		return 0
	case strings.HasPrefix(lowerKey, lowerQuery):
		return 1
	case strings.Contains(lowerKey, lowerQuery):
		return 2
	default:
		return -1
	}
}

// Search returns up to limit entries matching q, ranked first by exact
// case-insensitive equality, then prefix match, then substring match;
// ties are broken by title order. See spec §4.1 and the Open Question in
// §9(a): where both a prefix match and a case-variant exact match exist,
// ties are broken purely by title order, since the source does not
// specify a tiebreak and this keeps Search deterministic.
func (idx *Index) Search(q string, limit int) []*Entry {
	if q == "" || limit <= 0 {
		return nil
	}
	lowerQuery := strings.ToLower(q)

	// Every entry must be classified before any bucket is truncated:
	// substring matches (rank 2) are scattered across the whole
	// lexicographic range of idx.sorted and can fill a shared budget
	// long before the scan reaches the exact/prefix matches (rank 0/1)
	// for a query whose real matches sort late.
	buckets := [3][]*Entry{}
	for _, e := range idx.sorted {
		rank := matchRank(strings.ToLower(e.Title.Key()), lowerQuery)
		if rank < 0 {
			continue
		}
		buckets[rank] = append(buckets[rank], e)
	}

	out := make([]*Entry, 0, limit)
	for _, bucket := range buckets {
		for _, e := range bucket {
			out = append(out, e)
			if len(out) == limit {
				return out
			}
		}
	}
	return out
}

// BuildIndex parses a multistream index.txt stream (one
// "byte_offset:page_id:title" record per line) into an Index. Lines that
// fail to parse are skipped with a warning, per spec §6; BuildIndex
// itself only fails on an I/O error reading r.
func BuildIndex(r io.Reader, nsmap *title.Map) (*Index, error) {
	if nsmap == nil {
		nsmap = title.Default
	}
	idx := &Index{
		nsmap:   nsmap,
		byTitle: make(map[string]*Entry),
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}
		entry, err := parseIndexLine(line, nsmap)
		if err != nil {
			slog.Warn("skipping malformed index line", "line", lineNo, "error", err)
			continue
		}
		idx.byTitle[entry.Title.Key()] = entry
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading index")
	}

	idx.sorted = make([]*Entry, 0, len(idx.byTitle))
	for _, e := range idx.byTitle {
		idx.sorted = append(idx.sorted, e)
	}
	sort.Slice(idx.sorted, func(i, j int) bool {
		return idx.sorted[i].Title.Key() < idx.sorted[j].Title.Key()
	})

	return idx, nil
}

func parseIndexLine(line string, nsmap *title.Map) (*Entry, error) {
	parts := strings.SplitN(line, ":", 3)
	if len(parts) != 3 {
		return nil, errors.Wrapf(ErrIndexMalformed, "expected 3 colon-separated fields, got %d", len(parts))
	}

	offset, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, errors.Wrap(fmt.Errorf("%w: %v", ErrIndexMalformed, err), "byte_offset")
	}
	pageID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, errors.Wrap(fmt.Errorf("%w: %v", ErrIndexMalformed, err), "page_id")
	}

	return &Entry{
		StreamOffset: offset,
		PageID:       pageID,
		Title:        title.Normalize(parts[2], nsmap),
	}, nil
}
