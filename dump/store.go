package dump

import (
	"context"
	"os"

	"github.com/pkg/errors"

	"github.com/kepler-wiki/wikireader/title"
)

// Store is the top-level handle on an offline dump: its title index and
// its compressed archive. Callers resolve a title via Search or Lookup,
// then fetch the decompressed block containing that title's page with
// Fetch; splitting the block into individual <page> elements is the
// page package's job, not this one's.
type Store struct {
	Index *Index

	file  *os.File
	cache *BlockCache
}

// Open opens the index file at indexPath and the multistream archive at
// archivePath, building the title index and a block cache bounded to
// blockCacheBytes. The returned Store owns the archive's *os.File and
// must be Closed by the caller.
func Open(indexPath, archivePath string, nsmap *title.Map, blockCacheBytes int64) (*Store, error) {
	indexFile, err := os.Open(indexPath)
	if err != nil {
		return nil, errors.Wrap(ErrIoError, err.Error())
	}
	defer indexFile.Close()

	idx, err := BuildIndex(indexFile, nsmap)
	if err != nil {
		return nil, err
	}

	archive, err := os.Open(archivePath)
	if err != nil {
		return nil, errors.Wrap(ErrIoError, err.Error())
	}
	info, err := archive.Stat()
	if err != nil {
		archive.Close()
		return nil, errors.Wrap(ErrIoError, err.Error())
	}

	return &Store{
		Index: idx,
		file:  archive,
		cache: NewBlockCache(archive, info.Size(), blockCacheBytes),
	}, nil
}

// Close releases the archive file handle.
func (s *Store) Close() error {
	return s.file.Close()
}

// Fetch resolves raw (a possibly unnormalized title string) against the
// index and returns the fully decompressed bytes of the bz2 block
// holding it, along with the matched index entry. It returns
// ErrTitleNotFound if raw has no entry in the index.
func (s *Store) Fetch(ctx context.Context, raw string) ([]byte, *Entry, error) {
	entry, ok := s.Index.Lookup(raw)
	if !ok {
		return nil, nil, ErrTitleNotFound
	}
	block, err := s.cache.Get(ctx, entry.StreamOffset)
	if err != nil {
		return nil, nil, err
	}
	return block, entry, nil
}

// FetchEntry is like Fetch but takes an already-resolved index entry,
// for callers that got it from Search rather than Lookup.
func (s *Store) FetchEntry(ctx context.Context, entry *Entry) ([]byte, error) {
	return s.cache.Get(ctx, entry.StreamOffset)
}

// BlockCacheStats reports the underlying block cache's hit/miss counts.
func (s *Store) BlockCacheStats() (hits, misses int64) {
	return s.cache.Stats()
}
