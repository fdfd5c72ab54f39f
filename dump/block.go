package dump

import (
	"bytes"
	"compress/bzip2"
	"context"
	"io"

	"github.com/pkg/errors"

	"github.com/kepler-wiki/wikireader/cache"
)

// BlockCache decompresses and caches the bz2 streams of a multistream
// archive, keyed by stream byte offset. compress/bzip2.NewReader decodes
// exactly one self-delimiting stream and reports io.EOF at its natural
// end — there is no multistream auto-continuation in the standard
// library, which is exactly the block granularity this cache wants: one
// entry per independently-decodable ~100-page chunk.
//
// Grounded on dustin/go-wikiparse's multiStreamParser, which opens the
// archive per worker and seeks to each offset; this store instead holds
// one shared *os.File and reads each block through io.NewSectionReader,
// which is safe for concurrent callers since ReadAt never moves a shared
// cursor.
type BlockCache struct {
	archive io.ReaderAt
	size    int64
	blocks  *cache.Cache[int64, []byte]
}

// NewBlockCache wraps archive (the full database.xml.bz2 file opened for
// ReadAt) with a byte-budget LRU of decompressed blocks. size is the
// archive's total length, used to bound decompression reads that don't
// know their own stream's end offset.
func NewBlockCache(archive io.ReaderAt, size int64, capacityBytes int64) *BlockCache {
	return &BlockCache{
		archive: archive,
		size:    size,
		blocks: cache.New[int64, []byte](capacityBytes, func(b []byte) int64 {
			return int64(len(b))
		}),
	}
}

// Get returns the fully decompressed bytes of the block beginning at
// streamOffset, decompressing and caching it on first access. Concurrent
// callers requesting the same offset share one decompression.
func (bc *BlockCache) Get(ctx context.Context, streamOffset int64) ([]byte, error) {
	return bc.blocks.GetOrLoad(ctx, streamOffset, func(ctx context.Context) ([]byte, error) {
		return bc.decompress(streamOffset)
	})
}

func (bc *BlockCache) decompress(streamOffset int64) ([]byte, error) {
	if streamOffset < 0 || streamOffset >= bc.size {
		return nil, errors.Wrapf(ErrDecompressFailed, "offset %d out of range [0,%d)", streamOffset, bc.size)
	}
	section := io.NewSectionReader(bc.archive, streamOffset, bc.size-streamOffset)
	zr := bzip2.NewReader(section)

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, zr); err != nil {
		return nil, errors.Wrapf(ErrDecompressFailed, "at offset %d: %v", streamOffset, err)
	}
	return buf.Bytes(), nil
}

// Stats reports cumulative block cache hit/miss counts.
func (bc *BlockCache) Stats() (hits, misses int64) {
	return bc.blocks.Stats()
}
