package dump

import "errors"

// Sentinel errors for the index & block store.
var (
	// ErrIndexMalformed is returned (per line, not fatally) when an
	// index.txt record cannot be split into offset:page_id:title.
	ErrIndexMalformed = errors.New("malformed index record")
	// ErrTitleNotFound means the title has no entry in the index.
	ErrTitleNotFound = errors.New("title not found in index")
	// ErrDecompressFailed means the bz2 stream at the given offset could
	// not be decoded.
	ErrDecompressFailed = errors.New("failed to decompress stream")
	// ErrIoError wraps an underlying I/O failure opening the index or
	// archive.
	ErrIoError = errors.New("i/o error")
)
