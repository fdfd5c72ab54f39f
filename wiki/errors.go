package wiki

import "errors"

// Sentinel errors surfaced at the HTTP boundary, one per error-taxonomy
// tier from the rendering pipeline's design: input errors become a 404
// with a friendly page, fatal errors become a 500 or a startup exit.
// Data errors and expansion errors are not sentinels here — they are
// logged and surfaced as inline markers or skipped records deep inside
// the pipeline, and never propagate up as a failed request.
var (
	// ErrPageNotFound means the requested title has no entry in the dump
	// index.
	ErrPageNotFound = errors.New("page not found")
	// ErrEmptyQuery means a search was requested with no query string.
	ErrEmptyQuery = errors.New("empty search query")
	// ErrDumpUnavailable means the index or archive failed to open at
	// startup; fatal.
	ErrDumpUnavailable = errors.New("dump index or archive unavailable")
	// ErrRenderTimedOut means a render was cancelled by its context
	// before completion (client disconnect, request deadline).
	ErrRenderTimedOut = errors.New("render cancelled")
)
