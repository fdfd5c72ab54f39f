package page

import "errors"

// Sentinel errors for the XML page extractor (C2), per spec §4.2.
var (
	// ErrPageNotInBlock means a block was decompressed successfully but
	// contained no <page> whose title matched the one being looked for.
	ErrPageNotInBlock = errors.New("page not found in block")
	// ErrMalformedXML means a block's bytes could not be decoded as a
	// sequence of <page> elements at all.
	ErrMalformedXML = errors.New("malformed page XML")
)
