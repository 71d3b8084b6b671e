package ingest

import "github.com/rotisserie/eris"

var (
	// ErrTimestampFormat marks a revision timestamp that is not ISO-8601.
	ErrTimestampFormat = eris.New("revision timestamp is not ISO-8601")
	// ErrNoRevision marks a page record without any revision.
	ErrNoRevision = eris.New("page has no revision")
	// ErrIdentifierOverflow marks an identifier block that would leave the int64 range.
	ErrIdentifierOverflow = eris.New("identifier space exhausted")
)
