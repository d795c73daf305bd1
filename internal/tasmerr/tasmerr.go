// Package tasmerr defines the error taxonomy from spec.md §7. Every value
// is a sentinel meant to be wrapped with fmt.Errorf("...: %w", sentinel) at
// the call site and classified by callers with errors.Is. None of these
// are logged-and-continued inside the core; every occurrence aborts the
// operation that raised it.
package tasmerr

import "errors"

var (
	// CorruptCatalog signals a missing or mis-sized layout file, a gap in
	// committed versions, or mismatched tile counts on disk.
	CorruptCatalog = errors.New("corrupt catalog")

	// SerializationMismatch signals a serialized TileLayout whose version
	// field is not the one this package understands.
	SerializationMismatch = errors.New("serialization version mismatch")

	// EncoderUnavailable signals that a hardware or session-level encoder
	// failed to initialize; the caller must roll back any open
	// CrackingTransaction.
	EncoderUnavailable = errors.New("encoder unavailable")

	// DecoderReconfigureFailed signals that switching the decoder to a new
	// layout mid-query exceeded decoder limits; the query fails and the
	// catalog is left unmutated.
	DecoderReconfigureFailed = errors.New("decoder reconfigure failed")

	// NoSuchFrame signals that a queried frame falls outside every
	// committed version's frame range.
	NoSuchFrame = errors.New("no such frame")

	// InvalidPredicate signals a malformed metadata selection, rejected
	// before any work starts.
	InvalidPredicate = errors.New("invalid predicate")
)
