package memoize

import "errors"

// Sentinel errors for memoization operations.
var (
	// ErrNilEngine is returned when a wrapped function is bound to a nil engine.
	ErrNilEngine = errors.New("memoize: engine is nil")

	// ErrInvalidKey is returned when a derived cache key is empty or malformed.
	ErrInvalidKey = errors.New("memoize: key is invalid")

	// ErrUnhashableArgument is returned when a call argument cannot be turned
	// into a stable cache key representation. Surfaced to the caller; no cache
	// state is touched.
	ErrUnhashableArgument = errors.New("memoize: argument cannot be encoded into a cache key")

	// ErrFingerprint is returned when the fingerprint function fails. Surfaced
	// to the caller; no cache entry is written or updated.
	ErrFingerprint = errors.New("memoize: fingerprint computation failed")

	// ErrPersistence is returned when the persistent store's backing directory
	// is unwritable on a write attempt. Read-side corruption is never surfaced;
	// it is logged and treated as a miss.
	ErrPersistence = errors.New("memoize: persistent store write failed")

	// ErrEncode is returned when a value cannot be serialized by the
	// configured codec.
	ErrEncode = errors.New("memoize: value cannot be encoded")
)
