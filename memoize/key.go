package memoize

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

// Keyer derives a stable cache key from a function identity and the
// arguments it was called with.
//
// Contract:
// - Determinism: structurally equal calls must produce equal keys, regardless
//   of map iteration order.
// - Failure: an argument without a canonical encoding must surface
//   ErrUnhashableArgument, never a silently unstable key.
// - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	// Key derives a cache key for one call of the named function.
	Key(function string, call CallContext) (string, error)
}

// DefaultKeyer generates SHA-256 based cache keys from a canonical JSON
// rendering of the call context.
type DefaultKeyer struct{}

// NewDefaultKeyer creates a new default keyer.
func NewDefaultKeyer() *DefaultKeyer {
	return &DefaultKeyer{}
}

// Key derives a deterministic cache key.
// Format: memoize:<function>:<hash>
// where hash is the first 16 hex characters of SHA-256 over the canonical
// JSON of [args, named]. Named values are serialized in sorted-name order so
// naming is order-independent.
func (k *DefaultKeyer) Key(function string, call CallContext) (string, error) {
	args, err := canonicalizeSlice(call.Args)
	if err != nil {
		return "", fmt.Errorf("%w: positional arguments: %w", ErrUnhashableArgument, err)
	}

	named, err := canonicalizeNamed(call.Named)
	if err != nil {
		return "", fmt.Errorf("%w: named arguments: %w", ErrUnhashableArgument, err)
	}

	payload := make([]byte, 0, len(args)+len(named)+3)
	payload = append(payload, '[')
	payload = append(payload, args...)
	payload = append(payload, ',')
	payload = append(payload, named...)
	payload = append(payload, ']')

	hash := sha256.Sum256(payload)
	hashStr := hex.EncodeToString(hash[:8]) // First 8 bytes = 16 hex chars

	return fmt.Sprintf("memoize:%s:%s", function, hashStr), nil
}

// ValidateKey checks if a key is valid for caching.
func ValidateKey(key string) error {
	if key == "" || strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return fmt.Errorf("%w: exceeds %d bytes", ErrInvalidKey, MaxKeyLength)
	}
	// Reject keys with newlines or carriage returns
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}

// SingleSlotKeyer derives one key per function, ignoring arguments entirely.
// The cache then holds a single slot per wrapped function, gated purely by
// the fingerprint. Use it via Config.Keyer when argument values should not
// partition the cache.
type SingleSlotKeyer struct{}

// Key derives the per-function slot key.
func (SingleSlotKeyer) Key(function string, _ CallContext) (string, error) {
	return "memoize:" + function + ":slot", nil
}

// canonicalize produces a deterministic JSON representation of v.
// Maps are rendered in sorted-key order so iteration order never leaks into
// the key. Values without a JSON encoding (funcs, channels, NaN, cycles)
// fail with the underlying encoding error.
func canonicalize(v any) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}

	switch val := v.(type) {
	case map[string]any:
		return canonicalizeNamed(val)
	case []any:
		return canonicalizeSlice(val)
	default:
		// encoding/json already sorts map keys and walks struct fields in
		// declaration order, both of which are stable.
		return json.Marshal(v)
	}
}

func canonicalizeNamed(m map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := []byte("{")
	for i, k := range keys {
		if i > 0 {
			result = append(result, ',')
		}

		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		result = append(result, keyBytes...)
		result = append(result, ':')

		valBytes, err := canonicalize(m[k])
		if err != nil {
			return nil, fmt.Errorf("value of %q: %w", k, err)
		}
		result = append(result, valBytes...)
	}
	result = append(result, '}')

	return result, nil
}

func canonicalizeSlice(s []any) ([]byte, error) {
	result := []byte("[")
	for i, v := range s {
		if i > 0 {
			result = append(result, ',')
		}

		valBytes, err := canonicalize(v)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		result = append(result, valBytes...)
	}
	result = append(result, ']')

	return result, nil
}

// Ensure both keyers implement Keyer
var (
	_ Keyer = (*DefaultKeyer)(nil)
	_ Keyer = SingleSlotKeyer{}
)
