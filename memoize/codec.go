package memoize

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/bytedance/sonic"
)

// Codec serializes cached values for the persistent store and for the
// deep-copy-on-read policy.
//
// Contract:
// - Round-trip: Unmarshal(Marshal(v)) must yield a value equal to v.
// - Concurrency: implementations must be safe for concurrent use.
type Codec interface {
	// Marshal encodes a value to bytes.
	Marshal(v any) ([]byte, error)

	// Unmarshal decodes bytes into the value pointed to by v.
	Unmarshal(data []byte, v any) error
}

// GobCodec encodes values with encoding/gob. It is the default codec and
// handles arbitrary concrete Go types without field tags.
type GobCodec struct{}

// Marshal encodes v with gob.
func (GobCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("%w: gob: %w", ErrEncode, err)
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes gob data into v, which must be a pointer.
func (GobCodec) Unmarshal(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

// JSONCodec encodes values as JSON. Useful when persisted entries should stay
// human-inspectable on disk. Values must round-trip through JSON.
type JSONCodec struct{}

// Marshal encodes v as JSON.
func (JSONCodec) Marshal(v any) ([]byte, error) {
	data, err := sonic.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: json: %w", ErrEncode, err)
	}
	return data, nil
}

// Unmarshal decodes JSON data into v, which must be a pointer.
func (JSONCodec) Unmarshal(data []byte, v any) error {
	return sonic.Unmarshal(data, v)
}

// copyValue returns a deep copy of v by round-tripping it through the codec.
func copyValue[V any](codec Codec, v V) (V, error) {
	var out V
	data, err := codec.Marshal(v)
	if err != nil {
		return out, err
	}
	if err := codec.Unmarshal(data, &out); err != nil {
		return out, err
	}
	return out, nil
}

// Ensure both codecs implement Codec
var (
	_ Codec = GobCodec{}
	_ Codec = JSONCodec{}
)
