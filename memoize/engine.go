package memoize

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// FingerprintFunc summarizes the external state a cached result depends on.
// It receives the same call context as the wrapped function and returns an
// opaque token; equality of tokens across calls is the sole reuse condition.
//
// Contract:
// - Determinism: the token must be stable while the dependent state is
//   unchanged, and must change if and only if the result should be recomputed.
// - Failure: a returned error aborts the call with ErrFingerprint; no cache
//   state is touched.
type FingerprintFunc func(ctx context.Context, call CallContext) (string, error)

// constantFingerprint is the sentinel used when no fingerprint function is
// configured. Every call on a key then reuses the first successful result.
const constantFingerprint = "memoize:constant"

// Config configures one Engine.
type Config struct {
	// Fingerprint gates reuse of cached entries. Nil selects a constant
	// sentinel: the first successful result for a key is returned for every
	// subsequent call on that key, regardless of arguments.
	Fingerprint FingerprintFunc

	// ReturnCopy returns a deep copy of the cached value on every hit (and on
	// the miss that produced it), so mutating a returned value never mutates
	// the stored entry. Copies go through the codec. Default false: the
	// stored reference is returned as-is and the caller must not mutate it.
	ReturnCopy bool

	// Dir enables the persistent store rooted at this directory. Entries for
	// each engine live in a per-function subdirectory, created on first
	// write. Empty disables persistence.
	Dir string

	// Compression is the zstd level applied to persisted values. 0 disables
	// compression.
	Compression int

	// SingleFlight collapses concurrent misses for the same key and
	// fingerprint into one computation. Default false: concurrent stale
	// callers may both recompute.
	SingleFlight bool

	// Keyer derives cache keys. Nil selects DefaultKeyer.
	Keyer Keyer

	// Codec serializes values for persistence and deep copies.
	// Nil selects GobCodec.
	Codec Codec

	// Logger receives the persistent-read-corruption warnings and debug
	// output. Nil selects zap.NewNop().
	Logger *zap.Logger

	// MeterProvider supplies the meter for hit/miss/promotion counters and
	// the call-duration histogram. Nil disables metrics.
	MeterProvider metric.MeterProvider

	// TracerProvider supplies the tracer for per-call spans.
	// Nil disables tracing.
	TracerProvider trace.TracerProvider
}

// Engine orchestrates memoized calls for exactly one wrapped function: it
// derives the cache key, computes the fingerprint, consults the volatile then
// the persistent store, decides hit or miss, invokes the computation on miss
// and writes the result back to both tiers.
type Engine[V any] struct {
	name        string
	keyer       Keyer
	fingerprint FingerprintFunc
	returnCopy  bool
	codec       Codec
	memory      *MemoryStore[V]
	disk        *DiskStore
	group       *singleflight.Group
	logger      *zap.Logger
	tel         *telemetry
}

// New creates an Engine for the named function. The name is part of every
// cache key and of the persistent layout, so it should be stable across
// process restarts (a package-qualified function name works well).
func New[V any](name string, cfg Config) (*Engine[V], error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: function name is empty", ErrInvalidKey)
	}

	e := &Engine[V]{
		name:        name,
		keyer:       cfg.Keyer,
		fingerprint: cfg.Fingerprint,
		returnCopy:  cfg.ReturnCopy,
		codec:       cfg.Codec,
		memory:      NewMemoryStore[V](),
		logger:      cfg.Logger,
	}

	if e.keyer == nil {
		e.keyer = NewDefaultKeyer()
	}
	if e.codec == nil {
		e.codec = GobCodec{}
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.fingerprint == nil {
		e.fingerprint = func(context.Context, CallContext) (string, error) {
			return constantFingerprint, nil
		}
	}
	if cfg.SingleFlight {
		e.group = new(singleflight.Group)
	}

	if cfg.Dir != "" {
		disk, err := NewDiskStore(filepath.Join(cfg.Dir, sanitizeName(name)), cfg.Compression, e.logger)
		if err != nil {
			return nil, err
		}
		e.disk = disk
	}

	tel, err := newTelemetry(cfg.MeterProvider, cfg.TracerProvider)
	if err != nil {
		return nil, err
	}
	e.tel = tel

	return e, nil
}

// Name returns the function name this engine caches for.
func (e *Engine[V]) Name() string {
	return e.name
}

// Call runs one memoized invocation.
//
// Key derivation or fingerprint failures abort the call before any cache
// mutation. On a hit (an entry exists and its fingerprint equals the freshly
// computed one, exact equality) the stored value is returned, deep-copied
// first when ReturnCopy is set. On a miss, compute runs to completion; its
// result replaces any prior entry in both tiers and is returned. A compute
// failure is propagated unchanged, is never cached, and leaves any prior
// entry for the key untouched.
func (e *Engine[V]) Call(ctx context.Context, call CallContext, compute func(context.Context) (V, error)) (V, error) {
	var zero V
	if e == nil {
		return zero, ErrNilEngine
	}

	start := time.Now()
	ctx, span := e.tel.startSpan(ctx, e.name)

	key, err := e.keyer.Key(e.name, call)
	if err == nil {
		err = ValidateKey(key)
	}
	if err != nil {
		e.tel.endSpan(span, false, err)
		return zero, err
	}

	fp, err := e.fingerprint(ctx, call)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrFingerprint, err)
		e.tel.endSpan(span, false, err)
		return zero, err
	}

	entry, found, tier := e.lookup(ctx, key)

	if found && entry.Fingerprint == fp {
		value := entry.Value
		if e.returnCopy {
			value, err = copyValue(e.codec, value)
			if err != nil {
				e.tel.endSpan(span, true, err)
				return zero, err
			}
		}
		e.logger.Debug("funcache: hit",
			zap.String("function", e.name), zap.String("key", key), zap.String("tier", tier))
		e.tel.recordCall(ctx, e.name, true, tier, time.Since(start))
		e.tel.endSpan(span, true, nil)
		return value, nil
	}

	value, err := e.miss(ctx, key, fp, compute)
	if err != nil {
		e.tel.recordCall(ctx, e.name, false, "", time.Since(start))
		e.tel.endSpan(span, false, err)
		return zero, err
	}

	if e.returnCopy {
		// Keep the stored copy and the returned value independent.
		value, err = copyValue(e.codec, value)
		if err != nil {
			e.tel.endSpan(span, false, err)
			return zero, err
		}
	}

	e.logger.Debug("funcache: miss",
		zap.String("function", e.name), zap.String("key", key))
	e.tel.recordCall(ctx, e.name, false, "", time.Since(start))
	e.tel.endSpan(span, false, nil)
	return value, nil
}

// lookup consults the volatile store and falls back to the persistent store,
// promoting a persisted entry into memory when found.
func (e *Engine[V]) lookup(ctx context.Context, key string) (Entry[V], bool, string) {
	if entry, ok := e.memory.Get(ctx, key); ok {
		return entry, true, "memory"
	}

	if e.disk == nil {
		return Entry[V]{}, false, ""
	}

	fp, data, ok := e.disk.Get(ctx, key)
	if !ok {
		return Entry[V]{}, false, ""
	}

	var value V
	if err := e.codec.Unmarshal(data, &value); err != nil {
		// Persisted bytes the codec cannot decode are corruption too:
		// log and recompute rather than surface the defect.
		e.logger.Warn("funcache: undecodable cache entry, treating as miss",
			zap.String("function", e.name), zap.String("key", key), zap.Error(err))
		return Entry[V]{}, false, ""
	}

	entry := Entry[V]{Fingerprint: fp, Value: value}
	e.memory.Put(ctx, key, entry)
	e.tel.recordPromotion(ctx, e.name)
	return entry, true, "disk"
}

// miss computes a fresh value and writes it to both tiers. When SingleFlight
// is enabled, concurrent misses for the same key and fingerprint share one
// computation.
func (e *Engine[V]) miss(ctx context.Context, key, fp string, compute func(context.Context) (V, error)) (V, error) {
	if e.group == nil {
		return e.computeAndStore(ctx, key, fp, compute)
	}

	// Keyed by fingerprint as well, so a caller holding a newer fingerprint
	// never receives a result computed under a stale one.
	flightKey := key + "\x00" + fp
	result, err, _ := e.group.Do(flightKey, func() (any, error) {
		return e.computeAndStore(ctx, key, fp, compute)
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return result.(V), nil
}

func (e *Engine[V]) computeAndStore(ctx context.Context, key, fp string, compute func(context.Context) (V, error)) (V, error) {
	value, err := compute(ctx)
	if err != nil {
		// Never cached; a prior entry for the key stays as it was.
		var zero V
		return zero, err
	}

	e.memory.Put(ctx, key, Entry[V]{Fingerprint: fp, Value: value})

	if e.disk != nil {
		data, err := e.codec.Marshal(value)
		if err != nil {
			return value, err
		}
		if err := e.disk.Put(ctx, key, fp, data); err != nil {
			return value, err
		}
	}

	return value, nil
}

// sanitizeName maps a function name to a filesystem-safe directory name.
func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, name)
}
