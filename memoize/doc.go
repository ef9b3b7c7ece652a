// Package memoize provides conditional memoization for function results.
//
// A cached result is reused only while a caller-supplied fingerprint of the
// state it depends on stays unchanged, and is recomputed the moment the
// fingerprint changes, independent of the literal call arguments. Results are
// kept in a volatile in-process store and, optionally, in a persistent
// on-disk store that survives restarts.
package memoize
