// Package fingerprint provides ready-made fingerprint functions for the
// memoize package: file content hashes, file stat summaries, environment
// variables and the host OS version. Each constructor returns a
// memoize.FingerprintFunc suitable for Config.Fingerprint.
package fingerprint
