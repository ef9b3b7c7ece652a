package memoize

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
)

// DiskStore is the persistent store. It keeps one file per cache key under a
// caller-specified directory and survives process restarts.
//
// The directory is created on first write, not at construction. A write to an
// unwritable location fails with ErrPersistence. A read that hits corruption
// (truncated file, bad compression, bad envelope) is logged and reported as a
// miss: recomputing is always preferred over returning a possibly corrupt
// value.
type DiskStore struct {
	dir     string
	encoder *zstd.Encoder
	decoder *zstd.Decoder
	logger  *zap.Logger
}

// diskEntry is the on-disk envelope. Value holds the codec-encoded result,
// optionally zstd-compressed.
type diskEntry struct {
	Fingerprint string
	Compressed  bool
	Value       []byte
}

// NewDiskStore creates a persistent store rooted at dir. compressionLevel is
// a zstd level; 0 disables compression. A nil logger is replaced with a nop.
func NewDiskStore(dir string, compressionLevel int, logger *zap.Logger) (*DiskStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &DiskStore{
		dir:    dir,
		logger: logger,
	}

	// The decoder always exists so entries written by a compressed store can
	// be read back regardless of this store's own compression setting.
	var err error
	s.decoder, err = zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: zstd decoder: %w", ErrPersistence, err)
	}

	if compressionLevel > 0 {
		s.encoder, err = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(compressionLevel)))
		if err != nil {
			return nil, fmt.Errorf("%w: zstd encoder: %w", ErrPersistence, err)
		}
	}

	return s, nil
}

// Get retrieves the fingerprint and encoded value for key.
// Returns ok=false on miss, including any form of read corruption.
func (s *DiskStore) Get(_ context.Context, key string) (fingerprint string, value []byte, ok bool) {
	path := s.entryPath(key)

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("funcache: unreadable cache entry, treating as miss",
				zap.String("path", path), zap.Error(err))
		}
		return "", nil, false
	}

	var entry diskEntry
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&entry); err != nil {
		s.dropCorrupt(path, err)
		return "", nil, false
	}

	if entry.Compressed {
		decompressed, err := s.decoder.DecodeAll(entry.Value, nil)
		if err != nil {
			s.dropCorrupt(path, err)
			return "", nil, false
		}
		entry.Value = decompressed
	}

	return entry.Fingerprint, entry.Value, true
}

// Put writes the fingerprint and encoded value for key, overwriting any prior
// entry. The entry file is written to a temp file and renamed into place, so
// an interrupted write never leaves a partially written entry behind.
func (s *DiskStore) Put(_ context.Context, key, fingerprint string, value []byte) error {
	entry := diskEntry{
		Fingerprint: fingerprint,
		Value:       value,
	}

	if s.encoder != nil {
		compressed := s.encoder.EncodeAll(value, nil)
		// Only keep compression when it actually shrinks the payload.
		if len(compressed) < len(value) {
			entry.Value = compressed
			entry.Compressed = true
		}
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(entry); err != nil {
		return fmt.Errorf("%w: encode entry: %w", ErrPersistence, err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("%w: create directory %s: %w", ErrPersistence, s.dir, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".entry-*")
	if err != nil {
		return fmt.Errorf("%w: create temp file in %s: %w", ErrPersistence, s.dir, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: write entry: %w", ErrPersistence, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: close entry: %w", ErrPersistence, err)
	}

	if err := os.Rename(tmpName, s.entryPath(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: rename entry: %w", ErrPersistence, err)
	}

	return nil
}

// Delete removes the entry for key. Idempotent - no error on miss.
func (s *DiskStore) Delete(_ context.Context, key string) error {
	err := os.Remove(s.entryPath(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: remove entry: %w", ErrPersistence, err)
	}
	return nil
}

// entryPath maps a cache key to its backing file. The key is hashed so the
// file name stays filesystem-safe regardless of key content.
func (s *DiskStore) entryPath(key string) string {
	hash := sha256.Sum256([]byte(key))
	return filepath.Join(s.dir, hex.EncodeToString(hash[:16])+".entry")
}

// dropCorrupt logs a corrupt entry and removes it so later calls miss cleanly.
func (s *DiskStore) dropCorrupt(path string, err error) {
	s.logger.Warn("funcache: corrupt cache entry, treating as miss",
		zap.String("path", path), zap.Error(err))
	os.Remove(path)
}
