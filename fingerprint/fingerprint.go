package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/jonwraymond/funcache/memoize"
)

// hashBufferSize is the read buffer used when hashing file contents.
const hashBufferSize = 128 * 1024

// Constant returns a fingerprint function that always yields token.
// It is the explicit form of the engine's default: the first successful
// result for a key is reused for every subsequent call.
func Constant(token string) memoize.FingerprintFunc {
	return func(context.Context, memoize.CallContext) (string, error) {
		return token, nil
	}
}

// File returns a fingerprint function that hashes the contents of the file at
// the fixed path. The cached result is recomputed whenever the file changes.
func File(path string) memoize.FingerprintFunc {
	return func(context.Context, memoize.CallContext) (string, error) {
		return hashFile(path)
	}
}

// FileArg returns a fingerprint function that hashes the contents of the file
// whose path is the string at positional argument pos. This is the calling
// convention for polymorphic wrapped functions: as long as the path occupies
// the fixed position, extra parameters are ignored and one fingerprint
// function serves functions of varying arity.
func FileArg(pos int) memoize.FingerprintFunc {
	return func(_ context.Context, call memoize.CallContext) (string, error) {
		path, ok := call.StringArg(pos)
		if !ok {
			return "", fmt.Errorf("fingerprint: argument %d is not a file path", pos)
		}
		return hashFile(path)
	}
}

// FileStat returns a fingerprint function built from the size and
// modification time of the file at positional argument pos. Cheaper than
// FileArg, at mtime granularity.
func FileStat(pos int) memoize.FingerprintFunc {
	return func(_ context.Context, call memoize.CallContext) (string, error) {
		path, ok := call.StringArg(pos)
		if !ok {
			return "", fmt.Errorf("fingerprint: argument %d is not a file path", pos)
		}
		info, err := os.Stat(path)
		if err != nil {
			return "", fmt.Errorf("fingerprint: stat %s: %w", path, err)
		}
		return fmt.Sprintf("%d:%d", info.Size(), info.ModTime().UnixNano()), nil
	}
}

// Env returns a fingerprint function that yields the current value of the
// named environment variable. Unset and empty are distinct tokens.
func Env(name string) memoize.FingerprintFunc {
	return func(context.Context, memoize.CallContext) (string, error) {
		value, ok := os.LookupEnv(name)
		if !ok {
			return "env:" + name + ":unset", nil
		}
		return "env:" + name + "=" + value, nil
	}
}

// OSVersion returns a fingerprint function describing the host OS: GOOS,
// GOARCH and, where readable, the kernel release. Useful for caching results
// that depend on the operating system a process runs under.
func OSVersion() memoize.FingerprintFunc {
	return func(context.Context, memoize.CallContext) (string, error) {
		token := runtime.GOOS + "/" + runtime.GOARCH
		if release, err := os.ReadFile("/proc/sys/kernel/osrelease"); err == nil {
			token += "/" + strings.TrimSpace(string(release))
		}
		return token, nil
	}
}

// hashFile streams the file through SHA-256 and returns the hex digest.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("fingerprint: open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, hashBufferSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("fingerprint: read %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
