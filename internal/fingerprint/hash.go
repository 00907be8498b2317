package fingerprint

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// HashFile computes a content fingerprint for a file.
//
// Files up to maxHashBytes are streamed through xxhash in full. Larger
// files use a cheaper fingerprint over (size, mtime, first window, last
// window), which detects the overwhelmingly common mutations (append,
// truncate, rewrite) without reading gigabytes.
func HashFile(path string, maxHashBytes, partialHashBytes int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}

	h := xxhash.New()

	if info.Size() <= maxHashBytes {
		if _, err := io.Copy(h, f); err != nil {
			return "", fmt.Errorf("failed to hash %s: %w", path, err)
		}
		return fmt.Sprintf("%016x", h.Sum64()), nil
	}

	var meta [16]byte
	binary.LittleEndian.PutUint64(meta[0:8], uint64(info.Size()))
	binary.LittleEndian.PutUint64(meta[8:16], uint64(info.ModTime().UnixNano()))
	_, _ = h.Write(meta[:])

	window := partialHashBytes
	if window > info.Size() {
		window = info.Size()
	}

	buf := make([]byte, window)
	if _, err := io.ReadFull(f, buf); err != nil {
		return "", fmt.Errorf("failed to read head of %s: %w", path, err)
	}
	_, _ = h.Write(buf)

	if _, err := f.Seek(-window, io.SeekEnd); err != nil {
		return "", fmt.Errorf("failed to seek tail of %s: %w", path, err)
	}
	if _, err := io.ReadFull(f, buf); err != nil {
		return "", fmt.Errorf("failed to read tail of %s: %w", path, err)
	}
	_, _ = h.Write(buf)

	// Prefix marks the partial scheme so a config change in window size
	// never collides with a full-content hash.
	return fmt.Sprintf("p%015x", h.Sum64()&0xfffffffffffffff), nil
}

// HashBytes fingerprints an in-memory buffer with the same scheme as
// small files. Used for filename chunks and tests.
func HashBytes(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}
