package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"
)

// Mode selects how thoroughly scan fingerprints files.
type Mode string

const (
	// ModeSafety hashes the full contents of every file.
	ModeSafety Mode = "safety"
	// ModePerformance hashes a fixed-length prefix first and defers full
	// hashing to prefix collisions. A differing prefix proves files differ;
	// a matching prefix proves nothing.
	ModePerformance Mode = "performance"
)

// ParseMode validates a mode string.
func ParseMode(value string) (Mode, bool) {
	switch Mode(value) {
	case ModeSafety, ModePerformance:
		return Mode(value), true
	default:
		return "", false
	}
}

// Fingerprint is the identity scan computes for one file.
type Fingerprint struct {
	SizeBytes    int64
	FSModifiedAt time.Time
	CapturedAt   *time.Time
	ContentHash  string
	PrefixHash   string
}

// Hasher computes file fingerprints with a configurable read chunk size.
type Hasher struct {
	chunkBytes  int
	prefixBytes int64
}

// NewHasher constructs a Hasher. chunkBytes <= 0 defaults to 512 KiB and
// prefixBytes <= 0 to 64 KiB.
func NewHasher(chunkBytes int, prefixBytes int64) *Hasher {
	if chunkBytes <= 0 {
		chunkBytes = 512 * 1024
	}
	if prefixBytes <= 0 {
		prefixBytes = 64 * 1024
	}
	return &Hasher{chunkBytes: chunkBytes, prefixBytes: prefixBytes}
}

// File fingerprints one file according to mode. Stat metadata is always
// captured. Safety mode fills both the content hash and the prefix hash;
// performance mode fills the prefix hash only.
func (h *Hasher) File(path string, mode Mode) (*Fingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	fp := &Fingerprint{
		SizeBytes:    info.Size(),
		FSModifiedAt: info.ModTime().UTC(),
		CapturedAt:   CaptureTime(path),
	}

	switch mode {
	case ModePerformance:
		fp.PrefixHash, err = h.HashPrefix(path)
	default:
		// The prefix hash comes along for free in the same read, so a file
		// hashed in safety mode can still collide with a later
		// performance-mode scan of its copy.
		fp.ContentHash, fp.PrefixHash, err = h.hashBoth(path)
	}
	if err != nil {
		return nil, err
	}
	return fp, nil
}

// HashFull returns the hex SHA-256 of the file's entire contents, read in
// chunks so arbitrarily large videos never load into memory.
func (h *Hasher) HashFull(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	hasher := sha256.New()
	buf := make([]byte, h.chunkBytes)
	if _, err := io.CopyBuffer(hasher, f, buf); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// hashBoth returns the full content hash and the prefix hash from a single
// read of the file.
func (h *Hasher) hashBoth(path string) (string, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	full := sha256.New()
	prefix := sha256.New()
	buf := make([]byte, h.chunkBytes)
	var read int64
	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			full.Write(buf[:n])
			if read < h.prefixBytes {
				take := int64(n)
				if read+take > h.prefixBytes {
					take = h.prefixBytes - read
				}
				prefix.Write(buf[:take])
			}
			read += int64(n)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return "", "", fmt.Errorf("hash %s: %w", path, readErr)
		}
	}
	return hex.EncodeToString(full.Sum(nil)), hex.EncodeToString(prefix.Sum(nil)), nil
}

// HashPrefix returns the hex SHA-256 of the file's first prefixBytes. Files
// shorter than the prefix hash in full, which makes the prefix hash equal to
// the content hash for them.
func (h *Hasher) HashPrefix(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	hasher := sha256.New()
	buf := make([]byte, h.chunkBytes)
	if _, err := io.CopyBuffer(hasher, io.LimitReader(f, h.prefixBytes), buf); err != nil {
		return "", fmt.Errorf("hash prefix of %s: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
