package fingerprint

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
)

func TestHashFullMatchesReference(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mp4")
	payload := bytes.Repeat([]byte{0xab, 0xcd}, 300000)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatal(err)
	}

	sum := sha256.Sum256(payload)
	want := hex.EncodeToString(sum[:])

	hasher := NewHasher(4096, 0)
	got, err := hasher.HashFull(path)
	if err != nil {
		t.Fatalf("HashFull failed: %v", err)
	}
	if got != want {
		t.Fatalf("hash mismatch: got %s want %s", got, want)
	}
}

func TestHashPrefixOnlyReadsPrefix(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.mp4")
	b := filepath.Join(dir, "b.mp4")

	prefix := bytes.Repeat([]byte{0x11}, 1024)
	if err := os.WriteFile(a, append(append([]byte(nil), prefix...), []byte("tail-a")...), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, append(append([]byte(nil), prefix...), []byte("tail-b")...), 0o644); err != nil {
		t.Fatal(err)
	}

	hasher := NewHasher(0, 1024)
	hashA, err := hasher.HashPrefix(a)
	if err != nil {
		t.Fatal(err)
	}
	hashB, err := hasher.HashPrefix(b)
	if err != nil {
		t.Fatal(err)
	}
	if hashA != hashB {
		t.Fatal("expected identical prefixes to hash equal despite differing tails")
	}

	fullA, err := hasher.HashFull(a)
	if err != nil {
		t.Fatal(err)
	}
	fullB, err := hasher.HashFull(b)
	if err != nil {
		t.Fatal(err)
	}
	if fullA == fullB {
		t.Fatal("expected differing tails to produce different full hashes")
	}
}

func TestHashPrefixShortFileEqualsFullHash(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tiny.jpg")
	if err := os.WriteFile(path, []byte("short"), 0o644); err != nil {
		t.Fatal(err)
	}

	hasher := NewHasher(0, 64*1024)
	prefixHash, err := hasher.HashPrefix(path)
	if err != nil {
		t.Fatal(err)
	}
	fullHash, err := hasher.HashFull(path)
	if err != nil {
		t.Fatal(err)
	}
	if prefixHash != fullHash {
		t.Fatal("expected prefix hash of short file to equal its full hash")
	}
}

func TestFileCapturesStatMetadata(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.png")
	if err := os.WriteFile(path, []byte("pngdata"), 0o644); err != nil {
		t.Fatal(err)
	}

	hasher := NewHasher(0, 0)
	fp, err := hasher.File(path, ModeSafety)
	if err != nil {
		t.Fatalf("File failed: %v", err)
	}
	if fp.SizeBytes != 7 {
		t.Fatalf("unexpected size: %d", fp.SizeBytes)
	}
	if fp.ContentHash == "" || fp.PrefixHash == "" {
		t.Fatalf("safety mode should fill both hashes: %#v", fp)
	}
	if fp.FSModifiedAt.IsZero() {
		t.Fatal("expected fs modified time")
	}

	fp, err = hasher.File(path, ModePerformance)
	if err != nil {
		t.Fatalf("File failed: %v", err)
	}
	if fp.PrefixHash == "" || fp.ContentHash != "" {
		t.Fatalf("performance mode should fill prefix hash only: %#v", fp)
	}
}

func TestCaptureTimeSkipsNonExifFormats(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(video, []byte("not exif"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := CaptureTime(video); got != nil {
		t.Fatalf("expected nil capture time for video container, got %v", got)
	}

	broken := filepath.Join(dir, "broken.jpg")
	if err := os.WriteFile(broken, []byte("jpeg without exif"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := CaptureTime(broken); got != nil {
		t.Fatalf("expected nil capture time for broken jpeg, got %v", got)
	}
}

func TestParseMode(t *testing.T) {
	if _, ok := ParseMode("safety"); !ok {
		t.Fatal("safety should parse")
	}
	if _, ok := ParseMode("performance"); !ok {
		t.Fatal("performance should parse")
	}
	if _, ok := ParseMode("turbo"); ok {
		t.Fatal("unknown mode should not parse")
	}
}
