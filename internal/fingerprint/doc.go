// Package fingerprint computes content and metadata identities for media
// files. Safety mode hashes every byte and records the prefix hash from the
// same read; performance mode hashes only a fixed prefix as a negative-only
// prefilter. EXIF capture times feed original selection but never duplicate
// detection itself.
package fingerprint
