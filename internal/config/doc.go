// Package config loads, normalizes, and validates culler configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes every knob the
// CLI and phase handlers need: catalog and quarantine locations, media
// extension filters, NAS skip patterns, and scan tuning.
//
// Always obtain settings through this package so downstream code receives
// sanitized absolute paths, lowercased extension sets, and clear validation
// errors.
package config
