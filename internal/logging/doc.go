// Package logging builds the slog loggers used across culler.
//
// It provides a human-oriented console handler and a structured JSON handler,
// thin Attr helper aliases so call sites avoid importing log/slog directly,
// and standardized field keys for component and phase scoping.
package logging
