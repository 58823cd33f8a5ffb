// Package logger provides structured logging for idbridge.
//
// It builds log/slog handlers (JSON by default, text for consoles) with a
// shared LevelVar so the level can change at runtime, and a ReplaceAttr
// hook that redacts credentials and masks email addresses before they
// reach the output.
//
// Context helpers carry a logger and the bootstrap run id through call
// chains; L(ctx) returns the logger enriched with run_id.
package logger
