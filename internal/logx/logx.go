package logx

import (
	"context"
	"io"
	"unicode/utf8"

	"pkt.systems/pslog"
)

const commandPreviewMax = 120

// Ctx returns the logger bound to the provided context, falling back to a
// discard logger.
func Ctx(ctx context.Context) pslog.Logger {
	if ctx == nil {
		return Discard()
	}
	return OrDiscard(pslog.Ctx(ctx))
}

// Discard returns a logger that drops every entry.
func Discard() pslog.Logger {
	return pslog.NewWithOptions(io.Discard, pslog.Options{Mode: pslog.ModeStructured, NoColor: true})
}

// OrDiscard returns log, or a discard logger when log is nil.
func OrDiscard(log pslog.Logger) pslog.Logger {
	if log == nil {
		return Discard()
	}
	return log
}

// WithSession annotates the logger with a session name when available.
func WithSession(log pslog.Logger, name string) pslog.Logger {
	log = OrDiscard(log)
	if name != "" {
		log = log.With("session", name)
	}
	return log
}

// WithBackend annotates the logger with the transport kind.
func WithBackend(log pslog.Logger, kind string) pslog.Logger {
	log = OrDiscard(log)
	if kind != "" {
		log = log.With("backend", kind)
	}
	return log
}

// WithCommand annotates the logger with a bounded preview of the command text.
func WithCommand(log pslog.Logger, command string) pslog.Logger {
	preview := Preview(command, commandPreviewMax)
	return OrDiscard(log).With("command", preview, "truncated", len(preview) < len(command))
}

// Preview cuts value to at most max bytes without splitting a rune.
func Preview(value string, max int) string {
	if max <= 0 || len(value) <= max {
		return value
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut]
}
