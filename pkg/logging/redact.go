package logging

import (
	"context"
	"log/slog"
	"regexp"
)

// Markers delimiting sensitive content, and its replacement.
const (
	SensitiveOpen  = "<sensitive>"
	SensitiveClose = "</sensitive>"
	Redacted       = "[REDACTED]"
)

var sensitiveSpan = regexp.MustCompile(`(?s)<sensitive>(.*?)</sensitive>`)

// Redact rewrites every <sensitive>...</sensitive> span in s. With redact
// set the whole span becomes "[REDACTED]"; otherwise only the markers are
// removed. Unbalanced markers are left alone.
func Redact(s string, redact bool) string {
	if !sensitiveSpan.MatchString(s) {
		return s
	}
	if redact {
		return sensitiveSpan.ReplaceAllLiteralString(s, Redacted)
	}
	return sensitiveSpan.ReplaceAllString(s, "$1")
}

// RedactingHandler is a [slog.Handler] that applies [Redact] to the
// message and to every string attribute, including attributes inside
// groups and attributes added with WithAttrs, before passing records on.
type RedactingHandler struct {
	next   slog.Handler
	redact bool
}

var _ slog.Handler = (*RedactingHandler)(nil)

// NewRedactingHandler wraps next.
func NewRedactingHandler(next slog.Handler, redact bool) *RedactingHandler {
	return &RedactingHandler{next: next, redact: redact}
}

// Enabled implements slog.Handler.
func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *RedactingHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, Redact(r.Message, h.redact), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.attr(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

// WithAttrs implements slog.Handler.
func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &RedactingHandler{next: h.next.WithAttrs(h.attrs(attrs)), redact: h.redact}
}

// WithGroup implements slog.Handler.
func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{next: h.next.WithGroup(name), redact: h.redact}
}

func (h *RedactingHandler) attrs(in []slog.Attr) []slog.Attr {
	out := make([]slog.Attr, len(in))
	for i, a := range in {
		out[i] = h.attr(a)
	}
	return out
}

func (h *RedactingHandler) attr(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return slog.String(a.Key, Redact(v.String(), h.redact))
	case slog.KindGroup:
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(h.attrs(v.Group())...)}
	default:
		return slog.Attr{Key: a.Key, Value: v}
	}
}
