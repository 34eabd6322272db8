package logging

import (
	"fmt"
	"log/slog"
	"strings"
)

// Sensitive wraps s in sensitive markers.
func Sensitive(s string) string {
	return SensitiveOpen + s + SensitiveClose
}

// MessageBuilder assembles a log message from parts, some of which may be
// sensitive, plus structured attributes. Parts are joined with a space.
//
//	msg := logging.NewMessage("password reset requested for").
//	    Sensitive(user.Email).
//	    With(slog.String("plugin", name))
//	svc.Log(ctx, slog.LevelInfo, msg)
type MessageBuilder struct {
	parts []string
	attrs []slog.Attr
}

// NewMessage starts a message with the given parts.
func NewMessage(parts ...string) *MessageBuilder {
	return &MessageBuilder{parts: append([]string(nil), parts...)}
}

// Add appends a plain part.
func (b *MessageBuilder) Add(part string) *MessageBuilder {
	b.parts = append(b.parts, part)
	return b
}

// Addf appends a formatted plain part.
func (b *MessageBuilder) Addf(format string, args ...any) *MessageBuilder {
	return b.Add(fmt.Sprintf(format, args...))
}

// Sensitive appends a part wrapped in sensitive markers.
func (b *MessageBuilder) Sensitive(part string) *MessageBuilder {
	return b.Add(Sensitive(part))
}

// With adds structured attributes.
func (b *MessageBuilder) With(attrs ...slog.Attr) *MessageBuilder {
	b.attrs = append(b.attrs, attrs...)
	return b
}

// WithSensitive adds a string attribute whose value is marked sensitive.
func (b *MessageBuilder) WithSensitive(key, value string) *MessageBuilder {
	return b.With(slog.String(key, Sensitive(value)))
}

// String returns the message text with markers still in place.
func (b *MessageBuilder) String() string {
	return strings.Join(b.parts, " ")
}

// Attrs returns a copy of the attributes.
func (b *MessageBuilder) Attrs() []slog.Attr {
	return append([]slog.Attr(nil), b.attrs...)
}
