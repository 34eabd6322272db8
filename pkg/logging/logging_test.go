package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/stricklysoft-plugins/pkg/config"
	sserr "github.com/StricklySoft/stricklysoft-plugins/pkg/errors"
	"github.com/StricklySoft/stricklysoft-plugins/pkg/lifecycle"
)

// decode parses the single JSON record written to buf.
func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &m), "output: %s", buf.String())
	return m
}

// ===========================================================================
// Redact Tests
// ===========================================================================

// TestRedact covers replacement, marker stripping and unbalanced markers.
func TestRedact(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		in     string
		redact bool
		want   string
	}{
		{"no markers", "plain text", true, "plain text"},
		{"redacted", "user <sensitive>bob@example.com</sensitive> logged in", true, "user [REDACTED] logged in"},
		{"stripped", "user <sensitive>bob@example.com</sensitive> logged in", false, "user bob@example.com logged in"},
		{"two spans", "<sensitive>a</sensitive> and <sensitive>b</sensitive>", true, "[REDACTED] and [REDACTED]"},
		{"multiline", "<sensitive>line1\nline2</sensitive>", true, "[REDACTED]"},
		{"empty span", "x<sensitive></sensitive>y", false, "xy"},
		{"unbalanced", "<sensitive>open only", true, "<sensitive>open only"},
		{"dollar kept", "<sensitive>$1 cost</sensitive>", false, "$1 cost"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Redact(tt.in, tt.redact))
		})
	}
}

// ===========================================================================
// RedactingHandler Tests
// ===========================================================================

// TestRedactingHandler_MessageAndAttrs verifies that the message, plain
// attributes, group members and WithAttrs attributes are all redacted.
func TestRedactingHandler_MessageAndAttrs(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := slog.New(NewRedactingHandler(slog.NewJSONHandler(&buf, nil), true)).
		With(slog.String("owner", Sensitive("alice")))

	logger.Info("reset for "+Sensitive("bob@example.com"),
		slog.String("email", Sensitive("bob@example.com")),
		slog.Int("attempt", 2),
		slog.Group("req", slog.String("ip", Sensitive("10.0.0.1"))),
	)

	out := buf.String()
	assert.NotContains(t, out, "bob@example.com")
	assert.NotContains(t, out, "alice")
	assert.NotContains(t, out, "10.0.0.1")

	m := decode(t, &buf)
	assert.Equal(t, "reset for [REDACTED]", m["msg"])
	assert.Equal(t, "[REDACTED]", m["email"])
	assert.Equal(t, "[REDACTED]", m["owner"])
	assert.Equal(t, float64(2), m["attempt"])
	assert.Equal(t, map[string]any{"ip": "[REDACTED]"}, m["req"])
}

// TestRedactingHandler_StripOnly verifies that with redaction off the
// content stays but the markers disappear.
func TestRedactingHandler_StripOnly(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := slog.New(NewRedactingHandler(slog.NewJSONHandler(&buf, nil), false))
	logger.WithGroup("user").Info("hello "+Sensitive("bob"), slog.String("name", Sensitive("Bob")))

	m := decode(t, &buf)
	assert.Equal(t, "hello bob", m["msg"])
	assert.Equal(t, map[string]any{"name": "Bob"}, m["user"])
	assert.NotContains(t, buf.String(), SensitiveOpen)
}

// TestRedactingHandler_Enabled verifies that level filtering is delegated.
func TestRedactingHandler_Enabled(t *testing.T) {
	t.Parallel()
	h := NewRedactingHandler(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn}), true)
	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))
}

// ===========================================================================
// MessageBuilder Tests
// ===========================================================================

// TestMessageBuilder verifies part joining and attribute collection.
func TestMessageBuilder(t *testing.T) {
	t.Parallel()
	msg := NewMessage("user").
		Sensitive("bob").
		Addf("failed %d times", 3).
		With(slog.Int("code", 7)).
		WithSensitive("ip", "10.0.0.1")

	assert.Equal(t, "user <sensitive>bob</sensitive> failed 3 times", msg.String())
	attrs := msg.Attrs()
	require.Len(t, attrs, 2)
	assert.Equal(t, "code", attrs[0].Key)
	assert.Equal(t, "<sensitive>10.0.0.1</sensitive>", attrs[1].Value.String())

	attrs[0] = slog.String("mutated", "x")
	assert.Equal(t, "code", msg.Attrs()[0].Key)
}

// ===========================================================================
// Factory Tests
// ===========================================================================

// TestFactory_Builtins verifies the built-in names and that the json and
// text constructors redact.
func TestFactory_Builtins(t *testing.T) {
	t.Parallel()
	f := NewFactory()
	assert.Equal(t, []string{"auto", "discard", "json", "text"}, f.Names())

	var jsonBuf, textBuf bytes.Buffer
	jl, err := f.Logger(JSON, Options{Writer: &jsonBuf, Redact: true})
	require.NoError(t, err)
	jl.Info(Sensitive("secret"))
	assert.Equal(t, "[REDACTED]", decode(t, &jsonBuf)["msg"])

	tl, err := f.Logger(Text, Options{Writer: &textBuf, Redact: true})
	require.NoError(t, err)
	tl.Info("hi", "who", Sensitive("secret"))
	assert.Contains(t, textBuf.String(), "who=[REDACTED]")
	assert.NotContains(t, textBuf.String(), "secret")
}

// TestFactory_AutoWithoutTerminal verifies that auto falls back to JSON for
// writers that are not terminals.
func TestFactory_AutoWithoutTerminal(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	assert.False(t, IsTerminal(&buf))
	l, err := NewFactory().Logger(Auto, Options{Writer: &buf})
	require.NoError(t, err)
	l.Info("hello")
	assert.Equal(t, "hello", decode(t, &buf)["msg"])
}

// TestFactory_Level verifies that Options.Level filters records.
func TestFactory_Level(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	l, err := NewFactory().Logger(JSON, Options{Writer: &buf, Level: slog.LevelWarn})
	require.NoError(t, err)
	l.Info("dropped")
	assert.Empty(t, buf.String())
	l.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

// TestFactory_Register covers duplicate, invalid and custom registrations.
func TestFactory_Register(t *testing.T) {
	t.Parallel()
	f := NewFactory()

	err := f.Register(JSON, newJSON)
	require.Error(t, err)
	assert.Equal(t, sserr.CodeConflictAlreadyExists, sserr.GetCode(err))

	assert.True(t, sserr.IsValidation(f.Register("", newJSON)))
	assert.True(t, sserr.IsValidation(f.Register("nil", nil)))

	var buf bytes.Buffer
	require.NoError(t, f.Register("prefixed", func(opts Options) (*slog.Logger, error) {
		l, err := newJSON(opts)
		if err != nil {
			return nil, err
		}
		return l.With("plugin", "demo"), nil
	}))
	assert.Contains(t, f.Names(), "prefixed")

	l, err := f.Logger("prefixed", Options{Writer: &buf})
	require.NoError(t, err)
	l.Info("x")
	assert.Equal(t, "demo", decode(t, &buf)["plugin"])
}

// TestFactory_UnknownLogger verifies the not-found code.
func TestFactory_UnknownLogger(t *testing.T) {
	t.Parallel()
	_, err := NewFactory().Logger("syslog", Options{})
	require.Error(t, err)
	assert.Equal(t, sserr.CodeNotFoundLogger, sserr.GetCode(err))
	assert.True(t, sserr.IsNotFound(err))
}

// TestFactory_ConstructorErrors verifies that plain constructor errors are
// wrapped and nil loggers are rejected.
func TestFactory_ConstructorErrors(t *testing.T) {
	t.Parallel()
	f := NewFactory()
	require.NoError(t, f.Register("broken", func(Options) (*slog.Logger, error) {
		return nil, assert.AnError
	}))
	require.NoError(t, f.Register("empty", func(Options) (*slog.Logger, error) {
		return nil, nil
	}))

	_, err := f.Logger("broken", Options{})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, sserr.CodeInternal, sserr.GetCode(err))

	_, err = f.Logger("empty", Options{})
	assert.Equal(t, sserr.CodeInternal, sserr.GetCode(err))
}

// ===========================================================================
// Service Tests
// ===========================================================================

// TestService_Initialize verifies that initialize resolves the configured
// logger and that Log applies redaction.
func TestService_Initialize(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	svc, err := NewService(nil, config.LoggingConfig{Logger: JSON, Level: "debug", Redact: true}, &buf)
	require.NoError(t, err)

	svc.Log(context.Background(), slog.LevelInfo, NewMessage("before init"))
	assert.Empty(t, buf.String())

	require.NoError(t, svc.Initialize(context.Background()))
	svc.Log(context.Background(), slog.LevelDebug,
		NewMessage("login by").Sensitive("bob").WithSensitive("ip", "10.0.0.1"))
	svc.Log(context.Background(), slog.LevelDebug, nil)

	m := decode(t, &buf)
	assert.Equal(t, "login by [REDACTED]", m["msg"])
	assert.Equal(t, "[REDACTED]", m["ip"])
	assert.Equal(t, "DEBUG", m["level"])
}

// TestService_UnknownLogger verifies that an unknown logger fails
// initialize with an initialization failure.
func TestService_UnknownLogger(t *testing.T) {
	t.Parallel()
	svc, err := NewService(NewFactory(), config.LoggingConfig{Logger: "syslog", Level: "info"}, nil)
	require.NoError(t, err)

	err = svc.Initialize(context.Background())
	require.Error(t, err)
	assert.True(t, sserr.IsInitializationFailure(err))
	assert.Equal(t, lifecycle.StatusFailed, svc.Status(lifecycle.ActionInitialize))
	assert.True(t, strings.Contains(err.Error(), "syslog"))
}

// TestService_Handler verifies that loggers built on the forwarding
// handler before initialize pick up the resolved logger, keeping their
// attributes and groups.
func TestService_Handler(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	svc, err := NewService(nil, config.LoggingConfig{Logger: JSON, Level: "info"}, &buf)
	require.NoError(t, err)

	logger := slog.New(svc.Handler()).With("component", "hooks").WithGroup("op")
	logger.Info("queued", "kind", "action")
	assert.Empty(t, buf.String())

	require.NoError(t, svc.Initialize(context.Background()))
	logger.Debug("hidden")
	assert.Empty(t, buf.String())
	logger.Info("flushed", "count", 2)

	m := decode(t, &buf)
	assert.Equal(t, "flushed", m["msg"])
	assert.Equal(t, "hooks", m["component"])
	assert.Equal(t, map[string]any{"count": float64(2)}, m["op"])
}
