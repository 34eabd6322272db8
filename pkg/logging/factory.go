// Package logging provides named structured loggers for plugins.
//
// Loggers are [log/slog] loggers created by constructors registered by name
// with a [Factory]. Every built-in constructor wraps its handler in a
// [RedactingHandler], so message text and string attributes may mark
// personal data with <sensitive>...</sensitive>. Depending on
// configuration the marked content is replaced with "[REDACTED]" or the
// markers are simply removed.
//
// [Service] is a lifecycle component that resolves the configured logger
// during initialize and hands it to the rest of the plugin.
package logging

import (
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/mattn/go-isatty"

	sserr "github.com/StricklySoft/stricklysoft-plugins/pkg/errors"
)

// Names of the built-in constructors.
const (
	JSON    = "json"
	Text    = "text"
	Auto    = "auto"
	Discard = "discard"
)

// Options are passed to a [Constructor].
type Options struct {
	// Writer receives log output. Nil means os.Stderr.
	Writer io.Writer

	// Level is the minimum enabled level. Nil means slog.LevelInfo.
	Level slog.Leveler

	// Redact replaces sensitive content instead of only stripping the
	// markers.
	Redact bool

	// AddSource adds the caller's file and line to every record.
	AddSource bool
}

func (o Options) writer() io.Writer {
	if o.Writer == nil {
		return os.Stderr
	}
	return o.Writer
}

func (o Options) handlerOptions() *slog.HandlerOptions {
	return &slog.HandlerOptions{Level: o.Level, AddSource: o.AddSource}
}

// Constructor creates a logger from options.
type Constructor func(opts Options) (*slog.Logger, error)

// Factory maps logger names to constructors. It is safe for concurrent use.
type Factory struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewFactory returns a factory with the built-in "json", "text", "auto"
// and "discard" constructors registered. "auto" writes text to a terminal
// and JSON otherwise.
func NewFactory() *Factory {
	return &Factory{constructors: map[string]Constructor{
		JSON:    newJSON,
		Text:    newText,
		Auto:    newAuto,
		Discard: newDiscard,
	}}
}

// Register adds a constructor under name. It returns a
// [sserr.CodeValidation] error for an empty name or nil constructor, and a
// [sserr.CodeConflictAlreadyExists] error if name is taken.
func (f *Factory) Register(name string, c Constructor) error {
	if name == "" {
		return sserr.New(sserr.CodeValidation, "logging: logger name must not be empty")
	}
	if c == nil {
		return sserr.Newf(sserr.CodeValidation, "logging: constructor for %q must not be nil", name)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.constructors[name]; ok {
		return sserr.Newf(sserr.CodeConflictAlreadyExists, "logging: logger %q is already registered", name)
	}
	f.constructors[name] = c
	return nil
}

// Logger builds the logger registered under name. It returns a
// [sserr.CodeNotFoundLogger] error for unknown names.
func (f *Factory) Logger(name string, opts Options) (*slog.Logger, error) {
	f.mu.RLock()
	c, ok := f.constructors[name]
	f.mu.RUnlock()
	if !ok {
		return nil, sserr.Newf(sserr.CodeNotFoundLogger, "logging: no logger registered as %q", name)
	}
	logger, err := c(opts)
	if err != nil {
		if _, isSSErr := sserr.AsError(err); isSSErr {
			return nil, err
		}
		return nil, sserr.Wrapf(err, sserr.CodeInternal, "logging: constructing logger %q", name)
	}
	if logger == nil {
		return nil, sserr.Newf(sserr.CodeInternal, "logging: constructor %q returned no logger", name)
	}
	return logger, nil
}

// Names returns the registered names in sorted order.
func (f *Factory) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, 0, len(f.constructors))
	for n := range f.constructors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func newJSON(opts Options) (*slog.Logger, error) {
	h := slog.NewJSONHandler(opts.writer(), opts.handlerOptions())
	return slog.New(NewRedactingHandler(h, opts.Redact)), nil
}

func newText(opts Options) (*slog.Logger, error) {
	h := slog.NewTextHandler(opts.writer(), opts.handlerOptions())
	return slog.New(NewRedactingHandler(h, opts.Redact)), nil
}

func newAuto(opts Options) (*slog.Logger, error) {
	if IsTerminal(opts.writer()) {
		return newText(opts)
	}
	return newJSON(opts)
}

func newDiscard(Options) (*slog.Logger, error) {
	return slog.New(slog.DiscardHandler), nil
}

// IsTerminal reports whether w is a file attached to a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
