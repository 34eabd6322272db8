package logging

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/StricklySoft/stricklysoft-plugins/pkg/config"
	"github.com/StricklySoft/stricklysoft-plugins/pkg/lifecycle"
)

// Service is a lifecycle component that owns a plugin's logger. Its
// initialize action resolves cfg.Logger from the factory; until then
// [Service.Logger] returns a logger that discards everything.
type Service struct {
	*lifecycle.Component

	factory *Factory
	cfg     config.LoggingConfig
	writer  io.Writer

	mu     sync.RWMutex
	logger *slog.Logger
}

// NewService creates the logging service. A nil factory means
// [NewFactory]; a nil writer means os.Stderr.
func NewService(factory *Factory, cfg config.LoggingConfig, w io.Writer) (*Service, error) {
	if factory == nil {
		factory = NewFactory()
	}
	s := &Service{factory: factory, cfg: cfg, writer: w}
	base, err := lifecycle.NewComponentBuilder("logging").
		WithOnInitialize(s.initialize).
		Build()
	if err != nil {
		return nil, err
	}
	s.Component = base
	return s, nil
}

func (s *Service) initialize(context.Context) error {
	logger, err := s.factory.Logger(s.cfg.Logger, Options{
		Writer: s.writer,
		Level:  s.cfg.SlogLevel(),
		Redact: s.cfg.Redact,
	})
	if err != nil {
		return lifecycle.AsFailure(lifecycle.ActionInitialize, err)
	}
	s.mu.Lock()
	s.logger = logger
	s.mu.Unlock()
	return nil
}

// Logger returns the resolved logger.
func (s *Service) Logger() *slog.Logger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.logger
}

// Log writes msg at level. A nil msg is ignored.
func (s *Service) Log(ctx context.Context, level slog.Level, msg *MessageBuilder) {
	if msg == nil {
		return
	}
	s.Logger().LogAttrs(ctx, level, msg.String(), msg.attrs...)
}

// Handler returns a handler that forwards every record to the service's
// current logger. Loggers built on it before initialize discard their
// output and start writing once the configured logger is resolved.
func (s *Service) Handler() slog.Handler {
	return &forwardHandler{service: s}
}

type forwardHandler struct {
	service *Service
	derive  []func(slog.Handler) slog.Handler
}

func (h *forwardHandler) target() slog.Handler {
	t := h.service.Logger().Handler()
	for _, d := range h.derive {
		t = d(t)
	}
	return t
}

func (h *forwardHandler) with(d func(slog.Handler) slog.Handler) *forwardHandler {
	derive := make([]func(slog.Handler) slog.Handler, len(h.derive), len(h.derive)+1)
	copy(derive, h.derive)
	return &forwardHandler{service: h.service, derive: append(derive, d)}
}

func (h *forwardHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.target().Enabled(ctx, level)
}

func (h *forwardHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.target().Handle(ctx, r)
}

func (h *forwardHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.with(func(t slog.Handler) slog.Handler { return t.WithAttrs(attrs) })
}

func (h *forwardHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.with(func(t slog.Handler) slog.Handler { return t.WithGroup(name) })
}
