package hooks

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/StricklySoft/stricklysoft-plugins/pkg/lifecycle"
)

type opKind int

const (
	opAddAction opKind = iota
	opRemoveAction
	opAddFilter
	opRemoveFilter
	opAddShortcode
	opRemoveShortcode
)

// op is one buffered registry change. An op equal to the last queued op
// on the same target is a duplicate.
type op struct {
	kind      opKind
	ident     Key
	action    ActionFunc
	filter    FilterFunc
	shortcode Shortcode
}

// target identifies what an op changes: the key of an action or filter,
// or the tag of a shortcode.
func (o op) target() opTarget {
	switch o.kind {
	case opAddAction, opRemoveAction:
		return opTarget{kind: "action", key: o.ident}
	case opAddFilter, opRemoveFilter:
		return opTarget{kind: "filter", key: o.ident}
	default:
		return opTarget{kind: "shortcode", key: Key{Hook: o.ident.Hook}}
	}
}

type opTarget struct {
	kind string
	key  Key
}

// Handler is a lifecycle component that buffers hook registrations and
// removals and applies them to a [Registry] when it runs. Run flushes the
// buffer in the order changes were queued and then clears it; reset drops
// anything still queued. Queuing a change that is structurally equal to
// the last change queued for the same hook key or shortcode tag is a
// no-op.
//
// Once the handler has run, later changes are applied to the registry
// immediately.
//
// Example:
//
//	h, _ := hooks.NewHandler(registry, logger)
//	_ = h.AddAction(hooks.NewAction("init", "settings", "register", s.register))
//	_ = h.AddFilter(hooks.NewFilter("notices", "settings", "append", s.notices))
//	_ = h.Run(ctx) // registrations reach the registry here
type Handler struct {
	*lifecycle.Component

	registry *Registry
	logger   *slog.Logger

	mu      sync.Mutex
	pending []op
	flushed bool
}

// NewHandler creates a handler flushing into registry. A nil logger means
// [slog.Default].
func NewHandler(registry *Registry, logger *slog.Logger) (*Handler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{registry: registry, logger: logger}
	base, err := lifecycle.NewComponentBuilder("hooks").
		WithLogger(logger).
		WithOnInitialize(h.initialize).
		WithOnRun(h.run).
		WithOnReset(h.reset).
		Build()
	if err != nil {
		return nil, err
	}
	h.Component = base
	return h, nil
}

// Registry returns the registry the handler flushes into.
func (h *Handler) Registry() *Registry {
	return h.registry
}

func (h *Handler) initialize(context.Context) error {
	if h.registry == nil {
		return lifecycle.Failure(lifecycle.ActionInitialize, "hooks: handler has no registry")
	}
	return nil
}

// AddAction queues an action registration.
func (h *Handler) AddAction(a ActionHook) error {
	if err := a.validate(); err != nil {
		return err
	}
	return h.enqueue(op{kind: opAddAction, ident: a.Key, action: a.Fn})
}

// RemoveAction queues the removal of the action registered under key.
func (h *Handler) RemoveAction(key Key) error {
	return h.enqueue(op{kind: opRemoveAction, ident: key})
}

// AddFilter queues a filter registration.
func (h *Handler) AddFilter(f FilterHook) error {
	if err := f.validate(); err != nil {
		return err
	}
	return h.enqueue(op{kind: opAddFilter, ident: f.Key, filter: f.Fn})
}

// RemoveFilter queues the removal of the filter registered under key.
func (h *Handler) RemoveFilter(key Key) error {
	return h.enqueue(op{kind: opRemoveFilter, ident: key})
}

// AddShortcode queues a shortcode registration.
func (h *Handler) AddShortcode(s Shortcode) error {
	if err := s.validate(); err != nil {
		return err
	}
	return h.enqueue(op{
		kind:      opAddShortcode,
		ident:     Key{Hook: s.Tag, Component: s.Component, Callback: s.Callback},
		shortcode: s,
	})
}

// RemoveShortcode queues the removal of tag.
func (h *Handler) RemoveShortcode(tag string) error {
	return h.enqueue(op{kind: opRemoveShortcode, ident: Key{Hook: tag}})
}

// Pending returns the number of queued changes.
func (h *Handler) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pending)
}

func (h *Handler) enqueue(o op) error {
	h.mu.Lock()
	if h.flushed {
		h.mu.Unlock()
		return h.apply(o)
	}
	defer h.mu.Unlock()
	for i := len(h.pending) - 1; i >= 0; i-- {
		p := h.pending[i]
		if p.target() != o.target() {
			continue
		}
		if p.kind == o.kind && p.ident == o.ident {
			return nil
		}
		break
	}
	h.pending = append(h.pending, o)
	return nil
}

func (h *Handler) apply(o op) error {
	switch o.kind {
	case opAddAction:
		return h.registry.AddAction(ActionHook{Key: o.ident, Fn: o.action})
	case opRemoveAction:
		h.registry.RemoveAction(o.ident)
	case opAddFilter:
		return h.registry.AddFilter(FilterHook{Key: o.ident, Fn: o.filter})
	case opRemoveFilter:
		h.registry.RemoveFilter(o.ident)
	case opAddShortcode:
		return h.registry.AddShortcode(o.shortcode)
	case opRemoveShortcode:
		h.registry.RemoveShortcode(o.ident.Hook)
	}
	return nil
}

func (h *Handler) run(ctx context.Context) error {
	if h.registry == nil {
		return lifecycle.Failure(lifecycle.ActionRun, "hooks: handler has no registry")
	}
	h.mu.Lock()
	pending := h.pending
	h.pending = nil
	h.flushed = true
	h.mu.Unlock()

	var errs []error
	for _, o := range pending {
		if err := h.apply(o); err != nil {
			errs = append(errs, err)
		}
	}
	h.logger.DebugContext(ctx, "hooks: flushed registrations",
		"component_id", h.ID(),
		"count", len(pending),
		"failed", len(errs),
	)
	return lifecycle.AsFailure(lifecycle.ActionRun, errors.Join(errs...))
}

func (h *Handler) reset(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pending = nil
	return nil
}
