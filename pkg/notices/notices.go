// Package notices queues admin notices for the current request and
// publishes the ones the current user has not dismissed.
//
// The [Handler] is a lifecycle component. Notices added during a request
// are published by its output action and cleared by its reset action.
// Before publishing, the list passes through the "notices" filter of the
// hook registry so other components can add, drop or reorder entries.
// Dismissals are stored per user and outlive the request; give a notice a
// stable ID if dismissing it should stick.
package notices

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/StricklySoft/stricklysoft-plugins/pkg/auth"
	sserr "github.com/StricklySoft/stricklysoft-plugins/pkg/errors"
	"github.com/StricklySoft/stricklysoft-plugins/pkg/hooks"
	"github.com/StricklySoft/stricklysoft-plugins/pkg/lifecycle"
	"github.com/StricklySoft/stricklysoft-plugins/pkg/storage"
)

// FilterHook is the filter the pending list passes through before it is
// published. Filters receive a []Notice and the user id, and must return
// a []Notice.
const FilterHook = "notices"

// Level is the severity a notice is shown with.
type Level string

// Notice levels.
const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Valid reports whether l is a known level.
func (l Level) Valid() bool {
	switch l {
	case LevelInfo, LevelSuccess, LevelWarning, LevelError:
		return true
	default:
		return false
	}
}

// Notice is one admin message.
type Notice struct {
	// ID identifies the notice. [Handler.Add] assigns a UUID when empty.
	ID string `json:"id"`

	Level   Level  `json:"level"`
	Message string `json:"message"`

	// Dismissible notices can be hidden per user with [Handler.Dismiss].
	Dismissible bool `json:"dismissible"`

	// Capability, when set, limits the notice to users holding it.
	Capability auth.Capability `json:"capability,omitempty"`
}

// Publisher delivers the notices of a request to the host.
type Publisher func(ctx context.Context, userID string, notices []Notice) error

// Option configures a [Handler].
type Option func(*Handler)

// WithPublisher sets where notices go on output. The default writes each
// notice to the logger.
func WithPublisher(p Publisher) Option {
	return func(h *Handler) { h.publish = p }
}

// WithAuthorizer enables [Notice.Capability] checks. Without an
// authorizer, notices requiring a capability are never shown.
func WithAuthorizer(a *auth.Authorizer) Option {
	return func(h *Handler) { h.authz = a }
}

// WithLogger sets the logger. The default is [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// Handler is the notice queue of a plugin.
type Handler struct {
	*lifecycle.Component

	registry  *hooks.Registry
	dismissed storage.Store[[]string]
	authz     *auth.Authorizer
	publish   Publisher
	logger    *slog.Logger

	mu      sync.Mutex
	notices []Notice
}

// NewHandler creates a handler publishing through registry's filter and
// keeping dismissed notice ids per user in dismissed.
func NewHandler(registry *hooks.Registry, dismissed storage.Store[[]string], opts ...Option) (*Handler, error) {
	if registry == nil {
		return nil, sserr.New(sserr.CodeValidationRequired, "notices: hook registry must not be nil")
	}
	if dismissed == nil {
		return nil, sserr.New(sserr.CodeValidationRequired, "notices: dismissal store must not be nil")
	}
	h := &Handler{registry: registry, dismissed: dismissed, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	if h.publish == nil {
		h.publish = h.logNotices
	}
	base, err := lifecycle.NewComponentBuilder("notices").
		WithLogger(h.logger).
		WithOnReset(h.reset).
		WithOnOutput(h.output).
		Build()
	if err != nil {
		return nil, err
	}
	h.Component = base
	return h, nil
}

// Add queues n and returns its id. An empty level means [LevelInfo].
func (h *Handler) Add(n Notice) (string, error) {
	if strings.TrimSpace(n.Message) == "" {
		return "", sserr.New(sserr.CodeValidationRequired, "notices: message must not be empty")
	}
	if n.Level == "" {
		n.Level = LevelInfo
	}
	if !n.Level.Valid() {
		return "", sserr.Newf(sserr.CodeValidation, "notices: unknown level %q", n.Level)
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.indexOf(n.ID) >= 0 {
		return "", sserr.Newf(sserr.CodeConflictAlreadyExists, "notices: notice %q is already queued", n.ID)
	}
	h.notices = append(h.notices, n)
	return n.ID, nil
}

// Remove drops a queued notice and reports whether it was queued.
func (h *Handler) Remove(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	i := h.indexOf(id)
	if i < 0 {
		return false
	}
	h.notices = slices.Delete(h.notices, i, i+1)
	return true
}

// List returns the queued notices in the order they were added.
func (h *Handler) List() []Notice {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.notices)
}

// indexOf must be called with h.mu held.
func (h *Handler) indexOf(id string) int {
	return slices.IndexFunc(h.notices, func(n Notice) bool { return n.ID == id })
}

// Dismiss hides the dismissible notice id from userID from now on.
// Dismissing twice is a no-op.
func (h *Handler) Dismiss(ctx context.Context, userID, id string) error {
	if strings.TrimSpace(userID) == "" {
		return sserr.New(sserr.CodeValidationRequired, "notices: user id must not be empty")
	}
	h.mu.Lock()
	i := h.indexOf(id)
	var n Notice
	if i >= 0 {
		n = h.notices[i]
	}
	h.mu.Unlock()
	if i < 0 {
		return sserr.Newf(sserr.CodeNotFound, "notices: no queued notice %q", id)
	}
	if !n.Dismissible {
		return sserr.Newf(sserr.CodeValidation, "notices: notice %q cannot be dismissed", id)
	}

	ids, err := h.dismissed.Get(ctx, userID)
	switch {
	case sserr.IsNotFound(err):
		return h.dismissed.Add(ctx, userID, []string{id})
	case err != nil:
		return err
	case slices.Contains(ids, id):
		return nil
	default:
		return h.dismissed.Update(ctx, userID, append(ids, id))
	}
}

// Dismissed returns the ids userID has dismissed.
func (h *Handler) Dismissed(ctx context.Context, userID string) ([]string, error) {
	ids, err := h.dismissed.Get(ctx, userID)
	if sserr.IsNotFound(err) {
		return nil, nil
	}
	return ids, err
}

// Pending returns the queued notices userID should see: not dismissed by
// them and, for notices with a capability, allowed to the user in ctx.
func (h *Handler) Pending(ctx context.Context, userID string) ([]Notice, error) {
	var dismissed []string
	if userID != "" {
		var err error
		if dismissed, err = h.Dismissed(ctx, userID); err != nil {
			return nil, err
		}
	}

	all := h.List()
	out := make([]Notice, 0, len(all))
	for _, n := range all {
		if n.Dismissible && slices.Contains(dismissed, n.ID) {
			continue
		}
		if n.Capability != "" && (h.authz == nil || !h.authz.Can(ctx, n.Capability)) {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (h *Handler) output(ctx context.Context) error {
	userID := auth.UserIDFromContext(ctx)
	pending, err := h.Pending(ctx, userID)
	if err != nil {
		return lifecycle.AsFailure(lifecycle.ActionOutput, err)
	}
	filtered, ok := h.registry.ApplyFilters(ctx, FilterHook, pending, userID).([]Notice)
	if !ok {
		return lifecycle.Failuref(lifecycle.ActionOutput,
			"notices: filter %q must return []notices.Notice", FilterHook)
	}
	return lifecycle.AsFailure(lifecycle.ActionOutput, h.publish(ctx, userID, filtered))
}

func (h *Handler) reset(context.Context) error {
	h.mu.Lock()
	h.notices = nil
	h.mu.Unlock()
	return nil
}

func (h *Handler) logNotices(ctx context.Context, userID string, notices []Notice) error {
	for _, n := range notices {
		level := slog.LevelInfo
		switch n.Level {
		case LevelWarning:
			level = slog.LevelWarn
		case LevelError:
			level = slog.LevelError
		}
		h.logger.Log(ctx, level, n.Message,
			"notice_id", n.ID,
			"notice_level", string(n.Level),
			"user_id", userID,
		)
	}
	return nil
}
