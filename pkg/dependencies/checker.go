package dependencies

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	sserr "github.com/StricklySoft/stricklysoft-plugins/pkg/errors"
	"github.com/StricklySoft/stricklysoft-plugins/pkg/lifecycle"
	"github.com/StricklySoft/stricklysoft-plugins/pkg/storage"
)

// Dismissal records that a privileged user accepted a soft failure.
type Dismissal struct {
	Check string    `json:"check"`
	By    string    `json:"by"`
	At    time.Time `json:"at"`
}

// Privileged reports whether userID may dismiss soft failures.
type Privileged func(ctx context.Context, userID string) bool

// Failure is a check that did not pass.
type Failure struct {
	Check    string
	Severity Severity
	Err      error

	// Dismissible is set for soft failures when the asking user is
	// privileged.
	Dismissible bool
}

// Option configures a [Checker].
type Option func(*Checker)

// WithChecks adds checks. Invalid or duplicate checks make [NewChecker]
// fail.
func WithChecks(checks ...Check) Option {
	return func(c *Checker) { c.checks = append(c.checks, checks...) }
}

// WithPrivileged sets the predicate deciding who may dismiss. Without it
// nobody may.
func WithPrivileged(p Privileged) Option {
	return func(c *Checker) { c.privileged = p }
}

// WithLogger sets the logger. The default is [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(c *Checker) { c.logger = l }
}

// WithClock sets the time source used for dismissal timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Checker) { c.now = now }
}

// Checker is a lifecycle component that verifies a plugin's checks when
// it initializes. Initialize fails with [sserr.CodeInitialization] if a
// hard check fails or a soft check fails without a stored dismissal.
type Checker struct {
	*lifecycle.Component

	dismissals storage.Store[Dismissal]
	privileged Privileged
	logger     *slog.Logger
	now        func() time.Time

	mu      sync.RWMutex
	checks  []Check
	results map[string]error
}

// NewChecker creates a checker keeping dismissals in store.
func NewChecker(store storage.Store[Dismissal], opts ...Option) (*Checker, error) {
	if store == nil {
		return nil, sserr.New(sserr.CodeValidationRequired, "dependencies: dismissal store must not be nil")
	}
	c := &Checker{dismissals: store, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	seen := make(map[string]bool, len(c.checks))
	for _, check := range c.checks {
		if err := check.validate(); err != nil {
			return nil, err
		}
		if seen[check.Name] {
			return nil, sserr.Newf(sserr.CodeConflictAlreadyExists, "dependencies: duplicate check %q", check.Name)
		}
		seen[check.Name] = true
	}

	base, err := lifecycle.NewComponentBuilder("dependencies").
		WithLogger(c.logger).
		WithOnInitialize(c.initialize).
		Build()
	if err != nil {
		return nil, err
	}
	c.Component = base
	return c, nil
}

// Register adds a check after construction. It takes effect at the next
// [Checker.Verify].
func (c *Checker) Register(check Check) error {
	if err := check.validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.find(check.Name); ok {
		return sserr.Newf(sserr.CodeConflictAlreadyExists, "dependencies: duplicate check %q", check.Name)
	}
	c.checks = append(c.checks, check)
	return nil
}

// Checks returns the names of the registered checks in registration order.
func (c *Checker) Checks() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, len(c.checks))
	for i, check := range c.checks {
		names[i] = check.Name
	}
	return names
}

// find must be called with c.mu held.
func (c *Checker) find(name string) (Check, bool) {
	for _, check := range c.checks {
		if check.Name == name {
			return check, true
		}
	}
	return Check{}, false
}

// Verify runs every check and remembers the results for
// [Checker.Failures].
func (c *Checker) Verify(ctx context.Context) {
	c.mu.RLock()
	checks := append([]Check(nil), c.checks...)
	c.mu.RUnlock()

	results := make(map[string]error, len(checks))
	for _, check := range checks {
		results[check.Name] = check.Verify(ctx)
	}

	c.mu.Lock()
	c.results = results
	c.mu.Unlock()
}

func (c *Checker) initialize(ctx context.Context) error {
	c.Verify(ctx)
	failures, err := c.failures(ctx, "", true)
	if err != nil {
		return lifecycle.AsFailure(lifecycle.ActionInitialize, err)
	}
	if len(failures) == 0 {
		return nil
	}

	names := make([]string, len(failures))
	errs := make([]error, len(failures))
	for i, f := range failures {
		names[i] = f.Check
		errs[i] = f.Err
		c.logger.WarnContext(ctx, "dependencies: check failed",
			"check", f.Check,
			"severity", f.Severity.String(),
			"error", f.Err,
		)
	}
	return sserr.Wrapf(errors.Join(errs...), sserr.CodeInitialization,
		"dependencies: unmet requirements: %s", strings.Join(names, ", ")).
		WithDetail("checks", names)
}

// Failures returns the failed checks that have not been dismissed, in
// registration order. Checks run first if they never ran. Dismissible is
// computed for userID.
func (c *Checker) Failures(ctx context.Context, userID string) ([]Failure, error) {
	c.mu.RLock()
	ran := c.results != nil
	c.mu.RUnlock()
	if !ran {
		c.Verify(ctx)
	}
	return c.failures(ctx, userID, false)
}

func (c *Checker) failures(ctx context.Context, userID string, initializing bool) ([]Failure, error) {
	c.mu.RLock()
	checks := append([]Check(nil), c.checks...)
	results := c.results
	c.mu.RUnlock()

	privileged := !initializing && c.isPrivileged(ctx, userID)
	var out []Failure
	for _, check := range checks {
		err, ran := results[check.Name]
		if !ran || err == nil {
			continue
		}
		if check.Severity == Soft {
			dismissed, derr := c.isDismissed(ctx, check.Name)
			if derr != nil {
				return nil, derr
			}
			if dismissed {
				if initializing {
					c.logger.InfoContext(ctx, "dependencies: soft failure dismissed",
						"check", check.Name, "error", err)
				}
				continue
			}
		}
		out = append(out, Failure{
			Check:       check.Name,
			Severity:    check.Severity,
			Err:         err,
			Dismissible: check.Severity == Soft && privileged,
		})
	}
	return out, nil
}

func (c *Checker) isDismissed(ctx context.Context, name string) (bool, error) {
	_, err := c.dismissals.Get(ctx, name)
	switch {
	case err == nil:
		return true, nil
	case sserr.IsNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

func (c *Checker) isPrivileged(ctx context.Context, userID string) bool {
	return c.privileged != nil && userID != "" && c.privileged(ctx, userID)
}

// authorize checks that name is a soft check and userID may dismiss it.
func (c *Checker) authorize(ctx context.Context, userID, name string) error {
	c.mu.RLock()
	check, ok := c.find(name)
	c.mu.RUnlock()
	if !ok {
		return sserr.Newf(sserr.CodeNotFound, "dependencies: unknown check %q", name)
	}
	if check.Severity != Soft {
		return sserr.Newf(sserr.CodeValidation, "dependencies: check %q is hard and cannot be dismissed", name)
	}
	if !c.isPrivileged(ctx, userID) {
		return sserr.Newf(sserr.CodePermissionDenied,
			"dependencies: user %q may not dismiss %q", userID, name)
	}
	return nil
}

// Dismiss records that userID accepts the failure of the soft check
// name. Dismissing twice keeps the first record. Hard checks cannot be
// dismissed and only privileged users may dismiss.
func (c *Checker) Dismiss(ctx context.Context, userID, name string) error {
	if err := c.authorize(ctx, userID, name); err != nil {
		return err
	}
	err := c.dismissals.Add(ctx, name, Dismissal{Check: name, By: userID, At: c.now().UTC()})
	if sserr.HasCode(err, sserr.CodeConflictAlreadyExists) {
		return nil
	}
	if err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "dependencies: failure dismissed", "check", name, "user_id", userID)
	return nil
}

// Restore removes the dismissal of name so its failure blocks again.
// Restoring a check that is not dismissed is a no-op.
func (c *Checker) Restore(ctx context.Context, userID, name string) error {
	if err := c.authorize(ctx, userID, name); err != nil {
		return err
	}
	err := c.dismissals.Remove(ctx, name)
	if sserr.IsNotFound(err) {
		return nil
	}
	return err
}

// Dismissed returns the stored dismissal of name.
func (c *Checker) Dismissed(ctx context.Context, name string) (Dismissal, error) {
	return c.dismissals.Get(ctx, name)
}
