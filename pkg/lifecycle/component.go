package lifecycle

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/StricklySoft/stricklysoft-plugins/pkg/errors"
)

// tracerName is the OpenTelemetry instrumentation scope name for this package.
const tracerName = "github.com/StricklySoft/stricklysoft-plugins/pkg/lifecycle"

// Hook is a component's own logic for one lifecycle action. It returns nil
// on success or a failure; plain errors are converted to the action's
// failure kind with [AsFailure].
type Hook func(ctx context.Context) error

// Predicate answers a yes/no question about a component, such as whether
// it is locally active.
type Predicate func() bool

// ActionHandler is notified after a component performs an action for the
// first time. failure is nil on success. Handlers run synchronously in
// registration order; a panicking handler is recovered and logged.
type ActionHandler func(action Action, failure error)

// SetupGuard decides whether setup executes at all.
type SetupGuard int

const (
	// SetupAlways runs setup unconditionally. This is the default.
	SetupAlways SetupGuard = iota

	// SetupIfNotDisabled skips setup when the component is disabled.
	// A skipped setup succeeds without running any hook.
	SetupIfNotDisabled

	// SetupIfActive skips setup unless the component is active. A
	// skipped setup succeeds without running any hook.
	SetupIfActive
)

// Component is a plugin building block with a five-action lifecycle, an
// optional place in a component tree, and Active/Disabled flags.
//
// Build a Component with [NewComponentBuilder]. Types that need their own
// state embed *Component and register their methods as hooks:
//
//	type Cache struct {
//	    *lifecycle.Component
//	    entries map[string]string
//	}
//
//	func NewCache() (*Cache, error) {
//	    c := &Cache{}
//	    base, err := lifecycle.NewComponentBuilder("cache").
//	        WithOnInitialize(c.initialize).
//	        WithOnReset(c.reset).
//	        Build()
//	    if err != nil {
//	        return nil, err
//	    }
//	    c.Component = base
//	    return c, nil
//	}
//
// A Component is safe for concurrent use by multiple goroutines.
type Component struct {
	// Immutable after Build.
	id                 string
	name               string
	tracer             trace.Tracer
	logger             *slog.Logger
	local              map[Action]Hook
	extensions         []Extension
	extensionHooks     map[Action][]namedHook
	activeLocal        Predicate
	disabledLocal      Predicate
	activeExtensions   []ActiveExtension
	disabledExtensions []DisabledExtension
	setupGuard         SetupGuard
	setupOnInitialize  bool
	propagate          map[Action]bool
	handlers           []ActionHandler
	phases             map[Action]*Phase

	// Tree structure, protected by treeMu.
	treeMu   sync.RWMutex
	parent   *Component
	children []Child
	depth    int

	// Memoized flags, protected by flagMu.
	flagMu   sync.Mutex
	active   *bool
	disabled *bool
}

// ID returns the component's unique identifier.
func (c *Component) ID() string {
	return c.id
}

// Name returns the component's human-readable name.
func (c *Component) Name() string {
	return c.name
}

// Node returns c itself. It makes *Component, and every type embedding
// it, satisfy [Child].
func (c *Component) Node() *Component {
	return c
}

// Phase returns the gate for action, or nil for an unknown action.
func (c *Component) Phase(action Action) *Phase {
	return c.phases[action]
}

// Status returns the completion flag of action. Unknown actions report
// [StatusUnattempted].
func (c *Component) Status(action Action) Status {
	p := c.phases[action]
	if p == nil {
		return StatusUnattempted
	}
	return p.Status()
}

// Result returns the recorded outcome of action. It returns a
// [sserr.CodeContract] error if the action has not been performed or is
// unknown.
func (c *Component) Result(action Action) (Outcome, error) {
	p := c.phases[action]
	if p == nil {
		return Outcome{}, sserr.Contractf("lifecycle: unknown action %q", action)
	}
	return p.Result()
}

// Initialize performs [ActionInitialize].
func (c *Component) Initialize(ctx context.Context) error {
	return c.Perform(ctx, ActionInitialize)
}

// Setup performs [ActionSetup].
func (c *Component) Setup(ctx context.Context) error {
	return c.Perform(ctx, ActionSetup)
}

// Run performs [ActionRun].
func (c *Component) Run(ctx context.Context) error {
	return c.Perform(ctx, ActionRun)
}

// Reset performs [ActionReset]. Reset is an independent action with its
// own completion flag; it does not undo any other action.
func (c *Component) Reset(ctx context.Context) error {
	return c.Perform(ctx, ActionReset)
}

// Output performs [ActionOutput].
func (c *Component) Output(ctx context.Context) error {
	return c.Perform(ctx, ActionOutput)
}

// Perform executes action for the first time, or returns the action's
// "already performed" failure if it ran before.
//
// The action's outcome is composed in this order, stopping at the first
// failure:
//
//  1. for setup, the [SetupGuard] check (a skipped setup succeeds);
//  2. the local hook;
//  3. each extension hook, in registration order;
//  4. each child, in insertion order, if the action propagates;
//  5. for initialize with [ComponentBuilder.WithSetupOnInitialize], setup.
//
// Returns nil on success. If ctx is already canceled, Perform returns a
// [sserr.CodeTimeout] error and the action stays unattempted.
func (c *Component) Perform(ctx context.Context, action Action) error {
	phase := c.phases[action]
	if phase == nil {
		return sserr.Contractf("lifecycle: unknown action %q", action)
	}
	if err := ctx.Err(); err != nil {
		return sserr.Wrapf(err, sserr.CodeTimeout,
			"lifecycle: %s canceled before execution", action)
	}

	ctx, span := c.tracer.Start(ctx, "lifecycle."+action.String(),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("component.id", c.id),
			attribute.String("component.name", c.name),
			attribute.Int("component.depth", c.Depth()),
		),
	)
	defer span.End()

	ran := false
	failure := phase.Perform(ctx, func(ctx context.Context) error {
		ran = true
		return c.compose(ctx, action)
	})

	if failure != nil {
		span.RecordError(failure)
		span.SetStatus(codes.Error, failure.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	if !ran {
		return failure
	}

	if failure != nil {
		c.logger.ErrorContext(ctx, "lifecycle: action failed",
			"component_id", c.id,
			"component_name", c.name,
			"action", action.String(),
			"error", failure,
		)
	} else {
		c.logger.DebugContext(ctx, "lifecycle: action performed",
			"component_id", c.id,
			"component_name", c.name,
			"action", action.String(),
		)
	}
	c.notify(action, failure)
	return failure
}

// compose evaluates the action's sources in order.
func (c *Component) compose(ctx context.Context, action Action) error {
	if action == ActionSetup && !c.setupPermitted() {
		c.logger.DebugContext(ctx, "lifecycle: setup skipped by guard",
			"component_id", c.id,
			"component_name", c.name,
		)
		return nil
	}

	if hook := c.local[action]; hook != nil {
		if err := hook(ctx); err != nil {
			return err
		}
	}

	for _, h := range c.extensionHooks[action] {
		if err := h.hook(ctx); err != nil {
			c.logger.DebugContext(ctx, "lifecycle: extension failed",
				"component_id", c.id,
				"extension", h.name,
				"action", action.String(),
			)
			return err
		}
	}

	if c.Propagates(action) {
		for _, child := range c.Children() {
			if err := performChild(ctx, child.Node(), action); err != nil {
				return err
			}
		}
	}

	if action == ActionInitialize && c.setupOnInitialize {
		if err := c.Setup(ctx); err != nil {
			return err
		}
	}
	return nil
}

// performChild performs action on child. A child that already completed
// the action contributes its recorded outcome instead of an "already
// performed" failure.
func performChild(ctx context.Context, child *Component, action Action) error {
	phase := child.phases[action]
	switch phase.Status() {
	case StatusSucceeded:
		return nil
	case StatusFailed:
		o, _ := phase.Result()
		return o.Failure
	default:
		return child.Perform(ctx, action)
	}
}

// setupPermitted applies the setup guard.
func (c *Component) setupPermitted() bool {
	switch c.setupGuard {
	case SetupIfNotDisabled:
		return !c.IsDisabled()
	case SetupIfActive:
		return c.IsActive()
	default:
		return true
	}
}

// Propagates reports whether action cascades to c's children.
func (c *Component) Propagates(action Action) bool {
	return action.PropagatesByDefault() || c.propagate[action]
}

// notify calls the registered action handlers, recovering panics.
func (c *Component) notify(action Action, failure error) {
	for _, h := range c.handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Error("lifecycle: action handler panicked",
						"panic", r,
						"component_id", c.id,
						"action", action.String(),
					)
				}
			}()
			h(action, failure)
		}()
	}
}

// Extensions returns the names of the attached extensions in
// registration order.
func (c *Component) Extensions() []string {
	names := make([]string, len(c.extensions))
	for i, e := range c.extensions {
		names[i] = e.Name()
	}
	return names
}
