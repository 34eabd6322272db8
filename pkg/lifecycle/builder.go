package lifecycle

import (
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/StricklySoft/stricklysoft-plugins/pkg/errors"
)

// ComponentBuilder constructs a [Component] with validated configuration.
// Use [NewComponentBuilder] to start building.
//
// All configuration methods return the builder for chaining. Call
// [ComponentBuilder.Build] to validate the configuration and produce the
// component. Which composition a component uses follows from what is
// registered: no hooks gives a bare component whose actions always
// succeed, local hooks give a locally composed one, and extensions and
// children add further sources.
//
// Example:
//
//	settings, err := lifecycle.NewComponentBuilder("settings-page").
//	    WithOnSetup(func(ctx context.Context) error {
//	        return registry.AddAction(hooks.NewAction("admin_menu", "settings-page", "addMenu", addMenu))
//	    }).
//	    WithExtension(licenseCheck).
//	    WithSetupGuard(lifecycle.SetupIfActive).
//	    OnActionComplete(func(a lifecycle.Action, err error) {
//	        logger.Info("action complete", "action", a, "error", err)
//	    }).
//	    Build()
type ComponentBuilder struct {
	id                string
	name              string
	logger            *slog.Logger
	tracerProvider    trace.TracerProvider
	local             map[Action]Hook
	extensions        []Extension
	activeLocal       Predicate
	disabledLocal     Predicate
	setupGuard        SetupGuard
	setupOnInitialize bool
	propagate         map[Action]bool
	handlers          []ActionHandler
}

// NewComponentBuilder creates a new builder for a component called name.
// The name is validated during [ComponentBuilder.Build].
func NewComponentBuilder(name string) *ComponentBuilder {
	return &ComponentBuilder{
		name:      name,
		local:     make(map[Action]Hook),
		propagate: make(map[Action]bool),
	}
}

// WithID sets the component's identifier. If not called, Build assigns a
// random UUID.
func (b *ComponentBuilder) WithID(id string) *ComponentBuilder {
	b.id = id
	return b
}

// WithLogger sets a custom [*slog.Logger]. If not called, [slog.Default]
// is used.
func (b *ComponentBuilder) WithLogger(logger *slog.Logger) *ComponentBuilder {
	b.logger = logger
	return b
}

// WithTracerProvider sets the provider spans are created from. If not
// called, the global provider from [otel.GetTracerProvider] is used.
func (b *ComponentBuilder) WithTracerProvider(tp trace.TracerProvider) *ComponentBuilder {
	b.tracerProvider = tp
	return b
}

// WithLocal sets the local hook for action, replacing any earlier one.
// Build rejects unknown actions.
func (b *ComponentBuilder) WithLocal(action Action, hook Hook) *ComponentBuilder {
	b.local[action] = hook
	return b
}

// WithOnInitialize sets the local initialize hook.
func (b *ComponentBuilder) WithOnInitialize(hook Hook) *ComponentBuilder {
	return b.WithLocal(ActionInitialize, hook)
}

// WithOnSetup sets the local setup hook.
func (b *ComponentBuilder) WithOnSetup(hook Hook) *ComponentBuilder {
	return b.WithLocal(ActionSetup, hook)
}

// WithOnRun sets the local run hook.
func (b *ComponentBuilder) WithOnRun(hook Hook) *ComponentBuilder {
	return b.WithLocal(ActionRun, hook)
}

// WithOnReset sets the local reset hook.
func (b *ComponentBuilder) WithOnReset(hook Hook) *ComponentBuilder {
	return b.WithLocal(ActionReset, hook)
}

// WithOnOutput sets the local output hook.
func (b *ComponentBuilder) WithOnOutput(hook Hook) *ComponentBuilder {
	return b.WithLocal(ActionOutput, hook)
}

// WithExtension attaches an extension. Extensions run after the local
// hook, in the order they were attached. Build rejects nil extensions and
// duplicate names.
func (b *ComponentBuilder) WithExtension(ext Extension) *ComponentBuilder {
	b.extensions = append(b.extensions, ext)
	return b
}

// WithActive sets the local active predicate. Without one a component is
// locally active.
func (b *ComponentBuilder) WithActive(p Predicate) *ComponentBuilder {
	b.activeLocal = p
	return b
}

// WithDisabled sets the local disabled predicate. Without one a component
// is not locally disabled.
func (b *ComponentBuilder) WithDisabled(p Predicate) *ComponentBuilder {
	b.disabledLocal = p
	return b
}

// WithSetupGuard sets the condition under which setup executes.
func (b *ComponentBuilder) WithSetupGuard(g SetupGuard) *ComponentBuilder {
	b.setupGuard = g
	return b
}

// WithSetupOnInitialize makes initialize perform setup as its last step.
// A setup failure then also fails initialize.
func (b *ComponentBuilder) WithSetupOnInitialize() *ComponentBuilder {
	b.setupOnInitialize = true
	return b
}

// WithPropagation makes the given actions cascade to children. Initialize
// and setup always cascade.
func (b *ComponentBuilder) WithPropagation(actions ...Action) *ComponentBuilder {
	for _, a := range actions {
		b.propagate[a] = true
	}
	return b
}

// OnActionComplete registers a handler called after each action's first
// attempt. Multiple handlers are called in registration order.
func (b *ComponentBuilder) OnActionComplete(handler ActionHandler) *ComponentBuilder {
	b.handlers = append(b.handlers, handler)
	return b
}

// Build validates the configuration and constructs a [*Component].
// Returns a [*sserr.Error] with code [sserr.CodeValidation] if the name is
// empty, a hook or propagation targets an unknown action, the setup guard
// is unknown, or an extension is nil or shares a name with another.
func (b *ComponentBuilder) Build() (*Component, error) {
	if strings.TrimSpace(b.name) == "" {
		return nil, sserr.New(sserr.CodeValidation,
			"lifecycle: component name must not be empty")
	}
	if b.setupGuard < SetupAlways || b.setupGuard > SetupIfActive {
		return nil, sserr.Validationf("lifecycle: unknown setup guard %d", b.setupGuard)
	}

	id := b.id
	if id == "" {
		id = uuid.NewString()
	}

	local := make(map[Action]Hook, len(b.local))
	for a, h := range b.local {
		if !a.Valid() {
			return nil, sserr.Validationf("lifecycle: hook registered for unknown action %q", a)
		}
		if h != nil {
			local[a] = h
		}
	}

	propagate := make(map[Action]bool, len(b.propagate))
	for a := range b.propagate {
		if !a.Valid() {
			return nil, sserr.Validationf("lifecycle: propagation requested for unknown action %q", a)
		}
		propagate[a] = true
	}

	c := &Component{
		id:                id,
		name:              b.name,
		tracer:            otel.Tracer(tracerName),
		logger:            b.logger,
		local:             local,
		extensions:        make([]Extension, 0, len(b.extensions)),
		extensionHooks:    make(map[Action][]namedHook),
		activeLocal:       b.activeLocal,
		disabledLocal:     b.disabledLocal,
		setupGuard:        b.setupGuard,
		setupOnInitialize: b.setupOnInitialize,
		propagate:         propagate,
		handlers:          append([]ActionHandler(nil), b.handlers...),
		phases:            make(map[Action]*Phase, len(Actions())),
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if b.tracerProvider != nil {
		c.tracer = b.tracerProvider.Tracer(tracerName)
	}

	seen := make(map[string]bool, len(b.extensions))
	for _, ext := range b.extensions {
		if ext == nil {
			return nil, sserr.New(sserr.CodeValidation,
				"lifecycle: extension must not be nil")
		}
		if seen[ext.Name()] {
			return nil, sserr.Validationf("lifecycle: duplicate extension %q", ext.Name())
		}
		seen[ext.Name()] = true
		c.extensions = append(c.extensions, ext)

		for _, a := range Actions() {
			if h := extensionHook(ext, a); h != nil {
				c.extensionHooks[a] = append(c.extensionHooks[a], namedHook{name: ext.Name(), hook: h})
			}
		}
		if e, ok := ext.(ActiveExtension); ok {
			c.activeExtensions = append(c.activeExtensions, e)
		}
		if e, ok := ext.(DisabledExtension); ok {
			c.disabledExtensions = append(c.disabledExtensions, e)
		}
	}

	for _, a := range Actions() {
		c.phases[a] = NewPhase(a)
	}
	return c, nil
}
