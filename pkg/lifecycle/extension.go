package lifecycle

import "context"

// Extension is logic mixed into a component from outside its own
// definition. An extension takes part in whichever actions and flags it
// implements the optional interfaces for; the component discovers them by
// type assertion when it is built.
//
// Example:
//
//	type requireLicense struct{ key string }
//
//	func (requireLicense) Name() string { return "license" }
//
//	func (r requireLicense) ExtendSetup(ctx context.Context) error {
//	    if r.key == "" {
//	        return lifecycle.Failure(lifecycle.ActionSetup, "license key missing")
//	    }
//	    return nil
//	}
//
//	func (r requireLicense) ExtendActive() bool { return r.key != "" }
type Extension interface {
	// Name identifies the extension in logs and component info.
	Name() string
}

// InitializeExtension contributes to [ActionInitialize].
type InitializeExtension interface {
	Extension
	ExtendInitialize(ctx context.Context) error
}

// SetupExtension contributes to [ActionSetup].
type SetupExtension interface {
	Extension
	ExtendSetup(ctx context.Context) error
}

// RunExtension contributes to [ActionRun].
type RunExtension interface {
	Extension
	ExtendRun(ctx context.Context) error
}

// ResetExtension contributes to [ActionReset].
type ResetExtension interface {
	Extension
	ExtendReset(ctx context.Context) error
}

// OutputExtension contributes to [ActionOutput].
type OutputExtension interface {
	Extension
	ExtendOutput(ctx context.Context) error
}

// ActiveExtension contributes to [Component.IsActive]. Its answer is
// combined with the local predicate by logical AND.
type ActiveExtension interface {
	Extension
	ExtendActive() bool
}

// DisabledExtension contributes to [Component.IsDisabled]. Its answer is
// combined with the local predicate by logical OR.
type DisabledExtension interface {
	Extension
	ExtendDisabled() bool
}

// extensionHook returns ext's hook for action, or nil if ext does not
// take part in it.
func extensionHook(ext Extension, action Action) Hook {
	switch action {
	case ActionInitialize:
		if e, ok := ext.(InitializeExtension); ok {
			return e.ExtendInitialize
		}
	case ActionSetup:
		if e, ok := ext.(SetupExtension); ok {
			return e.ExtendSetup
		}
	case ActionRun:
		if e, ok := ext.(RunExtension); ok {
			return e.ExtendRun
		}
	case ActionReset:
		if e, ok := ext.(ResetExtension); ok {
			return e.ExtendReset
		}
	case ActionOutput:
		if e, ok := ext.(OutputExtension); ok {
			return e.ExtendOutput
		}
	}
	return nil
}

// namedHook is an extension hook resolved at build time.
type namedHook struct {
	name string
	hook Hook
}
