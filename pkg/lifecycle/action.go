// Package lifecycle provides composable plugin components that move through
// a multi-phase lifecycle and can be arranged in a tree.
//
// # Actions
//
// Every [Component] supports five lifecycle actions, in this order:
//
//	initialize → setup → run → reset → output
//
// Each action is performed at most once per component. The first call
// records the outcome (success, or a failure specific to the action) and
// every later call returns an "already performed" failure without running
// anything. Reading an outcome before the action ran is a contract
// violation reported by [Phase.Result].
//
// # Composition
//
// An action's outcome is composed from up to three sources, evaluated in
// a fixed order with short-circuiting:
//
//  1. the component's local hook (registered with [ComponentBuilder.WithLocal]);
//  2. the extensions attached with [ComponentBuilder.WithExtension] that
//     implement the action's extension interface (e.g. [SetupExtension]);
//  3. the component's children, in insertion order.
//
// The first failure stops the chain and becomes the recorded outcome.
// Initialize and setup propagate to children by default; run, reset and
// output only do so when enabled with [ComponentBuilder.WithPropagation].
//
// # Active and Disabled
//
// [Component.IsActive] and [Component.IsDisabled] combine a local
// predicate, extension predicates and the parent's flag. Disabling
// cascades to every descendant; being active requires the whole ancestor
// chain to be active. Both values are computed on first read and then
// memoized.
//
// # Thread Safety
//
// All exported methods of [Component] and [Phase] are safe for concurrent
// use. Hooks run outside internal locks.
//
// # OpenTelemetry Integration
//
// Each performed action creates a span named "lifecycle.<action>". The
// tracer scope is "github.com/StricklySoft/stricklysoft-plugins/pkg/lifecycle".
package lifecycle

import (
	sserr "github.com/StricklySoft/stricklysoft-plugins/pkg/errors"
)

// Action names a lifecycle phase of a [Component].
type Action string

const (
	// ActionInitialize prepares a component's internal state. It
	// propagates to children by default.
	ActionInitialize Action = "initialize"

	// ActionSetup wires a component into its host, typically by
	// registering hooks. It propagates to children by default.
	ActionSetup Action = "setup"

	// ActionRun executes a component's per-request work.
	ActionRun Action = "run"

	// ActionReset clears request-scoped state a component accumulated.
	ActionReset Action = "reset"

	// ActionOutput emits whatever the component renders or publishes.
	ActionOutput Action = "output"
)

// Actions returns every lifecycle action in lifecycle order.
func Actions() []Action {
	return []Action{ActionInitialize, ActionSetup, ActionRun, ActionReset, ActionOutput}
}

// String returns the string representation of the action.
func (a Action) String() string {
	return string(a)
}

// Valid reports whether a is one of the five lifecycle actions.
func (a Action) Valid() bool {
	switch a {
	case ActionInitialize, ActionSetup, ActionRun, ActionReset, ActionOutput:
		return true
	default:
		return false
	}
}

// PropagatesByDefault reports whether the action cascades to children
// without being enabled through [ComponentBuilder.WithPropagation].
// Initialize and setup happen once during bootstrap and cascade; run,
// reset and output follow per-request host events and do not.
func (a Action) PropagatesByDefault() bool {
	return a == ActionInitialize || a == ActionSetup
}

// failureCode returns the general failure code for the action.
func (a Action) failureCode() sserr.Code {
	switch a {
	case ActionInitialize:
		return sserr.CodeInitialization
	case ActionSetup:
		return sserr.CodeSetup
	case ActionRun:
		return sserr.CodeRun
	case ActionReset:
		return sserr.CodeReset
	case ActionOutput:
		return sserr.CodeOutput
	default:
		return sserr.CodeInternal
	}
}

// alreadyPerformedCode returns the code reported for repeat invocations.
func (a Action) alreadyPerformedCode() sserr.Code {
	switch a {
	case ActionInitialize:
		return sserr.CodeInitializationAlreadyPerformed
	case ActionSetup:
		return sserr.CodeSetupAlreadyPerformed
	case ActionRun:
		return sserr.CodeRunAlreadyPerformed
	case ActionReset:
		return sserr.CodeResetAlreadyPerformed
	case ActionOutput:
		return sserr.CodeOutputAlreadyPerformed
	default:
		return sserr.CodeInternal
	}
}

// Failure creates a failure of the kind specific to action. Hooks return
// it to signal an expected failure with a message of their choosing.
//
// Example:
//
//	func (p *Plugin) setupLocal(ctx context.Context) error {
//	    if p.registry == nil {
//	        return lifecycle.Failure(lifecycle.ActionSetup, "hook registry is not configured")
//	    }
//	    return nil
//	}
func Failure(action Action, message string) *sserr.Error {
	return sserr.New(action.failureCode(), message)
}

// Failuref creates an action-specific failure with a formatted message.
func Failuref(action Action, format string, args ...any) *sserr.Error {
	return sserr.Newf(action.failureCode(), format, args...)
}

// AsFailure converts err into a failure of the kind specific to action.
// Nil stays nil. An error whose outermost *sserr.Error already belongs to
// the action's category is returned unchanged; anything else is wrapped.
func AsFailure(action Action, err error) error {
	if err == nil {
		return nil
	}
	if e, ok := sserr.AsError(err); ok && e.Code.Category() == action.failureCode().Category() {
		return err
	}
	return sserr.Wrapf(err, action.failureCode(), "lifecycle: %s failed", action)
}

func alreadyPerformed(action Action) *sserr.Error {
	return sserr.Newf(action.alreadyPerformedCode(),
		"lifecycle: %s has already been performed", action)
}
