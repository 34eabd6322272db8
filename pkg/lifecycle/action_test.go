package lifecycle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sserr "github.com/StricklySoft/stricklysoft-plugins/pkg/errors"
)

// ===========================================================================
// Action Tests
// ===========================================================================

// TestActions_Order verifies that Actions lists every action in lifecycle
// order.
func TestActions_Order(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []Action{
		ActionInitialize, ActionSetup, ActionRun, ActionReset, ActionOutput,
	}, Actions())
}

// TestAction_Valid verifies Valid for known and unknown actions.
func TestAction_Valid(t *testing.T) {
	t.Parallel()
	for _, a := range Actions() {
		assert.True(t, a.Valid(), "%s should be valid", a)
	}
	assert.False(t, Action("teardown").Valid())
	assert.False(t, Action("").Valid())
}

// TestAction_PropagatesByDefault verifies that only initialize and setup
// cascade to children without opting in.
func TestAction_PropagatesByDefault(t *testing.T) {
	t.Parallel()
	tests := []struct {
		action Action
		want   bool
	}{
		{ActionInitialize, true},
		{ActionSetup, true},
		{ActionRun, false},
		{ActionReset, false},
		{ActionOutput, false},
	}
	for _, tt := range tests {
		t.Run(tt.action.String(), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.action.PropagatesByDefault())
		})
	}
}

// ===========================================================================
// Failure Tests
// ===========================================================================

// TestFailure_Categories verifies that Failure produces an error of the
// category specific to each action.
func TestFailure_Categories(t *testing.T) {
	t.Parallel()
	tests := []struct {
		action Action
		check  func(error) bool
		code   sserr.Code
	}{
		{ActionInitialize, sserr.IsInitializationFailure, sserr.CodeInitialization},
		{ActionSetup, sserr.IsSetupFailure, sserr.CodeSetup},
		{ActionRun, sserr.IsRunFailure, sserr.CodeRun},
		{ActionReset, sserr.IsResetFailure, sserr.CodeReset},
		{ActionOutput, sserr.IsOutputFailure, sserr.CodeOutput},
	}
	for _, tt := range tests {
		t.Run(tt.action.String(), func(t *testing.T) {
			t.Parallel()
			err := Failure(tt.action, "boom")
			assert.True(t, tt.check(err))
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, "boom", err.Message)
			assert.False(t, sserr.IsAlreadyPerformed(err))
		})
	}
}

// TestFailuref_FormatsMessage verifies that Failuref formats its message.
func TestFailuref_FormatsMessage(t *testing.T) {
	t.Parallel()
	err := Failuref(ActionRun, "missing %d items", 3)
	assert.Equal(t, "missing 3 items", err.Message)
	assert.True(t, sserr.IsRunFailure(err))
}

// TestAsFailure_Nil verifies that AsFailure keeps nil as nil.
func TestAsFailure_Nil(t *testing.T) {
	t.Parallel()
	assert.NoError(t, AsFailure(ActionSetup, nil))
}

// TestAsFailure_SameCategoryUnchanged verifies that an error already of the
// action's category is returned as-is.
func TestAsFailure_SameCategoryUnchanged(t *testing.T) {
	t.Parallel()
	orig := Failure(ActionSetup, "no registry")
	got := AsFailure(ActionSetup, orig)
	assert.Same(t, orig, got)
}

// TestAsFailure_WrapsPlainError verifies that a plain error is wrapped with
// the action's failure code and remains reachable through errors.Is.
func TestAsFailure_WrapsPlainError(t *testing.T) {
	t.Parallel()
	cause := errors.New("disk full")
	got := AsFailure(ActionOutput, cause)
	require.Error(t, got)
	assert.True(t, sserr.IsOutputFailure(got))
	assert.ErrorIs(t, got, cause)
}

// TestAsFailure_WrapsOtherCategory verifies that a failure of another action
// is wrapped rather than passed through.
func TestAsFailure_WrapsOtherCategory(t *testing.T) {
	t.Parallel()
	setupErr := Failure(ActionSetup, "hooks unavailable")
	got := AsFailure(ActionInitialize, setupErr)
	assert.True(t, sserr.IsInitializationFailure(got))
	assert.True(t, sserr.IsSetupFailure(errors.Unwrap(got)))
}

// TestAlreadyPerformed_Codes verifies the per-action "already performed"
// failures.
func TestAlreadyPerformed_Codes(t *testing.T) {
	t.Parallel()
	for _, a := range Actions() {
		err := alreadyPerformed(a)
		assert.True(t, sserr.IsAlreadyPerformed(err), "%s", a)
		assert.Equal(t, a.failureCode().Category(), err.Code.Category(), "%s", a)
		assert.Contains(t, err.Error(), "has already been performed")
	}
}
