package hooks

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sserr "github.com/StricklySoft/stricklysoft-plugins/pkg/errors"
	"github.com/StricklySoft/stricklysoft-plugins/pkg/lifecycle"
)

func newTestHandler(t *testing.T) (*Handler, *Registry) {
	t.Helper()
	r := NewRegistry()
	h, err := NewHandler(r, nil)
	require.NoError(t, err)
	return h, r
}

// TestHandler_BuffersUntilRun verifies that nothing reaches the registry
// before run, and everything does after.
func TestHandler_BuffersUntilRun(t *testing.T) {
	t.Parallel()
	h, r := newTestHandler(t)
	rec := &recorder{}
	ctx := context.Background()

	require.NoError(t, h.AddAction(ActionHook{Key: key("init", "a", 10), Fn: rec.action("a")}))
	require.NoError(t, h.AddFilter(FilterHook{Key: key("title", "f", 10), Fn: func(ctx context.Context, v any, _ ...any) any {
		return v.(string) + "!"
	}}))
	require.NoError(t, h.AddShortcode(Shortcode{Tag: "year", Callback: "year", Fn: func(context.Context, map[string]string, string) string {
		return "2026"
	}}))
	assert.Equal(t, 3, h.Pending())
	assert.False(t, r.HasAction("init"))
	assert.False(t, r.HasFilter("title"))
	assert.False(t, r.HasShortcode("year"))

	require.NoError(t, h.Initialize(ctx))
	require.NoError(t, h.Run(ctx))

	assert.Equal(t, 0, h.Pending())
	assert.Equal(t, 1, r.DoAction(ctx, "init"))
	assert.Equal(t, "hi!", r.ApplyFilters(ctx, "title", "hi"))
	out, err := r.DoShortcode(ctx, "year", nil, "")
	require.NoError(t, err)
	assert.Equal(t, "2026", out)
}

// TestHandler_DeduplicatesBuffered verifies that structurally equal
// registrations are kept once while different keys are all kept.
func TestHandler_DeduplicatesBuffered(t *testing.T) {
	t.Parallel()
	h, r := newTestHandler(t)
	rec := &recorder{}

	require.NoError(t, h.AddAction(ActionHook{Key: key("init", "a", 10), Fn: rec.action("a")}))
	require.NoError(t, h.AddAction(ActionHook{Key: key("init", "a", 10), Fn: rec.action("a-again")}))
	require.NoError(t, h.AddAction(ActionHook{Key: key("init", "a", 5), Fn: rec.action("a-early")}))
	assert.Equal(t, 2, h.Pending())

	require.NoError(t, h.Run(context.Background()))
	r.DoAction(context.Background(), "init")
	if diff := cmp.Diff([]string{"a-early[]", "a[]"}, rec.got()); diff != "" {
		t.Errorf("invocation mismatch (-want +got):\n%s", diff)
	}
}

// TestHandler_RemovalsApplyInOrder verifies that queued removals are
// applied after earlier queued additions.
func TestHandler_RemovalsApplyInOrder(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	rec := &recorder{}
	require.NoError(t, r.AddAction(ActionHook{Key: key("init", "existing", 10), Fn: rec.action("existing")}))
	require.NoError(t, r.AddShortcode(Shortcode{Tag: "old", Callback: "old", Fn: func(context.Context, map[string]string, string) string { return "" }}))

	h, err := NewHandler(r, nil)
	require.NoError(t, err)
	require.NoError(t, h.AddAction(ActionHook{Key: key("init", "temp", 10), Fn: rec.action("temp")}))
	require.NoError(t, h.RemoveAction(key("init", "temp", 10)))
	require.NoError(t, h.RemoveAction(key("init", "existing", 10)))
	require.NoError(t, h.RemoveShortcode("old"))
	require.NoError(t, h.RemoveFilter(key("title", "none", 10)))

	require.NoError(t, h.Run(context.Background()))
	assert.False(t, r.HasAction("init"))
	assert.False(t, r.HasShortcode("old"))
}

// TestHandler_AfterRunAppliesImmediately verifies that changes made after
// the flush go straight to the registry.
func TestHandler_AfterRunAppliesImmediately(t *testing.T) {
	t.Parallel()
	h, r := newTestHandler(t)
	require.NoError(t, h.Run(context.Background()))

	rec := &recorder{}
	require.NoError(t, h.AddAction(ActionHook{Key: key("late", "a", 10), Fn: rec.action("a")}))
	assert.Equal(t, 0, h.Pending())
	assert.True(t, r.HasAction("late"))

	require.NoError(t, h.RemoveAction(key("late", "a", 10)))
	assert.False(t, r.HasAction("late"))

	err := h.Run(context.Background())
	assert.True(t, sserr.IsAlreadyPerformed(err))
}

// TestHandler_ResetDropsPending verifies that reset discards the buffer.
func TestHandler_ResetDropsPending(t *testing.T) {
	t.Parallel()
	h, r := newTestHandler(t)
	require.NoError(t, h.AddAction(ActionHook{Key: key("init", "a", 10), Fn: (&recorder{}).action("a")}))
	require.NoError(t, h.Reset(context.Background()))
	assert.Equal(t, 0, h.Pending())

	require.NoError(t, h.Run(context.Background()))
	assert.False(t, r.HasAction("init"))
}

// TestHandler_RejectsInvalid verifies validation at queue time.
func TestHandler_RejectsInvalid(t *testing.T) {
	t.Parallel()
	h, _ := newTestHandler(t)
	assert.True(t, sserr.IsValidation(h.AddAction(ActionHook{Key: Key{Hook: "init"}})))
	assert.True(t, sserr.IsValidation(h.AddFilter(FilterHook{Key: Key{Callback: "x"}})))
	assert.True(t, sserr.IsValidation(h.AddShortcode(Shortcode{Tag: "x"})))
	assert.Equal(t, 0, h.Pending())
}

// TestHandler_NoRegistry verifies that a handler without a registry fails
// initialize and run.
func TestHandler_NoRegistry(t *testing.T) {
	t.Parallel()
	h, err := NewHandler(nil, nil)
	require.NoError(t, err)

	err = h.Initialize(context.Background())
	assert.True(t, sserr.IsInitializationFailure(err))
	err = h.Run(context.Background())
	assert.True(t, sserr.IsRunFailure(err))
	assert.Equal(t, lifecycle.StatusFailed, h.Status(lifecycle.ActionRun))
}

// TestHandler_AsChild verifies that a handler runs as part of a parent
// that propagates run.
func TestHandler_AsChild(t *testing.T) {
	t.Parallel()
	h, r := newTestHandler(t)
	parent, err := lifecycle.NewComponentBuilder("plugin").
		WithPropagation(lifecycle.ActionRun).
		Build()
	require.NoError(t, err)
	require.NoError(t, parent.AddChild(h))

	require.NoError(t, h.AddAction(ActionHook{Key: key("init", "a", 10), Fn: (&recorder{}).action("a")}))
	require.NoError(t, parent.Initialize(context.Background()))
	require.NoError(t, parent.Run(context.Background()))
	assert.True(t, r.HasAction("init"))
	assert.Equal(t, 1, h.Depth())
}

// TestHandler_ReAddAfterRemove verifies that an add queued after a
// removal of the same key is kept and wins on flush.
func TestHandler_ReAddAfterRemove(t *testing.T) {
	t.Parallel()
	h, r := newTestHandler(t)
	rec := &recorder{}
	k := key("init", "a", 10)
	noop := func(context.Context, map[string]string, string) string { return "" }

	require.NoError(t, h.AddAction(ActionHook{Key: k, Fn: rec.action("a")}))
	require.NoError(t, h.RemoveAction(k))
	require.NoError(t, h.AddAction(ActionHook{Key: k, Fn: rec.action("a")}))
	require.NoError(t, h.AddShortcode(Shortcode{Tag: "year", Callback: "year", Fn: noop}))
	require.NoError(t, h.RemoveShortcode("year"))
	require.NoError(t, h.AddShortcode(Shortcode{Tag: "year", Callback: "year", Fn: noop}))
	require.NoError(t, h.AddShortcode(Shortcode{Tag: "year", Callback: "year", Fn: noop}))
	assert.Equal(t, 6, h.Pending())

	require.NoError(t, h.Run(context.Background()))
	assert.True(t, r.HasAction("init"))
	assert.True(t, r.HasShortcode("year"))
}
