package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sserr "github.com/StricklySoft/stricklysoft-plugins/pkg/errors"
)

// widget embeds *Component the way plugin types do.
type widget struct {
	*Component
	label string
}

func newWidget(t *testing.T, name string) *widget {
	t.Helper()
	return &widget{Component: mustBuild(t, NewComponentBuilder(name)), label: name}
}

// ===========================================================================
// AddChild Tests
// ===========================================================================

// TestAddChild_SetsParentAndDepth verifies that a successful addition sets
// the parent, depth and children list.
func TestAddChild_SetsParentAndDepth(t *testing.T) {
	t.Parallel()
	root := mustBuild(t, NewComponentBuilder("root"))
	mid := mustBuild(t, NewComponentBuilder("mid"))
	leaf := mustBuild(t, NewComponentBuilder("leaf"))

	require.NoError(t, root.AddChild(mid))
	require.NoError(t, mid.AddChild(leaf))

	assert.Same(t, root, mid.Parent())
	assert.Same(t, mid, leaf.Parent())
	assert.Equal(t, 0, root.Depth())
	assert.Equal(t, 1, mid.Depth())
	assert.Equal(t, 2, leaf.Depth())
	assert.Same(t, root, leaf.Root())
	assert.False(t, root.HasParent())
	assert.True(t, leaf.HasParent())
	require.Len(t, root.Children(), 1)
	assert.Same(t, mid, root.Children()[0].Node())
}

// TestAddChild_EmbeddingType verifies that types embedding *Component are
// child-capable and keep their identity in Children.
func TestAddChild_EmbeddingType(t *testing.T) {
	t.Parallel()
	root := mustBuild(t, NewComponentBuilder("root"))
	w := newWidget(t, "w")
	require.NoError(t, root.AddChild(w))

	children := root.Children()
	require.Len(t, children, 1)
	got, ok := children[0].(*widget)
	require.True(t, ok)
	assert.Equal(t, "w", got.label)
	assert.Same(t, root, w.Parent())
}

// TestAddChild_AlreadyHasParent verifies that adding a child that already
// has a parent fails without altering either party.
func TestAddChild_AlreadyHasParent(t *testing.T) {
	t.Parallel()
	first := mustBuild(t, NewComponentBuilder("first"))
	second := mustBuild(t, NewComponentBuilder("second"))
	child := mustBuild(t, NewComponentBuilder("child"))
	require.NoError(t, first.AddChild(child))

	err := second.AddChild(child)
	require.Error(t, err)
	assert.True(t, sserr.IsConflict(err))
	assert.True(t, sserr.HasCode(err, sserr.CodeConflictHasParent))

	assert.Same(t, first, child.Parent())
	assert.Equal(t, 1, child.Depth())
	assert.Empty(t, second.Children())
	assert.Len(t, first.Children(), 1)
}

// TestAddChild_Self verifies that a component cannot be its own child.
func TestAddChild_Self(t *testing.T) {
	t.Parallel()
	c := mustBuild(t, NewComponentBuilder("c"))
	err := c.AddChild(c)
	require.Error(t, err)
	assert.True(t, sserr.IsValidation(err))
	assert.False(t, c.HasParent())
	assert.Empty(t, c.Children())
}

// TestAddChild_Ancestor verifies that adding an ancestor as a child is
// rejected so the tree stays acyclic.
func TestAddChild_Ancestor(t *testing.T) {
	t.Parallel()
	root := mustBuild(t, NewComponentBuilder("root"))
	leaf := mustBuild(t, NewComponentBuilder("leaf"))
	require.NoError(t, root.AddChild(leaf))

	err := leaf.AddChild(root)
	require.Error(t, err)
	assert.True(t, sserr.IsValidation(err))
	assert.False(t, root.HasParent())
}

// TestAddChild_NotChildCapable verifies that non-child values are rejected.
func TestAddChild_NotChildCapable(t *testing.T) {
	t.Parallel()
	c := mustBuild(t, NewComponentBuilder("c"))
	var nilComponent *Component
	var nilWidget *widget
	for _, v := range []any{nil, "child", 42, struct{}{}, nilComponent, nilWidget} {
		err := c.AddChild(v)
		require.Error(t, err, "%#v", v)
		assert.True(t, sserr.IsValidation(err))
	}
	assert.Empty(t, c.Children())
}

// ===========================================================================
// SetParent Tests
// ===========================================================================

// TestSetParent_Attaches verifies that SetParent links both sides.
func TestSetParent_Attaches(t *testing.T) {
	t.Parallel()
	parent := mustBuild(t, NewComponentBuilder("parent"))
	child := mustBuild(t, NewComponentBuilder("child"))
	require.NoError(t, child.SetParent(parent))
	assert.Same(t, parent, child.Parent())
	assert.Len(t, parent.Children(), 1)
}

// TestSetParent_Nil verifies that a missing parent is a contract violation.
func TestSetParent_Nil(t *testing.T) {
	t.Parallel()
	child := mustBuild(t, NewComponentBuilder("child"))
	var nilComponent *Component

	err := child.SetParent(nil)
	assert.True(t, sserr.HasCode(err, sserr.CodeContractParent))
	err = child.SetParent(nilComponent)
	assert.True(t, sserr.IsContractViolation(err))
	var nilWidget *widget
	err = child.SetParent(nilWidget)
	assert.True(t, sserr.IsContractViolation(err))
	assert.False(t, child.HasParent())
}

// TestSetParent_Twice verifies that a parent, once set, is final.
func TestSetParent_Twice(t *testing.T) {
	t.Parallel()
	a := mustBuild(t, NewComponentBuilder("a"))
	b := mustBuild(t, NewComponentBuilder("b"))
	child := mustBuild(t, NewComponentBuilder("child"))
	require.NoError(t, child.SetParent(a))
	err := child.SetParent(b)
	assert.True(t, sserr.IsConflict(err))
	assert.Same(t, a, child.Parent())
}

// ===========================================================================
// SetChildren Tests
// ===========================================================================

// TestSetChildren_FiltersInvalid verifies that non-child values, self,
// duplicates and children of other parents are silently dropped.
func TestSetChildren_FiltersInvalid(t *testing.T) {
	t.Parallel()
	c := mustBuild(t, NewComponentBuilder("c"))
	other := mustBuild(t, NewComponentBuilder("other"))
	taken := mustBuild(t, NewComponentBuilder("taken"))
	require.NoError(t, other.AddChild(taken))

	a := mustBuild(t, NewComponentBuilder("a"))
	w := newWidget(t, "w")

	var nilWidget *widget
	c.SetChildren("string", a, nil, c, taken, a, 7, nilWidget, w)

	children := c.Children()
	require.Len(t, children, 2)
	assert.Same(t, a, children[0].Node())
	assert.Same(t, w.Component, children[1].Node())
	assert.Same(t, c, a.Parent())
	assert.Equal(t, 1, w.Depth())
	assert.Same(t, other, taken.Parent())
}

// TestSetChildren_Replaces verifies that previous children missing from the
// new list are detached and retained ones keep their parent.
func TestSetChildren_Replaces(t *testing.T) {
	t.Parallel()
	c := mustBuild(t, NewComponentBuilder("c"))
	keep := mustBuild(t, NewComponentBuilder("keep"))
	drop := mustBuild(t, NewComponentBuilder("drop"))
	added := mustBuild(t, NewComponentBuilder("added"))
	require.NoError(t, c.AddChild(keep))
	require.NoError(t, c.AddChild(drop))

	c.SetChildren(added, keep)

	children := c.Children()
	require.Len(t, children, 2)
	assert.Same(t, added, children[0].Node())
	assert.Same(t, keep, children[1].Node())
	assert.Same(t, c, keep.Parent())
	assert.False(t, drop.HasParent())
	assert.Equal(t, 0, drop.Depth())
}

// TestChildren_DefensiveCopy verifies that mutating the returned slice does
// not affect the component.
func TestChildren_DefensiveCopy(t *testing.T) {
	t.Parallel()
	c := mustBuild(t, NewComponentBuilder("c"))
	require.NoError(t, c.AddChild(mustBuild(t, NewComponentBuilder("a"))))
	children := c.Children()
	children[0] = nil
	assert.NotNil(t, c.Children()[0])
}

// TestDepth_NotRederived verifies that depth is fixed at assignment time
// and not recomputed when an ancestor is attached later.
func TestDepth_NotRederived(t *testing.T) {
	t.Parallel()
	mid := mustBuild(t, NewComponentBuilder("mid"))
	leaf := mustBuild(t, NewComponentBuilder("leaf"))
	require.NoError(t, mid.AddChild(leaf))
	assert.Equal(t, 1, leaf.Depth())

	root := mustBuild(t, NewComponentBuilder("root"))
	require.NoError(t, root.AddChild(mid))
	assert.Equal(t, 1, mid.Depth())
	assert.Equal(t, 1, leaf.Depth())
}

// ===========================================================================
// Walk Tests
// ===========================================================================

// TestWalk_PreOrder verifies pre-order traversal in insertion order.
func TestWalk_PreOrder(t *testing.T) {
	t.Parallel()
	root := mustBuild(t, NewComponentBuilder("root"))
	a := mustBuild(t, NewComponentBuilder("a"))
	a1 := mustBuild(t, NewComponentBuilder("a1"))
	b := mustBuild(t, NewComponentBuilder("b"))
	require.NoError(t, a.AddChild(a1))
	require.NoError(t, root.AddChild(a))
	require.NoError(t, root.AddChild(b))

	var names []string
	require.NoError(t, root.Walk(func(c *Component) error {
		names = append(names, c.Name())
		return nil
	}))
	assert.Equal(t, []string{"root", "a", "a1", "b"}, names)
}

// TestWalk_StopsOnError verifies that Walk returns the first error.
func TestWalk_StopsOnError(t *testing.T) {
	t.Parallel()
	root := mustBuild(t, NewComponentBuilder("root"))
	require.NoError(t, root.AddChild(mustBuild(t, NewComponentBuilder("a"))))
	require.NoError(t, root.AddChild(mustBuild(t, NewComponentBuilder("b"))))

	stop := errors.New("stop")
	var visited []string
	err := root.Walk(func(c *Component) error {
		visited = append(visited, c.Name())
		if c.Name() == "a" {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, []string{"root", "a"}, visited)
}

// TestTree_EmbeddedChildPropagation verifies that an embedding type
// receives propagated actions.
func TestTree_EmbeddedChildPropagation(t *testing.T) {
	t.Parallel()
	root := mustBuild(t, NewComponentBuilder("root"))
	w := newWidget(t, "w")
	require.NoError(t, root.AddChild(w))
	require.NoError(t, root.Initialize(context.Background()))
	assert.Equal(t, StatusSucceeded, w.Status(ActionInitialize))
}
