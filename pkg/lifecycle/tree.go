package lifecycle

import (
	"reflect"
	"sync"

	sserr "github.com/StricklySoft/stricklysoft-plugins/pkg/errors"
)

// structureMu serializes structural changes across all trees so that two
// components can never adopt each other concurrently.
var structureMu sync.Mutex

// Child is implemented by anything that can be attached under a parent
// component. *Component implements it, and so does every type that embeds
// *Component.
type Child interface {
	Node() *Component
}

// asChild extracts the component behind v, if v is child-capable. Nil
// pointers of embedding types are not.
func asChild(v any) (Child, *Component, bool) {
	ch, ok := v.(Child)
	if !ok || ch == nil {
		return nil, nil, false
	}
	if rv := reflect.ValueOf(ch); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return nil, nil, false
	}
	node := ch.Node()
	if node == nil {
		return nil, nil, false
	}
	return ch, node, true
}

// Parent returns the component's parent, or nil for a root.
func (c *Component) Parent() *Component {
	c.treeMu.RLock()
	defer c.treeMu.RUnlock()
	return c.parent
}

// HasParent reports whether the component has been attached to a parent.
func (c *Component) HasParent() bool {
	return c.Parent() != nil
}

// Depth returns the component's depth; a root has depth 0. Depth is fixed
// when the component is attached and is not recomputed afterwards.
func (c *Component) Depth() int {
	c.treeMu.RLock()
	defer c.treeMu.RUnlock()
	return c.depth
}

// Children returns a copy of the component's children in insertion order.
func (c *Component) Children() []Child {
	c.treeMu.RLock()
	defer c.treeMu.RUnlock()
	out := make([]Child, len(c.children))
	copy(out, c.children)
	return out
}

// Root returns the topmost ancestor of c, or c itself.
func (c *Component) Root() *Component {
	root := c
	for p := root.Parent(); p != nil; p = root.Parent() {
		root = p
	}
	return root
}

// AddChild attaches v under c. v must implement [Child].
//
// AddChild fails without changing either component when:
//   - v is not child-capable ([sserr.CodeValidation]);
//   - v is c itself, or an ancestor of c ([sserr.CodeValidation]);
//   - v already has a parent ([sserr.CodeConflictHasParent]).
//
// On success the child's parent is set to c, its depth to c's depth plus
// one, and it is appended to c's children.
func (c *Component) AddChild(v any) error {
	ch, node, ok := asChild(v)
	if !ok {
		return sserr.Validationf("lifecycle: %T is not a child-capable component", v)
	}
	structureMu.Lock()
	defer structureMu.Unlock()
	if err := c.canAdopt(node); err != nil {
		return err
	}
	c.adopt(ch, node)
	return nil
}

// SetParent attaches c under parent. It is the child-side counterpart of
// [Component.AddChild] and applies the same rules. A nil parent is a
// contract violation ([sserr.CodeContractParent]).
func (c *Component) SetParent(parent Child) error {
	_, node, ok := asChild(parent)
	if !ok {
		return sserr.New(sserr.CodeContractParent,
			"lifecycle: parent must be a component")
	}
	return node.AddChild(c)
}

// SetChildren replaces c's children with the child-capable elements of
// items, in order. Elements that are not child-capable, are c itself or
// one of its ancestors, already belong to another parent, or repeat an
// earlier element are silently dropped. Previous children missing from the
// new list are detached and become roots.
func (c *Component) SetChildren(items ...any) {
	structureMu.Lock()
	defer structureMu.Unlock()

	previous := c.Children()

	c.treeMu.Lock()
	c.children = nil
	c.treeMu.Unlock()

	kept := make(map[*Component]bool, len(items))
	for _, item := range items {
		ch, node, ok := asChild(item)
		if !ok || kept[node] {
			continue
		}
		if node.Parent() == c {
			c.treeMu.Lock()
			c.children = append(c.children, ch)
			c.treeMu.Unlock()
			kept[node] = true
			continue
		}
		if c.canAdopt(node) != nil {
			continue
		}
		c.adopt(ch, node)
		kept[node] = true
	}

	for _, old := range previous {
		node := old.Node()
		if kept[node] {
			continue
		}
		node.treeMu.Lock()
		node.parent = nil
		node.depth = 0
		node.treeMu.Unlock()
	}
}

// canAdopt checks the attachment rules. Callers hold structureMu.
func (c *Component) canAdopt(node *Component) error {
	if node == c {
		return sserr.Validationf("lifecycle: component %q cannot be its own child", c.name)
	}
	if node.HasParent() {
		return sserr.Newf(sserr.CodeConflictHasParent,
			"lifecycle: component %q already has a parent", node.name)
	}
	for p := c.Parent(); p != nil; p = p.Parent() {
		if p == node {
			return sserr.Validationf(
				"lifecycle: component %q is an ancestor of %q", node.name, c.name)
		}
	}
	return nil
}

// adopt links node under c. Callers hold structureMu and have checked
// canAdopt.
func (c *Component) adopt(ch Child, node *Component) {
	depth := c.Depth() + 1

	node.treeMu.Lock()
	node.parent = c
	node.depth = depth
	node.treeMu.Unlock()

	c.treeMu.Lock()
	c.children = append(c.children, ch)
	c.treeMu.Unlock()
}

// Walk calls fn for c and every descendant, depth-first in insertion
// order. It stops at and returns the first error fn returns.
func (c *Component) Walk(fn func(*Component) error) error {
	if err := fn(c); err != nil {
		return err
	}
	for _, ch := range c.Children() {
		if err := ch.Node().Walk(fn); err != nil {
			return err
		}
	}
	return nil
}
