package lifecycle

// IsActive reports whether the component is active. A component is active
// only if it has no parent or its parent is active, its local predicate
// holds, and every [ActiveExtension] agrees.
//
// The value is computed on first call and memoized.
func (c *Component) IsActive() bool {
	return c.memo(&c.active, c.computeActive)
}

// IsDisabled reports whether the component is disabled. A component is
// disabled if its parent is disabled, its local predicate holds, or any
// [DisabledExtension] says so. Disabling therefore cascades to every
// descendant regardless of their own predicates.
//
// The value is computed on first call and memoized.
func (c *Component) IsDisabled() bool {
	return c.memo(&c.disabled, c.computeDisabled)
}

// memo returns *slot, computing it with fn on first use. fn runs without
// holding flagMu because it may consult the parent's flags; the first
// stored value wins.
func (c *Component) memo(slot **bool, fn func() bool) bool {
	c.flagMu.Lock()
	if *slot != nil {
		v := **slot
		c.flagMu.Unlock()
		return v
	}
	c.flagMu.Unlock()

	v := fn()

	c.flagMu.Lock()
	defer c.flagMu.Unlock()
	if *slot == nil {
		*slot = &v
	}
	return **slot
}

func (c *Component) computeActive() bool {
	if p := c.Parent(); p != nil && !p.IsActive() {
		return false
	}
	if c.activeLocal != nil && !c.activeLocal() {
		return false
	}
	for _, ext := range c.activeExtensions {
		if !ext.ExtendActive() {
			return false
		}
	}
	return true
}

func (c *Component) computeDisabled() bool {
	if p := c.Parent(); p != nil && p.IsDisabled() {
		return true
	}
	if c.disabledLocal != nil && c.disabledLocal() {
		return true
	}
	for _, ext := range c.disabledExtensions {
		if ext.ExtendDisabled() {
			return true
		}
	}
	return false
}

// flagSnapshot returns the memoized flags without computing them.
func (c *Component) flagSnapshot() (active, disabled *bool) {
	c.flagMu.Lock()
	defer c.flagMu.Unlock()
	if c.active != nil {
		v := *c.active
		active = &v
	}
	if c.disabled != nil {
		v := *c.disabled
		disabled = &v
	}
	return active, disabled
}
