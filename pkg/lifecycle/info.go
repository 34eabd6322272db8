package lifecycle

// ComponentInfo is a point-in-time snapshot of a component subtree,
// suitable for JSON encoding in diagnostics endpoints and logs.
type ComponentInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parent_id,omitempty"`
	Depth    int    `json:"depth"`

	// Active and Disabled are set only once the flag has been computed;
	// taking a snapshot never evaluates predicates.
	Active   *bool `json:"active,omitempty"`
	Disabled *bool `json:"disabled,omitempty"`

	Extensions []string          `json:"extensions,omitempty"`
	Actions    map[Action]Status `json:"actions"`
	Children   []ComponentInfo   `json:"children,omitempty"`
}

// Info returns a snapshot of c and its descendants.
func (c *Component) Info() ComponentInfo {
	info := ComponentInfo{
		ID:         c.id,
		Name:       c.name,
		Depth:      c.Depth(),
		Extensions: c.Extensions(),
		Actions:    make(map[Action]Status, len(c.phases)),
	}
	if p := c.Parent(); p != nil {
		info.ParentID = p.id
	}
	info.Active, info.Disabled = c.flagSnapshot()
	for _, a := range Actions() {
		info.Actions[a] = c.Status(a)
	}
	for _, ch := range c.Children() {
		info.Children = append(info.Children, ch.Node().Info())
	}
	return info
}
