package auth

import (
	"context"
	"slices"
	"sync"

	sserr "github.com/StricklySoft/stricklysoft-plugins/pkg/errors"
)

// RoleCapabilities maps role names to the capabilities they grant.
//
// Example:
//
//	roles := auth.RoleCapabilities{
//	    "administrator": {auth.CapAll},
//	    "subscriber":    {auth.CapRead},
//	}
type RoleCapabilities map[string][]Capability

// DefaultRoleCapabilities returns the host's standard roles:
//
//   - administrator: every capability;
//   - editor: content editing and reading;
//   - author: content editing and reading;
//   - subscriber: reading only.
//
// Each call returns a new map; callers may modify it.
func DefaultRoleCapabilities() RoleCapabilities {
	return RoleCapabilities{
		"administrator": {CapAll},
		"editor":        {CapEditPosts, CapRead},
		"author":        {CapEditPosts, CapRead},
		"subscriber":    {CapRead},
	}
}

// Authorizer answers capability questions for users. It is safe for
// concurrent use; roles may be changed with [Authorizer.SetRole].
type Authorizer struct {
	mu    sync.RWMutex
	roles RoleCapabilities
}

// NewAuthorizer creates an authorizer for roles. The map is copied.
func NewAuthorizer(roles RoleCapabilities) *Authorizer {
	a := &Authorizer{roles: make(RoleCapabilities, len(roles))}
	for name, caps := range roles {
		a.roles[name] = slices.Clone(caps)
	}
	return a
}

// SetRole defines or replaces a role.
func (a *Authorizer) SetRole(name string, caps ...Capability) error {
	if name == "" {
		return sserr.New(sserr.CodeValidationRequired, "auth: role name must not be empty")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.roles[name] = slices.Clone(caps)
	return nil
}

// Roles returns the names of the defined roles, sorted.
func (a *Authorizer) Roles() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, 0, len(a.roles))
	for name := range a.roles {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// UserCan reports whether user holds capability, directly or through one
// of their roles. Unknown roles grant nothing.
func (a *Authorizer) UserCan(user User, capability Capability) bool {
	if grants(user.Capabilities, capability) {
		return true
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, role := range user.Roles {
		if grants(a.roles[role], capability) {
			return true
		}
	}
	return false
}

// Can reports whether the user attached to ctx holds capability. Without
// a user it reports false.
func (a *Authorizer) Can(ctx context.Context, capability Capability) bool {
	user, ok := UserFromContext(ctx)
	return ok && a.UserCan(user, capability)
}

// Require is like [Authorizer.Can] but returns a
// [sserr.CodePermissionDenied] error instead of false.
func (a *Authorizer) Require(ctx context.Context, capability Capability) error {
	if a.Can(ctx, capability) {
		return nil
	}
	return sserr.Newf(sserr.CodePermissionDenied,
		"auth: user %q lacks capability %q", UserIDFromContext(ctx), capability)
}

// Privileged returns a predicate reporting whether userID is the user in
// the context and holds capability. It fits
// dependencies.Privileged.
func (a *Authorizer) Privileged(capability Capability) func(ctx context.Context, userID string) bool {
	return func(ctx context.Context, userID string) bool {
		user, ok := UserFromContext(ctx)
		return ok && userID != "" && user.ID == userID && a.UserCan(user, capability)
	}
}

func grants(caps []Capability, capability Capability) bool {
	for _, c := range caps {
		if c == CapAll || c == capability {
			return true
		}
	}
	return false
}
