// Package auth models the host's users as far as a plugin needs them: who
// the current user is and which capabilities their roles grant.
//
// The host authenticates users; a plugin only receives the result. Attach
// it to the request context with [ContextWithUser] and answer permission
// questions with an [Authorizer]:
//
//	ctx = auth.ContextWithUser(ctx, auth.User{ID: "42", Roles: []string{"administrator"}})
//	authz := auth.NewAuthorizer(auth.DefaultRoleCapabilities())
//	if authz.Can(ctx, auth.CapManageOptions) { ... }
package auth

import (
	"slices"
	"strings"

	sserr "github.com/StricklySoft/stricklysoft-plugins/pkg/errors"
)

// Capability names something a user may do, such as "manage_options".
// The wildcard "*" grants every capability.
type Capability string

// Well-known capabilities.
const (
	// CapAll grants every capability.
	CapAll Capability = "*"

	// CapManageOptions allows changing plugin settings and dismissing
	// soft dependency failures.
	CapManageOptions Capability = "manage_options"

	// CapActivatePlugins allows activating and deactivating plugins.
	CapActivatePlugins Capability = "activate_plugins"

	// CapEditPosts allows editing content.
	CapEditPosts Capability = "edit_posts"

	// CapRead allows reading the admin area.
	CapRead Capability = "read"
)

// User is an authenticated host user.
type User struct {
	// ID is the host's user identifier.
	ID string `json:"id"`

	// Roles are role names resolved through an [Authorizer].
	Roles []string `json:"roles,omitempty"`

	// Capabilities are granted directly, in addition to the roles'.
	Capabilities []Capability `json:"capabilities,omitempty"`
}

// Validate checks that the user has an id.
func (u User) Validate() error {
	if strings.TrimSpace(u.ID) == "" {
		return sserr.New(sserr.CodeValidationRequired, "auth: user id must not be empty")
	}
	return nil
}

// HasRole reports whether the user has role.
func (u User) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}
