// Package dependencies verifies the environment a plugin needs before it
// starts: minimum versions of the host or of other plugins, required
// settings, anything expressible as a [Check].
//
// Checks are either hard or soft. A failed hard check always stops the
// plugin. A failed soft check stops it until a privileged user dismisses
// the failure; dismissals are persisted in a [storage.Store] so they
// survive restarts.
//
//	checker, _ := dependencies.NewChecker(dismissals,
//	    dependencies.WithChecks(
//	        dependencies.VersionCheck("host", hostVersion, "6.2"),
//	        dependencies.SettingCheck("permalinks", permalinks, "pretty").AsSoft(),
//	    ),
//	    dependencies.WithPrivileged(isAdmin),
//	)
//	if err := checker.Initialize(ctx); err != nil {
//	    // hard failure or undismissed soft failure
//	}
package dependencies

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/mod/semver"

	sserr "github.com/StricklySoft/stricklysoft-plugins/pkg/errors"
)

// Severity tells whether a failed check can be dismissed.
type Severity int

const (
	// Hard failures always block the plugin.
	Hard Severity = iota

	// Soft failures block the plugin until dismissed.
	Soft
)

// String returns "hard" or "soft".
func (s Severity) String() string {
	switch s {
	case Hard:
		return "hard"
	case Soft:
		return "soft"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Check is one requirement of the plugin.
type Check struct {
	// Name identifies the check. It must be unique within a [Checker]
	// and is the key dismissals are stored under.
	Name string

	Severity Severity

	// Verify returns nil when the requirement is met.
	Verify func(ctx context.Context) error
}

// AsSoft returns a copy of c with [Soft] severity.
func (c Check) AsSoft() Check {
	c.Severity = Soft
	return c
}

func (c Check) validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return sserr.New(sserr.CodeValidationRequired, "dependencies: check name must not be empty")
	}
	if c.Verify == nil {
		return sserr.Newf(sserr.CodeValidationRequired, "dependencies: check %q has no Verify function", c.Name)
	}
	if c.Severity != Hard && c.Severity != Soft {
		return sserr.Newf(sserr.CodeValidation, "dependencies: check %q has unknown severity %d", c.Name, int(c.Severity))
	}
	return nil
}

// canonicalVersion accepts "1.2", "v1.2.3" and similar.
func canonicalVersion(v string) (string, bool) {
	v = strings.TrimSpace(v)
	if v != "" && v[0] != 'v' {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return "", false
	}
	return v, true
}

// VersionCheck returns a hard check that have is at least minimum. Both are
// semantic versions with or without the leading "v"; missing minor and
// patch numbers count as zero.
func VersionCheck(name, have, minimum string) Check {
	return Check{
		Name:     name,
		Severity: Hard,
		Verify: func(context.Context) error {
			h, ok := canonicalVersion(have)
			if !ok {
				return sserr.Newf(sserr.CodeValidationFormat,
					"dependencies: %s: invalid version %q", name, have)
			}
			m, ok := canonicalVersion(minimum)
			if !ok {
				return sserr.Newf(sserr.CodeValidationFormat,
					"dependencies: %s: invalid minimum version %q", name, minimum)
			}
			if semver.Compare(h, m) < 0 {
				return sserr.Newf(sserr.CodeUnavailableDependency,
					"dependencies: %s %s is older than the required %s", name, have, minimum).
					WithDetails(map[string]any{"have": have, "min": minimum})
			}
			return nil
		},
	}
}

// SettingCheck returns a hard check that a setting has the wanted value.
func SettingCheck[T comparable](name string, have, want T) Check {
	return Check{
		Name:     name,
		Severity: Hard,
		Verify: func(context.Context) error {
			if have != want {
				return sserr.Newf(sserr.CodeUnavailableDependency,
					"dependencies: setting %s is %v, want %v", name, have, want).
					WithDetails(map[string]any{"have": have, "want": want})
			}
			return nil
		},
	}
}
