package errors

// Code is a machine-readable error code of the form CATEGORY_XXX.
// Codes are stable once assigned.
type Code string

// General error codes.
const (
	// CodeValidation indicates invalid input.
	CodeValidation Code = "VAL_001"

	// CodeValidationRequired indicates a required value is missing.
	CodeValidationRequired Code = "VAL_002"

	// CodeValidationFormat indicates a value has an invalid format.
	CodeValidationFormat Code = "VAL_003"

	// CodeNotFound indicates a requested entry does not exist.
	CodeNotFound Code = "NF_001"

	// CodeNotFoundEntry indicates a storage entry does not exist.
	CodeNotFoundEntry Code = "NF_002"

	// CodeNotFoundLogger indicates no logger is registered under a name.
	CodeNotFoundLogger Code = "NF_003"

	// CodeConflict indicates an operation conflicts with current state.
	CodeConflict Code = "CONF_001"

	// CodeConflictAlreadyExists indicates the entry already exists.
	CodeConflictAlreadyExists Code = "CONF_002"

	// CodeConflictHasParent indicates a component already has a parent.
	CodeConflictHasParent Code = "CONF_003"

	// CodeInternal indicates an unexpected internal failure.
	CodeInternal Code = "INT_001"

	// CodeInternalStorage indicates a storage backend operation failed.
	CodeInternalStorage Code = "INT_002"

	// CodeInternalConfiguration indicates a configuration error.
	CodeInternalConfiguration Code = "INT_003"

	// CodeUnavailable indicates a service is temporarily unavailable.
	CodeUnavailable Code = "UNAVAIL_001"

	// CodeUnavailableDependency indicates a backing service is unreachable.
	CodeUnavailableDependency Code = "UNAVAIL_002"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout Code = "TIMEOUT_001"

	// CodeTimeoutStorage indicates a storage operation timed out.
	CodeTimeoutStorage Code = "TIMEOUT_002"

	// CodeContract indicates a caller violated an API contract.
	CodeContract Code = "CONTRACT_001"

	// CodeContractParent indicates an invalid parent assignment.
	CodeContractParent Code = "CONTRACT_002"

	// CodePermissionDenied indicates the caller lacks the privilege the
	// operation requires.
	CodePermissionDenied Code = "PERM_001"
)

// Lifecycle error codes. Each action has its own category.
const (
	// CodeInitialization indicates a component failed to initialize.
	CodeInitialization Code = "INIT_001"

	// CodeInitializationAlreadyPerformed indicates initialize was already called.
	CodeInitializationAlreadyPerformed Code = "INIT_002"

	// CodeSetup indicates a component failed to set up.
	CodeSetup Code = "SETUP_001"

	// CodeSetupAlreadyPerformed indicates setup was already called.
	CodeSetupAlreadyPerformed Code = "SETUP_002"

	// CodeRun indicates a component failed to run.
	CodeRun Code = "RUN_001"

	// CodeRunAlreadyPerformed indicates run was already called.
	CodeRunAlreadyPerformed Code = "RUN_002"

	// CodeReset indicates a component failed to reset.
	CodeReset Code = "RESET_001"

	// CodeResetAlreadyPerformed indicates reset was already called.
	CodeResetAlreadyPerformed Code = "RESET_002"

	// CodeOutput indicates a component failed to produce output.
	CodeOutput Code = "OUTPUT_001"

	// CodeOutputAlreadyPerformed indicates output was already called.
	CodeOutputAlreadyPerformed Code = "OUTPUT_002"
)

// Category names returned by [Code.Category].
const (
	CategoryValidation     = "VAL"
	CategoryNotFound       = "NF"
	CategoryConflict       = "CONF"
	CategoryInternal       = "INT"
	CategoryUnavailable    = "UNAVAIL"
	CategoryTimeout        = "TIMEOUT"
	CategoryContract       = "CONTRACT"
	CategoryPermission     = "PERM"
	CategoryInitialization = "INIT"
	CategorySetup          = "SETUP"
	CategoryRun            = "RUN"
	CategoryReset          = "RESET"
	CategoryOutput         = "OUTPUT"
)

// String returns the string representation of the error code.
func (c Code) String() string {
	return string(c)
}

// Category returns the category prefix of the code (e.g. "SETUP").
func (c Code) Category() string {
	s := string(c)
	for i, r := range s {
		if r == '_' {
			return s[:i]
		}
	}
	return s
}

// Number returns the numeric suffix of the code (e.g. "002"), or an
// empty string if the code has no suffix.
func (c Code) Number() string {
	s := string(c)
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '_' {
			return s[i+1:]
		}
	}
	return ""
}

// IsLifecycle reports whether the code belongs to one of the lifecycle
// action categories.
func (c Code) IsLifecycle() bool {
	switch c.Category() {
	case CategoryInitialization, CategorySetup, CategoryRun, CategoryReset, CategoryOutput:
		return true
	default:
		return false
	}
}
