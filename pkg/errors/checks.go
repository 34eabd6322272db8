package errors

import (
	"errors"
)

// AsError finds the first *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// GetCode returns the code of the first *Error in err's chain, or an
// empty code if there is none.
func GetCode(err error) Code {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	return GetCode(err) == code
}

func hasCategory(err error, category string) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == category
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return hasCategory(err, CategoryValidation) }

// IsNotFound reports whether err is a not found error.
func IsNotFound(err error) bool { return hasCategory(err, CategoryNotFound) }

// IsConflict reports whether err is a conflict error.
func IsConflict(err error) bool { return hasCategory(err, CategoryConflict) }

// IsInternal reports whether err is an internal error.
func IsInternal(err error) bool { return hasCategory(err, CategoryInternal) }

// IsUnavailable reports whether err is an unavailable error.
func IsUnavailable(err error) bool { return hasCategory(err, CategoryUnavailable) }

// IsTimeout reports whether err is a timeout error.
func IsTimeout(err error) bool { return hasCategory(err, CategoryTimeout) }

// IsContractViolation reports whether err signals a broken API contract.
func IsContractViolation(err error) bool { return hasCategory(err, CategoryContract) }

// IsPermissionDenied reports whether err signals a missing privilege.
func IsPermissionDenied(err error) bool { return hasCategory(err, CategoryPermission) }

// IsInitializationFailure reports whether err is an initialize failure.
func IsInitializationFailure(err error) bool { return hasCategory(err, CategoryInitialization) }

// IsSetupFailure reports whether err is a setup failure.
func IsSetupFailure(err error) bool { return hasCategory(err, CategorySetup) }

// IsRunFailure reports whether err is a run failure.
func IsRunFailure(err error) bool { return hasCategory(err, CategoryRun) }

// IsResetFailure reports whether err is a reset failure.
func IsResetFailure(err error) bool { return hasCategory(err, CategoryReset) }

// IsOutputFailure reports whether err is an output failure.
func IsOutputFailure(err error) bool { return hasCategory(err, CategoryOutput) }

// IsLifecycleFailure reports whether err is a failure of any lifecycle
// action.
func IsLifecycleFailure(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code.IsLifecycle()
}

// IsAlreadyPerformed reports whether err signals a repeated lifecycle
// action. Only the outermost *Error in the chain is inspected.
func IsAlreadyPerformed(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code.IsLifecycle() && e.Code.Number() == "002"
}

// IsRetryable reports whether err is transient (timeout or unavailable).
func IsRetryable(err error) bool {
	e, ok := AsError(err)
	return ok && e.Retryable()
}
