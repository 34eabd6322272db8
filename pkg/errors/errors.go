// Package errors provides the structured error type shared by every package
// of the plugin framework. Errors carry a machine-readable [Code], a
// human-readable message, an optional cause and optional details.
//
// # Categories
//
// Codes follow the pattern CATEGORY_XXX. Two families exist:
//
//   - General categories: VAL (validation), NF (not found), CONF
//     (conflict), INT (internal), UNAVAIL (unavailable), TIMEOUT and
//     CONTRACT (a caller broke an API contract, such as reading a
//     lifecycle result before the action ran).
//   - Lifecycle categories: INIT, SETUP, RUN, RESET and OUTPUT. Each
//     lifecycle action reports failures with codes from its own category,
//     so callers can tell an initialization failure from a setup failure
//     with [IsInitializationFailure], [IsSetupFailure] and friends.
//
// Within a lifecycle category, code 001 is a general failure and code 002
// means the action had already been performed. Use [IsAlreadyPerformed] to
// detect repeat invocations.
//
// # Usage
//
//	err := errors.New(errors.CodeSetup, "assets directory is missing")
//
//	if errors.IsAlreadyPerformed(err) {
//	    // the component was set up earlier
//	}
//
//	if e, ok := errors.AsError(err); ok {
//	    logger.Error("lifecycle failed", "code", e.Code, "message", e.Message)
//	}
package errors
