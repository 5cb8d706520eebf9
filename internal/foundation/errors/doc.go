// Package errors provides the classified error type used across buildwatch.
//
// A ClassifiedError carries a category (config, remote, state, ...), a severity
// and a retry hint next to the usual message and cause. Errors are created with
// the fluent builder:
//
//	err := errors.RemoteFailure("jenkins request failed").
//		WithCause(cause).
//		WithContext("url", url).
//		Build()
//
// CLIErrorAdapter and HTTPErrorAdapter turn classified errors into process exit
// codes and HTTP responses respectively.
package errors
