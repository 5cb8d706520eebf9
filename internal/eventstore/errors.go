package eventstore

import (
	"git.home.luguber.info/inful/buildwatch/internal/foundation/errors"
)

var (
	// ErrDatabaseOpenFailed indicates the database could not be opened.
	ErrDatabaseOpenFailed = errors.EventStoreError("could not open change history database").Build()

	// ErrInitializeSchemaFailed indicates the database schema could not be initialized.
	ErrInitializeSchemaFailed = errors.EventStoreError("failed to initialize change history schema").Build()

	// ErrAppendFailed indicates appending changes failed.
	ErrAppendFailed = errors.EventStoreError("failed to append changes to history").Build()

	// ErrQueryFailed indicates querying the history failed.
	ErrQueryFailed = errors.EventStoreError("failed to query change history").Build()

	// ErrUnsupportedDriver indicates an unknown history driver.
	ErrUnsupportedDriver = errors.ConfigError("unsupported history driver").Build()
)

func wrap(sentinel *errors.ClassifiedError, cause error) error {
	return errors.WrapError(cause, sentinel.Category(), sentinel.Message()).
		WithSeverity(sentinel.Severity()).
		Build()
}
