package state

import (
	"fmt"

	"git.home.luguber.info/inful/buildwatch/internal/foundation/errors"
)

// CorruptStateError reports a persisted snapshot that is not a valid JSON document.
// It is never treated as an empty snapshot.
type CorruptStateError struct {
	Path string
	Err  error
}

func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("corrupt state file %s: %v", e.Path, e.Err)
}

func (e *CorruptStateError) Unwrap() error { return e.Err }

func (e *CorruptStateError) Category() errors.ErrorCategory { return errors.CategoryState }
