package jenkins

import (
	"fmt"

	"git.home.luguber.info/inful/buildwatch/internal/foundation/errors"
)

// RemoteError reports a failed request against the Jenkins API.
// StatusCode is 0 when no HTTP response was received.
type RemoteError struct {
	StatusCode int
	URL        string
	Message    string
	Err        error
}

func (e *RemoteError) Error() string {
	msg := e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.URL != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.URL)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Category classifies transport failures as network errors and HTTP failures as remote errors.
func (e *RemoteError) Category() errors.ErrorCategory {
	if e.StatusCode == 0 {
		return errors.CategoryNetwork
	}
	return errors.CategoryRemote
}

// Transient reports whether repeating the request may succeed.
func (e *RemoteError) Transient() bool {
	return e.StatusCode == 0 || e.StatusCode == 429 || e.StatusCode >= 500
}
