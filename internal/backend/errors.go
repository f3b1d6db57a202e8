// internal/backend/errors.go
package backend

import (
	"fmt"
	"librarydesk/internal/lending"
)

// RemoteError is a failed call into the backend. It matches
// lending.ErrRemoteCall under errors.Is.
type RemoteError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *RemoteError) Error() string {
	switch {
	case e.Message != "" && e.StatusCode != 0:
		return fmt.Sprintf("%s: backend returned %d: %s", e.Op, e.StatusCode, e.Message)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: backend returned %d", e.Op, e.StatusCode)
	}
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

func (e *RemoteError) Is(target error) bool {
	return target == lending.ErrRemoteCall
}

// BackendMessage returns the message reported by the backend, if any.
func (e *RemoteError) BackendMessage() string {
	return e.Message
}
