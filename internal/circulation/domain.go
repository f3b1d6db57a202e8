// internal/circulation/domain.go
package circulation

import (
	"errors"
	"fmt"
	"librarydesk/internal/lending"
)

var (
	// ErrActionInFlight is returned when another action on the same book
	// by the same user has not completed yet.
	ErrActionInFlight = errors.New("another action on this book is still in progress")
	// ErrActionRejected is returned when the backend procedure reports
	// that it did not perform the action.
	ErrActionRejected = errors.New("the library did not accept the request")
)

// ActionError is the failure of a user-initiated lending action. It always
// names the action that was attempted.
type ActionError struct {
	Action  lending.Action
	BookID  string
	Message string
	Err     error
}

func (e *ActionError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s failed: %s", e.Action, msg)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// backendMessager is implemented by remote errors that carry the message
// reported by the backend.
type backendMessager interface {
	BackendMessage() string
}

// newActionError wraps err, preferring the backend's own message.
func newActionError(action lending.Action, bookID string, err error) *ActionError {
	ae := &ActionError{Action: action, BookID: bookID, Err: err}
	var bm backendMessager
	if errors.As(err, &bm) && bm.BackendMessage() != "" {
		ae.Message = bm.BackendMessage()
	} else {
		ae.Message = err.Error()
	}
	return ae
}
