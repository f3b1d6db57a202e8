// internal/lending/domain.go
package lending

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Action is a lending action recorded against a book.
type Action string

const (
	ActionIssue  Action = "issue"
	ActionReturn Action = "return"
	ActionRenew  Action = "renew"
)

// ParseAction maps a wire value onto an Action.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionIssue, ActionReturn, ActionRenew:
		return a, nil
	default:
		return "", fmt.Errorf("%w: unknown action %q", ErrMalformedData, s)
	}
}

// String returns the wire value of the action.
func (a Action) String() string {
	return string(a)
}

// opensLoan reports whether the action leaves the book with the user.
func (a Action) opensLoan() bool {
	return a == ActionIssue || a == ActionRenew
}

// Transaction is one validated entry of a user's lending log.
type Transaction struct {
	BookID          string     `json:"book_id"`
	UserID          string     `json:"user_id"`
	Action          Action     `json:"action"`
	TransactionDate time.Time  `json:"transaction_date"`
	DueDate         *time.Time `json:"due_date,omitempty"`
}

// Status is the derived lending state of one book for one user.
type Status struct {
	Held    bool       `json:"held"`
	DueDate *time.Time `json:"due_date,omitempty"`
}

// Overdue reports whether a held book is past its due date. A held book with
// an unknown due date is never overdue.
func (s Status) Overdue(now time.Time) bool {
	return s.Held && s.DueDate != nil && now.After(*s.DueDate)
}

// Availability is the catalog-wide availability of a book as last reported
// by the backend.
type Availability int

const (
	AvailabilityUnknown Availability = iota
	AvailabilityAvailable
	AvailabilityUnavailable
)

// AvailabilityOf converts a backend availability flag.
func AvailabilityOf(available bool) Availability {
	if available {
		return AvailabilityAvailable
	}
	return AvailabilityUnavailable
}

func (a Availability) String() string {
	switch a {
	case AvailabilityAvailable:
		return "available"
	case AvailabilityUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

func (a Availability) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// ActionSet is a set of actions a user may currently take on a book.
type ActionSet uint8

const (
	setIssue ActionSet = 1 << iota
	setReturn
	setRenew
)

// NewActionSet builds a set from the given actions.
func NewActionSet(actions ...Action) ActionSet {
	var s ActionSet
	for _, a := range actions {
		s |= bit(a)
	}
	return s
}

func bit(a Action) ActionSet {
	switch a {
	case ActionIssue:
		return setIssue
	case ActionReturn:
		return setReturn
	case ActionRenew:
		return setRenew
	default:
		return 0
	}
}

// Has reports whether a is in the set.
func (s ActionSet) Has(a Action) bool {
	b := bit(a)
	return b != 0 && s&b == b
}

// Empty reports whether no action is allowed.
func (s ActionSet) Empty() bool {
	return s == 0
}

// Actions lists the members in issue, return, renew order.
func (s ActionSet) Actions() []Action {
	out := make([]Action, 0, 3)
	for _, a := range []Action{ActionIssue, ActionReturn, ActionRenew} {
		if s.Has(a) {
			out = append(out, a)
		}
	}
	return out
}

func (s ActionSet) String() string {
	names := make([]string, 0, 3)
	for _, a := range s.Actions() {
		names = append(names, string(a))
	}
	return "{" + strings.Join(names, ",") + "}"
}

func (s ActionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Actions())
}
