// internal/lending/view.go
package lending

import "time"

// View is what a user sees for one book: the resolved status, the
// backend's availability, and the actions currently open to them.
type View struct {
	BookID       string       `json:"book_id"`
	Held         bool         `json:"held"`
	DueDate      *time.Time   `json:"due_date,omitempty"`
	Overdue      bool         `json:"overdue"`
	StatusKnown  bool         `json:"status_known"`
	Availability Availability `json:"availability"`
	Actions      ActionSet    `json:"actions"`
	InFlight     bool         `json:"in_flight,omitempty"`
}

// NewView builds the view of bookID from the user's transaction log.
// statusKnown is false when the log could not be fetched; the view then
// offers no actions.
func NewView(bookID string, txs []Transaction, statusKnown bool, availability Availability, now time.Time) View {
	v := View{
		BookID:       bookID,
		StatusKnown:  statusKnown,
		Availability: availability,
	}

	var status Status
	if statusKnown {
		status, _ = Resolve(txs, bookID)
	}
	v.Held = status.Held
	v.DueDate = status.DueDate
	v.Overdue = status.Overdue(now)
	v.Actions = Eligible(status, statusKnown, availability)
	return v
}

// Busy marks the view as having an action in flight, which closes every
// action until it completes.
func (v View) Busy() View {
	v.InFlight = true
	v.Actions = 0
	return v
}

// Withdrawn is the view of a book that has left the catalog. It can no
// longer be issued, but a copy that is still held can be returned or
// renewed.
func (v View) Withdrawn() View {
	v.Availability = AvailabilityUnavailable
	if v.InFlight {
		return v
	}
	v.Actions = Eligible(Status{Held: v.Held, DueDate: v.DueDate}, v.StatusKnown, v.Availability)
	return v
}
