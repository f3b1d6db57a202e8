// internal/lending/gate.go
package lending

// AvailableActions decides which actions are open to a user given the
// resolved status of a book and the backend's availability flag. Pass the
// zero Status when Resolve reported no open loan.
func AvailableActions(status Status, serverAvailable bool) ActionSet {
	switch {
	case status.Held:
		return NewActionSet(ActionReturn, ActionRenew)
	case serverAvailable:
		return NewActionSet(ActionIssue)
	default:
		return 0
	}
}

// Eligible is AvailableActions for views where either input may still be
// missing. Nothing is offered until the status is known, and Issue is
// withheld while availability is unknown.
func Eligible(status Status, statusKnown bool, availability Availability) ActionSet {
	if !statusKnown {
		return 0
	}
	if status.Held {
		return AvailableActions(status, false)
	}
	return AvailableActions(status, availability == AvailabilityAvailable)
}
