package lending

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewView(t *testing.T) {
	txs := []Transaction{
		{BookID: "b1", Action: ActionIssue, TransactionDate: day(t, "2024-01-10"), DueDate: dayPtr(t, "2024-01-24")},
	}

	v := NewView("b1", txs, true, AvailabilityUnavailable, day(t, "2024-02-01"))
	assert.True(t, v.Held)
	assert.True(t, v.Overdue)
	assert.Equal(t, NewActionSet(ActionReturn, ActionRenew), v.Actions)

	v = NewView("b2", txs, true, AvailabilityAvailable, day(t, "2024-02-01"))
	assert.False(t, v.Held)
	assert.Equal(t, NewActionSet(ActionIssue), v.Actions)
}

func TestNewView_StatusUnknown(t *testing.T) {
	v := NewView("b1", nil, false, AvailabilityAvailable, day(t, "2024-02-01"))
	assert.False(t, v.StatusKnown)
	assert.True(t, v.Actions.Empty())
}

func TestView_Busy(t *testing.T) {
	v := NewView("b1", nil, true, AvailabilityAvailable, day(t, "2024-02-01")).Busy()
	assert.True(t, v.InFlight)
	assert.True(t, v.Actions.Empty())
}

func TestView_Withdrawn(t *testing.T) {
	txs := []Transaction{
		{BookID: "b1", Action: ActionIssue, TransactionDate: day(t, "2024-01-10"), DueDate: dayPtr(t, "2024-01-24")},
	}
	now := day(t, "2024-01-12")

	held := NewView("b1", txs, true, AvailabilityAvailable, now).Withdrawn()
	assert.Equal(t, NewActionSet(ActionReturn, ActionRenew), held.Actions)

	free := NewView("b2", txs, true, AvailabilityAvailable, now).Withdrawn()
	assert.True(t, free.Actions.Empty())

	unknown := NewView("b1", txs, false, AvailabilityAvailable, now).Withdrawn()
	assert.True(t, unknown.Actions.Empty())

	busy := NewView("b1", txs, true, AvailabilityAvailable, now).Busy().Withdrawn()
	assert.True(t, busy.Actions.Empty())
}
