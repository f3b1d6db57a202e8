package lending

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvailableActions_RuleTable(t *testing.T) {
	held := Status{Held: true}

	assert.Equal(t, NewActionSet(ActionReturn, ActionRenew), AvailableActions(held, true))
	assert.Equal(t, NewActionSet(ActionReturn, ActionRenew), AvailableActions(held, false))
	assert.Equal(t, NewActionSet(ActionIssue), AvailableActions(Status{}, true))
	assert.True(t, AvailableActions(Status{}, false).Empty())
}

func TestEligible_UnknownStatusDisablesEverything(t *testing.T) {
	assert.True(t, Eligible(Status{Held: true}, false, AvailabilityAvailable).Empty())
	assert.True(t, Eligible(Status{}, false, AvailabilityAvailable).Empty())
}

func TestEligible_UnknownAvailability(t *testing.T) {
	assert.True(t, Eligible(Status{}, true, AvailabilityUnknown).Empty())
	assert.Equal(t, NewActionSet(ActionReturn, ActionRenew), Eligible(Status{Held: true}, true, AvailabilityUnknown))
}

func TestEligible_KnownInputsMatchGate(t *testing.T) {
	assert.Equal(t, NewActionSet(ActionIssue), Eligible(Status{}, true, AvailabilityAvailable))
	assert.True(t, Eligible(Status{}, true, AvailabilityUnavailable).Empty())
}

func TestActionSet(t *testing.T) {
	set := NewActionSet(ActionRenew, ActionIssue)
	assert.True(t, set.Has(ActionIssue))
	assert.True(t, set.Has(ActionRenew))
	assert.False(t, set.Has(ActionReturn))
	assert.False(t, set.Has(Action("borrow")))
	assert.Equal(t, []Action{ActionIssue, ActionRenew}, set.Actions())
	assert.Equal(t, "{issue,renew}", set.String())

	raw, err := json.Marshal(set)
	require.NoError(t, err)
	assert.JSONEq(t, `["issue","renew"]`, string(raw))

	raw, err = json.Marshal(ActionSet(0))
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(raw))
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction(" Renew ")
	require.NoError(t, err)
	assert.Equal(t, ActionRenew, a)

	_, err = ParseAction("borrow")
	assert.ErrorIs(t, err, ErrMalformedData)
}

func TestAvailability_JSON(t *testing.T) {
	raw, err := json.Marshal(AvailabilityOf(false))
	require.NoError(t, err)
	assert.JSONEq(t, `"unavailable"`, string(raw))
	assert.Equal(t, "unknown", AvailabilityUnknown.String())
}
