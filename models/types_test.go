// ABOUTME: Tests for outreach data models
// ABOUTME: Validates status parsing, confidence tiers, and the contact merge reducer
package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus(" Call_Scheduled ")
	require.NoError(t, err)
	assert.Equal(t, StatusCallScheduled, st)

	_, err = ParseStatus("won")
	assert.Error(t, err)
}

func TestStatusRankOrder(t *testing.T) {
	for i := 1; i < len(AllStatuses); i++ {
		assert.Less(t, AllStatuses[i-1].Rank(), AllStatuses[i].Rank(), "%s before %s", AllStatuses[i-1], AllStatuses[i])
	}
	assert.Equal(t, -1, Status("bogus").Rank())
}

func TestStatusActive(t *testing.T) {
	assert.True(t, StatusContacted.Active())
	assert.True(t, StatusClosed.Active())
	assert.False(t, StatusNew.Active())
	assert.False(t, StatusLost.Active())
	assert.False(t, StatusClient.Active())
}

func TestConfidenceUpgrade(t *testing.T) {
	assert.Equal(t, ConfidenceMedium, ConfidenceLow.Upgrade())
	assert.Equal(t, ConfidenceHigh, ConfidenceMedium.Upgrade())
	assert.Equal(t, ConfidenceHigh, ConfidenceHigh.Upgrade())
	assert.Equal(t, ConfidenceManual, ConfidenceManual.Upgrade())
}

func TestConfidenceAtLeast(t *testing.T) {
	assert.True(t, ConfidenceHigh.AtLeast(ConfidenceMedium))
	assert.True(t, ConfidenceMedium.AtLeast(ConfidenceMedium))
	assert.False(t, ConfidenceLow.AtLeast(ConfidenceMedium))
	assert.True(t, ConfidenceManual.AtLeast(ConfidenceHigh))

	_, err := ParseConfidence("certain")
	assert.Error(t, err)
}

func TestMergeContactKeepsExistingWhenCandidateEmpty(t *testing.T) {
	existing := Contact{
		ID:       uuid.New(),
		Name:     "Ada Lovelace",
		Company:  "Engines Ltd",
		Email:    "ada@engines.test",
		LinkedIn: "linkedin.com/in/ada",
		Status:   StatusResponded,
	}

	merged := MergeContact(existing, Contact{Email: "ada@engines.test"})

	assert.Equal(t, existing, merged)
}

func TestMergeContactFillsAndReplaces(t *testing.T) {
	existing := Contact{Name: "Ada", Email: "ada@engines.test", Notes: "met at conf"}
	candidate := Contact{Name: "Ada Lovelace", Company: "Engines Ltd", Notes: "asked for pricing"}

	merged := MergeContact(existing, candidate)

	assert.Equal(t, "Ada Lovelace", merged.Name)
	assert.Equal(t, "Engines Ltd", merged.Company)
	assert.Equal(t, "ada@engines.test", merged.Email)
	assert.Equal(t, "met at conf\n\nasked for pricing", merged.Notes)
}

func TestMergeContactIsIdempotent(t *testing.T) {
	existing := Contact{Name: "Ada", Email: "ada@engines.test"}
	candidate := Contact{Company: "Engines Ltd", Notes: "pilot discussion"}

	once := MergeContact(existing, candidate)
	twice := MergeContact(once, candidate)

	assert.Equal(t, once, twice)
}

func TestMissingNextAction(t *testing.T) {
	c := Contact{Name: "Ada", Status: StatusNew}
	assert.Empty(t, c.MissingNextAction())

	c.Status = StatusResponded
	c.NextAction = "Send deck"
	assert.Equal(t, []string{"next_action_due_date", "action_channel", "action_objective"}, c.MissingNextAction())

	c.NextActionDue = "2030-01-02"
	c.ActionChannel = "email"
	c.ActionObjective = "Book call"
	assert.Empty(t, c.MissingNextAction())
}
