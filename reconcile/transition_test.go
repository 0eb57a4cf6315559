package reconcile

import (
	"testing"

	"github.com/harperreed/outreach/models"
	"github.com/stretchr/testify/assert"
)

func TestNextStatus(t *testing.T) {
	tests := []struct {
		current  models.Status
		proposed models.Status
		expected models.Status
	}{
		{models.StatusNew, models.StatusContacted, models.StatusContacted},
		{models.StatusResponded, models.StatusContacted, models.StatusResponded},
		{models.StatusCallScheduled, models.StatusClient, models.StatusClient},
		{models.StatusClient, models.StatusPilot, models.StatusClient},
		{models.StatusLost, models.StatusClient, models.StatusLost},
		{models.StatusPilot, models.StatusLost, models.StatusLost},
		{models.StatusContacted, models.Status("bogus"), models.StatusContacted},
		{models.Status(""), models.StatusResponded, models.StatusResponded},
	}

	for _, tt := range tests {
		result := NextStatus(tt.current, tt.proposed)
		if result != tt.expected {
			t.Errorf("NextStatus(%q, %q) = %q, want %q", tt.current, tt.proposed, result, tt.expected)
		}
	}
}

func TestEstimateExchanges(t *testing.T) {
	assert.Equal(t, 0, EstimateExchanges(1, 0))
	assert.Equal(t, 1, EstimateExchanges(3, 0))
	assert.Equal(t, 2, EstimateExchanges(2, 4))
	assert.Equal(t, 1, EstimateExchanges(5, 1))
}

func TestCountQuotedReplies(t *testing.T) {
	body := "Sounds good.\n\nOn Tue, Mar 4, 2030 at 9:00 AM Ada <ada@engines.test> wrote:\n> Are you free?\n> From: Bob <bob@widgets.test>\n"
	assert.Equal(t, 2, CountQuotedReplies(body))
	assert.Equal(t, 0, CountQuotedReplies("just a note"))
}
