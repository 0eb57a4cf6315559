package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlanUpdate(t *testing.T) {
	u := ParsePlanUpdate(`today 2: Call Dana
Tomorrow: one thing: Ship the pilot
tomorrow task1 - Send contract
1. Review pipeline
focus: Close Acme

what is this
today 4: too many
tomorrow 3:
today`)

	require.NotNil(t, u.Today.Focus)
	assert.Equal(t, "Close Acme", *u.Today.Focus)
	assert.Equal(t, map[int]string{0: "Review pipeline", 1: "Call Dana"}, u.Today.Items)
	assert.Equal(t, []int{0, 1}, u.Today.Slots())

	require.NotNil(t, u.Tomorrow.Focus)
	assert.Equal(t, "Ship the pilot", *u.Tomorrow.Focus)
	assert.Equal(t, map[int]string{0: "Send contract"}, u.Tomorrow.Items)

	assert.Equal(t, []string{"what is this", "today 4: too many", "tomorrow 3:", "today"}, u.Ignored)
}

func TestParsePlanUpdateEmpty(t *testing.T) {
	u := ParsePlanUpdate("  \n\n")
	assert.True(t, u.Today.Empty())
	assert.True(t, u.Tomorrow.Empty())
	assert.Empty(t, u.Ignored)
}

func TestParsePlanUpdateLaterLineWins(t *testing.T) {
	u := ParsePlanUpdate("1: first\ntoday 1: second")
	assert.Equal(t, "second", u.Today.Items[0])
	assert.True(t, u.Tomorrow.Empty())
}
