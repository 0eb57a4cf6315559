// ABOUTME: Pipeline status and confidence tier enums
// ABOUTME: Parsing, validation, pipeline ordering, and tier upgrades
package models

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusNew           Status = "new"
	StatusContacted     Status = "contacted"
	StatusResponded     Status = "responded"
	StatusCallScheduled Status = "call_scheduled"
	StatusPilot         Status = "pilot"
	StatusClosed        Status = "closed"
	StatusClient        Status = "client"
	StatusLost          Status = "lost"
)

// AllStatuses lists every status in pipeline order, lost last.
var AllStatuses = []Status{
	StatusNew,
	StatusContacted,
	StatusResponded,
	StatusCallScheduled,
	StatusClosed,
	StatusPilot,
	StatusClient,
	StatusLost,
}

var pipelineRank = map[Status]int{
	StatusNew:           0,
	StatusContacted:     1,
	StatusResponded:     2,
	StatusCallScheduled: 3,
	StatusClosed:        4,
	StatusPilot:         5,
	StatusClient:        6,
	StatusLost:          7,
}

// ParseStatus validates s against the status enum.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("invalid status %q", s)
	}
	return st, nil
}

func (s Status) Valid() bool {
	_, ok := pipelineRank[s]
	return ok
}

// Rank returns the position of s in the pipeline, -1 when unknown.
func (s Status) Rank() int {
	r, ok := pipelineRank[s]
	if !ok {
		return -1
	}
	return r
}

// Active reports whether the status describes an open deal that needs a
// next action recorded.
func (s Status) Active() bool {
	switch s {
	case StatusContacted, StatusResponded, StatusCallScheduled, StatusClosed:
		return true
	}
	return false
}

type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
	ConfidenceManual Confidence = "manual"
)

var confidenceRank = map[Confidence]int{
	ConfidenceLow:    0,
	ConfidenceMedium: 1,
	ConfidenceHigh:   2,
	ConfidenceManual: 3,
}

// ParseConfidence validates s against the confidence tiers.
func ParseConfidence(s string) (Confidence, error) {
	c := Confidence(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := confidenceRank[c]; !ok {
		return "", fmt.Errorf("invalid confidence %q", s)
	}
	return c, nil
}

// Upgrade moves the tier one step up. High and manual are ceilings.
func (c Confidence) Upgrade() Confidence {
	switch c {
	case ConfidenceLow:
		return ConfidenceMedium
	case ConfidenceMedium:
		return ConfidenceHigh
	}
	return c
}

// AtLeast reports whether c meets the floor min.
func (c Confidence) AtLeast(min Confidence) bool {
	return confidenceRank[c] >= confidenceRank[min]
}

// MissingNextAction lists the json names of next-action fields an active
// deal still lacks. Inactive contacts never miss anything.
func (c Contact) MissingNextAction() []string {
	if !c.Status.Active() {
		return nil
	}
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"next_action", c.NextAction},
		{"next_action_due_date", c.NextActionDue},
		{"action_channel", c.ActionChannel},
		{"action_objective", c.ActionObjective},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}
