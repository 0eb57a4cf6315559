// ABOUTME: Ordered status rules; earlier rules take precedence over later ones
// ABOUTME: Phrase matching over evidence text combined with the advisory LLM judgment
package reconcile

import (
	"regexp"
	"strings"

	"github.com/harperreed/outreach/models"
)

// Rule maps matching evidence to a status at a fixed confidence tier.
type Rule struct {
	Name   string
	Status models.Status
	Tier   models.Confidence
	Match  func(ev *evidence) bool
}

// evidence is the lower-cased view of a candidate that rules match against.
type evidence struct {
	text     string
	judgment *models.Judgment
}

func newEvidence(c Candidate) *evidence {
	parts := []string{c.Subject, c.Text}
	if c.Judgment != nil {
		parts = append(parts, c.Judgment.Summary)
	}
	return &evidence{
		text:     strings.ToLower(strings.Join(parts, "\n")),
		judgment: c.Judgment,
	}
}

func (ev *evidence) containsAny(terms []string) bool {
	for _, t := range terms {
		if t != "" && strings.Contains(ev.text, t) {
			return true
		}
	}
	return false
}

func (ev *evidence) sentiment() string {
	if ev.judgment == nil {
		return ""
	}
	return strings.ToLower(ev.judgment.Sentiment)
}

func (ev *evidence) outreachType() string {
	if ev.judgment == nil {
		return ""
	}
	return strings.ToLower(ev.judgment.OutreachType)
}

// phrases compiles a word-bounded alternation so "pilot" does not match "autopilot".
func phrases(words ...string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

var (
	lostPhrases = phrases(
		"not interested", "no longer interested", "not a fit", "not a good fit", "not the right fit",
		"we'll pass", "we will pass", "going to pass", "decided to go with another", "went with another",
		"please remove me", "stop emailing", "not moving forward", "won't be moving forward",
	)
	clientPhrases = phrases(
		"paying client", "invoice", "invoiced", "retainer", "signed", "contract signed", "payment received",
	)
	pilotPhrases  = phrases("pilot", "trial accepted", "proof of concept", "poc")
	closedPhrases = phrases("ready to proceed", "go ahead", "let's proceed", "deal closed", "verbal yes")
	callNouns     = phrases("call", "meeting", "chat", "demo")
	callVerbs     = phrases("schedule", "scheduled", "book", "booked", "availability", "calendar", "time works", "let's meet", "invite sent")
	proposalWords = phrases("proposal", "scope", "quote", "pricing")
)

// DefaultRules returns the precedence-ordered rule list: lost, client, pilot,
// closed, call_scheduled, responded, contacted.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:   "lost",
			Status: models.StatusLost,
			Tier:   models.ConfidenceHigh,
			Match: func(ev *evidence) bool {
				return ev.sentiment() == models.SentimentNotInterested || lostPhrases.MatchString(ev.text)
			},
		},
		{
			Name:   "client",
			Status: models.StatusClient,
			Tier:   models.ConfidenceHigh,
			Match: func(ev *evidence) bool {
				return clientPhrases.MatchString(ev.text)
			},
		},
		{
			Name:   "pilot",
			Status: models.StatusPilot,
			Tier:   models.ConfidenceMedium,
			Match: func(ev *evidence) bool {
				return pilotPhrases.MatchString(ev.text)
			},
		},
		{
			Name:   "closed",
			Status: models.StatusClosed,
			Tier:   models.ConfidenceMedium,
			Match: func(ev *evidence) bool {
				if closedPhrases.MatchString(ev.text) {
					return true
				}
				j := ev.judgment
				return j != nil && strings.ToLower(j.IntentLevel) == "high" && ev.sentiment() == models.SentimentInterested
			},
		},
		{
			Name:   "call_scheduled",
			Status: models.StatusCallScheduled,
			Tier:   models.ConfidenceMedium,
			Match: func(ev *evidence) bool {
				if ev.outreachType() == models.OutreachMeetingRequest {
					return true
				}
				return callNouns.MatchString(ev.text) && callVerbs.MatchString(ev.text)
			},
		},
		{
			Name:   "responded",
			Status: models.StatusResponded,
			Tier:   models.ConfidenceLow,
			Match: func(ev *evidence) bool {
				switch ev.outreachType() {
				case models.OutreachProposal, models.OutreachPartnership:
					return true
				}
				return proposalWords.MatchString(ev.text)
			},
		},
		{
			Name:   "contacted",
			Status: models.StatusContacted,
			Tier:   models.ConfidenceLow,
			Match: func(ev *evidence) bool {
				j := ev.judgment
				return j != nil && j.IsBusinessOutreach && j.Confidence >= 0.6
			},
		},
	}
}
