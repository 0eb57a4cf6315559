// ABOUTME: Deterministic reconciliation engine mapping evidence to a pipeline status
// ABOUTME: Exclusion, ordered rules, exchange threshold, then cross-signal confidence boost
package reconcile

import (
	"strings"
	"time"

	"github.com/harperreed/outreach/config"
	"github.com/harperreed/outreach/models"
)

// LabelAdminNonTarget marks candidates that are never prospects.
const LabelAdminNonTarget = "admin_non_target"

// Candidate is everything known about one identity at classification time.
type Candidate struct {
	Email     string
	Name      string
	Company   string
	Subject   string
	Text      string
	Exchanges int
	// OccurredAt anchors the cross-signal window. Zero disables the boost.
	OccurredAt time.Time
	Judgment   *models.Judgment
	Meetings   []Meeting
}

// Meeting is secondary evidence from a calendar.
type Meeting struct {
	Title           string
	Start           time.Time
	DurationMinutes int
	Attendees       int
	Cancelled       bool
}

// Result is the engine's decision for one candidate.
type Result struct {
	Status      models.Status     `json:"status"`
	Confidence  models.Confidence `json:"confidence"`
	Rule        string            `json:"rule,omitempty"`
	ReasonCodes []string          `json:"reason_codes"`
	CrossSignal bool              `json:"cross_signal"`
	Excluded    bool              `json:"excluded"`
	Label       string            `json:"label,omitempty"`
}

// Importable reports whether the result may be applied automatically.
func (r Result) Importable(min models.Confidence) bool {
	if r.Excluded || r.Status == "" || r.Status == models.StatusNew {
		return false
	}
	return r.Confidence.AtLeast(min)
}

// Engine classifies candidates against one immutable learning snapshot.
// It performs no I/O and is safe for concurrent use.
type Engine struct {
	learning *config.Learning
	owners   map[string]struct{}
	rules    []Rule
}

// NewEngine builds an engine with the default rule list.
func NewEngine(learning *config.Learning, ownerEmails []string) *Engine {
	return NewEngineWithRules(learning, ownerEmails, DefaultRules())
}

// NewEngineWithRules builds an engine with a custom ordered rule list.
func NewEngineWithRules(learning *config.Learning, ownerEmails []string, rules []Rule) *Engine {
	if learning == nil {
		learning = config.DefaultLearning()
	}
	owners := make(map[string]struct{}, len(ownerEmails))
	for _, e := range ownerEmails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			owners[e] = struct{}{}
		}
	}
	return &Engine{learning: learning, owners: owners, rules: rules}
}

// Learning returns the snapshot the engine was built with.
func (e *Engine) Learning() *config.Learning {
	return e.learning
}

// Classify runs the cascade. The first stage that decides wins. Excluded
// results carry a label and no confidence.
func (e *Engine) Classify(c Candidate) Result {
	if reason, excluded := e.exclusion(c); excluded {
		return Result{
			Status:      models.StatusNew,
			ReasonCodes: []string{reason},
			Excluded:    true,
			Label:       LabelAdminNonTarget,
		}
	}

	ev := newEvidence(c)
	var res Result

	for _, rule := range e.rules {
		if rule.Match(ev) {
			res = Result{
				Status:      rule.Status,
				Confidence:  rule.Tier,
				Rule:        rule.Name,
				ReasonCodes: []string{"rule_" + rule.Name},
			}
			break
		}
	}

	if res.Status == "" {
		res = e.exchangeFallback(c, ev)
		if res.Status == models.StatusNew {
			return res
		}
	}

	if e.hasCrossSignal(c) {
		res.Confidence = res.Confidence.Upgrade()
		res.CrossSignal = true
		res.ReasonCodes = append(res.ReasonCodes, "calendar_cross_signal")
	}
	return res
}

func (e *Engine) exchangeFallback(c Candidate, ev *evidence) Result {
	minEx := e.learning.MinExchanges
	if c.Exchanges < minEx {
		return Result{
			Status:      models.StatusNew,
			Confidence:  models.ConfidenceLow,
			ReasonCodes: []string{"exchange_below_threshold"},
		}
	}

	res := Result{
		Status:      models.StatusContacted,
		Confidence:  models.ConfidenceLow,
		ReasonCodes: []string{"exchange_threshold_met"},
	}
	if ev.containsAny(e.learning.PreferTitles) {
		res.ReasonCodes = append(res.ReasonCodes, "preferred_title_signal")
		if c.Exchanges >= max(2, minEx) {
			res.Confidence = models.ConfidenceMedium
		}
	}
	return res
}

// hasCrossSignal looks for a qualifying meeting near the candidate's evidence.
func (e *Engine) hasCrossSignal(c Candidate) bool {
	if c.OccurredAt.IsZero() {
		return false
	}
	window := time.Duration(e.learning.MaxDaysBetween) * 24 * time.Hour
	for _, m := range c.Meetings {
		if m.Cancelled || m.Start.IsZero() {
			continue
		}
		if m.Attendees < 1 || m.Attendees > e.learning.MaxAttendees {
			continue
		}
		if m.DurationMinutes < e.learning.MinDurationMinutes {
			continue
		}
		gap := m.Start.Sub(c.OccurredAt)
		if gap < 0 {
			gap = -gap
		}
		if gap <= window {
			return true
		}
	}
	return false
}
