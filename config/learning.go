// ABOUTME: Reconciliation tunables loaded from a YAML or JSON learning file
// ABOUTME: Immutable snapshots with defaults and floors applied at load time
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/harperreed/outreach/models"
	"gopkg.in/yaml.v3"
)

// Learning is a read-only snapshot of the reconciliation tunables. Once
// returned from LoadLearning or ParseLearning it must not be mutated; reloads
// produce a new value.
type Learning struct {
	SkipDomains        []string          `yaml:"skip_domains" json:"skip_domains"`
	PreferTitles       []string          `yaml:"prefer_titles" json:"prefer_titles"`
	SkipKeywords       []string          `yaml:"skip_keywords" json:"skip_keywords"`
	MinExchanges       int               `yaml:"min_exchanges" json:"min_exchanges"`
	MaxDaysBetween     int               `yaml:"max_days_between" json:"max_days_between"`
	MaxAttendees       int               `yaml:"max_attendees" json:"max_attendees"`
	MinDurationMinutes int               `yaml:"min_duration_minutes" json:"min_duration_minutes"`
	MinConfidence      models.Confidence `yaml:"min_confidence" json:"min_confidence"`
	ErrorLimit         int               `yaml:"error_limit" json:"error_limit"`
}

// rawLearning uses pointers so a key that is present but zero can be told
// apart from a missing key.
type rawLearning struct {
	SkipDomains        *[]string `yaml:"skip_domains"`
	PreferTitles       *[]string `yaml:"prefer_titles"`
	SkipKeywords       *[]string `yaml:"skip_keywords"`
	MinExchanges       *int      `yaml:"min_exchanges"`
	MaxDaysBetween     *int      `yaml:"max_days_between"`
	MaxAttendees       *int      `yaml:"max_attendees"`
	MinDurationMinutes *int      `yaml:"min_duration_minutes"`
	MinConfidence      *string   `yaml:"min_confidence"`
	ErrorLimit         *int      `yaml:"error_limit"`
}

// DefaultLearning returns the built-in tunables.
func DefaultLearning() *Learning {
	return &Learning{
		SkipDomains:  []string{},
		PreferTitles: []string{"founder", "ceo", "head of", "director", "marketing", "growth"},
		SkipKeywords: []string{
			"shipment",
			"verse of the day",
			"delivery status notification",
			"view in browser",
			"notification settings",
		},
		MinExchanges:       1,
		MaxDaysBetween:     60,
		MaxAttendees:       10,
		MinDurationMinutes: 15,
		MinConfidence:      models.ConfidenceMedium,
		ErrorLimit:         20,
	}
}

// LoadLearning reads path. A missing file yields the defaults.
func LoadLearning(path string) (*Learning, error) {
	if path == "" {
		return DefaultLearning(), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultLearning(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read learning config: %w", err)
	}
	return ParseLearning(data)
}

// ParseLearning decodes YAML (and therefore JSON) learning data over the
// defaults. Lists are lower-cased and numeric values are floored.
func ParseLearning(data []byte) (*Learning, error) {
	var raw rawLearning
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse learning config: %w", err)
	}

	l := DefaultLearning()
	if raw.SkipDomains != nil {
		l.SkipDomains = lowerAll(*raw.SkipDomains)
	}
	if raw.PreferTitles != nil {
		l.PreferTitles = lowerAll(*raw.PreferTitles)
	}
	if raw.SkipKeywords != nil {
		l.SkipKeywords = lowerAll(*raw.SkipKeywords)
	}
	if raw.MinExchanges != nil {
		l.MinExchanges = max(0, *raw.MinExchanges)
	}
	if raw.MaxDaysBetween != nil {
		l.MaxDaysBetween = max(1, *raw.MaxDaysBetween)
	}
	if raw.MaxAttendees != nil {
		l.MaxAttendees = max(1, *raw.MaxAttendees)
	}
	if raw.MinDurationMinutes != nil {
		l.MinDurationMinutes = max(1, *raw.MinDurationMinutes)
	}
	if raw.ErrorLimit != nil {
		l.ErrorLimit = max(1, *raw.ErrorLimit)
	}
	if raw.MinConfidence != nil {
		c, err := models.ParseConfidence(*raw.MinConfidence)
		if err != nil || c == models.ConfidenceManual {
			return nil, fmt.Errorf("min_confidence must be low, medium, or high, got %q", *raw.MinConfidence)
		}
		l.MinConfidence = c
	}
	return l, nil
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
