// ABOUTME: Parser for short free-text plan edits such as "tomorrow 2: call Dana"
// ABOUTME: Splits lines into today and tomorrow edits and reports lines it could not use
package models

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// MaxPlanItems is how many numbered slots a plan edit may address.
const MaxPlanItems = 3

var (
	focusLine = regexp.MustCompile(`(?i)^(?:one\s*thing|one|focus)\s*[:\-]\s*(.*)$`)
	itemLine  = regexp.MustCompile(`(?i)^(?:task|item)?\s*(\d+)\s*[:\-.)]\s*(.*)$`)
)

// PlanEdit changes one day's plan. Focus is nil when untouched; Items maps a
// zero-based slot to its new text.
type PlanEdit struct {
	Focus *string
	Items map[int]string
}

func (e PlanEdit) Empty() bool {
	return e.Focus == nil && len(e.Items) == 0
}

// Slots returns the edited slots in ascending order.
func (e PlanEdit) Slots() []int {
	slots := make([]int, 0, len(e.Items))
	for i := range e.Items {
		slots = append(slots, i)
	}
	sort.Ints(slots)
	return slots
}

type PlanUpdate struct {
	Today    PlanEdit
	Tomorrow PlanEdit
	Ignored  []string
}

// ParsePlanUpdate reads one edit per line. A line may start with "today" or
// "tomorrow" (optionally followed by a colon); unprefixed lines edit today.
// The rest is either "one thing: TEXT" or "N: TEXT" with N in 1..MaxPlanItems,
// where "task N" and "item N" are accepted too.
func ParsePlanUpdate(text string) PlanUpdate {
	u := PlanUpdate{
		Today:    PlanEdit{Items: map[int]string{}},
		Tomorrow: PlanEdit{Items: map[int]string{}},
	}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		edit := &u.Today
		if rest, ok := cutDay(line, "tomorrow"); ok {
			edit, line = &u.Tomorrow, rest
		} else if rest, ok := cutDay(line, "today"); ok {
			line = rest
		}
		if line == "" {
			u.Ignored = append(u.Ignored, raw)
			continue
		}

		if m := focusLine.FindStringSubmatch(line); m != nil {
			value := strings.TrimSpace(m[1])
			if value == "" {
				u.Ignored = append(u.Ignored, raw)
				continue
			}
			edit.Focus = &value
			continue
		}

		if m := itemLine.FindStringSubmatch(line); m != nil {
			n, err := strconv.Atoi(m[1])
			value := strings.TrimSpace(m[2])
			if err != nil || n < 1 || n > MaxPlanItems || value == "" {
				u.Ignored = append(u.Ignored, raw)
				continue
			}
			edit.Items[n-1] = value
			continue
		}

		u.Ignored = append(u.Ignored, raw)
	}
	return u
}

// cutDay strips a leading day word followed by a space or colon.
func cutDay(line, day string) (string, bool) {
	if len(line) <= len(day) || !strings.EqualFold(line[:len(day)], day) {
		return line, false
	}
	switch line[len(day)] {
	case ' ', '\t', ':':
		return strings.TrimSpace(line[len(day)+1:]), true
	}
	return line, false
}
