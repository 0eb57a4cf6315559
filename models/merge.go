// ABOUTME: Pure merge of a candidate contact into an existing one
// ABOUTME: Non-empty candidate fields win, empty fields never clear stored values
package models

import "strings"

// MergeContact returns existing updated with the non-empty fields of
// candidate. Identity, status, and timestamps are left to the caller. Notes
// are appended rather than replaced, and a note already present is not
// repeated.
func MergeContact(existing, candidate Contact) Contact {
	merged := existing

	merged.Name = pick(existing.Name, candidate.Name)
	merged.Company = pick(existing.Company, candidate.Company)
	merged.Email = pick(existing.Email, candidate.Email)
	merged.LinkedIn = pick(existing.LinkedIn, candidate.LinkedIn)
	merged.NextFollowup = pick(existing.NextFollowup, candidate.NextFollowup)
	merged.NextAction = pick(existing.NextAction, candidate.NextAction)
	merged.NextActionDue = pick(existing.NextActionDue, candidate.NextActionDue)
	merged.ActionChannel = pick(existing.ActionChannel, candidate.ActionChannel)
	merged.ActionObjective = pick(existing.ActionObjective, candidate.ActionObjective)
	merged.Notes = appendNote(existing.Notes, candidate.Notes)

	return merged
}

func pick(current, incoming string) string {
	if strings.TrimSpace(incoming) == "" {
		return current
	}
	return strings.TrimSpace(incoming)
}

func appendNote(current, incoming string) string {
	incoming = strings.TrimSpace(incoming)
	if incoming == "" || strings.Contains(current, incoming) {
		return current
	}
	if strings.TrimSpace(current) == "" {
		return incoming
	}
	return current + "\n\n" + incoming
}
