// ABOUTME: Contact deduplication and matching logic
// ABOUTME: Matches sync items to known contacts by email, meeting title names, or company
package sync

import (
	"regexp"
	"strings"

	"github.com/harperreed/outreach/models"
)

type ContactMatcher struct {
	byEmail  map[string]*models.Contact
	contacts []*models.Contact
}

// NewContactMatcher creates a matcher from existing contacts.
func NewContactMatcher(contacts []models.Contact) *ContactMatcher {
	m := &ContactMatcher{
		byEmail: make(map[string]*models.Contact),
	}

	for i := range contacts {
		m.AddContact(&contacts[i])
	}

	return m
}

// FindMatch looks for existing contact by email.
func (m *ContactMatcher) FindMatch(email string) (*models.Contact, bool) {
	normalized := normalizeEmail(email)
	if normalized == "" {
		return nil, false
	}

	contact, found := m.byEmail[normalized]
	return contact, found
}

// MatchMeeting resolves a meeting to a single known contact. Names parsed
// from the title that match exactly one contact give high confidence, a
// unique company match gives medium, and a known invitee email gives high.
func (m *ContactMatcher) MatchMeeting(title string, invitees []string) (*models.Contact, models.Confidence, bool) {
	candidates := ParseMeetingTitle(title)

	for _, name := range candidates {
		if c := m.unique(name, func(c *models.Contact) string { return c.Name }); c != nil {
			return c, models.ConfidenceHigh, true
		}
	}

	for _, name := range candidates {
		if c := m.unique(name, func(c *models.Contact) string { return c.Company }); c != nil {
			return c, models.ConfidenceMedium, true
		}
	}

	for _, email := range invitees {
		if c, ok := m.FindMatch(email); ok {
			return c, models.ConfidenceHigh, true
		}
	}

	return nil, "", false
}

func (m *ContactMatcher) unique(term string, field func(*models.Contact) string) *models.Contact {
	needle := strings.ToLower(term)
	var found *models.Contact
	for _, c := range m.contacts {
		if !strings.Contains(strings.ToLower(field(c)), needle) {
			continue
		}
		if found != nil {
			return nil
		}
		found = c
	}
	return found
}

// AddContact adds a newly created contact to the matcher to prevent duplicates
// within the same import session.
func (m *ContactMatcher) AddContact(contact *models.Contact) {
	for i, c := range m.contacts {
		if c.ID == contact.ID {
			m.contacts[i] = contact
			m.index(contact)
			return
		}
	}
	m.contacts = append(m.contacts, contact)
	m.index(contact)
}

func (m *ContactMatcher) index(contact *models.Contact) {
	if email := normalizeEmail(contact.Email); email != "" {
		m.byEmail[email] = contact
	}
}

var (
	withPattern  = regexp.MustCompile(`(?i)^(?:call|meeting|sync)\s+with\s+(.+?)(?:\s*-\s*(.+))?$`)
	titleSuffix  = regexp.MustCompile(`(?i)\s*\b(discovery|intro|followup|follow-up|call|meeting|sync|kickoff|kick-off|website|\d{4}).*$`)
	titleSplitOn = "/"
)

// ParseMeetingTitle extracts likely participant or company names from a
// meeting title such as "Ada / Me", "Call with Ada - Engines", or
// "Widgets <> Roadmap".
func ParseMeetingTitle(title string) []string {
	title = strings.TrimSpace(title)
	var raw []string

	if strings.Contains(title, titleSplitOn) {
		for _, p := range strings.Split(title, titleSplitOn) {
			raw = append(raw, strings.TrimSpace(p))
		}
	}

	if match := withPattern.FindStringSubmatch(title); match != nil {
		raw = append(raw, strings.TrimSpace(match[1]))
		if match[2] != "" {
			raw = append(raw, strings.TrimSpace(match[2]))
		}
	}

	if before, _, ok := strings.Cut(title, "<>"); ok {
		raw = append(raw, strings.TrimSpace(before))
	}

	var cleaned []string
	seen := make(map[string]bool)
	for _, c := range raw {
		c = strings.TrimSpace(titleSuffix.ReplaceAllString(c, ""))
		if len(c) <= 1 || seen[strings.ToLower(c)] {
			continue
		}
		seen[strings.ToLower(c)] = true
		cleaned = append(cleaned, c)
	}
	return cleaned
}

// normalizeEmail converts email to lowercase for comparison.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// extractDomain extracts domain from email address.
func extractDomain(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return ""
	}
	return parts[1]
}
