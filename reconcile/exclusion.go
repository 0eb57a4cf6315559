// ABOUTME: Hard exclusion of owner, role, notification, and configured non-targets
// ABOUTME: Runs before any status rule so skip lists always win
package reconcile

import "strings"

var roleLocalParts = map[string]struct{}{
	"info":          {},
	"support":       {},
	"hello":         {},
	"contact":       {},
	"admin":         {},
	"team":          {},
	"office":        {},
	"billing":       {},
	"accounts":      {},
	"notifications": {},
}

var notificationPrefixes = []string{
	"no-reply@",
	"noreply@",
	"notification@",
	"notifications@",
	"donotreply@",
	"mailer-daemon@",
}

var notificationDomains = []string{
	"tally.so",
	"calendly.com",
	"luma-mail.com",
	"verseoftheday.com",
	"googlemail.com",
}

// exclusion returns the reason code of the first exclusion that applies.
func (e *Engine) exclusion(c Candidate) (string, bool) {
	email := strings.ToLower(strings.TrimSpace(c.Email))

	if email != "" {
		if _, ok := e.owners[email]; ok {
			return "self_email", true
		}

		local, domain := splitEmail(email)
		if _, ok := roleLocalParts[local]; ok {
			return "role_inbox", true
		}
		for _, p := range notificationPrefixes {
			if strings.HasPrefix(email, p) {
				return "notification_prefix", true
			}
		}
		for _, d := range notificationDomains {
			if domainMatches(domain, d) {
				return "notification_domain", true
			}
		}
		for _, d := range e.learning.SkipDomains {
			if domainMatches(domain, d) {
				return "learning_skip_domain", true
			}
		}
	}

	text := strings.ToLower(c.Subject + "\n" + c.Text)
	for _, kw := range e.learning.SkipKeywords {
		if kw != "" && strings.Contains(text, kw) {
			return "learning_skip_keyword", true
		}
	}

	return "", false
}

func splitEmail(email string) (local, domain string) {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email, ""
	}
	return email[:at], email[at+1:]
}

// domainMatches accepts the domain itself and its subdomains.
func domainMatches(domain, skip string) bool {
	skip = strings.TrimPrefix(strings.ToLower(skip), "@")
	if domain == "" || skip == "" {
		return false
	}
	return domain == skip || strings.HasSuffix(domain, "."+skip)
}
