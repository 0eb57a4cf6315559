// ABOUTME: Gmail message parsing and the pre-classification filter
// ABOUTME: Extracts headers, addresses, and bodies, and flags bulk or automated mail before the LLM is called
package sync

import (
	"encoding/base64"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"google.golang.org/api/gmail/v1"
)

const maxBodyChars = 5000

// Prefilter reasons. A flagged message is still reconciled but is never
// sent to the classifier.
const (
	ReasonInvalidSender      = "invalid_sender"
	ReasonNotificationSender = "notification_sender"
	ReasonNotificationDomain = "notification_domain"
	ReasonBulk               = "bulk_or_notification"
	ReasonAutomationSubject  = "automation_subject"
	ReasonCalendarInvite     = "calendar_invite"
)

var (
	automatedLocalParts = []string{
		"noreply", "no-reply", "donotreply", "do-not-reply", "notification", "notifications",
		"notify", "mailer-daemon", "postmaster", "bounces", "unsubscribe", "newsletter",
	}
	bulkMarkers      = []string{"unsubscribe", "view in browser", "notification settings", "delivery status notification"}
	automationPrefix = []string{"new event:", "verse of the day:", "new tally form submission", "invitation:", "updated invitation:", "accepted:", "declined:"}
	prefilterDomains = []string{"calendly.com", "tally.so", "luma-mail.com", "verseoftheday.com", "instructure.com"}
	whitespaceRe     = regexp.MustCompile(`\s+`)
	tagRe            = regexp.MustCompile(`<[^>]*>`)
)

// ParsedMessage is a Gmail message reduced to what reconciliation needs.
type ParsedMessage struct {
	ID         string
	ThreadID   string
	From       string
	To         string
	Cc         string
	SenderName string
	Sender     string
	Subject    string
	Date       time.Time
	Snippet    string
	Body       string
}

// parseHeaders returns the first value of each header by canonical name.
func parseHeaders(payload *gmail.MessagePart) map[string]string {
	headers := make(map[string]string)
	if payload == nil {
		return headers
	}
	for _, h := range payload.Headers {
		if h == nil {
			continue
		}
		if _, ok := headers[h.Name]; !ok {
			headers[h.Name] = h.Value
		}
	}
	return headers
}

// ExtractEmailAddress splits an address header into name, lower-cased
// email, and domain. Only the first address is used.
func ExtractEmailAddress(field string) (name, email, domain string) {
	field = strings.TrimSpace(field)
	if field == "" {
		return "", "", ""
	}

	if addrs, err := mail.ParseAddressList(field); err == nil && len(addrs) > 0 {
		name = strings.Trim(addrs[0].Name, `" `)
		email = strings.ToLower(addrs[0].Address)
	} else {
		first := strings.TrimSpace(strings.Split(field, ",")[0])
		if i := strings.Index(first, "<"); i >= 0 {
			name = strings.Trim(first[:i], `" `)
			first = strings.TrimSuffix(first[i+1:], ">")
		}
		email = strings.ToLower(strings.TrimSpace(first))
	}

	if !strings.Contains(email, "@") {
		return name, "", ""
	}
	return name, email, extractDomain(email)
}

// countRecipients counts non-empty entries in an address header.
func countRecipients(value string) int {
	n := 0
	for _, part := range strings.Split(value, ",") {
		if strings.TrimSpace(part) != "" {
			n++
		}
	}
	return n
}

func isAutomatedSender(from string) bool {
	_, email, _ := ExtractEmailAddress(from)
	if email == "" {
		return true
	}
	local, domain, _ := strings.Cut(email, "@")
	for _, p := range automatedLocalParts {
		if local == p || strings.HasPrefix(local, p+"+") || strings.HasPrefix(domain, p+"-") || strings.HasPrefix(domain, p+".") {
			return true
		}
	}
	return false
}

func isCalendarInvite(part *gmail.MessagePart) bool {
	if part == nil {
		return false
	}
	if strings.HasPrefix(strings.ToLower(part.MimeType), "text/calendar") || strings.HasSuffix(strings.ToLower(part.Filename), ".ics") {
		return true
	}
	for _, p := range part.Parts {
		if isCalendarInvite(p) {
			return true
		}
	}
	return false
}

func isAutoGeneratedSubject(subject string) bool {
	s := strings.ToLower(strings.TrimSpace(subject))
	for _, p := range automationPrefix {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// extractBody concatenates text parts, strips markup, and collapses whitespace.
func extractBody(part *gmail.MessagePart) string {
	var collected []string
	var walk func(p *gmail.MessagePart)
	walk = func(p *gmail.MessagePart) {
		if p == nil {
			return
		}
		mime := strings.ToLower(p.MimeType)
		if p.Body != nil && p.Body.Data != "" && (mime == "" || strings.HasPrefix(mime, "text/plain") || strings.HasPrefix(mime, "text/html")) {
			if text := decodeBase64URL(p.Body.Data); text != "" {
				if strings.HasPrefix(mime, "text/html") {
					text = tagRe.ReplaceAllString(text, " ")
				}
				collected = append(collected, text)
			}
		}
		for _, child := range p.Parts {
			walk(child)
		}
	}
	walk(part)

	body := strings.TrimSpace(whitespaceRe.ReplaceAllString(strings.Join(collected, "\n"), " "))
	if len(body) > maxBodyChars {
		body = body[:maxBodyChars]
	}
	return body
}

// decodeBase64URL decodes Gmail body data, which may or may not be padded.
func decodeBase64URL(data string) string {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return ""
	}
	return string(raw)
}

// ParseMessage converts a full-format Gmail message.
func ParseMessage(msg *gmail.Message) ParsedMessage {
	headers := parseHeaders(msg.Payload)
	name, email, _ := ExtractEmailAddress(headers["From"])

	parsed := ParsedMessage{
		ID:         msg.Id,
		ThreadID:   msg.ThreadId,
		From:       headers["From"],
		To:         headers["To"],
		Cc:         headers["Cc"],
		SenderName: name,
		Sender:     email,
		Subject:    headers["Subject"],
		Snippet:    msg.Snippet,
		Body:       extractBody(msg.Payload),
	}
	if parsed.Subject == "" {
		parsed.Subject = "(no subject)"
	}
	if parsed.Body == "" {
		parsed.Body = msg.Snippet
	}

	if msg.InternalDate > 0 {
		parsed.Date = time.UnixMilli(msg.InternalDate).UTC()
	} else if d, err := mail.ParseDate(headers["Date"]); err == nil {
		parsed.Date = d.UTC()
	}
	return parsed
}

// Prefilter returns a reason when msg is bulk or automated mail that is not
// worth a classifier call, or "" when it should be classified.
func Prefilter(msg ParsedMessage, raw *gmail.Message) string {
	sender := msg.Sender
	if sender == "" || !strings.Contains(sender, "@") {
		return ReasonInvalidSender
	}
	if isAutomatedSender(sender) {
		return ReasonNotificationSender
	}
	domain := extractDomain(sender)
	for _, d := range prefilterDomains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return ReasonNotificationDomain
		}
	}
	if raw != nil && isCalendarInvite(raw.Payload) {
		return ReasonCalendarInvite
	}

	head := msg.Body
	if len(head) > 500 {
		head = head[:500]
	}
	text := strings.ToLower(msg.Subject + " " + msg.Snippet + " " + head)
	for _, marker := range bulkMarkers {
		if strings.Contains(text, marker) {
			return ReasonBulk
		}
	}
	if isAutoGeneratedSubject(msg.Subject) {
		return ReasonAutomationSubject
	}
	return ""
}
