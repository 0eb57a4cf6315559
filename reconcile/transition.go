// ABOUTME: Automatic status transitions and exchange estimation helpers
// ABOUTME: Sync never moves a contact backwards and never reopens a lost contact
package reconcile

import (
	"regexp"

	"github.com/harperreed/outreach/models"
)

// NextStatus returns the status an automated sync should store when it
// proposes proposed for a contact currently at current. Manual changes do
// not go through here.
func NextStatus(current, proposed models.Status) models.Status {
	if current == models.StatusLost {
		return current
	}
	if !proposed.Valid() {
		return current
	}
	if !current.Valid() || proposed.Rank() >= current.Rank() {
		return proposed
	}
	return current
}

var quotedReplyRe = regexp.MustCompile(`(?im)^(?:>?\s*on .{1,200}? wrote:|>?\s*from:\s*.*?<[^>]+@[^>]+>|>?\s*from:\s*\S+@\S+)`)

// CountQuotedReplies counts quoted-reply headers ("On ... wrote:", "From: ...")
// in a message body. Each one is evidence of an earlier exchange.
func CountQuotedReplies(body string) int {
	return len(quotedReplyRe.FindAllStringIndex(body, -1))
}

// EstimateExchanges turns message counts into a back-and-forth estimate: an
// exchange needs a message each way. Repeated outbound messages with no
// replies count as one weak exchange.
func EstimateExchanges(sent, replies int) int {
	if replies == 0 && sent >= 2 {
		return 1
	}
	return min(sent, replies)
}
