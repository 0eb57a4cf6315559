// ABOUTME: Gmail source that turns recent messages into reconciliation items
// ABOUTME: Resolves the counterpart of each message and estimates exchanges from its thread
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/gmail/v1"

	"github.com/harperreed/outreach/llm"
	"github.com/harperreed/outreach/models"
	"github.com/harperreed/outreach/reconcile"
)

const (
	gmailService       = "gmail"
	maxGmailResults    = 500 // Gmail API max per page
	defaultMaxMessages = 500
)

type GmailSource struct {
	service     *gmail.Service
	query       string
	owners      map[string]bool
	maxMessages int
	logger      *zap.Logger
}

// NewGmailSource reads messages matching query. Messages from an owner
// address are attributed to their first recipient.
func NewGmailSource(service *gmail.Service, query string, owners []string, logger *zap.Logger) *GmailSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	if query == "" {
		query = "in:inbox OR in:sent"
	}
	ownerSet := make(map[string]bool, len(owners))
	for _, o := range owners {
		ownerSet[normalizeEmail(o)] = true
	}
	return &GmailSource{service: service, query: query, owners: ownerSet, maxMessages: defaultMaxMessages, logger: logger}
}

func (g *GmailSource) Name() string { return gmailService }

// BuildQuery appends the lookback bound to the configured search.
func BuildQuery(base string, since time.Time) string {
	return fmt.Sprintf("(%s) after:%s -in:spam -in:trash", base, since.Format("2006/01/02"))
}

// Fetch lists matching messages since the given time and converts each one.
func (g *GmailSource) Fetch(ctx context.Context, since time.Time) ([]Item, error) {
	if err := g.resolveOwner(ctx); err != nil {
		return nil, err
	}

	query := BuildQuery(g.query, since)
	var ids []string
	pageToken := ""
	for len(ids) < g.maxMessages {
		call := g.service.Users.Messages.List("me").Q(query).MaxResults(maxGmailResults).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list messages: %w", err)
		}
		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
		}
		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}
	if len(ids) > g.maxMessages {
		ids = ids[:g.maxMessages]
	}

	threads := make(map[string]*threadCounts)
	items := make([]Item, 0, len(ids))
	for _, id := range ids {
		msg, err := g.service.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
		if err != nil {
			items = append(items, Item{ExternalID: id, Err: fmt.Errorf("failed to fetch message: %w", err)})
			continue
		}
		items = append(items, g.toItem(ctx, msg, threads))
	}

	g.logger.Info("gmail messages fetched", zap.String("query", query), zap.Int("messages", len(items)))
	return items, nil
}

// resolveOwner adds the mailbox address to the owner set.
func (g *GmailSource) resolveOwner(ctx context.Context) error {
	profile, err := g.service.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to get user profile: %w", err)
	}
	if addr := normalizeEmail(profile.EmailAddress); addr != "" {
		g.owners[addr] = true
	}
	return nil
}

type threadCounts struct {
	sent    int
	replies int
}

func (g *GmailSource) toItem(ctx context.Context, msg *gmail.Message, threads map[string]*threadCounts) Item {
	parsed := ParseMessage(msg)

	counterpartName, counterpart := parsed.SenderName, parsed.Sender
	if g.owners[parsed.Sender] {
		counterpartName, counterpart, _ = ExtractEmailAddress(parsed.To)
	}

	counts := g.threadCounts(ctx, parsed.ThreadID, threads)
	replies := max(counts.replies, reconcile.CountQuotedReplies(parsed.Body))
	exchanges := reconcile.EstimateExchanges(counts.sent, replies)

	item := Item{
		ExternalID: parsed.ID,
		Title:      parsed.Subject,
		Summary:    parsed.Snippet,
		OccurredAt: parsed.Date,
		Contact: models.Contact{
			Name:  counterpartName,
			Email: counterpart,
		},
		Subject:   parsed.Subject,
		Text:      parsed.Body,
		Exchanges: exchanges,
		Raw:       messageRaw(parsed, exchanges),
	}

	reason := Prefilter(parsed, msg)
	if reason == "" && countRecipients(parsed.To)+countRecipients(parsed.Cc) > 10 {
		reason = "group_email"
	}
	if reason != "" {
		g.logger.Debug("gmail message prefiltered", zap.String("message_id", parsed.ID), zap.String("reason", reason))
		return item
	}

	item.Prompt = &llm.Prompt{
		Kind:        llm.KindEmail,
		SenderName:  parsed.SenderName,
		SenderEmail: parsed.Sender,
		Subject:     parsed.Subject,
		Date:        parsed.Date.Format(time.RFC3339),
		Body:        parsed.Body,
	}
	return item
}

// threadCounts tallies owner-sent and received messages in a thread. A
// thread lookup failure counts the message alone.
func (g *GmailSource) threadCounts(ctx context.Context, threadID string, cache map[string]*threadCounts) threadCounts {
	if threadID == "" {
		return threadCounts{}
	}
	if c, ok := cache[threadID]; ok {
		return *c
	}

	c := &threadCounts{}
	thread, err := g.service.Users.Threads.Get("me", threadID).Format("metadata").MetadataHeaders("From").Context(ctx).Do()
	if err != nil {
		g.logger.Warn("failed to load gmail thread", zap.String("thread_id", threadID), zap.Error(err))
	} else {
		for _, m := range thread.Messages {
			_, from, _ := ExtractEmailAddress(parseHeaders(m.Payload)["From"])
			if g.owners[from] {
				c.sent++
			} else {
				c.replies++
			}
		}
	}
	cache[threadID] = c
	return *c
}

func messageRaw(p ParsedMessage, exchanges int) json.RawMessage {
	data, _ := json.Marshal(map[string]any{
		"message_id": p.ID,
		"thread_id":  p.ThreadID,
		"from":       p.From,
		"to":         p.To,
		"subject":    p.Subject,
		"date":       p.Date.Format(time.RFC3339),
		"exchanges":  exchanges,
	})
	return data
}
