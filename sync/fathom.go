// ABOUTME: Fathom meeting source over the Fathom HTTP API with bearer authentication
// ABOUTME: Normalises calls, invitees, and action items into reconciliation items
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/harperreed/outreach/llm"
	"github.com/harperreed/outreach/models"
)

const (
	fathomService        = "fathom"
	DefaultFathomBaseURL = "https://api.fathom.video/v1"
	maxSummaryChars      = 5000
	maxTranscriptChars   = 2000
)

// ErrRateLimited is returned when Fathom keeps answering 429.
var ErrRateLimited = errors.New("fathom API rate limit exceeded")

type FathomSource struct {
	baseURL    string
	apiKey     string
	owners     map[string]bool
	httpClient *http.Client
	maxRetries uint64
	logger     *zap.Logger
}

// NewFathomSource creates a Fathom client with a bounded request timeout.
func NewFathomSource(baseURL, apiKey string, owners []string, timeout time.Duration, logger *zap.Logger) *FathomSource {
	if baseURL == "" {
		baseURL = DefaultFathomBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ownerSet := make(map[string]bool, len(owners))
	for _, o := range owners {
		ownerSet[normalizeEmail(o)] = true
	}
	return &FathomSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		owners:  ownerSet,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		maxRetries: 3,
		logger:     logger,
	}
}

func (f *FathomSource) Name() string { return fathomService }

// fathomCall is the subset of a Fathom call record this system reads. Field
// names vary between API versions, so alternatives are decoded side by side.
type fathomCall struct {
	ID              json.RawMessage   `json:"id"`
	RecordingID     json.RawMessage   `json:"recording_id"`
	Title           string            `json:"title"`
	Summary         string            `json:"summary"`
	CreatedAt       string            `json:"created_at"`
	StartTime       string            `json:"start_time"`
	DurationMinutes *float64          `json:"duration_minutes"`
	Duration        *float64          `json:"duration"`
	Attendees       []json.RawMessage `json:"attendees"`
	Invitees        []json.RawMessage `json:"invitees"`
	Transcript      string            `json:"transcript"`
	ActionItems     []json.RawMessage `json:"action_items"`
}

type fathomPerson struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type fathomActionItem struct {
	Text        string `json:"text"`
	Description string `json:"description"`
	Assignee    string `json:"assignee"`
}

// Fetch lists calls created after since.
func (f *FathomSource) Fetch(ctx context.Context, since time.Time) ([]Item, error) {
	if f.apiKey == "" {
		return nil, errors.New("missing FATHOM_API_KEY")
	}

	body, err := f.get(ctx, "/calls", url.Values{"created_after": {since.UTC().Format(time.RFC3339)}})
	if err != nil {
		return nil, err
	}

	calls, err := decodeCalls(body)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(calls))
	for _, c := range calls {
		items = append(items, f.toItem(c))
	}
	f.logger.Info("fathom calls fetched", zap.Int("calls", len(items)))
	return items, nil
}

func (f *FathomSource) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	endpoint := f.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+f.apiKey)
		req.Header.Set("Accept", "application/json")

		resp, err := f.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
		if err != nil {
			return err
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return ErrRateLimited
		case resp.StatusCode >= 500:
			return fmt.Errorf("fathom API returned %d", resp.StatusCode)
		case resp.StatusCode >= 400:
			return backoff.Permanent(fmt.Errorf("fathom API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data))))
		}
		body = data
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, f.maxRetries), ctx)); err != nil {
		return nil, fmt.Errorf("failed to fetch fathom calls: %w", err)
	}
	return body, nil
}

// decodeCalls accepts a bare array or an object wrapping it in calls or data.
func decodeCalls(body []byte) ([]fathomCall, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var calls []fathomCall
		if err := json.Unmarshal(body, &calls); err != nil {
			return nil, fmt.Errorf("failed to decode fathom calls: %w", err)
		}
		return calls, nil
	}

	var wrapped struct {
		Calls []fathomCall `json:"calls"`
		Data  []fathomCall `json:"data"`
		Items []fathomCall `json:"items"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to decode fathom calls: %w", err)
	}
	switch {
	case wrapped.Calls != nil:
		return wrapped.Calls, nil
	case wrapped.Data != nil:
		return wrapped.Data, nil
	default:
		return wrapped.Items, nil
	}
}

func (f *FathomSource) toItem(c fathomCall) Item {
	raw, _ := json.Marshal(c)
	item := Item{
		ExternalID: firstID(c.ID, c.RecordingID),
		Title:      strings.TrimSpace(c.Title),
		Summary:    truncate(c.Summary, maxSummaryChars),
		Meeting:    true,
		Exchanges:  1,
		Raw:        raw,
	}
	if item.Title == "" {
		item.Title = "Untitled Meeting"
	}
	if item.ExternalID == "" {
		item.Err = errors.New("fathom call has no id")
		return item
	}

	for _, ts := range []string{c.CreatedAt, c.StartTime} {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			item.OccurredAt = t.UTC()
			break
		}
	}
	switch {
	case c.DurationMinutes != nil:
		item.DurationMinutes = int(*c.DurationMinutes)
	case c.Duration != nil:
		// Older payloads report seconds.
		item.DurationMinutes = int(*c.Duration / 60)
	}

	people := c.Attendees
	if len(people) == 0 {
		people = c.Invitees
	}
	for _, p := range people {
		person := decodePerson(p)
		email := normalizeEmail(person.Email)
		if email == "" || f.owners[email] {
			continue
		}
		item.Invitees = append(item.Invitees, email)
		if item.Contact.Email == "" {
			item.Contact = models.Contact{Name: person.Name, Email: email}
		}
	}

	for _, a := range c.ActionItems {
		if d := decodeActionItem(a); d.Description != "" {
			item.ActionItems = append(item.ActionItems, d)
		}
	}

	item.Subject = item.Title
	item.Text = strings.TrimSpace(item.Summary + "\n" + truncate(c.Transcript, maxTranscriptChars))
	item.Prompt = &llm.Prompt{
		Kind:     llm.KindMeeting,
		Subject:  item.Title,
		Body:     item.Text,
		Invitees: item.Invitees,
	}
	if !item.OccurredAt.IsZero() {
		item.Prompt.Date = item.OccurredAt.Format(time.RFC3339)
	}
	return item
}

func firstID(candidates ...json.RawMessage) string {
	for _, raw := range candidates {
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil {
			if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
				return strconv.FormatInt(i, 10)
			}
			return n.String()
		}
	}
	return ""
}

func decodePerson(raw json.RawMessage) fathomPerson {
	var p fathomPerson
	if err := json.Unmarshal(raw, &p); err == nil {
		return p
	}
	var email string
	_ = json.Unmarshal(raw, &email)
	return fathomPerson{Email: email}
}

func decodeActionItem(raw json.RawMessage) ActionItemDraft {
	var a fathomActionItem
	if err := json.Unmarshal(raw, &a); err == nil {
		desc := a.Text
		if desc == "" {
			desc = a.Description
		}
		return ActionItemDraft{Description: strings.TrimSpace(desc), Assignee: a.Assignee}
	}
	var text string
	_ = json.Unmarshal(raw, &text)
	return ActionItemDraft{Description: strings.TrimSpace(text)}
}

// truncate limits s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
