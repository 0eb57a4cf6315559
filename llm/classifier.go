// ABOUTME: LLM classifier collaborator interface, prompt building, and judgment parsing
// ABOUTME: Provider selection from configuration; no key means keyword-only classification
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/harperreed/outreach/config"
	"github.com/harperreed/outreach/models"
	"go.uber.org/zap"
)

// ErrNoChoices is returned when a provider answers without content.
var ErrNoChoices = errors.New("no choices in response")

// Classifier returns an advisory judgment for one piece of evidence.
type Classifier interface {
	Classify(ctx context.Context, p Prompt) (*models.Judgment, error)
}

// Prompt kinds.
const (
	KindEmail   = "email"
	KindMeeting = "meeting"
)

// Prompt carries the evidence sent to the model.
type Prompt struct {
	Kind        string   `json:"kind"`
	SenderName  string   `json:"sender_name,omitempty"`
	SenderEmail string   `json:"sender_email,omitempty"`
	Subject     string   `json:"subject,omitempty"`
	Date        string   `json:"date,omitempty"`
	Body        string   `json:"body,omitempty"`
	Invitees    []string `json:"invitees,omitempty"`
}

const maxBodyChars = 6000

const systemPrompt = "You classify business correspondence for a solo consultant's outreach pipeline. Respond with valid JSON only."

// userMessage renders the prompt with the answer schema the parser expects.
func userMessage(p Prompt) (string, error) {
	if len(p.Body) > maxBodyChars {
		p.Body = p.Body[:maxBodyChars]
	}
	payload := map[string]any{
		"evidence": p,
		"answer_schema": map[string]any{
			"is_business_outreach": "boolean",
			"outreach_type":        []string{models.OutreachMeetingRequest, models.OutreachProposal, models.OutreachPartnership, models.OutreachIntro, models.OutreachFollowUp, models.OutreachOther},
			"intent_level":         []string{"low", "medium", "high"},
			"sentiment":            []string{models.SentimentInterested, models.SentimentNeutral, models.SentimentNotInterested},
			"confidence":           "number between 0 and 1",
			"summary":              "one sentence",
			"full_name":            "counterpart full name if known",
			"company":              "counterpart company if known",
			"email":                "counterpart email if known",
			"relationship_type":    []string{models.RelationshipClient, models.RelationshipProspect, models.RelationshipUnknown},
		},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode prompt: %w", err)
	}
	return string(data), nil
}

// ParseJudgment decodes a model answer. Text around the JSON object is
// tolerated and enum fields are normalised.
func ParseJudgment(content string) (*models.Judgment, error) {
	raw := strings.TrimSpace(content)
	var j models.Judgment
	if err := json.Unmarshal([]byte(raw), &j); err != nil {
		start := strings.Index(raw, "{")
		end := strings.LastIndex(raw, "}")
		if start == -1 || end <= start {
			return nil, fmt.Errorf("failed to parse judgment: %w", err)
		}
		if err := json.Unmarshal([]byte(raw[start:end+1]), &j); err != nil {
			return nil, fmt.Errorf("failed to parse judgment: %w", err)
		}
	}

	j.OutreachType = oneOf(j.OutreachType, models.OutreachOther,
		models.OutreachMeetingRequest, models.OutreachProposal, models.OutreachPartnership, models.OutreachIntro, models.OutreachFollowUp)
	j.IntentLevel = oneOf(j.IntentLevel, "low", "low", "medium", "high")
	j.Sentiment = oneOf(j.Sentiment, models.SentimentNeutral, models.SentimentInterested, models.SentimentNotInterested)
	j.RelationshipType = oneOf(j.RelationshipType, models.RelationshipUnknown, models.RelationshipClient, models.RelationshipProspect)
	j.Confidence = min(1, max(0, j.Confidence))
	j.Email = strings.ToLower(strings.TrimSpace(j.Email))
	return &j, nil
}

func oneOf(value, fallback string, allowed ...string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	return fallback
}

// New returns the classifier selected by cfg, or nil when no provider is
// configured.
func New(ctx context.Context, cfg *config.Env, logger *zap.Logger) (Classifier, error) {
	switch strings.ToLower(cfg.LLMProvider) {
	case "":
		return nil, nil
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for the openai provider")
		}
		return NewOpenAIClassifier(cfg.OpenAIKey, cfg.OpenAIURL, cfg.OpenAIModel, cfg.HTTPTimeout, logger), nil
	case "gemini":
		if cfg.GeminiKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for the gemini provider")
		}
		c, err := NewGeminiClassifier(ctx, cfg.GeminiKey, cfg.GeminiModel, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.LLMProvider)
	}
}
