// ABOUTME: Gemini classifier using the Google GenAI SDK
// ABOUTME: Requests application/json output and parses it into a judgment
package llm

import (
	"context"
	"fmt"

	"github.com/harperreed/outreach/models"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

type GeminiClassifier struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

// NewGeminiClassifier creates a classifier backed by the Gemini API.
func NewGeminiClassifier(ctx context.Context, apiKey, model string, logger *zap.Logger) (*GeminiClassifier, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiClassifier{client: client, model: model, logger: logger}, nil
}

// Classify sends the evidence and parses the JSON judgment.
func (c *GeminiClassifier) Classify(ctx context.Context, p Prompt) (*models.Judgment, error) {
	msg, err := userMessage(p)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	resp, err := c.client.Models.GenerateContent(ctx, c.model,
		[]*genai.Content{genai.NewContentFromText(msg, genai.RoleUser)},
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
			ResponseMIMEType:  "application/json",
		},
	)
	if err != nil {
		return nil, fmt.Errorf("gemini classification failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return nil, ErrNoChoices
	}

	c.logger.Debug("gemini classification", zap.String("model", c.model), zap.String("kind", p.Kind))
	return ParseJudgment(text)
}
