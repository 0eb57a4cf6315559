// ABOUTME: OpenAI chat-completions classifier with JSON object responses
// ABOUTME: Bounded request timeout and SDK-level retries
package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/harperreed/outreach/models"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"
)

const (
	// DefaultOpenAIModel is the default model to use
	DefaultOpenAIModel = "gpt-4o-mini"
	// DefaultOpenAIBaseURL is the default OpenAI API base URL
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	// DefaultTimeout bounds each classification call
	DefaultTimeout = 30 * time.Second
)

type OpenAIClassifier struct {
	client openai.Client
	model  string
	logger *zap.Logger
}

// NewOpenAIClassifier creates a classifier backed by the chat completions API.
func NewOpenAIClassifier(apiKey, baseURL, model string, timeout time.Duration, logger *zap.Logger) *OpenAIClassifier {
	if model == "" {
		model = DefaultOpenAIModel
	}
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
		option.WithMaxRetries(2),
	)

	return &OpenAIClassifier{client: client, model: model, logger: logger}
}

// Classify sends the evidence and parses the JSON judgment.
func (c *OpenAIClassifier) Classify(ctx context.Context, p Prompt) (*models.Judgment, error) {
	msg, err := userMessage(p)
	if err != nil {
		return nil, err
	}

	req := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(msg),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai classification failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}

	c.logger.Debug("openai classification",
		zap.String("model", c.model),
		zap.String("kind", p.Kind),
		zap.Duration("elapsed", time.Since(start)),
	)
	return ParseJudgment(resp.Choices[0].Message.Content)
}
