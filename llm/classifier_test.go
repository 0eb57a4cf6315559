package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/harperreed/outreach/config"
	"github.com/harperreed/outreach/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseJudgment(t *testing.T) {
	j, err := ParseJudgment(`{"is_business_outreach":true,"outreach_type":"Proposal","intent_level":"HIGH","sentiment":"interested","confidence":1.4,"email":" Ada@Engines.test ","relationship_type":"client"}`)
	require.NoError(t, err)
	assert.True(t, j.IsBusinessOutreach)
	assert.Equal(t, models.OutreachProposal, j.OutreachType)
	assert.Equal(t, "high", j.IntentLevel)
	assert.Equal(t, models.SentimentInterested, j.Sentiment)
	assert.Equal(t, 1.0, j.Confidence)
	assert.Equal(t, "ada@engines.test", j.Email)
	assert.Equal(t, models.RelationshipClient, j.RelationshipType)
}

func TestParseJudgmentToleratesSurroundingText(t *testing.T) {
	j, err := ParseJudgment("Here you go:\n```json\n{\"outreach_type\":\"weird\",\"confidence\":-2}\n```")
	require.NoError(t, err)
	assert.Equal(t, models.OutreachOther, j.OutreachType)
	assert.Equal(t, models.SentimentNeutral, j.Sentiment)
	assert.Equal(t, models.RelationshipUnknown, j.RelationshipType)
	assert.Equal(t, 0.0, j.Confidence)
}

func TestParseJudgmentRejectsGarbage(t *testing.T) {
	_, err := ParseJudgment("no json here")
	assert.Error(t, err)
}

func TestUserMessageTruncatesBody(t *testing.T) {
	msg, err := userMessage(Prompt{Kind: KindEmail, Body: strings.Repeat("a", maxBodyChars+500)})
	require.NoError(t, err)

	var decoded struct {
		Evidence Prompt `json:"evidence"`
	}
	require.NoError(t, json.Unmarshal([]byte(msg), &decoded))
	assert.Len(t, decoded.Evidence.Body, maxBodyChars)
}

func TestOpenAIClassifier(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "gpt-4o-mini",
			"choices": [{
				"index": 0,
				"finish_reason": "stop",
				"message": {"role": "assistant", "content": "{\"is_business_outreach\":true,\"outreach_type\":\"meeting_request\",\"confidence\":0.8,\"full_name\":\"Ada Lovelace\"}"}
			}]
		}`))
	}))
	defer server.Close()

	c := NewOpenAIClassifier("test-key", server.URL, "", 5*time.Second, zap.NewNop())
	j, err := c.Classify(context.Background(), Prompt{Kind: KindEmail, SenderEmail: "ada@engines.test", Subject: "Chat next week?"})
	require.NoError(t, err)

	assert.Equal(t, models.OutreachMeetingRequest, j.OutreachType)
	assert.Equal(t, 0.8, j.Confidence)
	assert.Equal(t, "Ada Lovelace", j.FullName)
	assert.Equal(t, DefaultOpenAIModel, gotBody["model"])
}

func TestOpenAIClassifierNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`))
	}))
	defer server.Close()

	c := NewOpenAIClassifier("k", server.URL, "m", time.Second, nil)
	_, err := c.Classify(context.Background(), Prompt{Kind: KindMeeting})
	assert.ErrorIs(t, err, ErrNoChoices)
}

func TestNewSelectsProvider(t *testing.T) {
	ctx := context.Background()

	c, err := New(ctx, &config.Env{}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = New(ctx, &config.Env{LLMProvider: "openai", OpenAIKey: "k"}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClassifier{}, c)

	_, err = New(ctx, &config.Env{LLMProvider: "openai"}, zap.NewNop())
	assert.Error(t, err)

	_, err = New(ctx, &config.Env{LLMProvider: "anthropic"}, zap.NewNop())
	assert.Error(t, err)
}
