package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/harperreed/outreach/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestLoadLearningMissingFileUsesDefaults(t *testing.T) {
	l, err := LoadLearning(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultLearning(), l)
	assert.Equal(t, 1, l.MinExchanges)
	assert.Equal(t, 60, l.MaxDaysBetween)
	assert.Equal(t, 10, l.MaxAttendees)
	assert.Equal(t, 15, l.MinDurationMinutes)
	assert.Equal(t, models.ConfidenceMedium, l.MinConfidence)
	assert.NotContains(t, l.SkipKeywords, "invoice")
}

func TestParseLearningYAML(t *testing.T) {
	l, err := ParseLearning([]byte(`
skip_domains: [Recruiters.Example, "  agency.test "]
min_exchanges: 2
max_attendees: 0
min_confidence: high
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"recruiters.example", "agency.test"}, l.SkipDomains)
	assert.Equal(t, 2, l.MinExchanges)
	assert.Equal(t, 1, l.MaxAttendees, "floored at one")
	assert.Equal(t, models.ConfidenceHigh, l.MinConfidence)
	assert.Equal(t, DefaultLearning().PreferTitles, l.PreferTitles)
}

func TestParseLearningJSON(t *testing.T) {
	l, err := ParseLearning([]byte(`{"skip_keywords": ["Webinar"], "min_exchanges": -3}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"webinar"}, l.SkipKeywords)
	assert.Equal(t, 0, l.MinExchanges)
}

func TestParseLearningRejectsBadConfidence(t *testing.T) {
	_, err := ParseLearning([]byte(`min_confidence: manual`))
	assert.Error(t, err)
	_, err = ParseLearning([]byte(`min_confidence: sure`))
	assert.Error(t, err)
	_, err = ParseLearning([]byte(`skip_domains: {`))
	assert.Error(t, err)
}

func TestParseEnv(t *testing.T) {
	t.Setenv("OUTREACH_DB_DRIVER", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/outreach")
	t.Setenv("OWNER_EMAILS", "Me@Example.com, ,me2@example.com")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("HTTP_TIMEOUT", "5s")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, []string{"me@example.com", "me2@example.com"}, cfg.OwnerEmails)
	assert.Equal(t, "openai", cfg.LLMProvider)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 8080, cfg.Port)
	assert.NotEmpty(t, cfg.DBPath)
	assert.NotEmpty(t, cfg.LearningConfig)
}

func TestWatcherReloadsAndKeepsLastGoodSnapshot(t *testing.T) {
	defer goleak.VerifyNone(t)

	path := filepath.Join(t.TempDir(), "learning.yaml")
	require.NoError(t, os.WriteFile(path, []byte("min_exchanges: 1\n"), 0644))

	w, err := NewWatcher(path, nil)
	require.NoError(t, err)
	w.debounceDur = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	assert.Equal(t, 1, w.Learning().MinExchanges)

	require.NoError(t, os.WriteFile(path, []byte("min_exchanges: 3\n"), 0644))
	require.Eventually(t, func() bool {
		return w.Learning().MinExchanges == 3
	}, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("min_exchanges: [\n"), 0644))
	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, 3, w.Learning().MinExchanges)
}

func TestStaticSource(t *testing.T) {
	assert.Equal(t, DefaultLearning(), Static{}.Learning())
	custom := &Learning{MinExchanges: 4}
	assert.Same(t, custom, Static{L: custom}.Learning())
}
