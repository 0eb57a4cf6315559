// ABOUTME: Process configuration loaded from the environment and an optional .env file
// ABOUTME: Database, HTTP, LLM, source credential, and telemetry settings
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Env holds every setting read from environment variables.
type Env struct {
	DBDriver    string `env:"OUTREACH_DB_DRIVER" envDefault:"sqlite"`
	DBPath      string `env:"OUTREACH_DB_PATH"`
	DatabaseURL string `env:"DATABASE_URL"`

	APIKey      string        `env:"OUTREACH_TRACKER_API_KEY"`
	Port        int           `env:"PORT" envDefault:"8080"`
	CORSOrigins []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	RateLimit   string        `env:"RATE_LIMIT" envDefault:"20-S"`
	RedisURL    string        `env:"REDIS_URL"`
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`

	LLMProvider string `env:"LLM_PROVIDER"`
	OpenAIKey   string `env:"OPENAI_API_KEY"`
	OpenAIModel string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	OpenAIURL   string `env:"OPENAI_BASE_URL"`
	GeminiKey   string `env:"GEMINI_API_KEY"`
	GeminiModel string `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`

	FathomAPIKey string   `env:"FATHOM_API_KEY"`
	FathomURL    string   `env:"FATHOM_API_URL" envDefault:"https://api.fathom.video/v1"`
	OwnerEmails  []string `env:"OWNER_EMAILS" envSeparator:","`
	GmailQuery   string   `env:"GMAIL_QUERY" envDefault:"in:inbox OR in:sent"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `env:"GOOGLE_REDIRECT_URL" envDefault:"http://localhost:8080/oauth/callback"`

	LearningConfig string `env:"LEARNING_CONFIG"`
	Debug          bool   `env:"OUTREACH_DEBUG" envDefault:"false"`

	OTelEnabled  bool   `env:"OTEL_ENABLED" envDefault:"false"`
	OTelEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
}

// Load reads .env (if present) and parses the environment.
func Load() (*Env, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return Parse()
}

// Parse reads the environment without touching .env files.
func Parse() (*Env, error) {
	var cfg Env
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	cfg.normalize()
	return &cfg, nil
}

func (c *Env) normalize() {
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	if c.DBPath == "" {
		c.DBPath = DefaultDBPath()
	}
	if c.LearningConfig == "" {
		c.LearningConfig = DefaultLearningPath()
	}
	if c.LLMProvider == "" {
		switch {
		case c.OpenAIKey != "":
			c.LLMProvider = "openai"
		case c.GeminiKey != "":
			c.LLMProvider = "gemini"
		}
	}
	owners := c.OwnerEmails[:0]
	for _, e := range c.OwnerEmails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			owners = append(owners, e)
		}
	}
	c.OwnerEmails = owners
}

// DefaultDBPath returns the XDG data path of the local database.
func DefaultDBPath() string {
	return filepath.Join(xdg.DataHome, "outreach", "outreach.db")
}

// DefaultLearningPath returns the XDG config path of the learning file.
func DefaultLearningPath() string {
	return filepath.Join(xdg.ConfigHome, "outreach", "learning.yaml")
}
