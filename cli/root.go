// ABOUTME: Root cobra command and shared process state for every subcommand
// ABOUTME: Loads configuration, builds the logger, opens the store, and wires sync sources
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/harperreed/outreach/config"
	"github.com/harperreed/outreach/db"
	"github.com/harperreed/outreach/llm"
	"github.com/harperreed/outreach/logging"
	"github.com/harperreed/outreach/sync"
	"github.com/harperreed/outreach/telemetry"
)

// App carries what subcommands share. Resources are opened lazily by
// setup and released by Close.
type App struct {
	Version string

	dbPath   string
	debug    bool
	jsonLogs bool

	cfg     *config.Env
	logger  *zap.Logger
	store   *db.Store
	tracer  *sdktrace.TracerProvider
	watcher *config.Watcher
	redis   *redis.Client
	runner  *sync.Runner
}

func NewApp(version string) *App {
	return &App{Version: version}
}

// Execute runs the command line and releases every resource afterwards.
func Execute(ctx context.Context, version string, args []string) error {
	app := NewApp(version)
	defer app.Close()

	root := NewRootCommand(app)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "outreach",
		Short:         "Track prospects, plan the day, and reconcile email and call activity",
		Version:       app.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.setup(cmd.Context())
		},
	}

	root.PersistentFlags().StringVar(&app.dbPath, "db-path", "", "SQLite database path (default: XDG data dir)")
	root.PersistentFlags().BoolVar(&app.debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().BoolVar(&app.jsonLogs, "json-logs", false, "Write logs as JSON")

	root.AddCommand(
		newServeCmd(app),
		newMCPCmd(app),
		newProspectCmd(app),
		newTaskCmd(app),
		newPlanCmd(app),
		newSyncCmd(app),
		newReviewCmd(app),
		newStatsCmd(app),
	)
	return root
}

func (a *App) setup(ctx context.Context) error {
	if a.store != nil {
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.dbPath != "" {
		cfg.DBPath = a.dbPath
	}
	cfg.Debug = cfg.Debug || a.debug
	a.cfg = cfg

	if a.jsonLogs {
		a.logger, err = logging.NewProductionLogger(cfg.Debug)
	} else {
		a.logger, err = logging.NewDevelopmentLogger(cfg.Debug)
	}
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	a.tracer, err = telemetry.Setup(ctx, cfg.OTelEnabled, cfg.OTelEndpoint)
	if err != nil {
		return err
	}

	a.store, err = db.Open(db.Options{Driver: cfg.DBDriver, Path: cfg.DBPath, URL: cfg.DatabaseURL}, a.logger)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	a.logger.Debug("database opened", zap.String("driver", string(a.store.Dialect())))
	return nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("failed to close database", zap.Error(err))
		}
	}
	if err := telemetry.Shutdown(context.Background(), a.tracer); err != nil {
		a.logger.Warn("failed to flush traces", zap.Error(err))
	}
	_ = logging.Sync(a.logger)
}

// watchLearning keeps the learning file hot-reloaded for long-running commands.
func (a *App) watchLearning(ctx context.Context) error {
	if a.watcher != nil {
		return nil
	}
	w, err := config.NewWatcher(a.cfg.LearningConfig, a.logger)
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		w.Stop()
		return fmt.Errorf("failed to watch learning config: %w", err)
	}
	a.watcher = w
	return nil
}

func (a *App) learning() (config.LearningSource, error) {
	if a.watcher != nil {
		return a.watcher, nil
	}
	l, err := config.LoadLearning(a.cfg.LearningConfig)
	if err != nil {
		return nil, err
	}
	return config.Static{L: l}, nil
}

// redisClient returns a client for REDIS_URL, or nil when unset.
func (a *App) redisClient() (*redis.Client, error) {
	if a.cfg.RedisURL == "" || a.redis != nil {
		return a.redis, nil
	}
	opts, err := redis.ParseURL(a.cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	a.redis = redis.NewClient(opts)
	return a.redis, nil
}

// googleClient is the OAuth client for the stored Google token.
func (a *App) googleClient(ctx context.Context) (*http.Client, error) {
	oauthCfg := sync.NewOAuthConfig(a.cfg.GoogleClientID, a.cfg.GoogleClientSecret, a.cfg.GoogleRedirectURL)
	return sync.GetClient(ctx, oauthCfg, sync.TokenPath())
}

// syncRunner builds the orchestrator and registers every source. Sources
// are constructed per run, so a missing credential only fails that source.
func (a *App) syncRunner(ctx context.Context) (*sync.Runner, error) {
	if a.runner != nil {
		return a.runner, nil
	}

	learning, err := a.learning()
	if err != nil {
		return nil, err
	}
	classifier, err := llm.New(ctx, a.cfg, a.logger)
	if err != nil {
		return nil, err
	}
	if classifier == nil {
		a.logger.Info("no LLM provider configured, classification disabled")
	}

	var meetings sync.MeetingSource
	if client, err := a.googleClient(ctx); err == nil {
		svc, err := sync.NewCalendarClient(ctx, client)
		if err != nil {
			return nil, err
		}
		meetings = sync.NewCalendarSource(svc, a.logger)
	} else {
		a.logger.Debug("calendar evidence disabled", zap.Error(err))
	}

	orch := sync.NewOrchestrator(sync.Options{
		Store:      a.store,
		Learning:   learning,
		Owners:     a.cfg.OwnerEmails,
		Classifier: classifier,
		Meetings:   meetings,
		Logger:     a.logger,
	})
	runner := sync.NewRunner(orch)

	runner.Register("gmail", func(ctx context.Context) (sync.Source, error) {
		client, err := a.googleClient(ctx)
		if err != nil {
			return nil, err
		}
		svc, err := sync.NewGmailClient(ctx, client)
		if err != nil {
			return nil, err
		}
		return sync.NewGmailSource(svc, a.cfg.GmailQuery, a.cfg.OwnerEmails, a.logger), nil
	})
	runner.Register("fathom", func(context.Context) (sync.Source, error) {
		if a.cfg.FathomAPIKey == "" {
			return nil, errors.New("FATHOM_API_KEY is not set")
		}
		return sync.NewFathomSource(a.cfg.FathomURL, a.cfg.FathomAPIKey, a.cfg.OwnerEmails, a.cfg.HTTPTimeout, a.logger), nil
	})

	a.runner = runner
	return runner, nil
}

func out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}

func stderr(cmd *cobra.Command) io.Writer {
	return cmd.ErrOrStderr()
}
