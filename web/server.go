// ABOUTME: JSON API server for prospects, tasks, daily plans, calls, and sync runs
// ABOUTME: Builds the gorilla/mux router and serves it with graceful shutdown
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"

	"github.com/harperreed/outreach/db"
	"github.com/harperreed/outreach/models"
	"github.com/harperreed/outreach/sync"
	"github.com/harperreed/outreach/telemetry"
	"github.com/harperreed/outreach/viz"
)

// Syncer runs sources and applies reviewed events. *sync.Runner satisfies it.
type Syncer interface {
	RunSource(ctx context.Context, name string, opts sync.RunOptions) (*models.SyncRun, error)
	ForceApply(ctx context.Context, eventID uuid.UUID, contactID *uuid.UUID, candidate models.Contact, status models.Status) (*models.Contact, error)
}

type Options struct {
	Store       *db.Store
	Syncer      Syncer
	APIKey      string
	CORSOrigins []string
	RateLimit   string
	// Redis shares rate limit counters between instances when set.
	Redis       *redis.Client
	OTelEnabled bool
	Logger      *zap.Logger
}

type Server struct {
	store   *db.Store
	syncer  Syncer
	logger  *zap.Logger
	now     func() time.Time
	handler http.Handler
}

func NewServer(opts Options) (*Server, error) {
	if opts.Store == nil {
		return nil, errors.New("store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		store:  opts.Store,
		syncer: opts.Syncer,
		logger: logger,
		now:    time.Now,
	}

	limit, err := rateLimit(opts.RateLimit, opts.Redis)
	if err != nil {
		return nil, err
	}

	r := mux.NewRouter()
	if opts.OTelEnabled {
		r.Use(otelmux.Middleware(telemetry.ServiceName))
	}
	r.Use(logging(logger))
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(requireAPIKey(opts.APIKey))
	api.Use(limit)

	api.HandleFunc("/prospects", s.handleListProspects).Methods(http.MethodGet)
	api.HandleFunc("/prospects", s.handleCreateProspect).Methods(http.MethodPost)
	api.HandleFunc("/prospects/{id}", s.handleGetProspect).Methods(http.MethodGet)
	api.HandleFunc("/prospects/{id}", s.handleUpdateProspect).Methods(http.MethodPut)
	api.HandleFunc("/prospects/{id}", s.handleDeleteProspect).Methods(http.MethodDelete)
	api.HandleFunc("/prospects/{id}/status", s.handleSetProspectStatus).Methods(http.MethodPatch)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/stats/daily", s.handleDailySummary).Methods(http.MethodGet)

	api.HandleFunc("/tasks", s.handleListTasks).Methods(http.MethodGet)
	api.HandleFunc("/tasks", s.handleCreateTask).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id}", s.handleGetTask).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{id}", s.handleUpdateTask).Methods(http.MethodPut)
	api.HandleFunc("/tasks/{id}/complete", s.handleCompleteTask).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id}/reopen", s.handleReopenTask).Methods(http.MethodPost)
	api.HandleFunc("/daily-planning", s.handleGetPlan).Methods(http.MethodGet)
	api.HandleFunc("/daily-planning", s.handleSavePlan).Methods(http.MethodPost)
	api.HandleFunc("/daily-planning/update", s.handleUpdatePlan).Methods(http.MethodPost)
	api.HandleFunc("/daily-planning/rollover", s.handleRolloverPlan).Methods(http.MethodPost)

	api.HandleFunc("/calls", s.handleListCalls).Methods(http.MethodGet)
	api.HandleFunc("/calls/{id}", s.handleGetCall).Methods(http.MethodGet)
	api.HandleFunc("/calls/{id}/apply", s.handleApplyCall).Methods(http.MethodPost)
	api.HandleFunc("/action-items/{id}", s.handleUpdateActionItem).Methods(http.MethodPatch)

	api.HandleFunc("/sync/runs", s.handleListRuns).Methods(http.MethodGet)
	api.HandleFunc("/sync/{source}", s.handleRunSync).Methods(http.MethodPost)

	s.handler = corsHandler(opts.CORSOrigins, r)
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests for up to 30 seconds.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      5 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server_starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("server_shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("server_exited")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn("health check failed", zap.Error(err))
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) stats(ctx context.Context) (*viz.DashboardStats, error) {
	return viz.GenerateDashboardStats(ctx, s.store, s.now())
}

func (s *Server) today() string {
	return s.now().Format(models.DateLayout)
}
