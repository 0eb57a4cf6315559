// ABOUTME: Call, review queue, action item, and sync run HTTP handlers
// ABOUTME: Lists synced events, applies reviewed ones, and triggers source runs
package web

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/harperreed/outreach/db"
	"github.com/harperreed/outreach/models"
	"github.com/harperreed/outreach/sync"
)

var errSyncDisabled = errors.New("sync is not configured")

type callDetail struct {
	models.ExternalEvent
	ActionItems []models.ActionItem `json:"action_items"`
}

func (s *Server) handleListCalls(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pagination(w, r)
	if !ok {
		return
	}
	needsReview, ok := optionalBool(w, r, "needs_review")
	if !ok {
		return
	}
	filter := db.EventFilter{
		Source:      r.URL.Query().Get("source"),
		NeedsReview: needsReview,
		Limit:       limit,
		Offset:      offset,
	}

	events, err := s.store.ListEvents(r.Context(), filter)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	if events == nil {
		events = []models.ExternalEvent{}
	}
	respondJSON(w, http.StatusOK, events)
}

func (s *Server) handleGetCall(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	event, err := s.store.GetEvent(ctx, id)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	if event == nil {
		respondError(w, http.StatusNotFound, "Call not found")
		return
	}
	items, err := s.store.ListActionItems(ctx, id)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	if items == nil {
		items = []models.ActionItem{}
	}
	respondJSON(w, http.StatusOK, callDetail{ExternalEvent: *event, ActionItems: items})
}

type applyRequest struct {
	ContactID *uuid.UUID `json:"contact_id"`
	Name      string     `json:"name"`
	Email     string     `json:"email" validate:"omitempty,email"`
	Company   string     `json:"company"`
	LinkedIn  string     `json:"linkedin"`
	Status    string     `json:"status" validate:"omitempty,status"`
}

// handleApplyCall links a reviewed event to an existing or new contact.
func (s *Server) handleApplyCall(w http.ResponseWriter, r *http.Request) {
	if s.syncer == nil {
		respondError(w, http.StatusServiceUnavailable, errSyncDisabled.Error())
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req applyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := check(req); err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	if req.ContactID == nil && strings.TrimSpace(req.Name) == "" && strings.TrimSpace(req.Email) == "" {
		respondError(w, http.StatusBadRequest, "contact_id or contact name/email is required")
		return
	}

	candidate := models.Contact{
		Name:     strings.TrimSpace(req.Name),
		Email:    strings.TrimSpace(req.Email),
		Company:  strings.TrimSpace(req.Company),
		LinkedIn: strings.TrimSpace(req.LinkedIn),
	}
	contact, err := s.syncer.ForceApply(r.Context(), id, req.ContactID, candidate, models.Status(req.Status))
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, contact)
}

type actionItemUpdate struct {
	Completed *bool `json:"completed"`
}

func (s *Server) handleUpdateActionItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req actionItemUpdate
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Completed == nil {
		respondError(w, http.StatusBadRequest, "completed is required")
		return
	}

	item, err := s.store.SetActionItemCompleted(r.Context(), id, *req.Completed)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

// handleRunSync runs one source synchronously. Without ?apply=true matches
// are recorded for review and no contact is changed.
func (s *Server) handleRunSync(w http.ResponseWriter, r *http.Request) {
	if s.syncer == nil {
		respondError(w, http.StatusServiceUnavailable, errSyncDisabled.Error())
		return
	}
	source := mux.Vars(r)["source"]
	apply, ok := optionalBool(w, r, "apply")
	if !ok {
		return
	}

	opts := sync.RunOptions{Type: models.RunManual, Apply: apply != nil && *apply}
	run, err := s.syncer.RunSource(r.Context(), source, opts)
	if err != nil && (run == nil || db.IsUnavailable(err)) {
		s.respondStoreError(w, r, err)
		return
	}
	s.logger.Info("sync triggered over http",
		zap.String("source", source),
		zap.String("run_id", run.ID),
		zap.String("status", run.Status),
	)

	// A failed run is still recorded; the client gets the run with its errors.
	status := http.StatusOK
	if err != nil || run.Status == models.RunFailed {
		status = http.StatusBadGateway
	}
	respondJSON(w, status, run)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	runs, err := s.store.ListRuns(r.Context(), r.URL.Query().Get("source"), limit)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	if runs == nil {
		runs = []models.SyncRun{}
	}
	respondJSON(w, http.StatusOK, runs)
}
