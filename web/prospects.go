// ABOUTME: Prospect HTTP handlers for the contact store
// ABOUTME: List, create, read, replace, delete, and status changes with active-deal validation
package web

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/harperreed/outreach/db"
	"github.com/harperreed/outreach/models"
	"github.com/harperreed/outreach/viz"
)

type prospectRequest struct {
	Name            string `json:"name" validate:"required"`
	Company         string `json:"company"`
	Email           string `json:"email" validate:"omitempty,email"`
	LinkedIn        string `json:"linkedin"`
	Notes           string `json:"notes"`
	Status          string `json:"status" validate:"omitempty,status"`
	NextFollowup    string `json:"next_followup" validate:"omitempty,date"`
	NextAction      string `json:"next_action"`
	NextActionDue   string `json:"next_action_due_date" validate:"omitempty,date"`
	ActionChannel   string `json:"action_channel"`
	ActionObjective string `json:"action_objective"`
}

func requestFromContact(c *models.Contact) prospectRequest {
	return prospectRequest{
		Name:            c.Name,
		Company:         c.Company,
		Email:           c.Email,
		LinkedIn:        c.LinkedIn,
		Notes:           c.Notes,
		Status:          string(c.Status),
		NextFollowup:    c.NextFollowup,
		NextAction:      c.NextAction,
		NextActionDue:   c.NextActionDue,
		ActionChannel:   c.ActionChannel,
		ActionObjective: c.ActionObjective,
	}
}

func (p prospectRequest) apply(c *models.Contact) {
	c.Name = strings.TrimSpace(p.Name)
	c.Company = strings.TrimSpace(p.Company)
	c.Email = strings.TrimSpace(p.Email)
	c.LinkedIn = strings.TrimSpace(p.LinkedIn)
	c.Notes = p.Notes
	c.Status = models.Status(p.Status)
	c.NextFollowup = p.NextFollowup
	c.NextAction = p.NextAction
	c.NextActionDue = p.NextActionDue
	c.ActionChannel = p.ActionChannel
	c.ActionObjective = p.ActionObjective
}

func (s *Server) handleListProspects(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pagination(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := db.ContactFilter{
		Query:   q.Get("q"),
		Company: q.Get("company"),
		Limit:   limit,
		Offset:  offset,
	}
	if raw := q.Get("status"); raw != "" {
		status, err := models.ParseStatus(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Status = status
	}

	contacts, err := s.store.ListContacts(r.Context(), filter)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	if contacts == nil {
		contacts = []models.Contact{}
	}
	respondJSON(w, http.StatusOK, contacts)
}

func (s *Server) handleCreateProspect(w http.ResponseWriter, r *http.Request) {
	var req prospectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Status == "" {
		req.Status = string(models.StatusNew)
	}
	if err := check(req); err != nil {
		s.respondStoreError(w, r, err)
		return
	}

	var contact models.Contact
	req.apply(&contact)
	if err := s.store.CreateContact(r.Context(), &contact); err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	s.logger.Info("prospect created", zap.String("contact_id", contact.ID.String()))
	respondJSON(w, http.StatusCreated, contact)
}

func (s *Server) handleGetProspect(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	contact, err := s.store.GetContact(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	if contact == nil {
		respondError(w, http.StatusNotFound, "Prospect not found")
		return
	}
	respondJSON(w, http.StatusOK, contact)
}

func (s *Server) handleUpdateProspect(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req prospectRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	contact, err := s.store.GetContact(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	if contact == nil {
		respondError(w, http.StatusNotFound, "Prospect not found")
		return
	}
	if req.Status == "" {
		req.Status = string(contact.Status)
	}
	if err := check(req); err != nil {
		s.respondStoreError(w, r, err)
		return
	}

	req.apply(contact)
	if err := s.store.UpdateContact(r.Context(), contact); err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, contact)
}

func (s *Server) handleDeleteProspect(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteContact(r.Context(), id); err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type statusRequest struct {
	Status          string  `json:"status"`
	NextAction      *string `json:"next_action"`
	NextActionDue   *string `json:"next_action_due_date"`
	ActionChannel   *string `json:"action_channel"`
	ActionObjective *string `json:"action_objective"`
}

// handleSetProspectStatus validates the status change against the stored
// prospect merged with any next-action fields in the body.
func (s *Server) handleSetProspectStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Status) == "" {
		respondError(w, http.StatusBadRequest, "status is required")
		return
	}

	contact, err := s.store.GetContact(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	if contact == nil {
		respondError(w, http.StatusNotFound, "Prospect not found")
		return
	}

	merged := requestFromContact(contact)
	merged.Status = strings.ToLower(strings.TrimSpace(req.Status))
	extra := false
	for _, f := range []struct {
		src *string
		dst *string
	}{
		{req.NextAction, &merged.NextAction},
		{req.NextActionDue, &merged.NextActionDue},
		{req.ActionChannel, &merged.ActionChannel},
		{req.ActionObjective, &merged.ActionObjective},
	} {
		if f.src != nil {
			*f.dst = *f.src
			extra = true
		}
	}
	if err := check(merged); err != nil {
		s.respondStoreError(w, r, err)
		return
	}

	if extra {
		merged.apply(contact)
		err = s.store.UpdateContact(r.Context(), contact)
	} else {
		err = s.store.SetStatus(r.Context(), id, models.Status(merged.Status), "api")
		contact.Status = models.Status(merged.Status)
	}
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, contact)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.stats(r.Context())
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleDailySummary(w http.ResponseWriter, r *http.Request) {
	summary, err := viz.GenerateDailySummary(r.Context(), s.store, s.now())
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(viz.RenderDailySummary(summary)))
		return
	}
	respondJSON(w, http.StatusOK, summary)
}
