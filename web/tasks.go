// ABOUTME: Task and daily plan HTTP handlers
// ABOUTME: Task CRUD with completion toggles and the one-thing daily plan
package web

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/harperreed/outreach/db"
	"github.com/harperreed/outreach/models"
)

type taskRequest struct {
	Text          string `json:"text" validate:"required"`
	DateEntered   string `json:"date_entered" validate:"omitempty,date"`
	DateScheduled string `json:"date_scheduled" validate:"omitempty,date"`
}

type taskUpdate struct {
	Text          *string `json:"text"`
	DateScheduled *string `json:"date_scheduled"`
	Completed     *bool   `json:"completed"`
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pagination(w, r)
	if !ok {
		return
	}
	completed, ok := optionalBool(w, r, "completed")
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := db.TaskFilter{
		EntryDate:     q.Get("date_entered"),
		ScheduledDate: q.Get("date_scheduled"),
		Completed:     completed,
		Limit:         limit,
		Offset:        offset,
	}

	tasks, err := s.store.ListTasks(r.Context(), filter)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	respondJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if err := check(req); err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	if req.DateEntered == "" {
		req.DateEntered = s.today()
	}

	task, err := s.store.AddTask(r.Context(), req.Text, req.DateEntered, req.DateScheduled)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, task)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	task, err := s.store.GetTask(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	if task == nil {
		respondError(w, http.StatusNotFound, "Task not found")
		return
	}
	respondJSON(w, http.StatusOK, task)
}

// handleUpdateTask applies only the fields present in the body.
func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req taskUpdate
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Text != nil && strings.TrimSpace(*req.Text) == "" {
		respondError(w, http.StatusBadRequest, "text is required")
		return
	}
	if req.DateScheduled != nil && *req.DateScheduled != "" {
		if err := validate.Var(*req.DateScheduled, "date"); err != nil {
			respondError(w, http.StatusBadRequest, "date_scheduled must be YYYY-MM-DD")
			return
		}
	}

	ctx := r.Context()
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	if task == nil {
		respondError(w, http.StatusNotFound, "Task not found")
		return
	}

	if req.Text != nil {
		if task, err = s.store.UpdateTaskText(ctx, id, *req.Text); err != nil {
			s.respondStoreError(w, r, err)
			return
		}
	}
	if req.DateScheduled != nil {
		if task, err = s.store.RescheduleTask(ctx, id, *req.DateScheduled); err != nil {
			s.respondStoreError(w, r, err)
			return
		}
	}
	if req.Completed != nil && *req.Completed != task.Completed {
		if *req.Completed {
			task, err = s.store.CompleteTask(ctx, id)
		} else {
			task, err = s.store.ReopenTask(ctx, id)
		}
		if err != nil {
			s.respondStoreError(w, r, err)
			return
		}
	}
	respondJSON(w, http.StatusOK, task)
}

func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	task, err := s.store.CompleteTask(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, task)
}

func (s *Server) handleReopenTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	task, err := s.store.ReopenTask(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, task)
}

// handleGetPlan returns the plan for ?date (default today). A day without a
// plan yields an empty one rather than 404.
func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = s.today()
	}
	if err := validate.Var(date, "date"); err != nil {
		respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	plan, err := s.store.GetPlan(r.Context(), date)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	if plan == nil {
		plan = &models.DailyPlan{Date: date, Items: []models.PlanItem{}}
	}
	respondJSON(w, http.StatusOK, plan)
}

type planRequest struct {
	Date          string            `json:"date"`
	OneThing      *string           `json:"oneThing"`
	OneThingSnake *string           `json:"one_thing"`
	Tasks         []json.RawMessage `json:"tasks"`
}

type planItemObject struct {
	ID     *uuid.UUID `json:"id"`
	TaskID *uuid.UUID `json:"task_id"`
	Text   string     `json:"text"`
}

// planItems accepts each task as a bare string or an object.
func planItems(raw []json.RawMessage) ([]models.PlanItem, error) {
	items := make([]models.PlanItem, 0, len(raw))
	for _, entry := range raw {
		var text string
		if err := json.Unmarshal(entry, &text); err == nil {
			items = append(items, models.PlanItem{Text: text})
			continue
		}
		var obj planItemObject
		if err := json.Unmarshal(entry, &obj); err != nil {
			return nil, validationError{msg: "tasks must be strings or objects with text"}
		}
		taskID := obj.TaskID
		if taskID == nil {
			taskID = obj.ID
		}
		items = append(items, models.PlanItem{TaskID: taskID, Text: obj.Text})
	}
	return items, nil
}

func (s *Server) handleSavePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Date == "" {
		req.Date = s.today()
	}
	if err := validate.Var(req.Date, "date"); err != nil {
		respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	items, err := planItems(req.Tasks)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}

	ctx := r.Context()
	focus := ""
	switch {
	case req.OneThing != nil:
		focus = *req.OneThing
	case req.OneThingSnake != nil:
		focus = *req.OneThingSnake
	default:
		existing, err := s.store.GetPlan(ctx, req.Date)
		if err != nil {
			s.respondStoreError(w, r, err)
			return
		}
		if existing != nil {
			focus = existing.MainFocus
		}
	}

	plan, err := s.store.SavePlan(ctx, req.Date, focus, items)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, plan)
}

type planUpdateRequest struct {
	Text string `json:"text" validate:"required"`
}

type planUpdateResponse struct {
	Today    *models.DailyPlan `json:"today"`
	Tomorrow *models.DailyPlan `json:"tomorrow"`
	Ignored  []string          `json:"ignored"`
}

// handleUpdatePlan applies short "N: text" lines to today's and tomorrow's
// plans. A day without edits is returned as null.
func (s *Server) handleUpdatePlan(w http.ResponseWriter, r *http.Request) {
	var req planUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "text is required")
		return
	}

	update := models.ParsePlanUpdate(req.Text)
	if update.Today.Empty() && update.Tomorrow.Empty() {
		respondError(w, http.StatusBadRequest, "no plan edits found")
		return
	}

	ctx := r.Context()
	now := s.now()
	resp := planUpdateResponse{Ignored: []string{}}
	for _, line := range update.Ignored {
		resp.Ignored = append(resp.Ignored, strings.TrimSpace(line))
	}

	var err error
	if !update.Today.Empty() {
		if resp.Today, err = s.store.ApplyPlanEdit(ctx, now.Format(models.DateLayout), update.Today); err != nil {
			s.respondStoreError(w, r, err)
			return
		}
	}
	if !update.Tomorrow.Empty() {
		if resp.Tomorrow, err = s.store.ApplyPlanEdit(ctx, now.AddDate(0, 0, 1).Format(models.DateLayout), update.Tomorrow); err != nil {
			s.respondStoreError(w, r, err)
			return
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

type rolloverRequest struct {
	Date string `json:"date" validate:"omitempty,date"`
}

func (s *Server) handleRolloverPlan(w http.ResponseWriter, r *http.Request) {
	var req rolloverRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	if err := validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	if req.Date == "" {
		req.Date = s.today()
	}

	plan, reopened, err := s.store.RolloverPlan(r.Context(), req.Date)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	if plan == nil {
		plan = &models.DailyPlan{Date: req.Date, Items: []models.PlanItem{}}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"plan":     plan,
		"reopened": reopened,
	})
}
