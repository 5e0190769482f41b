package handlers

import (
	"net/http"
	"strings"
	"time"

	chiRoute "github.com/go-chi/chi/v5"

	"taskboard-backend/pkg/config"
	"taskboard-backend/pkg/database"
	"taskboard-backend/pkg/middleware"
	"taskboard-backend/pkg/models"
	"taskboard-backend/pkg/realtime"
	"taskboard-backend/pkg/recurrence"
	"taskboard-backend/pkg/utils"
)

// defaultGenerateHorizon bounds on-demand generation when the request
// names no explicit cutoff.
const defaultGenerateHorizon = 30 * 24 * time.Hour

type RecurringHandler struct {
	config *config.Config
	store  database.Store
	hub    *realtime.Hub
}

func NewRecurringHandler(cfg *config.Config, store database.Store, hub *realtime.Hub) *RecurringHandler {
	return &RecurringHandler{config: cfg, store: store, hub: hub}
}

type patternRequest struct {
	RecurrenceType models.RecurrenceType `json:"recurrence_type"`
	Interval       int                   `json:"interval"`
	DaysOfWeek     []int                 `json:"days_of_week"`
	DayOfMonth     int                   `json:"day_of_month"`
	UseLastDay     bool                  `json:"use_last_day"`
	StartDate      time.Time             `json:"start_date"`
	EndDate        *time.Time            `json:"end_date"`
	MaxOccurrences int                   `json:"max_occurrences"`
	TitleTemplate  string                `json:"title_template"`
	Description    string                `json:"description"`
	Priority       models.TaskPriority   `json:"priority"`
	AssigneeID     string                `json:"assignee_id"`
	ProjectID      string                `json:"project_id"`
	IsActive       *bool                 `json:"is_active"`
}

func (req *patternRequest) validate() string {
	if !models.ValidRecurrenceType(req.RecurrenceType) {
		return "Valid recurrence_type required"
	}
	if strings.TrimSpace(req.TitleTemplate) == "" {
		return "title_template required"
	}
	if req.StartDate.IsZero() {
		return "start_date required"
	}
	if req.EndDate != nil && req.EndDate.Before(req.StartDate) {
		return "end_date must not precede start_date"
	}
	for _, d := range req.DaysOfWeek {
		if d < 0 || d > 6 {
			return "days_of_week values must be 0 (Sunday) through 6 (Saturday)"
		}
	}
	if req.DayOfMonth < 0 || req.DayOfMonth > 31 {
		return "day_of_month must be 1 through 31"
	}
	return ""
}

// POST /api/workspaces/{id}/recurring-patterns
func (h *RecurringHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	workspaceID := chiRoute.URLParam(r, "id")

	role, ok := requireWorkspaceMember(w, h.store, user.ID, workspaceID)
	if !ok {
		return
	}
	if !requirePermission(w, role, models.ResRecurring, models.ActCreate) {
		return
	}

	var req patternRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if msg := req.validate(); msg != "" {
		utils.WriteBadRequestResponse(w, msg)
		return
	}

	interval := req.Interval
	if interval < 1 {
		interval = 1
	}
	priority := req.Priority
	if priority == "" {
		priority = models.PriorityMedium
	} else if !models.ValidTaskPriority(priority) {
		utils.WriteBadRequestResponse(w, "Invalid priority")
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	pattern := &models.RecurringTaskPattern{
		WorkspaceID:    workspaceID,
		ProjectID:      req.ProjectID,
		CreatedBy:      user.ID,
		RecurrenceType: req.RecurrenceType,
		Interval:       interval,
		DaysOfWeek:     req.DaysOfWeek,
		DayOfMonth:     req.DayOfMonth,
		UseLastDay:     req.UseLastDay,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		MaxOccurrences: req.MaxOccurrences,
		TitleTemplate:  req.TitleTemplate,
		Description:    req.Description,
		Priority:       priority,
		AssigneeID:     req.AssigneeID,
		IsActive:       active,
	}
	if err := h.store.CreateRecurringPattern(pattern); err != nil {
		writeStoreError(w, err, "pattern not found", "recurring patterns")
		return
	}
	utils.WriteCreatedResponse(w, map[string]interface{}{"pattern": pattern})
}

// GET /api/workspaces/{id}/recurring-patterns
func (h *RecurringHandler) ListByWorkspace(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	workspaceID := chiRoute.URLParam(r, "id")

	role, ok := requireWorkspaceMember(w, h.store, user.ID, workspaceID)
	if !ok {
		return
	}
	if !requirePermission(w, role, models.ResRecurring, models.ActRead) {
		return
	}

	patterns, err := h.store.ListRecurringPatterns(workspaceID)
	if err != nil {
		writeStoreError(w, err, "workspace not found", "recurring patterns")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"patterns": patterns})
}

// loadPattern fetches a pattern and authorizes act for the caller.
func (h *RecurringHandler) loadPattern(w http.ResponseWriter, r *http.Request, act models.Action) (*models.RecurringTaskPattern, bool) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return nil, false
	}
	patternID := chiRoute.URLParam(r, "id")

	pattern, err := h.store.GetRecurringPattern(patternID)
	if err != nil {
		writeStoreError(w, err, "pattern not found", "recurring patterns")
		return nil, false
	}
	role, ok := requireWorkspaceMember(w, h.store, user.ID, pattern.WorkspaceID)
	if !ok {
		return nil, false
	}
	if !requirePermission(w, role, models.ResRecurring, act) {
		return nil, false
	}
	return pattern, true
}

// GET /api/recurring-patterns/{id}
func (h *RecurringHandler) Get(w http.ResponseWriter, r *http.Request) {
	pattern, ok := h.loadPattern(w, r, models.ActRead)
	if !ok {
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"pattern": pattern})
}

// PUT /api/recurring-patterns/{id}
func (h *RecurringHandler) Update(w http.ResponseWriter, r *http.Request) {
	pattern, ok := h.loadPattern(w, r, models.ActUpdate)
	if !ok {
		return
	}

	var req patternRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if msg := req.validate(); msg != "" {
		utils.WriteBadRequestResponse(w, msg)
		return
	}

	pattern.RecurrenceType = req.RecurrenceType
	if req.Interval >= 1 {
		pattern.Interval = req.Interval
	}
	pattern.DaysOfWeek = req.DaysOfWeek
	pattern.DayOfMonth = req.DayOfMonth
	pattern.UseLastDay = req.UseLastDay
	pattern.StartDate = req.StartDate
	pattern.EndDate = req.EndDate
	pattern.MaxOccurrences = req.MaxOccurrences
	pattern.TitleTemplate = req.TitleTemplate
	pattern.Description = req.Description
	if req.Priority != "" && models.ValidTaskPriority(req.Priority) {
		pattern.Priority = req.Priority
	}
	pattern.AssigneeID = req.AssigneeID
	pattern.ProjectID = req.ProjectID
	if req.IsActive != nil {
		pattern.IsActive = *req.IsActive
	}

	if err := h.store.UpdateRecurringPattern(pattern); err != nil {
		writeStoreError(w, err, "pattern not found", "recurring patterns")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"pattern": pattern})
}

// DELETE /api/recurring-patterns/{id}
func (h *RecurringHandler) Delete(w http.ResponseWriter, r *http.Request) {
	pattern, ok := h.loadPattern(w, r, models.ActDelete)
	if !ok {
		return
	}

	if err := h.store.DeleteRecurringPattern(pattern.ID); err != nil {
		writeStoreError(w, err, "pattern not found", "recurring patterns")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"deleted": true})
}

// parseUntil reads the optional generation cutoff.
func parseUntil(r *http.Request) (time.Time, bool) {
	raw := utils.GetQueryParam(r, "until", "")
	if raw == "" {
		return time.Now().Add(defaultGenerateHorizon), true
	}
	until, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return until, true
}

// GET /api/recurring-patterns/{id}/preview
//
// Projects the dates the pattern would fire without writing anything.
func (h *RecurringHandler) Preview(w http.ResponseWriter, r *http.Request) {
	pattern, ok := h.loadPattern(w, r, models.ActRead)
	if !ok {
		return
	}
	until, ok := parseUntil(r)
	if !ok {
		utils.WriteBadRequestResponse(w, "until must be RFC3339")
		return
	}

	dates := recurrence.ProjectPending(pattern, until)
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"dates": dates,
		"count": len(dates),
	})
}

// POST /api/recurring-patterns/{id}/generate
//
// Materializes the pending dates as task rows and advances the
// pattern's generation watermark.
func (h *RecurringHandler) Generate(w http.ResponseWriter, r *http.Request) {
	pattern, ok := h.loadPattern(w, r, models.ActUpdate)
	if !ok {
		return
	}
	until, ok := parseUntil(r)
	if !ok {
		utils.WriteBadRequestResponse(w, "until must be RFC3339")
		return
	}

	dates := recurrence.ProjectPending(pattern, until)
	tasks := recurrence.Materialize(pattern, dates)

	created := make([]models.Task, 0, len(tasks))
	for i := range tasks {
		if err := h.store.CreateTask(&tasks[i]); err != nil {
			writeStoreError(w, err, "pattern not found", "tasks")
			return
		}
		created = append(created, tasks[i])
		h.hub.Publish(realtime.TasksTopic(pattern.WorkspaceID), realtime.EventInsert, &tasks[i])
	}

	if len(dates) > 0 {
		last := dates[len(dates)-1]
		pattern.LastGenerated = &last
		if err := h.store.UpdateRecurringPattern(pattern); err != nil {
			writeStoreError(w, err, "pattern not found", "recurring patterns")
			return
		}
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"generated": len(created),
		"tasks":     created,
		"pattern":   pattern,
	})
}
