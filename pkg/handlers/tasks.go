package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	chiRoute "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"taskboard-backend/pkg/config"
	"taskboard-backend/pkg/database"
	"taskboard-backend/pkg/middleware"
	"taskboard-backend/pkg/models"
	"taskboard-backend/pkg/realtime"
	"taskboard-backend/pkg/utils"
)

type TasksHandler struct {
	config *config.Config
	store  database.Store
	hub    *realtime.Hub
}

func NewTasksHandler(cfg *config.Config, store database.Store, hub *realtime.Hub) *TasksHandler {
	return &TasksHandler{config: cfg, store: store, hub: hub}
}

// POST /api/workspaces/{id}/tasks
func (h *TasksHandler) Create(w http.ResponseWriter, r *http.Request) {
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
	if !requirePermission(w, role, models.ResTask, models.ActCreate) {
		return
	}

	var req struct {
		Title          string     `json:"title"`
		Description    string     `json:"description"`
		Status         string     `json:"status"`
		Priority       string     `json:"priority"`
		ProjectID      string     `json:"project_id"`
		AssigneeID     string     `json:"assignee_id"`
		DueDate        *time.Time `json:"due_date"`
		IsBlocked      bool       `json:"is_blocked"`
		EstimatedHours *float64   `json:"estimated_hours"`
		Position       int        `json:"position"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		utils.WriteBadRequestResponse(w, "Title required")
		return
	}

	status := models.TaskStatus(req.Status)
	if req.Status == "" {
		status = models.StatusTodo
	} else if !models.ValidTaskStatus(status) {
		utils.WriteBadRequestResponse(w, "Invalid status")
		return
	}
	priority := models.TaskPriority(req.Priority)
	if req.Priority == "" {
		priority = models.PriorityMedium
	} else if !models.ValidTaskPriority(priority) {
		utils.WriteBadRequestResponse(w, "Invalid priority")
		return
	}

	task := &models.Task{
		WorkspaceID:    workspaceID,
		ProjectID:      req.ProjectID,
		Title:          req.Title,
		Description:    req.Description,
		Status:         status,
		Priority:       priority,
		AssigneeID:     req.AssigneeID,
		ReporterID:     user.ID,
		DueDate:        req.DueDate,
		IsBlocked:      req.IsBlocked,
		EstimatedHours: req.EstimatedHours,
		Position:       req.Position,
	}
	if err := h.store.CreateTask(task); err != nil {
		writeStoreError(w, err, "task not found", "tasks")
		return
	}

	h.hub.Publish(realtime.TasksTopic(workspaceID), realtime.EventInsert, task)
	utils.WriteCreatedResponse(w, map[string]interface{}{"task": task})
}

// GET /api/workspaces/{id}/tasks
func (h *TasksHandler) List(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	workspaceID := chiRoute.URLParam(r, "id")

	if _, ok := requireWorkspaceMember(w, h.store, user.ID, workspaceID); !ok {
		return
	}

	filter := models.TaskFilter{
		WorkspaceID: workspaceID,
		ProjectID:   utils.GetQueryParam(r, "project_id", ""),
		AssigneeID:  utils.GetQueryParam(r, "assignee_id", ""),
	}
	if s := utils.GetQueryParam(r, "status", ""); s != "" {
		status := models.TaskStatus(s)
		if !models.ValidTaskStatus(status) {
			utils.WriteBadRequestResponse(w, "Invalid status filter")
			return
		}
		filter.Status = status
	}
	if d := utils.GetQueryParam(r, "due_before", ""); d != "" {
		due, err := time.Parse(time.RFC3339, d)
		if err != nil {
			utils.WriteBadRequestResponse(w, "due_before must be RFC3339")
			return
		}
		filter.DueBefore = &due
	}
	if b := utils.GetQueryParam(r, "blocked", ""); b != "" {
		blocked, err := strconv.ParseBool(b)
		if err != nil {
			utils.WriteBadRequestResponse(w, "blocked must be a boolean")
			return
		}
		filter.BlockedOnly = blocked
	}

	tasks, err := h.store.ListTasks(filter)
	if err != nil {
		writeStoreError(w, err, "task not found", "tasks")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"tasks": tasks})
}

// GET /api/tasks/{id}
func (h *TasksHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	taskID := chiRoute.URLParam(r, "id")

	task, err := h.store.GetTask(taskID)
	if err != nil {
		writeStoreError(w, err, "task not found", "tasks")
		return
	}
	if _, ok := requireWorkspaceMember(w, h.store, user.ID, task.WorkspaceID); !ok {
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"task": task})
}

// taskPatchKeys are the fields a PATCH may touch.
var taskPatchKeys = map[string]bool{
	"title": true, "description": true, "status": true, "priority": true,
	"assignee_id": true, "due_date": true, "is_blocked": true,
	"estimated_hours": true, "actual_hours": true, "position": true, "project_id": true,
}

// PATCH /api/tasks/{id}
//
// Partial update so board drag-and-drop moves only send the fields they
// change. Completing a task stamps completed_at and appends a
// completion-history row; reopening clears the stamp.
func (h *TasksHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	taskID := chiRoute.URLParam(r, "id")

	task, err := h.store.GetTask(taskID)
	if err != nil {
		writeStoreError(w, err, "task not found", "tasks")
		return
	}
	role, ok := requireWorkspaceMember(w, h.store, user.ID, task.WorkspaceID)
	if !ok {
		return
	}
	if !requirePermission(w, role, models.ResTask, models.ActUpdate) {
		return
	}

	var raw map[string]interface{}
	if err := utils.ParseJSONBody(r, &raw); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}

	patch := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		if taskPatchKeys[k] {
			patch[k] = v
		}
	}
	if len(patch) == 0 {
		utils.WriteBadRequestResponse(w, "No updatable fields in body")
		return
	}

	var completed bool
	if s, ok := patch["status"]; ok {
		status := models.TaskStatus(toString(s))
		if !models.ValidTaskStatus(status) {
			utils.WriteBadRequestResponse(w, "Invalid status")
			return
		}
		patch["status"] = string(status)
		if status == models.StatusDone && task.Status != models.StatusDone {
			now := time.Now().UTC()
			patch["completed_at"] = now
			completed = true
		}
		if status != models.StatusDone && task.Status == models.StatusDone {
			patch["completed_at"] = nil
		}
	}
	if p, ok := patch["priority"]; ok {
		if !models.ValidTaskPriority(models.TaskPriority(toString(p))) {
			utils.WriteBadRequestResponse(w, "Invalid priority")
			return
		}
	}

	if err := h.store.UpdateTaskPartial(taskID, patch); err != nil {
		writeStoreError(w, err, "task not found", "tasks")
		return
	}

	updated, err := h.store.GetTask(taskID)
	if err != nil {
		writeStoreError(w, err, "task not found", "tasks")
		return
	}

	if completed {
		h.recordCompletion(updated, user.ID)
	}

	h.hub.Publish(realtime.TasksTopic(task.WorkspaceID), realtime.EventUpdate, updated)
	utils.WriteSuccessResponse(w, map[string]interface{}{"task": updated})
}

// recordCompletion appends the history row the estimation fallback
// learns from. Best-effort: the table may not be migrated yet.
func (h *TasksHandler) recordCompletion(task *models.Task, userID string) {
	now := time.Now().UTC()
	history := &models.TaskCompletionHistory{
		TaskID:         task.ID,
		WorkspaceID:    task.WorkspaceID,
		UserID:         userID,
		EstimatedHours: task.EstimatedHours,
		ActualHours:    task.ActualHours,
		DueDate:        task.DueDate,
		CompletedAt:    now,
		WasLate:        task.DueDate != nil && task.DueDate.Before(now),
	}
	if err := h.store.AppendCompletionHistory(history); err != nil && !database.IsNotMigrated(err) {
		log.Warn().Err(err).Str("task_id", task.ID).Msg("failed to record completion history")
	}
}

// DELETE /api/tasks/{id}
func (h *TasksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	taskID := chiRoute.URLParam(r, "id")

	task, err := h.store.GetTask(taskID)
	if err != nil {
		writeStoreError(w, err, "task not found", "tasks")
		return
	}
	role, ok := requireWorkspaceMember(w, h.store, user.ID, task.WorkspaceID)
	if !ok {
		return
	}
	if !requirePermission(w, role, models.ResTask, models.ActDelete) {
		return
	}

	if err := h.store.DeleteTask(taskID); err != nil {
		writeStoreError(w, err, "task not found", "tasks")
		return
	}

	h.hub.Publish(realtime.TasksTopic(task.WorkspaceID), realtime.EventDelete, map[string]string{"id": taskID})
	utils.WriteSuccessResponse(w, map[string]interface{}{"deleted": true})
}

// GET /api/workspaces/{id}/completion-history
func (h *TasksHandler) ListCompletionHistory(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	workspaceID := chiRoute.URLParam(r, "id")

	if _, ok := requireWorkspaceMember(w, h.store, user.ID, workspaceID); !ok {
		return
	}

	limit := 100
	if l := utils.GetQueryParam(r, "limit", ""); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}

	history, err := h.store.ListCompletionHistory(workspaceID, limit)
	if err != nil {
		writeStoreError(w, err, "workspace not found", "completion history")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"history": history})
}

func toString(v interface{}) string {
	s, _ := v.(string)
	return s
}
