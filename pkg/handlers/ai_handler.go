package handlers

import (
	"net/http"
	"strconv"
	"strings"

	chiRoute "github.com/go-chi/chi/v5"

	"taskboard-backend/pkg/ai"
	"taskboard-backend/pkg/config"
	"taskboard-backend/pkg/database"
	"taskboard-backend/pkg/middleware"
	"taskboard-backend/pkg/models"
	"taskboard-backend/pkg/utils"
)

type AIHandler struct {
	config  *config.Config
	store   database.Store
	service *ai.Service
}

func NewAIHandler(cfg *config.Config, store database.Store, service *ai.Service) *AIHandler {
	return &AIHandler{config: cfg, store: store, service: service}
}

// POST /api/ai/analyze-risks and /api/workspaces/{id}/ai/analyze-risks
//
// Always answers with a computed analysis; when the model is down or
// unconfigured the deterministic fallback fills in.
func (h *AIHandler) AnalyzeRisks(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	workspaceID := chiRoute.URLParam(r, "id")
	if workspaceID == "" {
		var req struct {
			WorkspaceID string `json:"workspace_id"`
		}
		if err := utils.ParseJSONBody(r, &req); err != nil || req.WorkspaceID == "" {
			utils.WriteBadRequestResponse(w, "workspace_id required")
			return
		}
		workspaceID = req.WorkspaceID
	}

	role, ok := requireWorkspaceMember(w, h.store, user.ID, workspaceID)
	if !ok {
		return
	}
	if !requirePermission(w, role, models.ResAI, models.ActCreate) {
		return
	}

	analysis, err := h.service.AnalyzeWorkspaceRisks(r.Context(), workspaceID)
	if err != nil {
		writeStoreError(w, err, "workspace not found", "risk analysis")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"analysis": analysis})
}

// POST /api/ai/estimate and /api/workspaces/{id}/ai/estimate
func (h *AIHandler) Estimate(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req struct {
		WorkspaceID string `json:"workspace_id"`
		TaskID      string `json:"task_id"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Priority    string `json:"priority"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}

	workspaceID := chiRoute.URLParam(r, "id")
	if workspaceID == "" {
		workspaceID = req.WorkspaceID
	}
	if workspaceID == "" {
		utils.WriteBadRequestResponse(w, "workspace_id required")
		return
	}

	role, ok := requireWorkspaceMember(w, h.store, user.ID, workspaceID)
	if !ok {
		return
	}
	if !requirePermission(w, role, models.ResAI, models.ActCreate) {
		return
	}
	if req.TaskID == "" && strings.TrimSpace(req.Title) == "" {
		utils.WriteBadRequestResponse(w, "task_id or title required")
		return
	}
	priority := models.TaskPriority(req.Priority)
	if req.Priority != "" && !models.ValidTaskPriority(priority) {
		utils.WriteBadRequestResponse(w, "Invalid priority")
		return
	}

	est, err := h.service.EstimateTask(r.Context(), ai.EstimateRequest{
		WorkspaceID: workspaceID,
		TaskID:      req.TaskID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    priority,
	})
	if err != nil {
		writeStoreError(w, err, "task not found", "task estimation")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"estimation": est})
}

// GET /api/workspaces/{id}/ai/assessments
func (h *AIHandler) ListAssessments(w http.ResponseWriter, r *http.Request) {
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
	if !requirePermission(w, role, models.ResAI, models.ActRead) {
		return
	}

	assessments, err := h.store.ListRiskAssessments(workspaceID)
	if err != nil {
		writeStoreError(w, err, "workspace not found", "risk assessments")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"assessments": assessments})
}

// GET /api/workspaces/{id}/ai/alerts?unresolved=true
func (h *AIHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
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
	if !requirePermission(w, role, models.ResAI, models.ActRead) {
		return
	}

	unresolvedOnly, _ := strconv.ParseBool(utils.GetQueryParam(r, "unresolved", "false"))
	alerts, err := h.store.ListRiskAlerts(workspaceID, unresolvedOnly)
	if err != nil {
		writeStoreError(w, err, "workspace not found", "risk alerts")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"alerts": alerts})
}

// POST /api/workspaces/{id}/ai/alerts/{alertID}/resolve
func (h *AIHandler) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	workspaceID := chiRoute.URLParam(r, "id")
	alertID := chiRoute.URLParam(r, "alertID")

	role, ok := requireWorkspaceMember(w, h.store, user.ID, workspaceID)
	if !ok {
		return
	}
	if !requirePermission(w, role, models.ResAI, models.ActUpdate) {
		return
	}

	if err := h.store.ResolveRiskAlert(alertID); err != nil {
		writeStoreError(w, err, "alert not found", "risk alerts")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"resolved": true})
}

// GET /api/workspaces/{id}/ai/patterns
func (h *AIHandler) ListPatterns(w http.ResponseWriter, r *http.Request) {
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
	if !requirePermission(w, role, models.ResAI, models.ActRead) {
		return
	}

	patterns, err := h.store.ListDelayRiskPatterns(workspaceID)
	if err != nil {
		writeStoreError(w, err, "workspace not found", "delay patterns")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"patterns": patterns})
}

// GET /api/workspaces/{id}/ai/estimations
func (h *AIHandler) ListEstimations(w http.ResponseWriter, r *http.Request) {
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
	if !requirePermission(w, role, models.ResAI, models.ActRead) {
		return
	}

	estimations, err := h.store.ListTaskEstimations(workspaceID)
	if err != nil {
		writeStoreError(w, err, "workspace not found", "task estimations")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"estimations": estimations})
}
