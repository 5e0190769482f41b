package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	chiRoute "github.com/go-chi/chi/v5"

	"taskboard-backend/pkg/config"
	"taskboard-backend/pkg/database"
	"taskboard-backend/pkg/middleware"
	"taskboard-backend/pkg/models"
	"taskboard-backend/pkg/utils"
)

type DashboardHandler struct {
	config *config.Config
	store  database.Store
}

func NewDashboardHandler(cfg *config.Config, store database.Store) *DashboardHandler {
	return &DashboardHandler{config: cfg, store: store}
}

// POST /api/workspaces/{id}/widgets
func (h *DashboardHandler) CreateWidget(w http.ResponseWriter, r *http.Request) {
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
	if !requirePermission(w, role, models.ResDashboard, models.ActCreate) {
		return
	}

	var req struct {
		WidgetType string          `json:"widget_type"`
		Title      string          `json:"title"`
		Position   int             `json:"position"`
		Config     json.RawMessage `json:"config"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if strings.TrimSpace(req.WidgetType) == "" {
		utils.WriteBadRequestResponse(w, "widget_type required")
		return
	}

	widget := &models.DashboardWidget{
		UserID:      user.ID,
		WorkspaceID: workspaceID,
		WidgetType:  req.WidgetType,
		Title:       req.Title,
		Position:    req.Position,
		Config:      req.Config,
	}
	if err := h.store.CreateWidget(widget); err != nil {
		writeStoreError(w, err, "widget not found", "dashboard widgets")
		return
	}
	utils.WriteCreatedResponse(w, map[string]interface{}{"widget": widget})
}

// GET /api/workspaces/{id}/widgets
//
// Widgets are personal: the list is always scoped to the caller.
func (h *DashboardHandler) ListWidgets(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	workspaceID := chiRoute.URLParam(r, "id")

	if _, ok := requireWorkspaceMember(w, h.store, user.ID, workspaceID); !ok {
		return
	}

	widgets, err := h.store.ListWidgets(user.ID, workspaceID)
	if err != nil {
		writeStoreError(w, err, "workspace not found", "dashboard widgets")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"widgets": widgets})
}

// PUT /api/widgets/{id}
func (h *DashboardHandler) UpdateWidget(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	widgetID := chiRoute.URLParam(r, "id")

	var req struct {
		WidgetType string          `json:"widget_type"`
		Title      string          `json:"title"`
		Position   *int            `json:"position"`
		Config     json.RawMessage `json:"config"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}

	widget := &models.DashboardWidget{
		ID:         widgetID,
		UserID:     user.ID,
		WidgetType: req.WidgetType,
		Title:      req.Title,
		Config:     req.Config,
	}
	if req.Position != nil {
		widget.Position = *req.Position
	}
	if err := h.store.UpdateWidget(widget); err != nil {
		writeStoreError(w, err, "widget not found", "dashboard widgets")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"widget": widget})
}

// DELETE /api/widgets/{id}
func (h *DashboardHandler) DeleteWidget(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	widgetID := chiRoute.URLParam(r, "id")

	// Scoped to the caller, so deleting another user's widget is a 404.
	if err := h.store.DeleteWidget(widgetID, user.ID); err != nil {
		writeStoreError(w, err, "widget not found", "dashboard widgets")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"deleted": true})
}

// GET /api/preferences
func (h *DashboardHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	prefs, err := h.store.GetUserPreferences(user.ID)
	if err != nil {
		if database.IsNotFound(err) {
			// First visit: hand back an empty blob instead of a 404.
			utils.WriteSuccessResponse(w, map[string]interface{}{
				"preferences": &models.UserPreferences{UserID: user.ID, Preferences: json.RawMessage(`{}`)},
			})
			return
		}
		writeStoreError(w, err, "preferences not found", "user preferences")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"preferences": prefs})
}

// PUT /api/preferences
func (h *DashboardHandler) SavePreferences(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req struct {
		Preferences json.RawMessage `json:"preferences"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil || len(req.Preferences) == 0 {
		utils.WriteBadRequestResponse(w, "preferences required")
		return
	}

	prefs := &models.UserPreferences{
		UserID:      user.ID,
		Preferences: req.Preferences,
	}
	if err := h.store.SaveUserPreferences(prefs); err != nil {
		writeStoreError(w, err, "preferences not found", "user preferences")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"preferences": prefs})
}

// GET /api/workspaces/{id}/workload/metrics
func (h *DashboardHandler) ListWorkloadMetrics(w http.ResponseWriter, r *http.Request) {
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
	if !requirePermission(w, role, models.ResDashboard, models.ActRead) {
		return
	}

	metrics, err := h.store.ListWorkloadMetrics(workspaceID)
	if err != nil {
		writeStoreError(w, err, "workspace not found", "workload metrics")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"metrics": metrics})
}

// GET /api/workspaces/{id}/workload/forecasts
func (h *DashboardHandler) ListWorkloadForecasts(w http.ResponseWriter, r *http.Request) {
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
	if !requirePermission(w, role, models.ResDashboard, models.ActRead) {
		return
	}

	forecasts, err := h.store.ListWorkloadForecasts(workspaceID)
	if err != nil {
		writeStoreError(w, err, "workspace not found", "workload forecasts")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"forecasts": forecasts})
}
