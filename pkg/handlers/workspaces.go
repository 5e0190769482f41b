package handlers

import (
	"net/http"
	"strings"
	"time"

	chiRoute "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"taskboard-backend/pkg/config"
	"taskboard-backend/pkg/database"
	"taskboard-backend/pkg/middleware"
	"taskboard-backend/pkg/models"
	"taskboard-backend/pkg/utils"
)

// invitationTTL is how long an invite link stays valid.
const invitationTTL = 14 * 24 * time.Hour

type WorkspacesHandler struct {
	config *config.Config
	store  database.Store
}

func NewWorkspacesHandler(cfg *config.Config, store database.Store) *WorkspacesHandler {
	return &WorkspacesHandler{config: cfg, store: store}
}

// POST /api/workspaces
func (h *WorkspacesHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req struct {
		Name         string   `json:"name"`
		Description  string   `json:"description"`
		Avatar       string   `json:"avatar"`
		Color        string   `json:"color"`
		InviteEmails []string `json:"invite_emails"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		utils.WriteBadRequestResponse(w, "Name required")
		return
	}

	color := strings.TrimSpace(req.Color)
	if color == "" {
		color = "#3b82f6"
	}

	ws := &models.Workspace{
		Name:        req.Name,
		Description: req.Description,
		Avatar:      req.Avatar,
		Color:       color,
		OwnerID:     user.ID,
	}
	if err := h.store.CreateWorkspace(ws); err != nil {
		writeStoreError(w, err, "workspace not found", "workspaces")
		return
	}

	// Invitations are best-effort; a bad address never fails creation.
	for _, email := range req.InviteEmails {
		email = strings.TrimSpace(email)
		if email == "" {
			continue
		}
		if err := h.createInvitation(ws.ID, email, user.ID, models.RoleMember); err != nil {
			log.Warn().Err(err).Str("email", email).Msg("failed to create invitation")
		}
	}

	utils.WriteCreatedResponse(w, map[string]interface{}{"workspace": ws})
}

// GET /api/workspaces
func (h *WorkspacesHandler) List(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	workspaces, err := h.store.ListUserWorkspaces(user.ID)
	if err != nil {
		writeStoreError(w, err, "workspace not found", "workspaces")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"workspaces": workspaces})
}

// GET /api/workspaces/{id}
func (h *WorkspacesHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	workspaceID := chiRoute.URLParam(r, "id")

	if _, ok := requireWorkspaceMember(w, h.store, user.ID, workspaceID); !ok {
		return
	}

	ws, err := h.store.GetWorkspace(workspaceID)
	if err != nil {
		writeStoreError(w, err, "workspace not found", "workspaces")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"workspace": ws})
}

// PUT /api/workspaces/{id}
func (h *WorkspacesHandler) Update(w http.ResponseWriter, r *http.Request) {
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
	if !requirePermission(w, role, models.ResWorkspace, models.ActUpdate) {
		return
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Avatar      string `json:"avatar"`
		Color       string `json:"color"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}

	ws, err := h.store.GetWorkspace(workspaceID)
	if err != nil {
		writeStoreError(w, err, "workspace not found", "workspaces")
		return
	}
	if strings.TrimSpace(req.Name) != "" {
		ws.Name = req.Name
	}
	if strings.TrimSpace(req.Description) != "" {
		ws.Description = req.Description
	}
	if strings.TrimSpace(req.Avatar) != "" {
		ws.Avatar = req.Avatar
	}
	if strings.TrimSpace(req.Color) != "" {
		ws.Color = req.Color
	}

	if err := h.store.UpdateWorkspace(ws); err != nil {
		writeStoreError(w, err, "workspace not found", "workspaces")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"workspace": ws})
}

// DELETE /api/workspaces/{id}
func (h *WorkspacesHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
	// Only owners hold workspace delete.
	if !requirePermission(w, role, models.ResWorkspace, models.ActDelete) {
		return
	}

	if err := h.store.DeleteWorkspace(workspaceID); err != nil {
		writeStoreError(w, err, "workspace not found", "workspaces")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"deleted": true})
}

// GET /api/workspaces/{id}/members
func (h *WorkspacesHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	workspaceID := chiRoute.URLParam(r, "id")

	if _, ok := requireWorkspaceMember(w, h.store, user.ID, workspaceID); !ok {
		return
	}

	members, err := h.store.ListWorkspaceMembers(workspaceID)
	if err != nil {
		writeStoreError(w, err, "workspace not found", "members")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"members": members})
}

// PUT /api/workspaces/{id}/members/{userId}
func (h *WorkspacesHandler) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	workspaceID := chiRoute.URLParam(r, "id")
	targetID := chiRoute.URLParam(r, "userId")

	role, ok := requireWorkspaceMember(w, h.store, user.ID, workspaceID)
	if !ok {
		return
	}
	if !requirePermission(w, role, models.ResMember, models.ActManage) {
		return
	}

	var req struct {
		Role models.WorkspaceRole `json:"role"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil || !models.ValidWorkspaceRole(req.Role) {
		utils.WriteBadRequestResponse(w, "Valid role required")
		return
	}
	// The owner role is held by workspace ownership, not assigned.
	if req.Role == models.RoleOwner {
		utils.WriteBadRequestResponse(w, "Ownership cannot be assigned through member roles")
		return
	}

	if err := h.store.UpdateMemberRole(workspaceID, targetID, req.Role); err != nil {
		writeStoreError(w, err, "member not found", "members")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"updated": true})
}

// DELETE /api/workspaces/{id}/members/{userId}
func (h *WorkspacesHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	workspaceID := chiRoute.URLParam(r, "id")
	targetID := chiRoute.URLParam(r, "userId")

	role, ok := requireWorkspaceMember(w, h.store, user.ID, workspaceID)
	if !ok {
		return
	}
	// Members may leave on their own; removing others needs manage.
	if targetID != user.ID {
		if !requirePermission(w, role, models.ResMember, models.ActManage) {
			return
		}
	}

	ws, err := h.store.GetWorkspace(workspaceID)
	if err == nil && ws.OwnerID == targetID {
		utils.WriteBadRequestResponse(w, "The workspace owner cannot be removed")
		return
	}

	if err := h.store.RemoveWorkspaceMember(workspaceID, targetID); err != nil {
		writeStoreError(w, err, "member not found", "members")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"removed": true})
}

// POST /api/workspaces/{id}/invitations
func (h *WorkspacesHandler) InviteMember(w http.ResponseWriter, r *http.Request) {
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
	if !requirePermission(w, role, models.ResInvite, models.ActCreate) {
		return
	}

	var req struct {
		Email string               `json:"email"`
		Role  models.WorkspaceRole `json:"role"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil || strings.TrimSpace(req.Email) == "" {
		utils.WriteBadRequestResponse(w, "Email required")
		return
	}
	invRole := req.Role
	if invRole == "" {
		invRole = models.RoleMember
	}
	if !models.ValidWorkspaceRole(invRole) || invRole == models.RoleOwner {
		utils.WriteBadRequestResponse(w, "Valid role required")
		return
	}

	if err := h.createInvitation(workspaceID, strings.TrimSpace(req.Email), user.ID, invRole); err != nil {
		writeStoreError(w, err, "workspace not found", "invitations")
		return
	}
	utils.WriteCreatedResponse(w, map[string]interface{}{"invited": true})
}

func (h *WorkspacesHandler) createInvitation(workspaceID, email, inviterID string, role models.WorkspaceRole) error {
	token, err := utils.GenerateURLToken(24)
	if err != nil {
		return err
	}
	inv := &models.WorkspaceInvitation{
		WorkspaceID: workspaceID,
		Email:       email,
		InviterID:   inviterID,
		Role:        role,
		Token:       token,
		Status:      models.InvitationPending,
		ExpiresAt:   time.Now().Add(invitationTTL),
	}
	return h.store.CreateInvitation(inv)
}

// GET /api/invitations
func (h *WorkspacesHandler) ListMyInvitations(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	invitations, err := h.store.ListInvitationsByEmail(user.Email)
	if err != nil {
		writeStoreError(w, err, "invitation not found", "invitations")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"invitations": invitations})
}

// POST /api/invitations/{token}/accept
func (h *WorkspacesHandler) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	token := chiRoute.URLParam(r, "token")

	inv, err := h.store.GetInvitationByToken(token)
	if err != nil {
		writeStoreError(w, err, "invitation not found", "invitations")
		return
	}
	if inv.Status != models.InvitationPending {
		utils.WriteConflictResponse(w, "Invitation is no longer pending")
		return
	}
	if time.Now().After(inv.ExpiresAt) {
		inv.Status = models.InvitationExpired
		if err := h.store.UpdateInvitation(inv); err != nil {
			log.Warn().Err(err).Str("invitation_id", inv.ID).Msg("failed to expire invitation")
		}
		utils.WriteConflictResponse(w, "Invitation has expired")
		return
	}

	member := &models.WorkspaceMember{
		WorkspaceID: inv.WorkspaceID,
		UserID:      user.ID,
		Role:        inv.Role,
	}
	if err := h.store.AddWorkspaceMember(member); err != nil {
		writeStoreError(w, err, "workspace not found", "members")
		return
	}

	inv.Status = models.InvitationAccepted
	inv.AcceptedBy = &user.ID
	if err := h.store.UpdateInvitation(inv); err != nil {
		log.Warn().Err(err).Str("invitation_id", inv.ID).Msg("failed to mark invitation accepted")
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"workspace_id": inv.WorkspaceID,
		"role":         inv.Role,
	})
}

// POST /api/invitations/{token}/decline
func (h *WorkspacesHandler) DeclineInvitation(w http.ResponseWriter, r *http.Request) {
	if _, err := middleware.RequireUser(r.Context()); err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	token := chiRoute.URLParam(r, "token")

	inv, err := h.store.GetInvitationByToken(token)
	if err != nil {
		writeStoreError(w, err, "invitation not found", "invitations")
		return
	}
	if inv.Status != models.InvitationPending {
		utils.WriteConflictResponse(w, "Invitation is no longer pending")
		return
	}

	inv.Status = models.InvitationDeclined
	if err := h.store.UpdateInvitation(inv); err != nil {
		writeStoreError(w, err, "invitation not found", "invitations")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"declined": true})
}
