package handlers

import (
	"net/http"
	"strconv"

	chiRoute "github.com/go-chi/chi/v5"

	"taskboard-backend/pkg/config"
	"taskboard-backend/pkg/database"
	"taskboard-backend/pkg/middleware"
	"taskboard-backend/pkg/utils"
)

type MentionsHandler struct {
	config *config.Config
	store  database.Store
}

func NewMentionsHandler(cfg *config.Config, store database.Store) *MentionsHandler {
	return &MentionsHandler{config: cfg, store: store}
}

// GET /api/workspaces/{id}/mentions?unread=true
func (h *MentionsHandler) List(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	workspaceID := chiRoute.URLParam(r, "id")

	if _, ok := requireWorkspaceMember(w, h.store, user.ID, workspaceID); !ok {
		return
	}

	unreadOnly, _ := strconv.ParseBool(utils.GetQueryParam(r, "unread", "false"))
	list, err := h.store.ListMentionsForUser(workspaceID, user.ID, unreadOnly)
	if err != nil {
		writeStoreError(w, err, "workspace not found", "mentions")
		return
	}

	unread := 0
	for _, m := range list {
		if !m.IsRead {
			unread++
		}
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"mentions": list,
		"unread":   unread,
	})
}

// POST /api/mentions/{id}/read
func (h *MentionsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	mentionID := chiRoute.URLParam(r, "id")

	// The store scopes the update to the caller, so users can only mark
	// their own mentions.
	if err := h.store.MarkMentionRead(mentionID, user.ID); err != nil {
		writeStoreError(w, err, "mention not found", "mentions")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"read": true})
}

// POST /api/workspaces/{id}/mentions/read-all
func (h *MentionsHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	workspaceID := chiRoute.URLParam(r, "id")

	if _, ok := requireWorkspaceMember(w, h.store, user.ID, workspaceID); !ok {
		return
	}

	if err := h.store.MarkAllMentionsRead(workspaceID, user.ID); err != nil {
		writeStoreError(w, err, "workspace not found", "mentions")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"read": true})
}
