package handlers

import (
	"net/http"
	"strconv"
	"strings"

	chiRoute "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"taskboard-backend/pkg/config"
	"taskboard-backend/pkg/database"
	"taskboard-backend/pkg/mentions"
	"taskboard-backend/pkg/middleware"
	"taskboard-backend/pkg/models"
	"taskboard-backend/pkg/realtime"
	"taskboard-backend/pkg/threads"
	"taskboard-backend/pkg/utils"
)

type CommentsHandler struct {
	config *config.Config
	store  database.Store
	hub    *realtime.Hub
}

func NewCommentsHandler(cfg *config.Config, store database.Store, hub *realtime.Hub) *CommentsHandler {
	return &CommentsHandler{config: cfg, store: store, hub: hub}
}

// POST /api/comments
//
// Thread level is computed server-side from the parent, never trusted
// from the client. Mentions are extracted from the content and fan out
// as notification rows plus realtime events.
func (h *CommentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req struct {
		WorkspaceID     string            `json:"workspace_id"`
		EntityType      models.EntityType `json:"entity_type"`
		EntityID        string            `json:"entity_id"`
		Content         string            `json:"content"`
		ParentCommentID string            `json:"parent_comment_id"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		utils.WriteBadRequestResponse(w, "Content required")
		return
	}
	if !models.ValidEntityType(req.EntityType) || req.EntityID == "" {
		utils.WriteBadRequestResponse(w, "Valid entity reference required")
		return
	}

	role, ok := requireWorkspaceMember(w, h.store, user.ID, req.WorkspaceID)
	if !ok {
		return
	}
	if !requirePermission(w, role, models.ResComment, models.ActCreate) {
		return
	}

	level := 0
	if req.ParentCommentID != "" {
		parent, err := h.store.GetComment(req.ParentCommentID)
		if err != nil {
			writeStoreError(w, err, "parent comment not found", "comments")
			return
		}
		if parent.EntityType != req.EntityType || parent.EntityID != req.EntityID {
			utils.WriteBadRequestResponse(w, "Parent comment belongs to a different entity")
			return
		}
		level = threads.ReplyLevel(parent)
	}

	comment := &models.Comment{
		WorkspaceID:     req.WorkspaceID,
		EntityType:      req.EntityType,
		EntityID:        req.EntityID,
		AuthorID:        user.ID,
		Content:         req.Content,
		ParentCommentID: req.ParentCommentID,
		ThreadLevel:     level,
	}
	if err := h.store.CreateComment(comment); err != nil {
		writeStoreError(w, err, "comment not found", "comments")
		return
	}

	h.notifyMentions(comment)
	h.hub.Publish(realtime.CommentsTopic(comment.EntityType, comment.EntityID), realtime.EventInsert, comment)
	utils.WriteCreatedResponse(w, map[string]interface{}{"comment": comment})
}

// notifyMentions resolves @name tokens and records unread mentions.
// Best-effort: a failed mention never fails the comment.
func (h *CommentsHandler) notifyMentions(c *models.Comment) {
	members, err := h.store.ListWorkspaceMembers(c.WorkspaceID)
	if err != nil {
		log.Warn().Err(err).Str("workspace_id", c.WorkspaceID).Msg("failed to load members for mention scan")
		return
	}

	matched := mentions.Extract(c.Content, members)
	for _, m := range mentions.Records(c, matched) {
		rec := m
		if err := h.store.CreateMention(&rec); err != nil {
			log.Warn().Err(err).Str("mentioned_user_id", rec.MentionedUserID).Msg("failed to create mention")
			continue
		}
		h.hub.Publish(realtime.MentionsTopic(c.WorkspaceID), realtime.EventInsert, rec)
	}
}

// GET /api/comments?workspace_id=&entity_type=&entity_id=&tree=true
func (h *CommentsHandler) ListByEntity(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	workspaceID := utils.GetQueryParam(r, "workspace_id", "")
	entityType := models.EntityType(utils.GetQueryParam(r, "entity_type", ""))
	entityID := utils.GetQueryParam(r, "entity_id", "")
	if workspaceID == "" || entityID == "" || !models.ValidEntityType(entityType) {
		utils.WriteBadRequestResponse(w, "workspace_id, entity_type and entity_id required")
		return
	}

	if _, ok := requireWorkspaceMember(w, h.store, user.ID, workspaceID); !ok {
		return
	}

	comments, err := h.store.ListCommentsByEntity(entityType, entityID)
	if err != nil {
		writeStoreError(w, err, "comment not found", "comments")
		return
	}

	asTree, _ := strconv.ParseBool(utils.GetQueryParam(r, "tree", "false"))
	if asTree {
		utils.WriteSuccessResponse(w, map[string]interface{}{
			"comments": threads.Build(comments),
			"total":    len(comments),
		})
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"comments": comments, "total": len(comments)})
}

// PUT /api/comments/{id}
func (h *CommentsHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	commentID := chiRoute.URLParam(r, "id")

	comment, err := h.store.GetComment(commentID)
	if err != nil {
		writeStoreError(w, err, "comment not found", "comments")
		return
	}
	if comment.IsDeleted {
		utils.WriteNotFoundResponse(w, "comment not found")
		return
	}
	// Only the author edits their comment.
	if comment.AuthorID != user.ID {
		utils.WriteForbiddenResponse(w, permissionDeniedMessage)
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil || strings.TrimSpace(req.Content) == "" {
		utils.WriteBadRequestResponse(w, "Content required")
		return
	}

	if err := h.store.UpdateCommentContent(commentID, req.Content); err != nil {
		writeStoreError(w, err, "comment not found", "comments")
		return
	}

	updated, err := h.store.GetComment(commentID)
	if err != nil {
		writeStoreError(w, err, "comment not found", "comments")
		return
	}
	h.hub.Publish(realtime.CommentsTopic(comment.EntityType, comment.EntityID), realtime.EventUpdate, updated)
	utils.WriteSuccessResponse(w, map[string]interface{}{"comment": updated})
}

// DELETE /api/comments/{id}
//
// Soft delete: the row stays so replies keep their anchor, the content
// is blanked.
func (h *CommentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	commentID := chiRoute.URLParam(r, "id")

	comment, err := h.store.GetComment(commentID)
	if err != nil {
		writeStoreError(w, err, "comment not found", "comments")
		return
	}
	role, ok := requireWorkspaceMember(w, h.store, user.ID, comment.WorkspaceID)
	if !ok {
		return
	}
	// Authors delete their own; moderation needs member-manage rights.
	if comment.AuthorID != user.ID && !models.RoleCan(role, models.ResMember, models.ActManage) {
		utils.WriteForbiddenResponse(w, permissionDeniedMessage)
		return
	}

	if err := h.store.SoftDeleteComment(commentID); err != nil {
		writeStoreError(w, err, "comment not found", "comments")
		return
	}
	h.hub.Publish(realtime.CommentsTopic(comment.EntityType, comment.EntityID), realtime.EventDelete, map[string]string{"id": commentID})
	utils.WriteSuccessResponse(w, map[string]interface{}{"deleted": true})
}

// POST /api/comments/{id}/reactions
func (h *CommentsHandler) AddReaction(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	commentID := chiRoute.URLParam(r, "id")

	comment, err := h.store.GetComment(commentID)
	if err != nil {
		writeStoreError(w, err, "comment not found", "comments")
		return
	}
	if _, ok := requireWorkspaceMember(w, h.store, user.ID, comment.WorkspaceID); !ok {
		return
	}

	var req struct {
		Emoji string `json:"emoji"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil || strings.TrimSpace(req.Emoji) == "" {
		utils.WriteBadRequestResponse(w, "Emoji required")
		return
	}

	reaction := &models.CommentReaction{
		CommentID: commentID,
		UserID:    user.ID,
		Emoji:     req.Emoji,
	}
	if err := h.store.AddReaction(reaction); err != nil {
		writeStoreError(w, err, "comment not found", "reactions")
		return
	}
	h.hub.Publish(realtime.CommentsTopic(comment.EntityType, comment.EntityID), realtime.EventUpdate, map[string]interface{}{
		"comment_id": commentID,
		"reaction":   reaction,
	})
	utils.WriteCreatedResponse(w, map[string]interface{}{"reaction": reaction})
}

// DELETE /api/comments/{id}/reactions/{emoji}
func (h *CommentsHandler) RemoveReaction(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	commentID := chiRoute.URLParam(r, "id")
	emoji := chiRoute.URLParam(r, "emoji")

	comment, err := h.store.GetComment(commentID)
	if err != nil {
		writeStoreError(w, err, "comment not found", "comments")
		return
	}
	if _, ok := requireWorkspaceMember(w, h.store, user.ID, comment.WorkspaceID); !ok {
		return
	}

	if err := h.store.RemoveReaction(commentID, user.ID, emoji); err != nil {
		writeStoreError(w, err, "reaction not found", "reactions")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"removed": true})
}

// GET /api/comments/{id}/reactions
func (h *CommentsHandler) ListReactions(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	commentID := chiRoute.URLParam(r, "id")

	comment, err := h.store.GetComment(commentID)
	if err != nil {
		writeStoreError(w, err, "comment not found", "comments")
		return
	}
	if _, ok := requireWorkspaceMember(w, h.store, user.ID, comment.WorkspaceID); !ok {
		return
	}

	reactions, err := h.store.ListReactions(commentID)
	if err != nil {
		writeStoreError(w, err, "comment not found", "reactions")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"reactions": reactions})
}
