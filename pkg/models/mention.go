package models

import "time"

// Mention links an @name token in free text to a workspace member, for
// notification purposes.
type Mention struct {
	ID              string     `json:"id" db:"id"`
	WorkspaceID     string     `json:"workspace_id" db:"workspace_id"`
	EntityType      EntityType `json:"entity_type" db:"entity_type"`
	EntityID        string     `json:"entity_id" db:"entity_id"`
	CommentID       string     `json:"comment_id,omitempty" db:"comment_id"`
	MentionedUserID string     `json:"mentioned_user_id" db:"mentioned_user_id"`
	MentionerUserID string     `json:"mentioner_user_id" db:"mentioner_user_id"`
	IsRead          bool       `json:"is_read" db:"is_read"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}
