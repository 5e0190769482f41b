package models

import "time"

// EntityType identifies what a comment or mention is attached to.
// Comments are polymorphic over these four entity kinds.
type EntityType string

const (
	EntityTask      EntityType = "task"
	EntityProject   EntityType = "project"
	EntityWorkspace EntityType = "workspace"
	EntityEvent     EntityType = "event"
)

// ValidEntityType reports whether t is a commentable entity kind.
func ValidEntityType(t EntityType) bool {
	switch t {
	case EntityTask, EntityProject, EntityWorkspace, EntityEvent:
		return true
	}
	return false
}

// MaxThreadLevel caps reply nesting. Replies below this depth keep the
// cap as their level instead of nesting further.
const MaxThreadLevel = 5

// Comment is one entry in a discussion thread. Threads are stored flat;
// the tree is rebuilt from ParentCommentID on read. The column is
// parent_comment_id everywhere (the interface/row naming drift of the
// previous implementation is resolved here).
type Comment struct {
	ID              string     `json:"id" db:"id"`
	WorkspaceID     string     `json:"workspace_id" db:"workspace_id"`
	EntityType      EntityType `json:"entity_type" db:"entity_type"`
	EntityID        string     `json:"entity_id" db:"entity_id"`
	AuthorID        string     `json:"author_id" db:"author_id"`
	Content         string     `json:"content" db:"content"`
	ParentCommentID string     `json:"parent_comment_id,omitempty" db:"parent_comment_id"`
	ThreadLevel     int        `json:"thread_level" db:"thread_level"`
	IsDeleted       bool       `json:"is_deleted" db:"is_deleted"`
	EditedAt        *time.Time `json:"edited_at,omitempty" db:"edited_at"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// CommentReaction is an emoji reaction, unique per (comment, user, emoji).
type CommentReaction struct {
	ID        string    `json:"id" db:"id"`
	CommentID string    `json:"comment_id" db:"comment_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Emoji     string    `json:"emoji" db:"emoji"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
