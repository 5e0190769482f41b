package models

import "time"

// Workspace is the top-level tenant boundary owning projects, tasks and
// members.
type Workspace struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	OwnerID     string    `json:"owner_id" db:"owner_id"`
	Description string    `json:"description,omitempty" db:"description"`
	Avatar      string    `json:"avatar,omitempty" db:"avatar"`
	Color       string    `json:"color,omitempty" db:"color"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

type WorkspaceRole string

const (
	RoleOwner   WorkspaceRole = "owner"
	RoleAdmin   WorkspaceRole = "admin"
	RoleManager WorkspaceRole = "manager"
	RoleMember  WorkspaceRole = "member"
	RoleGuest   WorkspaceRole = "guest"
)

// ValidWorkspaceRole reports whether r is a known role.
func ValidWorkspaceRole(r WorkspaceRole) bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleManager, RoleMember, RoleGuest:
		return true
	}
	return false
}

// WorkspaceMember relates users to workspaces with a role. Membership is
// the authorization unit for nearly all mutations.
type WorkspaceMember struct {
	ID          string        `json:"id" db:"id"`
	WorkspaceID string        `json:"workspace_id" db:"workspace_id"`
	UserID      string        `json:"user_id" db:"user_id"`
	Role        WorkspaceRole `json:"role" db:"role"`
	DisplayName string        `json:"display_name,omitempty" db:"display_name"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
}

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
	InvitationExpired  InvitationStatus = "expired"
)

// WorkspaceInvitation is a pending email invite identified by a URL-safe
// token.
type WorkspaceInvitation struct {
	ID          string           `json:"id" db:"id"`
	WorkspaceID string           `json:"workspace_id" db:"workspace_id"`
	Email       string           `json:"email" db:"email"`
	InviterID   string           `json:"inviter_id" db:"inviter_id"`
	Role        WorkspaceRole    `json:"role" db:"role"`
	Token       string           `json:"token" db:"token"`
	Status      InvitationStatus `json:"status" db:"status"`
	ExpiresAt   time.Time        `json:"expires_at" db:"expires_at"`
	AcceptedBy  *string          `json:"accepted_by,omitempty" db:"accepted_by"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at" db:"updated_at"`
}
