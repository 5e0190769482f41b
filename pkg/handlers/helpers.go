package handlers

import (
	"net/http"

	"taskboard-backend/pkg/database"
	"taskboard-backend/pkg/models"
	"taskboard-backend/pkg/utils"
)

// permissionDeniedMessage is the fixed user-facing text for every
// authorization failure, kept identical across endpoints so clients can
// show it verbatim.
const permissionDeniedMessage = "You don't have permission to perform this action"

// userRoleInWorkspace resolves the caller's role. Owners short-circuit
// without a membership lookup.
func userRoleInWorkspace(store database.Store, userID, workspaceID string) (models.WorkspaceRole, bool) {
	if ws, err := store.GetWorkspace(workspaceID); err == nil && ws.OwnerID == userID {
		return models.RoleOwner, true
	}
	members, err := store.ListWorkspaceMembers(workspaceID)
	if err != nil {
		return "", false
	}
	for _, m := range members {
		if m.UserID == userID {
			return m.Role, true
		}
	}
	return "", false
}

// requireWorkspaceMember writes a 403 and returns ok=false when the
// caller is not a member.
func requireWorkspaceMember(w http.ResponseWriter, store database.Store, userID, workspaceID string) (models.WorkspaceRole, bool) {
	role, ok := userRoleInWorkspace(store, userID, workspaceID)
	if !ok {
		utils.WriteForbiddenResponse(w, permissionDeniedMessage)
		return "", false
	}
	return role, true
}

// requirePermission writes a 403 and returns false when the role lacks
// the grant.
func requirePermission(w http.ResponseWriter, role models.WorkspaceRole, res models.Resource, act models.Action) bool {
	if !models.RoleCan(role, res, act) {
		utils.WriteForbiddenResponse(w, permissionDeniedMessage)
		return false
	}
	return true
}

// writeStoreError maps store sentinels onto the response envelope:
// missing rows are 404s, missing tables are the informational
// not-migrated state, everything else is a 500.
func writeStoreError(w http.ResponseWriter, err error, notFoundMsg, feature string) {
	switch {
	case database.IsNotFound(err):
		utils.WriteNotFoundResponse(w, notFoundMsg)
	case database.IsNotMigrated(err):
		utils.WriteNotMigratedResponse(w, feature)
	default:
		utils.WriteInternalServerErrorResponse(w, err.Error())
	}
}
