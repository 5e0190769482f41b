package database

import (
	"fmt"

	"taskboard-backend/pkg/models"
)

// Store is the repository interface every persistence backend
// implements. The client never holds authoritative state; it mirrors
// rows owned by the hosted database through this capability set.
type Store interface {
	// Tasks
	CreateTask(t *models.Task) error
	GetTask(id string) (*models.Task, error)
	ListTasks(f models.TaskFilter) ([]models.Task, error)
	// UpdateTaskPartial applies a patch map so board moves do not
	// overwrite unspecified fields. Allowed keys: "title",
	// "description", "status", "priority", "assignee_id", "due_date",
	// "is_blocked", "estimated_hours", "actual_hours", "position",
	// "project_id", "completed_at".
	UpdateTaskPartial(taskID string, patch map[string]interface{}) error
	DeleteTask(id string) error

	// Task completion history
	AppendCompletionHistory(h *models.TaskCompletionHistory) error
	ListCompletionHistory(workspaceID string, limit int) ([]models.TaskCompletionHistory, error)

	// Comments
	CreateComment(c *models.Comment) error
	GetComment(id string) (*models.Comment, error)
	ListCommentsByEntity(entityType models.EntityType, entityID string) ([]models.Comment, error)
	UpdateCommentContent(id, content string) error
	SoftDeleteComment(id string) error

	// Comment reactions
	AddReaction(r *models.CommentReaction) error
	RemoveReaction(commentID, userID, emoji string) error
	ListReactions(commentID string) ([]models.CommentReaction, error)

	// Mentions
	CreateMention(m *models.Mention) error
	ListMentionsForUser(workspaceID, userID string, unreadOnly bool) ([]models.Mention, error)
	MarkMentionRead(id, userID string) error
	MarkAllMentionsRead(workspaceID, userID string) error

	// Workspaces
	CreateWorkspace(ws *models.Workspace) error
	GetWorkspace(id string) (*models.Workspace, error)
	ListUserWorkspaces(userID string) ([]models.Workspace, error)
	UpdateWorkspace(ws *models.Workspace) error
	DeleteWorkspace(id string) error

	// Workspace members
	AddWorkspaceMember(m *models.WorkspaceMember) error
	ListWorkspaceMembers(workspaceID string) ([]models.WorkspaceMember, error)
	UpdateMemberRole(workspaceID, userID string, role models.WorkspaceRole) error
	RemoveWorkspaceMember(workspaceID, userID string) error

	// Invitations
	CreateInvitation(inv *models.WorkspaceInvitation) error
	GetInvitationByToken(token string) (*models.WorkspaceInvitation, error)
	ListInvitationsByEmail(email string) ([]models.WorkspaceInvitation, error)
	UpdateInvitation(inv *models.WorkspaceInvitation) error

	// Recurring task patterns
	CreateRecurringPattern(p *models.RecurringTaskPattern) error
	GetRecurringPattern(id string) (*models.RecurringTaskPattern, error)
	ListRecurringPatterns(workspaceID string) ([]models.RecurringTaskPattern, error)
	UpdateRecurringPattern(p *models.RecurringTaskPattern) error
	DeleteRecurringPattern(id string) error

	// AI outputs, stored verbatim
	SaveRiskAssessment(a *models.RiskAssessment) error
	ListRiskAssessments(workspaceID string) ([]models.RiskAssessment, error)
	SaveRiskAlert(a *models.RiskAlert) error
	ListRiskAlerts(workspaceID string, unresolvedOnly bool) ([]models.RiskAlert, error)
	ResolveRiskAlert(id string) error
	SaveDelayRiskPattern(p *models.DelayRiskPattern) error
	ListDelayRiskPatterns(workspaceID string) ([]models.DelayRiskPattern, error)
	SaveTaskEstimation(e *models.TaskEstimation) error
	ListTaskEstimations(workspaceID string) ([]models.TaskEstimation, error)

	// Dashboard widgets
	CreateWidget(wdg *models.DashboardWidget) error
	ListWidgets(userID, workspaceID string) ([]models.DashboardWidget, error)
	UpdateWidget(wdg *models.DashboardWidget) error
	DeleteWidget(id, userID string) error

	// User preferences
	GetUserPreferences(userID string) (*models.UserPreferences, error)
	SaveUserPreferences(p *models.UserPreferences) error

	// Workload (read-only mirrors of aggregate tables)
	ListWorkloadMetrics(workspaceID string) ([]models.WorkloadMetric, error)
	ListWorkloadForecasts(workspaceID string) ([]models.WorkloadForecast, error)

	HealthCheck() error
	Close() error
}

// StoreConfig selects and parameterizes a backend.
type StoreConfig struct {
	PostgresDSN string
	SupabaseURL string
	SupabaseKey string
	Debug       bool
}

// NewStore picks a backend from the configuration: direct Postgres when
// a DSN is set, otherwise the BaaS REST API.
func NewStore(cfg StoreConfig) (Store, error) {
	if cfg.PostgresDSN != "" {
		return NewPostgresStore(cfg.PostgresDSN)
	}
	if cfg.SupabaseURL != "" && cfg.SupabaseKey != "" {
		return NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseKey), nil
	}
	return nil, fmt.Errorf("no store configured: set POSTGRES_DSN or SUPABASE_URL+SUPABASE_SERVICE_KEY")
}
