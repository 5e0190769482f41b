package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"taskboard-backend/pkg/models"
)

// PostgresStore implements Store against a direct Postgres connection.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a pooled connection sized for serverless use.
func NewPostgresStore(dsn string) (Store, error) {
	dsn = strings.TrimSpace(dsn)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// ================= Tasks =================

const taskColumns = `id, workspace_id, COALESCE(project_id,''), title, COALESCE(description,''), status, priority,
	COALESCE(assignee_id,''), COALESCE(reporter_id,''), due_date, is_blocked, estimated_hours, actual_hours,
	position, COALESCE(recurring_pattern_id,''), completed_at, created_at, updated_at`

func scanTask(row interface{ Scan(...interface{}) error }) (*models.Task, error) {
	var t models.Task
	err := row.Scan(&t.ID, &t.WorkspaceID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &t.Priority,
		&t.AssigneeID, &t.ReporterID, &t.DueDate, &t.IsBlocked, &t.EstimatedHours, &t.ActualHours,
		&t.Position, &t.RecurringPatternID, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *PostgresStore) CreateTask(t *models.Task) error {
	query := `
		INSERT INTO tasks (workspace_id, project_id, title, description, status, priority, assignee_id,
			reporter_id, due_date, is_blocked, estimated_hours, position, recurring_pattern_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, COALESCE($12,0), $13, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRow(query, t.WorkspaceID, nullIfEmpty(t.ProjectID), t.Title, t.Description,
		t.Status, t.Priority, nullIfEmpty(t.AssigneeID), nullIfEmpty(t.ReporterID), t.DueDate,
		t.IsBlocked, t.EstimatedHours, t.Position, nullIfEmpty(t.RecurringPatternID)).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", classifyPQ(err))
	}
	return nil
}

func (s *PostgresStore) GetTask(id string) (*models.Task, error) {
	t, err := scanTask(s.db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", classifyPQ(err))
	}
	return t, nil
}

func (s *PostgresStore) ListTasks(f models.TaskFilter) ([]models.Task, error) {
	where := []string{"workspace_id = $1"}
	args := []interface{}{f.WorkspaceID}
	idx := 2

	add := func(cond string, val interface{}) {
		where = append(where, fmt.Sprintf(cond, idx))
		args = append(args, val)
		idx++
	}
	if f.ProjectID != "" {
		add("project_id = $%d", f.ProjectID)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.AssigneeID != "" {
		add("assignee_id = $%d", f.AssigneeID)
	}
	if f.DueBefore != nil {
		add("due_date <= $%d", *f.DueBefore)
	}
	if f.BlockedOnly {
		where = append(where, "is_blocked = TRUE")
	}

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY position ASC, created_at ASC`
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", classifyPQ(err))
	}
	defer rows.Close()

	var list []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *t)
	}
	return list, rows.Err()
}

func (s *PostgresStore) UpdateTaskPartial(taskID string, patch map[string]interface{}) error {
	if strings.TrimSpace(taskID) == "" {
		return fmt.Errorf("task id required")
	}
	setClauses := make([]string, 0, len(patch)+1)
	args := make([]interface{}, 0, len(patch)+1)
	idx := 1

	add := func(col string, val interface{}) {
		setClauses = append(setClauses, fmt.Sprintf("%s=$%d", col, idx))
		args = append(args, val)
		idx++
	}

	// Whitelisted keys -> column names; anything else is ignored.
	for k, v := range patch {
		switch k {
		case "title", "description", "status", "priority", "assignee_id", "due_date",
			"is_blocked", "estimated_hours", "actual_hours", "position", "project_id", "completed_at":
			add(k, v)
		}
	}
	if len(setClauses) == 0 {
		return nil
	}
	setClauses = append(setClauses, "updated_at=NOW()")

	args = append(args, taskID)
	query := fmt.Sprintf("UPDATE tasks SET %s WHERE id=$%d", strings.Join(setClauses, ", "), idx)
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", classifyPQ(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteTask(id string) error {
	res, err := s.db.Exec(`DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", classifyPQ(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ================= Completion history =================

func (s *PostgresStore) AppendCompletionHistory(h *models.TaskCompletionHistory) error {
	query := `
		INSERT INTO task_completion_history (task_id, workspace_id, user_id, estimated_hours, actual_hours, due_date, completed_at, was_late)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := s.db.QueryRow(query, h.TaskID, h.WorkspaceID, nullIfEmpty(h.UserID),
		h.EstimatedHours, h.ActualHours, h.DueDate, h.CompletedAt, h.WasLate).Scan(&h.ID)
	if err != nil {
		return fmt.Errorf("failed to append completion history: %w", classifyPQ(err))
	}
	return nil
}

func (s *PostgresStore) ListCompletionHistory(workspaceID string, limit int) ([]models.TaskCompletionHistory, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`
		SELECT id, task_id, workspace_id, COALESCE(user_id,''), estimated_hours, actual_hours, due_date, completed_at, was_late
		FROM task_completion_history
		WHERE workspace_id = $1
		ORDER BY completed_at DESC
		LIMIT $2
	`, workspaceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list completion history: %w", classifyPQ(err))
	}
	defer rows.Close()

	var list []models.TaskCompletionHistory
	for rows.Next() {
		var h models.TaskCompletionHistory
		if err := rows.Scan(&h.ID, &h.TaskID, &h.WorkspaceID, &h.UserID, &h.EstimatedHours,
			&h.ActualHours, &h.DueDate, &h.CompletedAt, &h.WasLate); err != nil {
			return nil, err
		}
		list = append(list, h)
	}
	return list, rows.Err()
}

// ================= Comments =================

const commentColumns = `id, workspace_id, entity_type, entity_id, author_id, content,
	COALESCE(parent_comment_id,''), thread_level, is_deleted, edited_at, created_at, updated_at`

func scanComment(row interface{ Scan(...interface{}) error }) (*models.Comment, error) {
	var c models.Comment
	err := row.Scan(&c.ID, &c.WorkspaceID, &c.EntityType, &c.EntityID, &c.AuthorID, &c.Content,
		&c.ParentCommentID, &c.ThreadLevel, &c.IsDeleted, &c.EditedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) CreateComment(c *models.Comment) error {
	query := `
		INSERT INTO comments (workspace_id, entity_type, entity_id, author_id, content, parent_comment_id, thread_level, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRow(query, c.WorkspaceID, c.EntityType, c.EntityID, c.AuthorID, c.Content,
		nullIfEmpty(c.ParentCommentID), c.ThreadLevel).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create comment: %w", classifyPQ(err))
	}
	return nil
}

func (s *PostgresStore) GetComment(id string) (*models.Comment, error) {
	c, err := scanComment(s.db.QueryRow(`SELECT `+commentColumns+` FROM comments WHERE id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get comment: %w", classifyPQ(err))
	}
	return c, nil
}

func (s *PostgresStore) ListCommentsByEntity(entityType models.EntityType, entityID string) ([]models.Comment, error) {
	rows, err := s.db.Query(`SELECT `+commentColumns+` FROM comments WHERE entity_type = $1 AND entity_id = $2 ORDER BY created_at ASC`,
		entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", classifyPQ(err))
	}
	defer rows.Close()

	var list []models.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *c)
	}
	return list, rows.Err()
}

func (s *PostgresStore) UpdateCommentContent(id, content string) error {
	res, err := s.db.Exec(`UPDATE comments SET content=$1, edited_at=NOW(), updated_at=NOW() WHERE id=$2 AND is_deleted=FALSE`, content, id)
	if err != nil {
		return fmt.Errorf("failed to update comment: %w", classifyPQ(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SoftDeleteComment(id string) error {
	// Content is blanked so deleted placeholders never leak text.
	res, err := s.db.Exec(`UPDATE comments SET is_deleted=TRUE, content='', updated_at=NOW() WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", classifyPQ(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ================= Reactions =================

func (s *PostgresStore) AddReaction(r *models.CommentReaction) error {
	query := `
		INSERT INTO comment_reactions (comment_id, user_id, emoji, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (comment_id, user_id, emoji) DO UPDATE SET emoji = EXCLUDED.emoji
		RETURNING id, created_at
	`
	err := s.db.QueryRow(query, r.CommentID, r.UserID, r.Emoji).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to add reaction: %w", classifyPQ(err))
	}
	return nil
}

func (s *PostgresStore) RemoveReaction(commentID, userID, emoji string) error {
	_, err := s.db.Exec(`DELETE FROM comment_reactions WHERE comment_id=$1 AND user_id=$2 AND emoji=$3`, commentID, userID, emoji)
	if err != nil {
		return fmt.Errorf("failed to remove reaction: %w", classifyPQ(err))
	}
	return nil
}

func (s *PostgresStore) ListReactions(commentID string) ([]models.CommentReaction, error) {
	rows, err := s.db.Query(`SELECT id, comment_id, user_id, emoji, created_at FROM comment_reactions WHERE comment_id=$1 ORDER BY created_at ASC`, commentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reactions: %w", classifyPQ(err))
	}
	defer rows.Close()

	var list []models.CommentReaction
	for rows.Next() {
		var r models.CommentReaction
		if err := rows.Scan(&r.ID, &r.CommentID, &r.UserID, &r.Emoji, &r.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, r)
	}
	return list, rows.Err()
}

// ================= Mentions =================

func (s *PostgresStore) CreateMention(m *models.Mention) error {
	query := `
		INSERT INTO mentions (workspace_id, entity_type, entity_id, comment_id, mentioned_user_id, mentioner_user_id, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, NOW())
		RETURNING id, created_at
	`
	err := s.db.QueryRow(query, m.WorkspaceID, m.EntityType, m.EntityID, nullIfEmpty(m.CommentID),
		m.MentionedUserID, m.MentionerUserID).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create mention: %w", classifyPQ(err))
	}
	return nil
}

func (s *PostgresStore) ListMentionsForUser(workspaceID, userID string, unreadOnly bool) ([]models.Mention, error) {
	query := `
		SELECT id, workspace_id, entity_type, entity_id, COALESCE(comment_id,''), mentioned_user_id, mentioner_user_id, is_read, created_at
		FROM mentions
		WHERE workspace_id = $1 AND mentioned_user_id = $2
	`
	if unreadOnly {
		query += ` AND is_read = FALSE`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(query, workspaceID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list mentions: %w", classifyPQ(err))
	}
	defer rows.Close()

	var list []models.Mention
	for rows.Next() {
		var m models.Mention
		if err := rows.Scan(&m.ID, &m.WorkspaceID, &m.EntityType, &m.EntityID, &m.CommentID,
			&m.MentionedUserID, &m.MentionerUserID, &m.IsRead, &m.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

func (s *PostgresStore) MarkMentionRead(id, userID string) error {
	res, err := s.db.Exec(`UPDATE mentions SET is_read=TRUE WHERE id=$1 AND mentioned_user_id=$2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark mention read: %w", classifyPQ(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) MarkAllMentionsRead(workspaceID, userID string) error {
	_, err := s.db.Exec(`UPDATE mentions SET is_read=TRUE WHERE workspace_id=$1 AND mentioned_user_id=$2 AND is_read=FALSE`, workspaceID, userID)
	if err != nil {
		return fmt.Errorf("failed to mark mentions read: %w", classifyPQ(err))
	}
	return nil
}

// ================= Workspaces =================

func (s *PostgresStore) CreateWorkspace(ws *models.Workspace) error {
	query := `
		INSERT INTO workspaces (name, owner_id, description, avatar, color, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRow(query, ws.Name, ws.OwnerID, ws.Description, ws.Avatar, ws.Color).
		Scan(&ws.ID, &ws.CreatedAt, &ws.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create workspace: %w", classifyPQ(err))
	}
	// Owner membership rides along with workspace creation.
	_, err = s.db.Exec(`
		INSERT INTO workspace_members (workspace_id, user_id, role, created_at)
		VALUES ($1, $2, 'owner', NOW())
		ON CONFLICT (workspace_id, user_id) DO NOTHING
	`, ws.ID, ws.OwnerID)
	if err != nil {
		return fmt.Errorf("failed to add owner membership: %w", classifyPQ(err))
	}
	return nil
}

func (s *PostgresStore) GetWorkspace(id string) (*models.Workspace, error) {
	var ws models.Workspace
	err := s.db.QueryRow(`SELECT id, name, owner_id, COALESCE(description,''), COALESCE(avatar,''), COALESCE(color,''), created_at, updated_at FROM workspaces WHERE id = $1`, id).
		Scan(&ws.ID, &ws.Name, &ws.OwnerID, &ws.Description, &ws.Avatar, &ws.Color, &ws.CreatedAt, &ws.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get workspace: %w", classifyPQ(err))
	}
	return &ws, nil
}

func (s *PostgresStore) ListUserWorkspaces(userID string) ([]models.Workspace, error) {
	query := `
		SELECT DISTINCT w.id, w.name, w.owner_id, COALESCE(w.description,''), COALESCE(w.avatar,''), COALESCE(w.color,''), w.created_at, w.updated_at
		FROM workspaces w
		LEFT JOIN workspace_members m ON m.workspace_id = w.id
		WHERE w.owner_id = $1 OR m.user_id = $1
		ORDER BY w.created_at DESC
	`
	rows, err := s.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", classifyPQ(err))
	}
	defer rows.Close()

	var list []models.Workspace
	for rows.Next() {
		var ws models.Workspace
		if err := rows.Scan(&ws.ID, &ws.Name, &ws.OwnerID, &ws.Description, &ws.Avatar, &ws.Color, &ws.CreatedAt, &ws.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, ws)
	}
	return list, rows.Err()
}

func (s *PostgresStore) UpdateWorkspace(ws *models.Workspace) error {
	_, err := s.db.Exec(`
		UPDATE workspaces
		SET name = COALESCE($1, name),
			description = COALESCE($2, description),
			avatar = COALESCE($3, avatar),
			color = COALESCE($4, color),
			updated_at = NOW()
		WHERE id = $5
	`, nullIfEmpty(ws.Name), nullIfEmpty(ws.Description), nullIfEmpty(ws.Avatar), nullIfEmpty(ws.Color), ws.ID)
	if err != nil {
		return fmt.Errorf("failed to update workspace: %w", classifyPQ(err))
	}
	return nil
}

func (s *PostgresStore) DeleteWorkspace(id string) error {
	res, err := s.db.Exec(`DELETE FROM workspaces WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete workspace: %w", classifyPQ(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ================= Members =================

func (s *PostgresStore) AddWorkspaceMember(m *models.WorkspaceMember) error {
	query := `
		INSERT INTO workspace_members (workspace_id, user_id, role, display_name, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (workspace_id, user_id) DO UPDATE SET role = EXCLUDED.role
		RETURNING id
	`
	err := s.db.QueryRow(query, m.WorkspaceID, m.UserID, string(m.Role), m.DisplayName).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("failed to add member: %w", classifyPQ(err))
	}
	return nil
}

func (s *PostgresStore) ListWorkspaceMembers(workspaceID string) ([]models.WorkspaceMember, error) {
	rows, err := s.db.Query(`
		SELECT id, workspace_id, user_id, role, COALESCE(display_name,''), created_at
		FROM workspace_members
		WHERE workspace_id = $1
		ORDER BY created_at ASC
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", classifyPQ(err))
	}
	defer rows.Close()

	var list []models.WorkspaceMember
	for rows.Next() {
		var m models.WorkspaceMember
		var role string
		if err := rows.Scan(&m.ID, &m.WorkspaceID, &m.UserID, &role, &m.DisplayName, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Role = models.WorkspaceRole(role)
		list = append(list, m)
	}
	return list, rows.Err()
}

func (s *PostgresStore) UpdateMemberRole(workspaceID, userID string, role models.WorkspaceRole) error {
	res, err := s.db.Exec(`UPDATE workspace_members SET role=$1 WHERE workspace_id=$2 AND user_id=$3`, string(role), workspaceID, userID)
	if err != nil {
		return fmt.Errorf("failed to update member role: %w", classifyPQ(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) RemoveWorkspaceMember(workspaceID, userID string) error {
	res, err := s.db.Exec(`DELETE FROM workspace_members WHERE workspace_id=$1 AND user_id=$2`, workspaceID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", classifyPQ(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ================= Invitations =================

func (s *PostgresStore) CreateInvitation(inv *models.WorkspaceInvitation) error {
	query := `
		INSERT INTO workspace_invitations (workspace_id, email, inviter_id, role, token, status, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRow(query, inv.WorkspaceID, inv.Email, inv.InviterID, string(inv.Role),
		inv.Token, string(inv.Status), inv.ExpiresAt).Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create invitation: %w", classifyPQ(err))
	}
	return nil
}

func (s *PostgresStore) GetInvitationByToken(token string) (*models.WorkspaceInvitation, error) {
	var inv models.WorkspaceInvitation
	var role, status string
	err := s.db.QueryRow(`
		SELECT id, workspace_id, email, inviter_id, role, token, status, expires_at, accepted_by, created_at, updated_at
		FROM workspace_invitations WHERE token = $1
	`, token).Scan(&inv.ID, &inv.WorkspaceID, &inv.Email, &inv.InviterID, &role, &inv.Token,
		&status, &inv.ExpiresAt, &inv.AcceptedBy, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get invitation: %w", classifyPQ(err))
	}
	inv.Role = models.WorkspaceRole(role)
	inv.Status = models.InvitationStatus(status)
	return &inv, nil
}

func (s *PostgresStore) ListInvitationsByEmail(email string) ([]models.WorkspaceInvitation, error) {
	rows, err := s.db.Query(`
		SELECT id, workspace_id, email, inviter_id, role, token, status, expires_at, accepted_by, created_at, updated_at
		FROM workspace_invitations WHERE email = $1 ORDER BY created_at DESC
	`, email)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", classifyPQ(err))
	}
	defer rows.Close()

	var list []models.WorkspaceInvitation
	for rows.Next() {
		var inv models.WorkspaceInvitation
		var role, status string
		if err := rows.Scan(&inv.ID, &inv.WorkspaceID, &inv.Email, &inv.InviterID, &role, &inv.Token,
			&status, &inv.ExpiresAt, &inv.AcceptedBy, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
			return nil, err
		}
		inv.Role = models.WorkspaceRole(role)
		inv.Status = models.InvitationStatus(status)
		list = append(list, inv)
	}
	return list, rows.Err()
}

func (s *PostgresStore) UpdateInvitation(inv *models.WorkspaceInvitation) error {
	_, err := s.db.Exec(`
		UPDATE workspace_invitations SET status=$1, accepted_by=$2, expires_at=$3, updated_at=NOW() WHERE id=$4
	`, string(inv.Status), inv.AcceptedBy, inv.ExpiresAt, inv.ID)
	if err != nil {
		return fmt.Errorf("failed to update invitation: %w", classifyPQ(err))
	}
	return nil
}

// ================= Recurring patterns =================

const patternColumns = `id, workspace_id, COALESCE(project_id,''), created_by, recurrence_type, interval,
	days_of_week, day_of_month, use_last_day, start_date, end_date, max_occurrences,
	title_template, COALESCE(description,''), priority, COALESCE(assignee_id,''), is_active, last_generated, created_at, updated_at`

func scanPattern(row interface{ Scan(...interface{}) error }) (*models.RecurringTaskPattern, error) {
	var p models.RecurringTaskPattern
	var days pq.Int64Array
	err := row.Scan(&p.ID, &p.WorkspaceID, &p.ProjectID, &p.CreatedBy, &p.RecurrenceType, &p.Interval,
		&days, &p.DayOfMonth, &p.UseLastDay, &p.StartDate, &p.EndDate, &p.MaxOccurrences,
		&p.TitleTemplate, &p.Description, &p.Priority, &p.AssigneeID, &p.IsActive, &p.LastGenerated, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.DaysOfWeek = make([]int, 0, len(days))
	for _, d := range days {
		p.DaysOfWeek = append(p.DaysOfWeek, int(d))
	}
	return &p, nil
}

func daysArray(days []int) pq.Int64Array {
	out := make(pq.Int64Array, 0, len(days))
	for _, d := range days {
		out = append(out, int64(d))
	}
	return out
}

func (s *PostgresStore) CreateRecurringPattern(p *models.RecurringTaskPattern) error {
	query := `
		INSERT INTO recurring_task_patterns (workspace_id, project_id, created_by, recurrence_type, interval,
			days_of_week, day_of_month, use_last_day, start_date, end_date, max_occurrences,
			title_template, description, priority, assignee_id, is_active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,NOW(),NOW())
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRow(query, p.WorkspaceID, nullIfEmpty(p.ProjectID), p.CreatedBy, p.RecurrenceType,
		p.Interval, daysArray(p.DaysOfWeek), p.DayOfMonth, p.UseLastDay, p.StartDate, p.EndDate,
		p.MaxOccurrences, p.TitleTemplate, p.Description, p.Priority, nullIfEmpty(p.AssigneeID), p.IsActive).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create recurring pattern: %w", classifyPQ(err))
	}
	return nil
}

func (s *PostgresStore) GetRecurringPattern(id string) (*models.RecurringTaskPattern, error) {
	p, err := scanPattern(s.db.QueryRow(`SELECT `+patternColumns+` FROM recurring_task_patterns WHERE id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get recurring pattern: %w", classifyPQ(err))
	}
	return p, nil
}

func (s *PostgresStore) ListRecurringPatterns(workspaceID string) ([]models.RecurringTaskPattern, error) {
	rows, err := s.db.Query(`SELECT `+patternColumns+` FROM recurring_task_patterns WHERE workspace_id = $1 ORDER BY created_at ASC`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list recurring patterns: %w", classifyPQ(err))
	}
	defer rows.Close()

	var list []models.RecurringTaskPattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *p)
	}
	return list, rows.Err()
}

func (s *PostgresStore) UpdateRecurringPattern(p *models.RecurringTaskPattern) error {
	res, err := s.db.Exec(`
		UPDATE recurring_task_patterns
		SET recurrence_type=$1, interval=$2, days_of_week=$3, day_of_month=$4, use_last_day=$5,
			start_date=$6, end_date=$7, max_occurrences=$8, title_template=$9, description=$10,
			priority=$11, assignee_id=$12, is_active=$13, last_generated=$14, updated_at=NOW()
		WHERE id=$15
	`, p.RecurrenceType, p.Interval, daysArray(p.DaysOfWeek), p.DayOfMonth, p.UseLastDay,
		p.StartDate, p.EndDate, p.MaxOccurrences, p.TitleTemplate, p.Description,
		p.Priority, nullIfEmpty(p.AssigneeID), p.IsActive, p.LastGenerated, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update recurring pattern: %w", classifyPQ(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteRecurringPattern(id string) error {
	res, err := s.db.Exec(`DELETE FROM recurring_task_patterns WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete recurring pattern: %w", classifyPQ(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ================= AI outputs =================

func (s *PostgresStore) SaveRiskAssessment(a *models.RiskAssessment) error {
	query := `
		INSERT INTO task_risk_assessments (task_id, workspace_id, risk_score, risk_level, factors, summary, model, fallback, confidence, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW())
		RETURNING id, created_at
	`
	err := s.db.QueryRow(query, a.TaskID, a.WorkspaceID, a.RiskScore, string(a.RiskLevel),
		pq.StringArray(a.Factors), a.Summary, a.Model, a.Fallback, a.Confidence).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save risk assessment: %w", classifyPQ(err))
	}
	return nil
}

func (s *PostgresStore) ListRiskAssessments(workspaceID string) ([]models.RiskAssessment, error) {
	rows, err := s.db.Query(`
		SELECT id, task_id, workspace_id, risk_score, risk_level, factors, COALESCE(summary,''), COALESCE(model,''), fallback, confidence, created_at
		FROM task_risk_assessments WHERE workspace_id = $1 ORDER BY created_at DESC
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list risk assessments: %w", classifyPQ(err))
	}
	defer rows.Close()

	var list []models.RiskAssessment
	for rows.Next() {
		var a models.RiskAssessment
		var factors pq.StringArray
		if err := rows.Scan(&a.ID, &a.TaskID, &a.WorkspaceID, &a.RiskScore, &a.RiskLevel,
			&factors, &a.Summary, &a.Model, &a.Fallback, &a.Confidence, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Factors = []string(factors)
		list = append(list, a)
	}
	return list, rows.Err()
}

func (s *PostgresStore) SaveRiskAlert(a *models.RiskAlert) error {
	query := `
		INSERT INTO risk_alerts (workspace_id, task_id, assessment_id, level, message, is_resolved, created_at)
		VALUES ($1,$2,$3,$4,$5,FALSE,NOW())
		RETURNING id, created_at
	`
	err := s.db.QueryRow(query, a.WorkspaceID, a.TaskID, nullIfEmpty(a.AssessmentID), string(a.Level), a.Message).
		Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save risk alert: %w", classifyPQ(err))
	}
	return nil
}

func (s *PostgresStore) ListRiskAlerts(workspaceID string, unresolvedOnly bool) ([]models.RiskAlert, error) {
	query := `SELECT id, workspace_id, task_id, COALESCE(assessment_id,''), level, message, is_resolved, created_at FROM risk_alerts WHERE workspace_id = $1`
	if unresolvedOnly {
		query += ` AND is_resolved = FALSE`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list risk alerts: %w", classifyPQ(err))
	}
	defer rows.Close()

	var list []models.RiskAlert
	for rows.Next() {
		var a models.RiskAlert
		if err := rows.Scan(&a.ID, &a.WorkspaceID, &a.TaskID, &a.AssessmentID, &a.Level, &a.Message, &a.IsResolved, &a.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

func (s *PostgresStore) ResolveRiskAlert(id string) error {
	res, err := s.db.Exec(`UPDATE risk_alerts SET is_resolved=TRUE WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("failed to resolve risk alert: %w", classifyPQ(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SaveDelayRiskPattern(p *models.DelayRiskPattern) error {
	query := `
		INSERT INTO delay_risk_patterns (workspace_id, pattern, occurrences, model, created_at)
		VALUES ($1,$2,$3,$4,NOW())
		RETURNING id, created_at
	`
	err := s.db.QueryRow(query, p.WorkspaceID, p.Pattern, p.Occurrences, p.Model).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save delay pattern: %w", classifyPQ(err))
	}
	return nil
}

func (s *PostgresStore) ListDelayRiskPatterns(workspaceID string) ([]models.DelayRiskPattern, error) {
	rows, err := s.db.Query(`SELECT id, workspace_id, pattern, occurrences, COALESCE(model,''), created_at FROM delay_risk_patterns WHERE workspace_id=$1 ORDER BY created_at DESC`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list delay patterns: %w", classifyPQ(err))
	}
	defer rows.Close()

	var list []models.DelayRiskPattern
	for rows.Next() {
		var p models.DelayRiskPattern
		if err := rows.Scan(&p.ID, &p.WorkspaceID, &p.Pattern, &p.Occurrences, &p.Model, &p.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

func (s *PostgresStore) SaveTaskEstimation(e *models.TaskEstimation) error {
	query := `
		INSERT INTO task_estimations (task_id, workspace_id, estimated_hours, confidence, rationale, model, fallback, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())
		RETURNING id, created_at
	`
	err := s.db.QueryRow(query, nullIfEmpty(e.TaskID), e.WorkspaceID, e.EstimatedHours, e.Confidence,
		e.Rationale, e.Model, e.Fallback).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save estimation: %w", classifyPQ(err))
	}
	return nil
}

func (s *PostgresStore) ListTaskEstimations(workspaceID string) ([]models.TaskEstimation, error) {
	rows, err := s.db.Query(`SELECT id, COALESCE(task_id,''), workspace_id, estimated_hours, confidence, COALESCE(rationale,''), COALESCE(model,''), fallback, created_at FROM task_estimations WHERE workspace_id=$1 ORDER BY created_at DESC`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list estimations: %w", classifyPQ(err))
	}
	defer rows.Close()

	var list []models.TaskEstimation
	for rows.Next() {
		var e models.TaskEstimation
		if err := rows.Scan(&e.ID, &e.TaskID, &e.WorkspaceID, &e.EstimatedHours, &e.Confidence,
			&e.Rationale, &e.Model, &e.Fallback, &e.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// ================= Dashboard widgets =================

func (s *PostgresStore) CreateWidget(wdg *models.DashboardWidget) error {
	query := `
		INSERT INTO dashboard_widgets (user_id, workspace_id, widget_type, title, position, config, created_at, updated_at)
		VALUES ($1,$2,$3,$4,COALESCE($5,0),$6,NOW(),NOW())
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRow(query, wdg.UserID, wdg.WorkspaceID, wdg.WidgetType, wdg.Title,
		wdg.Position, []byte(wdg.Config)).Scan(&wdg.ID, &wdg.CreatedAt, &wdg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create widget: %w", classifyPQ(err))
	}
	return nil
}

func (s *PostgresStore) ListWidgets(userID, workspaceID string) ([]models.DashboardWidget, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, workspace_id, widget_type, COALESCE(title,''), position, config, created_at, updated_at
		FROM dashboard_widgets WHERE user_id=$1 AND workspace_id=$2 ORDER BY position ASC
	`, userID, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list widgets: %w", classifyPQ(err))
	}
	defer rows.Close()

	var list []models.DashboardWidget
	for rows.Next() {
		var w models.DashboardWidget
		var config []byte
		if err := rows.Scan(&w.ID, &w.UserID, &w.WorkspaceID, &w.WidgetType, &w.Title, &w.Position, &config, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		w.Config = config
		list = append(list, w)
	}
	return list, rows.Err()
}

func (s *PostgresStore) UpdateWidget(wdg *models.DashboardWidget) error {
	res, err := s.db.Exec(`UPDATE dashboard_widgets SET widget_type=$1, title=$2, position=$3, config=$4, updated_at=NOW() WHERE id=$5 AND user_id=$6`,
		wdg.WidgetType, wdg.Title, wdg.Position, []byte(wdg.Config), wdg.ID, wdg.UserID)
	if err != nil {
		return fmt.Errorf("failed to update widget: %w", classifyPQ(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteWidget(id, userID string) error {
	res, err := s.db.Exec(`DELETE FROM dashboard_widgets WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete widget: %w", classifyPQ(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ================= Preferences =================

func (s *PostgresStore) GetUserPreferences(userID string) (*models.UserPreferences, error) {
	var p models.UserPreferences
	var prefs []byte
	err := s.db.QueryRow(`SELECT user_id, preferences, updated_at FROM user_preferences WHERE user_id=$1`, userID).
		Scan(&p.UserID, &prefs, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get preferences: %w", classifyPQ(err))
	}
	p.Preferences = prefs
	return &p, nil
}

func (s *PostgresStore) SaveUserPreferences(p *models.UserPreferences) error {
	query := `
		INSERT INTO user_preferences (user_id, preferences, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET preferences = EXCLUDED.preferences, updated_at = NOW()
		RETURNING updated_at
	`
	err := s.db.QueryRow(query, p.UserID, []byte(p.Preferences)).Scan(&p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save preferences: %w", classifyPQ(err))
	}
	return nil
}

// ================= Workload =================

func (s *PostgresStore) ListWorkloadMetrics(workspaceID string) ([]models.WorkloadMetric, error) {
	rows, err := s.db.Query(`
		SELECT id, workspace_id, user_id, period_start, period_end, open_tasks, completed_tasks, overdue_tasks, total_hours, created_at
		FROM workload_metrics WHERE workspace_id=$1 ORDER BY period_start DESC
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workload metrics: %w", classifyPQ(err))
	}
	defer rows.Close()

	var list []models.WorkloadMetric
	for rows.Next() {
		var m models.WorkloadMetric
		if err := rows.Scan(&m.ID, &m.WorkspaceID, &m.UserID, &m.PeriodStart, &m.PeriodEnd,
			&m.OpenTasks, &m.CompletedTasks, &m.OverdueTasks, &m.TotalHours, &m.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

func (s *PostgresStore) ListWorkloadForecasts(workspaceID string) ([]models.WorkloadForecast, error) {
	rows, err := s.db.Query(`
		SELECT id, workspace_id, user_id, period_start, period_end, forecast_hours, confidence, created_at
		FROM workload_forecasts WHERE workspace_id=$1 ORDER BY period_start ASC
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workload forecasts: %w", classifyPQ(err))
	}
	defer rows.Close()

	var list []models.WorkloadForecast
	for rows.Next() {
		var f models.WorkloadForecast
		if err := rows.Scan(&f.ID, &f.WorkspaceID, &f.UserID, &f.PeriodStart, &f.PeriodEnd,
			&f.ForecastHours, &f.Confidence, &f.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, f)
	}
	return list, rows.Err()
}

// ================= Lifecycle =================

func (s *PostgresStore) HealthCheck() error {
	return s.db.Ping()
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func nullIfEmpty(v string) interface{} {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
