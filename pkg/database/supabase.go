package database

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"taskboard-backend/pkg/models"
)

// SupabaseStore implements Store against the hosted PostgREST API.
type SupabaseStore struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewSupabaseStore creates a REST-backed store.
func NewSupabaseStore(rawURL, key string) Store {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "https://" + rawURL
	}
	return &SupabaseStore{
		baseURL: strings.TrimRight(rawURL, "/"),
		apiKey:  key,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// makeRequest sends an authenticated request to the REST API. Responses
// with status >= 400 are classified: schema-absence errors become
// ErrNotMigrated, everything else surfaces verbatim.
func (s *SupabaseStore) makeRequest(method, endpoint string, body interface{}) ([]byte, error) {
	var reqBody io.Reader

	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequest(method, s.baseURL+"/rest/v1"+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		if classified := classifyREST(resp.StatusCode, string(respBody)); classified != nil {
			return nil, classified
		}
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// insertOne POSTs a payload and decodes the single returned row into out.
func (s *SupabaseStore) insertOne(table string, payload, out interface{}) error {
	data, err := s.makeRequest("POST", "/"+table, payload)
	if err != nil {
		return err
	}
	return decodeFirst(data, out)
}

// getOne fetches at most one row matching the filter.
func (s *SupabaseStore) getOne(table, filter string, out interface{}) error {
	data, err := s.makeRequest("GET", "/"+table+"?"+filter+"&select=*&limit=1", nil)
	if err != nil {
		return err
	}
	return decodeFirst(data, out)
}

// patchRows PATCHes rows matching the filter and reports ErrNotFound
// when nothing matched.
func (s *SupabaseStore) patchRows(table, filter string, payload interface{}) error {
	data, err := s.makeRequest("PATCH", "/"+table+"?"+filter, payload)
	if err != nil {
		return err
	}
	return requireAffected(data)
}

// deleteRows DELETEs rows matching the filter and reports ErrNotFound
// when nothing matched.
func (s *SupabaseStore) deleteRows(table, filter string) error {
	data, err := s.makeRequest("DELETE", "/"+table+"?"+filter, nil)
	if err != nil {
		return err
	}
	return requireAffected(data)
}

// decodeFirst unmarshals the first element of a PostgREST row array.
func decodeFirst(data []byte, out interface{}) error {
	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(rows[0], out)
}

// requireAffected checks a return=representation body for at least one row.
func requireAffected(data []byte) error {
	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	return nil
}

func eq(col, val string) string {
	return col + "=eq." + url.QueryEscape(val)
}

// ================= Tasks =================

func (s *SupabaseStore) CreateTask(t *models.Task) error {
	payload := map[string]interface{}{
		"workspace_id": t.WorkspaceID,
		"title":        t.Title,
		"description":  t.Description,
		"status":       t.Status,
		"priority":     t.Priority,
		"is_blocked":   t.IsBlocked,
		"position":     t.Position,
	}
	if t.ProjectID != "" {
		payload["project_id"] = t.ProjectID
	}
	if t.AssigneeID != "" {
		payload["assignee_id"] = t.AssigneeID
	}
	if t.ReporterID != "" {
		payload["reporter_id"] = t.ReporterID
	}
	if t.DueDate != nil {
		payload["due_date"] = t.DueDate
	}
	if t.EstimatedHours != nil {
		payload["estimated_hours"] = t.EstimatedHours
	}
	if t.RecurringPatternID != "" {
		payload["recurring_pattern_id"] = t.RecurringPatternID
	}
	return s.insertOne("tasks", payload, t)
}

func (s *SupabaseStore) GetTask(id string) (*models.Task, error) {
	var t models.Task
	if err := s.getOne("tasks", eq("id", id), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *SupabaseStore) ListTasks(f models.TaskFilter) ([]models.Task, error) {
	filters := []string{eq("workspace_id", f.WorkspaceID)}
	if f.ProjectID != "" {
		filters = append(filters, eq("project_id", f.ProjectID))
	}
	if f.Status != "" {
		filters = append(filters, eq("status", string(f.Status)))
	}
	if f.AssigneeID != "" {
		filters = append(filters, eq("assignee_id", f.AssigneeID))
	}
	if f.DueBefore != nil {
		filters = append(filters, "due_date=lte."+url.QueryEscape(f.DueBefore.Format(time.RFC3339)))
	}
	if f.BlockedOnly {
		filters = append(filters, "is_blocked=eq.true")
	}
	endpoint := "/tasks?" + strings.Join(filters, "&") + "&select=*&order=position.asc,created_at.asc"

	data, err := s.makeRequest("GET", endpoint, nil)
	if err != nil {
		return nil, err
	}
	var list []models.Task
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to decode tasks: %w", err)
	}
	return list, nil
}

func (s *SupabaseStore) UpdateTaskPartial(taskID string, patch map[string]interface{}) error {
	payload := map[string]interface{}{}
	for k, v := range patch {
		switch k {
		case "title", "description", "status", "priority", "assignee_id", "due_date",
			"is_blocked", "estimated_hours", "actual_hours", "position", "project_id", "completed_at":
			payload[k] = v
		}
	}
	if len(payload) == 0 {
		return nil
	}
	payload["updated_at"] = time.Now().UTC().Format(time.RFC3339)
	return s.patchRows("tasks", eq("id", taskID), payload)
}

func (s *SupabaseStore) DeleteTask(id string) error {
	return s.deleteRows("tasks", eq("id", id))
}

// ================= Completion history =================

func (s *SupabaseStore) AppendCompletionHistory(h *models.TaskCompletionHistory) error {
	payload := map[string]interface{}{
		"task_id":      h.TaskID,
		"workspace_id": h.WorkspaceID,
		"completed_at": h.CompletedAt,
		"was_late":     h.WasLate,
	}
	if h.UserID != "" {
		payload["user_id"] = h.UserID
	}
	if h.EstimatedHours != nil {
		payload["estimated_hours"] = h.EstimatedHours
	}
	if h.ActualHours != nil {
		payload["actual_hours"] = h.ActualHours
	}
	if h.DueDate != nil {
		payload["due_date"] = h.DueDate
	}
	return s.insertOne("task_completion_history", payload, h)
}

func (s *SupabaseStore) ListCompletionHistory(workspaceID string, limit int) ([]models.TaskCompletionHistory, error) {
	if limit <= 0 {
		limit = 100
	}
	endpoint := "/task_completion_history?" + eq("workspace_id", workspaceID) +
		"&select=*&order=completed_at.desc&limit=" + strconv.Itoa(limit)
	data, err := s.makeRequest("GET", endpoint, nil)
	if err != nil {
		return nil, err
	}
	var list []models.TaskCompletionHistory
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to decode completion history: %w", err)
	}
	return list, nil
}

// ================= Comments =================

func (s *SupabaseStore) CreateComment(c *models.Comment) error {
	payload := map[string]interface{}{
		"workspace_id": c.WorkspaceID,
		"entity_type":  c.EntityType,
		"entity_id":    c.EntityID,
		"author_id":    c.AuthorID,
		"content":      c.Content,
		"thread_level": c.ThreadLevel,
	}
	if c.ParentCommentID != "" {
		payload["parent_comment_id"] = c.ParentCommentID
	}
	return s.insertOne("comments", payload, c)
}

func (s *SupabaseStore) GetComment(id string) (*models.Comment, error) {
	var c models.Comment
	if err := s.getOne("comments", eq("id", id), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *SupabaseStore) ListCommentsByEntity(entityType models.EntityType, entityID string) ([]models.Comment, error) {
	endpoint := "/comments?" + eq("entity_type", string(entityType)) + "&" + eq("entity_id", entityID) +
		"&select=*&order=created_at.asc"
	data, err := s.makeRequest("GET", endpoint, nil)
	if err != nil {
		return nil, err
	}
	var list []models.Comment
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to decode comments: %w", err)
	}
	return list, nil
}

func (s *SupabaseStore) UpdateCommentContent(id, content string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	return s.patchRows("comments", eq("id", id)+"&is_deleted=eq.false", map[string]interface{}{
		"content":    content,
		"edited_at":  now,
		"updated_at": now,
	})
}

func (s *SupabaseStore) SoftDeleteComment(id string) error {
	return s.patchRows("comments", eq("id", id), map[string]interface{}{
		"is_deleted": true,
		"content":    "",
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	})
}

// ================= Reactions =================

func (s *SupabaseStore) AddReaction(r *models.CommentReaction) error {
	payload := map[string]interface{}{
		"comment_id": r.CommentID,
		"user_id":    r.UserID,
		"emoji":      r.Emoji,
	}
	err := s.insertOne("comment_reactions", payload, r)
	if err != nil && strings.Contains(err.Error(), "duplicate key") {
		// Reacting twice with the same emoji is a no-op.
		return nil
	}
	return err
}

func (s *SupabaseStore) RemoveReaction(commentID, userID, emoji string) error {
	err := s.deleteRows("comment_reactions",
		eq("comment_id", commentID)+"&"+eq("user_id", userID)+"&"+eq("emoji", emoji))
	if IsNotFound(err) {
		return nil
	}
	return err
}

func (s *SupabaseStore) ListReactions(commentID string) ([]models.CommentReaction, error) {
	data, err := s.makeRequest("GET", "/comment_reactions?"+eq("comment_id", commentID)+"&select=*&order=created_at.asc", nil)
	if err != nil {
		return nil, err
	}
	var list []models.CommentReaction
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to decode reactions: %w", err)
	}
	return list, nil
}

// ================= Mentions =================

func (s *SupabaseStore) CreateMention(m *models.Mention) error {
	payload := map[string]interface{}{
		"workspace_id":      m.WorkspaceID,
		"entity_type":       m.EntityType,
		"entity_id":         m.EntityID,
		"mentioned_user_id": m.MentionedUserID,
		"mentioner_user_id": m.MentionerUserID,
		"is_read":           false,
	}
	if m.CommentID != "" {
		payload["comment_id"] = m.CommentID
	}
	return s.insertOne("mentions", payload, m)
}

func (s *SupabaseStore) ListMentionsForUser(workspaceID, userID string, unreadOnly bool) ([]models.Mention, error) {
	endpoint := "/mentions?" + eq("workspace_id", workspaceID) + "&" + eq("mentioned_user_id", userID)
	if unreadOnly {
		endpoint += "&is_read=eq.false"
	}
	endpoint += "&select=*&order=created_at.desc"

	data, err := s.makeRequest("GET", endpoint, nil)
	if err != nil {
		return nil, err
	}
	var list []models.Mention
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to decode mentions: %w", err)
	}
	return list, nil
}

func (s *SupabaseStore) MarkMentionRead(id, userID string) error {
	return s.patchRows("mentions", eq("id", id)+"&"+eq("mentioned_user_id", userID),
		map[string]interface{}{"is_read": true})
}

func (s *SupabaseStore) MarkAllMentionsRead(workspaceID, userID string) error {
	err := s.patchRows("mentions",
		eq("workspace_id", workspaceID)+"&"+eq("mentioned_user_id", userID)+"&is_read=eq.false",
		map[string]interface{}{"is_read": true})
	if IsNotFound(err) {
		// Nothing unread is fine.
		return nil
	}
	return err
}

// ================= Workspaces =================

func (s *SupabaseStore) CreateWorkspace(ws *models.Workspace) error {
	payload := map[string]interface{}{
		"name":        ws.Name,
		"owner_id":    ws.OwnerID,
		"description": ws.Description,
		"avatar":      ws.Avatar,
		"color":       ws.Color,
	}
	if err := s.insertOne("workspaces", payload, ws); err != nil {
		return err
	}
	// Owner membership rides along with workspace creation.
	_, err := s.makeRequest("POST", "/workspace_members", map[string]interface{}{
		"workspace_id": ws.ID,
		"user_id":      ws.OwnerID,
		"role":         "owner",
	})
	if err != nil && strings.Contains(err.Error(), "duplicate key") {
		return nil
	}
	return err
}

func (s *SupabaseStore) GetWorkspace(id string) (*models.Workspace, error) {
	var ws models.Workspace
	if err := s.getOne("workspaces", eq("id", id), &ws); err != nil {
		return nil, err
	}
	return &ws, nil
}

func (s *SupabaseStore) ListUserWorkspaces(userID string) ([]models.Workspace, error) {
	// Two queries: workspaces owned plus workspaces joined through membership.
	ownedData, err := s.makeRequest("GET", "/workspaces?"+eq("owner_id", userID)+"&select=*", nil)
	if err != nil {
		return nil, err
	}
	var owned []models.Workspace
	if err := json.Unmarshal(ownedData, &owned); err != nil {
		return nil, fmt.Errorf("failed to decode workspaces: %w", err)
	}

	memData, err := s.makeRequest("GET", "/workspace_members?"+eq("user_id", userID)+"&select=workspace_id", nil)
	if err != nil {
		return owned, nil
	}
	var mems []map[string]string
	_ = json.Unmarshal(memData, &mems)

	seen := map[string]bool{}
	for _, w := range owned {
		seen[w.ID] = true
	}
	result := owned
	for _, m := range mems {
		id := m["workspace_id"]
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		var ws models.Workspace
		if err := s.getOne("workspaces", eq("id", id), &ws); err == nil {
			result = append(result, ws)
		}
	}
	return result, nil
}

func (s *SupabaseStore) UpdateWorkspace(ws *models.Workspace) error {
	payload := map[string]interface{}{
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	}
	if ws.Name != "" {
		payload["name"] = ws.Name
	}
	if ws.Description != "" {
		payload["description"] = ws.Description
	}
	if ws.Avatar != "" {
		payload["avatar"] = ws.Avatar
	}
	if ws.Color != "" {
		payload["color"] = ws.Color
	}
	return s.patchRows("workspaces", eq("id", ws.ID), payload)
}

func (s *SupabaseStore) DeleteWorkspace(id string) error {
	return s.deleteRows("workspaces", eq("id", id))
}

// ================= Members =================

func (s *SupabaseStore) AddWorkspaceMember(m *models.WorkspaceMember) error {
	payload := map[string]interface{}{
		"workspace_id": m.WorkspaceID,
		"user_id":      m.UserID,
		"role":         m.Role,
		"display_name": m.DisplayName,
	}
	err := s.insertOne("workspace_members", payload, m)
	if err != nil && strings.Contains(err.Error(), "duplicate key") {
		return s.UpdateMemberRole(m.WorkspaceID, m.UserID, m.Role)
	}
	return err
}

func (s *SupabaseStore) ListWorkspaceMembers(workspaceID string) ([]models.WorkspaceMember, error) {
	data, err := s.makeRequest("GET", "/workspace_members?"+eq("workspace_id", workspaceID)+"&select=*&order=created_at.asc", nil)
	if err != nil {
		return nil, err
	}
	var list []models.WorkspaceMember
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to decode members: %w", err)
	}
	return list, nil
}

func (s *SupabaseStore) UpdateMemberRole(workspaceID, userID string, role models.WorkspaceRole) error {
	return s.patchRows("workspace_members",
		eq("workspace_id", workspaceID)+"&"+eq("user_id", userID),
		map[string]interface{}{"role": role})
}

func (s *SupabaseStore) RemoveWorkspaceMember(workspaceID, userID string) error {
	return s.deleteRows("workspace_members", eq("workspace_id", workspaceID)+"&"+eq("user_id", userID))
}

// ================= Invitations =================

func (s *SupabaseStore) CreateInvitation(inv *models.WorkspaceInvitation) error {
	payload := map[string]interface{}{
		"workspace_id": inv.WorkspaceID,
		"email":        inv.Email,
		"inviter_id":   inv.InviterID,
		"role":         inv.Role,
		"token":        inv.Token,
		"status":       inv.Status,
		"expires_at":   inv.ExpiresAt,
	}
	return s.insertOne("workspace_invitations", payload, inv)
}

func (s *SupabaseStore) GetInvitationByToken(token string) (*models.WorkspaceInvitation, error) {
	var inv models.WorkspaceInvitation
	if err := s.getOne("workspace_invitations", eq("token", token), &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (s *SupabaseStore) ListInvitationsByEmail(email string) ([]models.WorkspaceInvitation, error) {
	data, err := s.makeRequest("GET", "/workspace_invitations?"+eq("email", email)+"&select=*&order=created_at.desc", nil)
	if err != nil {
		return nil, err
	}
	var list []models.WorkspaceInvitation
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to decode invitations: %w", err)
	}
	return list, nil
}

func (s *SupabaseStore) UpdateInvitation(inv *models.WorkspaceInvitation) error {
	payload := map[string]interface{}{
		"status":     inv.Status,
		"expires_at": inv.ExpiresAt,
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	}
	if inv.AcceptedBy != nil {
		payload["accepted_by"] = inv.AcceptedBy
	}
	return s.patchRows("workspace_invitations", eq("id", inv.ID), payload)
}

// ================= Recurring patterns =================

func (s *SupabaseStore) CreateRecurringPattern(p *models.RecurringTaskPattern) error {
	payload := map[string]interface{}{
		"workspace_id":    p.WorkspaceID,
		"created_by":      p.CreatedBy,
		"recurrence_type": p.RecurrenceType,
		"interval":        p.Interval,
		"days_of_week":    p.DaysOfWeek,
		"day_of_month":    p.DayOfMonth,
		"use_last_day":    p.UseLastDay,
		"start_date":      p.StartDate,
		"max_occurrences": p.MaxOccurrences,
		"title_template":  p.TitleTemplate,
		"description":     p.Description,
		"priority":        p.Priority,
		"is_active":       p.IsActive,
	}
	if p.ProjectID != "" {
		payload["project_id"] = p.ProjectID
	}
	if p.AssigneeID != "" {
		payload["assignee_id"] = p.AssigneeID
	}
	if p.EndDate != nil {
		payload["end_date"] = p.EndDate
	}
	return s.insertOne("recurring_task_patterns", payload, p)
}

func (s *SupabaseStore) GetRecurringPattern(id string) (*models.RecurringTaskPattern, error) {
	var p models.RecurringTaskPattern
	if err := s.getOne("recurring_task_patterns", eq("id", id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SupabaseStore) ListRecurringPatterns(workspaceID string) ([]models.RecurringTaskPattern, error) {
	data, err := s.makeRequest("GET", "/recurring_task_patterns?"+eq("workspace_id", workspaceID)+"&select=*&order=created_at.asc", nil)
	if err != nil {
		return nil, err
	}
	var list []models.RecurringTaskPattern
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to decode recurring patterns: %w", err)
	}
	return list, nil
}

func (s *SupabaseStore) UpdateRecurringPattern(p *models.RecurringTaskPattern) error {
	payload := map[string]interface{}{
		"recurrence_type": p.RecurrenceType,
		"interval":        p.Interval,
		"days_of_week":    p.DaysOfWeek,
		"day_of_month":    p.DayOfMonth,
		"use_last_day":    p.UseLastDay,
		"start_date":      p.StartDate,
		"end_date":        p.EndDate,
		"max_occurrences": p.MaxOccurrences,
		"title_template":  p.TitleTemplate,
		"description":     p.Description,
		"priority":        p.Priority,
		"is_active":       p.IsActive,
		"last_generated":  p.LastGenerated,
		"updated_at":      time.Now().UTC().Format(time.RFC3339),
	}
	if p.AssigneeID != "" {
		payload["assignee_id"] = p.AssigneeID
	}
	return s.patchRows("recurring_task_patterns", eq("id", p.ID), payload)
}

func (s *SupabaseStore) DeleteRecurringPattern(id string) error {
	return s.deleteRows("recurring_task_patterns", eq("id", id))
}

// ================= AI outputs =================

func (s *SupabaseStore) SaveRiskAssessment(a *models.RiskAssessment) error {
	payload := map[string]interface{}{
		"task_id":      a.TaskID,
		"workspace_id": a.WorkspaceID,
		"risk_score":   a.RiskScore,
		"risk_level":   a.RiskLevel,
		"factors":      a.Factors,
		"summary":      a.Summary,
		"model":        a.Model,
		"fallback":     a.Fallback,
		"confidence":   a.Confidence,
	}
	return s.insertOne("task_risk_assessments", payload, a)
}

func (s *SupabaseStore) ListRiskAssessments(workspaceID string) ([]models.RiskAssessment, error) {
	data, err := s.makeRequest("GET", "/task_risk_assessments?"+eq("workspace_id", workspaceID)+"&select=*&order=created_at.desc", nil)
	if err != nil {
		return nil, err
	}
	var list []models.RiskAssessment
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to decode risk assessments: %w", err)
	}
	return list, nil
}

func (s *SupabaseStore) SaveRiskAlert(a *models.RiskAlert) error {
	payload := map[string]interface{}{
		"workspace_id": a.WorkspaceID,
		"task_id":      a.TaskID,
		"level":        a.Level,
		"message":      a.Message,
		"is_resolved":  false,
	}
	if a.AssessmentID != "" {
		payload["assessment_id"] = a.AssessmentID
	}
	return s.insertOne("risk_alerts", payload, a)
}

func (s *SupabaseStore) ListRiskAlerts(workspaceID string, unresolvedOnly bool) ([]models.RiskAlert, error) {
	endpoint := "/risk_alerts?" + eq("workspace_id", workspaceID)
	if unresolvedOnly {
		endpoint += "&is_resolved=eq.false"
	}
	endpoint += "&select=*&order=created_at.desc"

	data, err := s.makeRequest("GET", endpoint, nil)
	if err != nil {
		return nil, err
	}
	var list []models.RiskAlert
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to decode risk alerts: %w", err)
	}
	return list, nil
}

func (s *SupabaseStore) ResolveRiskAlert(id string) error {
	return s.patchRows("risk_alerts", eq("id", id), map[string]interface{}{"is_resolved": true})
}

func (s *SupabaseStore) SaveDelayRiskPattern(p *models.DelayRiskPattern) error {
	payload := map[string]interface{}{
		"workspace_id": p.WorkspaceID,
		"pattern":      p.Pattern,
		"occurrences":  p.Occurrences,
		"model":        p.Model,
	}
	return s.insertOne("delay_risk_patterns", payload, p)
}

func (s *SupabaseStore) ListDelayRiskPatterns(workspaceID string) ([]models.DelayRiskPattern, error) {
	data, err := s.makeRequest("GET", "/delay_risk_patterns?"+eq("workspace_id", workspaceID)+"&select=*&order=created_at.desc", nil)
	if err != nil {
		return nil, err
	}
	var list []models.DelayRiskPattern
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to decode delay patterns: %w", err)
	}
	return list, nil
}

func (s *SupabaseStore) SaveTaskEstimation(e *models.TaskEstimation) error {
	payload := map[string]interface{}{
		"workspace_id":    e.WorkspaceID,
		"estimated_hours": e.EstimatedHours,
		"confidence":      e.Confidence,
		"rationale":       e.Rationale,
		"model":           e.Model,
		"fallback":        e.Fallback,
	}
	if e.TaskID != "" {
		payload["task_id"] = e.TaskID
	}
	return s.insertOne("task_estimations", payload, e)
}

func (s *SupabaseStore) ListTaskEstimations(workspaceID string) ([]models.TaskEstimation, error) {
	data, err := s.makeRequest("GET", "/task_estimations?"+eq("workspace_id", workspaceID)+"&select=*&order=created_at.desc", nil)
	if err != nil {
		return nil, err
	}
	var list []models.TaskEstimation
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to decode estimations: %w", err)
	}
	return list, nil
}

// ================= Dashboard widgets =================

func (s *SupabaseStore) CreateWidget(wdg *models.DashboardWidget) error {
	payload := map[string]interface{}{
		"user_id":      wdg.UserID,
		"workspace_id": wdg.WorkspaceID,
		"widget_type":  wdg.WidgetType,
		"title":        wdg.Title,
		"position":     wdg.Position,
		"config":       wdg.Config,
	}
	return s.insertOne("dashboard_widgets", payload, wdg)
}

func (s *SupabaseStore) ListWidgets(userID, workspaceID string) ([]models.DashboardWidget, error) {
	endpoint := "/dashboard_widgets?" + eq("user_id", userID) + "&" + eq("workspace_id", workspaceID) +
		"&select=*&order=position.asc"
	data, err := s.makeRequest("GET", endpoint, nil)
	if err != nil {
		return nil, err
	}
	var list []models.DashboardWidget
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to decode widgets: %w", err)
	}
	return list, nil
}

func (s *SupabaseStore) UpdateWidget(wdg *models.DashboardWidget) error {
	return s.patchRows("dashboard_widgets", eq("id", wdg.ID)+"&"+eq("user_id", wdg.UserID),
		map[string]interface{}{
			"widget_type": wdg.WidgetType,
			"title":       wdg.Title,
			"position":    wdg.Position,
			"config":      wdg.Config,
			"updated_at":  time.Now().UTC().Format(time.RFC3339),
		})
}

func (s *SupabaseStore) DeleteWidget(id, userID string) error {
	return s.deleteRows("dashboard_widgets", eq("id", id)+"&"+eq("user_id", userID))
}

// ================= Preferences =================

func (s *SupabaseStore) GetUserPreferences(userID string) (*models.UserPreferences, error) {
	var p models.UserPreferences
	if err := s.getOne("user_preferences", eq("user_id", userID), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SupabaseStore) SaveUserPreferences(p *models.UserPreferences) error {
	payload := map[string]interface{}{
		"user_id":     p.UserID,
		"preferences": p.Preferences,
		"updated_at":  time.Now().UTC().Format(time.RFC3339),
	}
	data, err := s.makeRequest("POST", "/user_preferences?on_conflict=user_id", payload)
	if err != nil {
		// Upsert needs the merge-duplicates preference; retry as PATCH.
		return s.patchRows("user_preferences", eq("user_id", p.UserID), payload)
	}
	return decodeFirst(data, p)
}

// ================= Workload =================

func (s *SupabaseStore) ListWorkloadMetrics(workspaceID string) ([]models.WorkloadMetric, error) {
	data, err := s.makeRequest("GET", "/workload_metrics?"+eq("workspace_id", workspaceID)+"&select=*&order=period_start.desc", nil)
	if err != nil {
		return nil, err
	}
	var list []models.WorkloadMetric
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to decode workload metrics: %w", err)
	}
	return list, nil
}

func (s *SupabaseStore) ListWorkloadForecasts(workspaceID string) ([]models.WorkloadForecast, error) {
	data, err := s.makeRequest("GET", "/workload_forecasts?"+eq("workspace_id", workspaceID)+"&select=*&order=period_start.asc", nil)
	if err != nil {
		return nil, err
	}
	var list []models.WorkloadForecast
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to decode workload forecasts: %w", err)
	}
	return list, nil
}

// ================= Lifecycle =================

func (s *SupabaseStore) HealthCheck() error {
	_, err := s.makeRequest("GET", "/workspaces?select=id&limit=1", nil)
	if IsNotMigrated(err) {
		return nil
	}
	return err
}

func (s *SupabaseStore) Close() error {
	s.httpClient.CloseIdleConnections()
	return nil
}
