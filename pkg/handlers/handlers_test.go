package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard-backend/pkg/ai"
	"taskboard-backend/pkg/config"
	"taskboard-backend/pkg/database"
	"taskboard-backend/pkg/middleware"
	"taskboard-backend/pkg/models"
	"taskboard-backend/pkg/realtime"
	"taskboard-backend/pkg/utils"
)

// fakeStore overrides the store methods the handlers touch; anything
// else panics via the embedded nil interface.
type fakeStore struct {
	database.Store

	workspace *models.Workspace
	members   []models.WorkspaceMember
	tasks     map[string]*models.Task
	comments  map[string]*models.Comment
	mentions  []models.Mention
	patterns  map[string]*models.RecurringTaskPattern
	history   []models.TaskCompletionHistory

	listTasksErr error
	nextID       int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		workspace: &models.Workspace{ID: "ws-1", Name: "Board", OwnerID: "owner-1"},
		members: []models.WorkspaceMember{
			{WorkspaceID: "ws-1", UserID: "owner-1", Role: models.RoleOwner, DisplayName: "Olive Owner"},
			{WorkspaceID: "ws-1", UserID: "member-1", Role: models.RoleMember, DisplayName: "Mia Member"},
			{WorkspaceID: "ws-1", UserID: "guest-1", Role: models.RoleGuest, DisplayName: "Gus Guest"},
		},
		tasks:    make(map[string]*models.Task),
		comments: make(map[string]*models.Comment),
		patterns: make(map[string]*models.RecurringTaskPattern),
	}
}

func (s *fakeStore) id(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s-%d", prefix, s.nextID)
}

func (s *fakeStore) GetWorkspace(id string) (*models.Workspace, error) {
	if s.workspace != nil && s.workspace.ID == id {
		ws := *s.workspace
		return &ws, nil
	}
	return nil, database.ErrNotFound
}

func (s *fakeStore) ListWorkspaceMembers(workspaceID string) ([]models.WorkspaceMember, error) {
	return s.members, nil
}

func (s *fakeStore) CreateTask(t *models.Task) error {
	t.ID = s.id("task")
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	cp := *t
	s.tasks[t.ID] = &cp
	return nil
}

func (s *fakeStore) GetTask(id string) (*models.Task, error) {
	if t, ok := s.tasks[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, database.ErrNotFound
}

func (s *fakeStore) ListTasks(f models.TaskFilter) ([]models.Task, error) {
	if s.listTasksErr != nil {
		return nil, s.listTasksErr
	}
	var out []models.Task
	for _, t := range s.tasks {
		if f.WorkspaceID != "" && t.WorkspaceID != f.WorkspaceID {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

func (s *fakeStore) UpdateTaskPartial(taskID string, patch map[string]interface{}) error {
	t, ok := s.tasks[taskID]
	if !ok {
		return database.ErrNotFound
	}
	for k, v := range patch {
		switch k {
		case "title":
			t.Title, _ = v.(string)
		case "status":
			if str, ok := v.(string); ok {
				t.Status = models.TaskStatus(str)
			}
		case "completed_at":
			if ts, ok := v.(time.Time); ok {
				t.CompletedAt = &ts
			} else {
				t.CompletedAt = nil
			}
		}
	}
	t.UpdatedAt = time.Now()
	return nil
}

func (s *fakeStore) DeleteTask(id string) error {
	if _, ok := s.tasks[id]; !ok {
		return database.ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

func (s *fakeStore) AppendCompletionHistory(h *models.TaskCompletionHistory) error {
	h.ID = s.id("hist")
	s.history = append(s.history, *h)
	return nil
}

func (s *fakeStore) ListCompletionHistory(workspaceID string, limit int) ([]models.TaskCompletionHistory, error) {
	return s.history, nil
}

func (s *fakeStore) CreateComment(c *models.Comment) error {
	c.ID = s.id("comment")
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	cp := *c
	s.comments[c.ID] = &cp
	return nil
}

func (s *fakeStore) GetComment(id string) (*models.Comment, error) {
	if c, ok := s.comments[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, database.ErrNotFound
}

func (s *fakeStore) UpdateCommentContent(id, content string) error {
	c, ok := s.comments[id]
	if !ok || c.IsDeleted {
		return database.ErrNotFound
	}
	c.Content = content
	now := time.Now()
	c.EditedAt = &now
	return nil
}

func (s *fakeStore) SoftDeleteComment(id string) error {
	c, ok := s.comments[id]
	if !ok {
		return database.ErrNotFound
	}
	c.IsDeleted = true
	c.Content = ""
	return nil
}

func (s *fakeStore) CreateMention(m *models.Mention) error {
	m.ID = s.id("mention")
	s.mentions = append(s.mentions, *m)
	return nil
}

func (s *fakeStore) ListMentionsForUser(workspaceID, userID string, unreadOnly bool) ([]models.Mention, error) {
	var out []models.Mention
	for _, m := range s.mentions {
		if m.WorkspaceID != workspaceID || m.MentionedUserID != userID {
			continue
		}
		if unreadOnly && m.IsRead {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *fakeStore) CreateRecurringPattern(p *models.RecurringTaskPattern) error {
	p.ID = s.id("pattern")
	cp := *p
	s.patterns[p.ID] = &cp
	return nil
}

func (s *fakeStore) GetRecurringPattern(id string) (*models.RecurringTaskPattern, error) {
	if p, ok := s.patterns[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, database.ErrNotFound
}

func (s *fakeStore) UpdateRecurringPattern(p *models.RecurringTaskPattern) error {
	if _, ok := s.patterns[p.ID]; !ok {
		return database.ErrNotFound
	}
	cp := *p
	s.patterns[p.ID] = &cp
	return nil
}

func (s *fakeStore) SaveTaskEstimation(e *models.TaskEstimation) error {
	e.ID = s.id("est")
	return nil
}

func testConfig() *config.Config {
	return &config.Config{Environment: "test", Port: "0", JWTSecret: "test-secret"}
}

func testUser(id string) *models.User {
	return &models.User{ID: id, Email: id + "@example.com"}
}

// authedRequest builds a request carrying the user identity and chi
// route params, the way the middleware stack would.
func authedRequest(method, target string, body interface{}, user *models.User, params map[string]string) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			panic(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")

	ctx := context.WithValue(req.Context(), middleware.UserContextKey, user)
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	return req.WithContext(ctx)
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) utils.APIResponse {
	t.Helper()
	var env utils.APIResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

func dataMap(t *testing.T, env utils.APIResponse) map[string]interface{} {
	t.Helper()
	m, ok := env.Data.(map[string]interface{})
	require.True(t, ok, "envelope data is not an object")
	return m
}

func TestTaskCreatePublishesInsert(t *testing.T) {
	store := newFakeStore()
	hub := realtime.NewHub()
	h := NewTasksHandler(testConfig(), store, hub)

	sub := hub.Subscribe(realtime.TasksTopic("ws-1"))
	defer sub.Close()

	req := authedRequest(http.MethodPost, "/api/workspaces/ws-1/tasks",
		map[string]interface{}{"title": "Ship the board"},
		testUser("member-1"), map[string]string{"id": "ws-1"})
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)

	task := dataMap(t, env)["task"].(map[string]interface{})
	assert.Equal(t, "Ship the board", task["title"])
	assert.Equal(t, "todo", task["status"])
	assert.Equal(t, "medium", task["priority"])
	assert.Equal(t, "member-1", task["reporter_id"])

	select {
	case ev := <-sub.C():
		assert.Equal(t, realtime.EventInsert, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("no realtime event published")
	}
}

func TestTaskCreateGuestForbidden(t *testing.T) {
	store := newFakeStore()
	h := NewTasksHandler(testConfig(), store, realtime.NewHub())

	req := authedRequest(http.MethodPost, "/api/workspaces/ws-1/tasks",
		map[string]interface{}{"title": "Nope"},
		testUser("guest-1"), map[string]string{"id": "ws-1"})
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, permissionDeniedMessage, env.Error.Message)
}

func TestTaskCreateNonMemberForbidden(t *testing.T) {
	store := newFakeStore()
	h := NewTasksHandler(testConfig(), store, realtime.NewHub())

	req := authedRequest(http.MethodPost, "/api/workspaces/ws-1/tasks",
		map[string]interface{}{"title": "Nope"},
		testUser("stranger-1"), map[string]string{"id": "ws-1"})
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestTaskCompleteStampsAndRecordsHistory(t *testing.T) {
	store := newFakeStore()
	h := NewTasksHandler(testConfig(), store, realtime.NewHub())

	due := time.Now().Add(-24 * time.Hour)
	task := &models.Task{WorkspaceID: "ws-1", Title: "Late one", Status: models.StatusInProgress, Priority: models.PriorityHigh, DueDate: &due}
	require.NoError(t, store.CreateTask(task))

	req := authedRequest(http.MethodPatch, "/api/tasks/"+task.ID,
		map[string]interface{}{"status": "done"},
		testUser("member-1"), map[string]string{"id": task.ID})
	rec := httptest.NewRecorder()
	h.Update(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	updated, err := store.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDone, updated.Status)
	assert.NotNil(t, updated.CompletedAt)

	require.Len(t, store.history, 1)
	assert.Equal(t, task.ID, store.history[0].TaskID)
	assert.True(t, store.history[0].WasLate)
}

func TestTaskReopenClearsCompletedAt(t *testing.T) {
	store := newFakeStore()
	h := NewTasksHandler(testConfig(), store, realtime.NewHub())

	now := time.Now()
	task := &models.Task{WorkspaceID: "ws-1", Title: "Done one", Status: models.StatusDone, Priority: models.PriorityLow, CompletedAt: &now}
	require.NoError(t, store.CreateTask(task))

	req := authedRequest(http.MethodPatch, "/api/tasks/"+task.ID,
		map[string]interface{}{"status": "todo"},
		testUser("member-1"), map[string]string{"id": task.ID})
	rec := httptest.NewRecorder()
	h.Update(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	updated, err := store.GetTask(task.ID)
	require.NoError(t, err)
	assert.Nil(t, updated.CompletedAt)
	assert.Empty(t, store.history)
}

func TestTaskListNotMigrated(t *testing.T) {
	store := newFakeStore()
	store.listTasksErr = fmt.Errorf("failed to list tasks: %w", database.ErrNotMigrated)
	h := NewTasksHandler(testConfig(), store, realtime.NewHub())

	req := authedRequest(http.MethodGet, "/api/workspaces/ws-1/tasks", nil,
		testUser("member-1"), map[string]string{"id": "ws-1"})
	rec := httptest.NewRecorder()
	h.List(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	data := dataMap(t, decodeEnvelope(t, rec))
	assert.Equal(t, false, data["available"])
}

func TestCommentCreateRecordsMentions(t *testing.T) {
	store := newFakeStore()
	hub := realtime.NewHub()
	h := NewCommentsHandler(testConfig(), store, hub)

	req := authedRequest(http.MethodPost, "/api/comments",
		map[string]interface{}{
			"workspace_id": "ws-1",
			"entity_type":  "task",
			"entity_id":    "task-9",
			"content":      "ping @Mia Member about this",
		},
		testUser("owner-1"), nil)
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, store.mentions, 1)
	assert.Equal(t, "member-1", store.mentions[0].MentionedUserID)
	assert.Equal(t, "owner-1", store.mentions[0].MentionerUserID)
	assert.False(t, store.mentions[0].IsRead)
}

func TestCommentReplyLevelComesFromParent(t *testing.T) {
	store := newFakeStore()
	h := NewCommentsHandler(testConfig(), store, realtime.NewHub())

	parent := &models.Comment{WorkspaceID: "ws-1", EntityType: models.EntityTask, EntityID: "task-9", AuthorID: "owner-1", Content: "root", ThreadLevel: 2}
	require.NoError(t, store.CreateComment(parent))

	req := authedRequest(http.MethodPost, "/api/comments",
		map[string]interface{}{
			"workspace_id":      "ws-1",
			"entity_type":       "task",
			"entity_id":         "task-9",
			"content":           "reply",
			"parent_comment_id": parent.ID,
		},
		testUser("member-1"), nil)
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	comment := dataMap(t, decodeEnvelope(t, rec))["comment"].(map[string]interface{})
	assert.Equal(t, float64(3), comment["thread_level"])
}

func TestCommentReplyEntityMismatchRejected(t *testing.T) {
	store := newFakeStore()
	h := NewCommentsHandler(testConfig(), store, realtime.NewHub())

	parent := &models.Comment{WorkspaceID: "ws-1", EntityType: models.EntityTask, EntityID: "task-9", AuthorID: "owner-1", Content: "root"}
	require.NoError(t, store.CreateComment(parent))

	req := authedRequest(http.MethodPost, "/api/comments",
		map[string]interface{}{
			"workspace_id":      "ws-1",
			"entity_type":       "task",
			"entity_id":         "task-OTHER",
			"content":           "reply",
			"parent_comment_id": parent.ID,
		},
		testUser("member-1"), nil)
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCommentUpdateAuthorOnly(t *testing.T) {
	store := newFakeStore()
	h := NewCommentsHandler(testConfig(), store, realtime.NewHub())

	comment := &models.Comment{WorkspaceID: "ws-1", EntityType: models.EntityTask, EntityID: "task-9", AuthorID: "owner-1", Content: "original"}
	require.NoError(t, store.CreateComment(comment))

	req := authedRequest(http.MethodPut, "/api/comments/"+comment.ID,
		map[string]interface{}{"content": "hijacked"},
		testUser("member-1"), map[string]string{"id": comment.ID})
	rec := httptest.NewRecorder()
	h.Update(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	kept, err := store.GetComment(comment.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", kept.Content)
}

func TestCommentSoftDeleteKeepsRow(t *testing.T) {
	store := newFakeStore()
	h := NewCommentsHandler(testConfig(), store, realtime.NewHub())

	comment := &models.Comment{WorkspaceID: "ws-1", EntityType: models.EntityTask, EntityID: "task-9", AuthorID: "member-1", Content: "bye"}
	require.NoError(t, store.CreateComment(comment))

	req := authedRequest(http.MethodDelete, "/api/comments/"+comment.ID, nil,
		testUser("member-1"), map[string]string{"id": comment.ID})
	rec := httptest.NewRecorder()
	h.Delete(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	kept, err := store.GetComment(comment.ID)
	require.NoError(t, err)
	assert.True(t, kept.IsDeleted)
	assert.Empty(t, kept.Content)
}

func TestMentionsListCountsUnread(t *testing.T) {
	store := newFakeStore()
	h := NewMentionsHandler(testConfig(), store)

	store.mentions = []models.Mention{
		{ID: "m1", WorkspaceID: "ws-1", MentionedUserID: "member-1", IsRead: false},
		{ID: "m2", WorkspaceID: "ws-1", MentionedUserID: "member-1", IsRead: true},
		{ID: "m3", WorkspaceID: "ws-1", MentionedUserID: "owner-1", IsRead: false},
	}

	req := authedRequest(http.MethodGet, "/api/workspaces/ws-1/mentions", nil,
		testUser("member-1"), map[string]string{"id": "ws-1"})
	rec := httptest.NewRecorder()
	h.List(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	data := dataMap(t, decodeEnvelope(t, rec))
	assert.Equal(t, float64(1), data["unread"])
	assert.Len(t, data["mentions"], 2)
}

func TestRecurringGenerateCreatesTasksAndAdvancesWatermark(t *testing.T) {
	store := newFakeStore()
	hub := realtime.NewHub()
	h := NewRecurringHandler(testConfig(), store, hub)

	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	pattern := &models.RecurringTaskPattern{
		WorkspaceID:    "ws-1",
		CreatedBy:      "owner-1",
		RecurrenceType: models.RecurDaily,
		Interval:       1,
		StartDate:      start,
		TitleTemplate:  "Standup",
		Priority:       models.PriorityMedium,
		IsActive:       true,
	}
	require.NoError(t, store.CreateRecurringPattern(pattern))

	until := start.AddDate(0, 0, 4).Format(time.RFC3339)
	req := authedRequest(http.MethodPost, "/api/recurring-patterns/"+pattern.ID+"/generate?until="+until, nil,
		testUser("owner-1"), map[string]string{"id": pattern.ID})
	rec := httptest.NewRecorder()
	h.Generate(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	data := dataMap(t, decodeEnvelope(t, rec))
	assert.Equal(t, float64(5), data["generated"])
	assert.Len(t, store.tasks, 5)

	saved, err := store.GetRecurringPattern(pattern.ID)
	require.NoError(t, err)
	require.NotNil(t, saved.LastGenerated)
	assert.Equal(t, start.AddDate(0, 0, 4), saved.LastGenerated.UTC())

	// A second run with the same cutoff is a no-op.
	rec = httptest.NewRecorder()
	req = authedRequest(http.MethodPost, "/api/recurring-patterns/"+pattern.ID+"/generate?until="+until, nil,
		testUser("owner-1"), map[string]string{"id": pattern.ID})
	h.Generate(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, store.tasks, 5)
}

func TestRecurringCreateMemberForbidden(t *testing.T) {
	store := newFakeStore()
	h := NewRecurringHandler(testConfig(), store, realtime.NewHub())

	req := authedRequest(http.MethodPost, "/api/workspaces/ws-1/recurring-patterns",
		map[string]interface{}{
			"recurrence_type": "daily",
			"title_template":  "Standup",
			"start_date":      time.Now().Format(time.RFC3339),
		},
		testUser("member-1"), map[string]string{"id": "ws-1"})
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAIEstimateValidatesInput(t *testing.T) {
	store := newFakeStore()
	service := ai.NewService(store, nil)
	h := NewAIHandler(testConfig(), store, service)

	req := authedRequest(http.MethodPost, "/api/workspaces/ws-1/ai/estimate",
		map[string]interface{}{}, testUser("owner-1"), map[string]string{"id": "ws-1"})
	rec := httptest.NewRecorder()
	h.Estimate(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAIEstimateFallbackWithoutModel(t *testing.T) {
	store := newFakeStore()
	service := ai.NewService(store, nil)
	h := NewAIHandler(testConfig(), store, service)

	req := authedRequest(http.MethodPost, "/api/workspaces/ws-1/ai/estimate",
		map[string]interface{}{"title": "Write release notes", "priority": "low"},
		testUser("owner-1"), map[string]string{"id": "ws-1"})
	rec := httptest.NewRecorder()
	h.Estimate(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	est := dataMap(t, decodeEnvelope(t, rec))["estimation"].(map[string]interface{})
	assert.Equal(t, true, est["fallback"])
	assert.Greater(t, est["estimated_hours"].(float64), 0.0)
}

func TestAIAnalyzeGuestForbidden(t *testing.T) {
	store := newFakeStore()
	service := ai.NewService(store, nil)
	h := NewAIHandler(testConfig(), store, service)

	req := authedRequest(http.MethodPost, "/api/workspaces/ws-1/ai/analyze-risks", nil,
		testUser("guest-1"), map[string]string{"id": "ws-1"})
	rec := httptest.NewRecorder()
	h.AnalyzeRisks(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
