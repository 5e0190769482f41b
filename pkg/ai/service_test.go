package ai

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard-backend/pkg/database"
	"taskboard-backend/pkg/models"
)

// stubStore overrides the store methods the service touches; anything
// else panics via the embedded nil interface.
type stubStore struct {
	database.Store

	tasks       []models.Task
	history     []models.TaskCompletionHistory
	assessments []models.RiskAssessment
	alerts      []models.RiskAlert
	patterns    []models.DelayRiskPattern
	estimations []models.TaskEstimation
}

func (s *stubStore) ListTasks(f models.TaskFilter) ([]models.Task, error) {
	return s.tasks, nil
}

func (s *stubStore) GetTask(id string) (*models.Task, error) {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return &s.tasks[i], nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *stubStore) ListCompletionHistory(workspaceID string, limit int) ([]models.TaskCompletionHistory, error) {
	return s.history, nil
}

func (s *stubStore) SaveRiskAssessment(a *models.RiskAssessment) error {
	a.ID = fmt.Sprintf("assessment-%d", len(s.assessments)+1)
	s.assessments = append(s.assessments, *a)
	return nil
}

func (s *stubStore) SaveRiskAlert(a *models.RiskAlert) error {
	a.ID = fmt.Sprintf("alert-%d", len(s.alerts)+1)
	s.alerts = append(s.alerts, *a)
	return nil
}

func (s *stubStore) SaveDelayRiskPattern(p *models.DelayRiskPattern) error {
	s.patterns = append(s.patterns, *p)
	return nil
}

func (s *stubStore) SaveTaskEstimation(e *models.TaskEstimation) error {
	e.ID = fmt.Sprintf("estimation-%d", len(s.estimations)+1)
	s.estimations = append(s.estimations, *e)
	return nil
}

// stubGenerator returns a canned reply or error.
type stubGenerator struct {
	reply string
	err   error
}

func (g *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.reply, g.err
}

func (g *stubGenerator) Model() string { return "stub-model" }

func openTask(id string) models.Task {
	return models.Task{
		ID:          id,
		WorkspaceID: "ws-1",
		Title:       "task " + id,
		Status:      models.StatusTodo,
		Priority:    models.PriorityMedium,
		AssigneeID:  "u1",
	}
}

func TestAnalyzeWorkspaceRisksModelPath(t *testing.T) {
	store := &stubStore{tasks: []models.Task{openTask("t1"), openTask("t2")}}
	gen := &stubGenerator{reply: `{"assessments":[
		{"task_id":"t1","risk_score":0.9,"factors":["blocked"],"summary":"critical"},
		{"task_id":"t2","risk_score":0.1,"summary":"fine"}
	],"patterns":[{"pattern":"reviews stall on Fridays","occurrences":2}]}`}

	svc := NewService(store, gen)
	result, err := svc.AnalyzeWorkspaceRisks(context.Background(), "ws-1")
	require.NoError(t, err)

	assert.False(t, result.Fallback)
	assert.Equal(t, "stub-model", result.Model)
	require.Len(t, result.Assessments, 2)

	high := result.Assessments[0]
	assert.Equal(t, "t1", high.TaskID)
	assert.Equal(t, models.RiskCritical, high.RiskLevel)
	assert.Equal(t, modelConfidence, high.Confidence)
	assert.False(t, high.Fallback)

	// The critical assessment raised an alert; the low one did not.
	require.Len(t, result.Alerts, 1)
	assert.Equal(t, "t1", result.Alerts[0].TaskID)

	assert.Len(t, store.assessments, 2)
	require.Len(t, store.patterns, 1)
	assert.Equal(t, "reviews stall on Fridays", store.patterns[0].Pattern)
}

func TestAnalyzeWorkspaceRisksFallbackOnModelError(t *testing.T) {
	due := time.Now().Add(-24 * time.Hour)
	blocked := openTask("t1")
	blocked.IsBlocked = true
	blocked.Priority = models.PriorityHigh
	blocked.DueDate = &due

	store := &stubStore{tasks: []models.Task{blocked}}
	gen := &stubGenerator{err: fmt.Errorf("connection refused")}

	svc := NewService(store, gen)
	result, err := svc.AnalyzeWorkspaceRisks(context.Background(), "ws-1")
	require.NoError(t, err)

	assert.True(t, result.Fallback)
	require.Len(t, result.Assessments, 1)
	a := result.Assessments[0]
	assert.True(t, a.Fallback)
	assert.Equal(t, 1.0, a.RiskScore)
	assert.Equal(t, fallbackConfidence, a.Confidence)
	assert.Len(t, store.assessments, 1)
}

func TestAnalyzeWorkspaceRisksFallbackOnUnparseableReply(t *testing.T) {
	store := &stubStore{tasks: []models.Task{openTask("t1")}}
	gen := &stubGenerator{reply: "I cannot answer in JSON, sorry."}

	svc := NewService(store, gen)
	result, err := svc.AnalyzeWorkspaceRisks(context.Background(), "ws-1")
	require.NoError(t, err)
	assert.True(t, result.Fallback)
	require.Len(t, result.Assessments, 1)
	assert.True(t, result.Assessments[0].Fallback)
}

func TestAnalyzeWorkspaceRisksSkipsDoneTasks(t *testing.T) {
	done := openTask("t1")
	done.Status = models.StatusDone
	store := &stubStore{tasks: []models.Task{done}}

	svc := NewService(store, &stubGenerator{reply: `{"assessments":[]}`})
	result, err := svc.AnalyzeWorkspaceRisks(context.Background(), "ws-1")
	require.NoError(t, err)
	assert.Empty(t, result.Assessments)
	assert.Empty(t, store.assessments)
}

func TestAnalyzeWorkspaceRisksScoresTasksTheModelSkipped(t *testing.T) {
	store := &stubStore{tasks: []models.Task{openTask("t1"), openTask("t2")}}
	gen := &stubGenerator{reply: `{"assessments":[{"task_id":"t1","risk_score":0.5}]}`}

	svc := NewService(store, gen)
	result, err := svc.AnalyzeWorkspaceRisks(context.Background(), "ws-1")
	require.NoError(t, err)
	require.Len(t, result.Assessments, 2)

	assert.False(t, result.Assessments[0].Fallback)
	assert.True(t, result.Assessments[1].Fallback)
}

func TestEstimateTaskModelPath(t *testing.T) {
	store := &stubStore{}
	gen := &stubGenerator{reply: `{"estimated_hours":6,"confidence":0.85,"rationale":"like the last three"}`}

	svc := NewService(store, gen)
	est, err := svc.EstimateTask(context.Background(), EstimateRequest{
		WorkspaceID: "ws-1",
		Title:       "implement exporter",
		Priority:    models.PriorityMedium,
	})
	require.NoError(t, err)
	assert.Equal(t, 6.0, est.EstimatedHours)
	assert.Equal(t, 0.85, est.Confidence)
	assert.Equal(t, "stub-model", est.Model)
	assert.False(t, est.Fallback)
	assert.Len(t, store.estimations, 1)
}

func TestEstimateTaskFallback(t *testing.T) {
	store := &stubStore{}
	gen := &stubGenerator{err: fmt.Errorf("timeout")}

	svc := NewService(store, gen)
	est, err := svc.EstimateTask(context.Background(), EstimateRequest{
		WorkspaceID: "ws-1",
		Title:       "small chore",
		Priority:    models.PriorityLow,
	})
	require.NoError(t, err)
	assert.True(t, est.Fallback)
	assert.Equal(t, fallbackConfidence, est.Confidence)
	assert.Greater(t, est.EstimatedHours, 0.0)
}

func TestEstimateTaskLoadsMetadataByID(t *testing.T) {
	task := openTask("t1")
	task.Priority = models.PriorityUrgent
	store := &stubStore{tasks: []models.Task{task}}

	svc := NewService(store, nil)
	est, err := svc.EstimateTask(context.Background(), EstimateRequest{
		WorkspaceID: "ws-1",
		TaskID:      "t1",
	})
	require.NoError(t, err)
	assert.True(t, est.Fallback)
	assert.Equal(t, "t1", est.TaskID)
	// Urgent baseline is the largest fallback estimate.
	assert.GreaterOrEqual(t, est.EstimatedHours, 12.0)
}
