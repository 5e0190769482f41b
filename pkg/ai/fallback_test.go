package ai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard-backend/pkg/models"
)

func TestFallbackRiskClampsToOne(t *testing.T) {
	// Blocked (0.4) + high priority (0.3) + overdue (0.5) exceeds 1 and
	// must clamp.
	now := time.Now()
	due := now.Add(-48 * time.Hour)
	task := &models.Task{
		ID:         "t1",
		Title:      "ship it",
		Status:     models.StatusInProgress,
		Priority:   models.PriorityHigh,
		IsBlocked:  true,
		DueDate:    &due,
		AssigneeID: "u1",
	}

	score, factors := fallbackRisk(task, now)
	assert.Equal(t, 1.0, score)
	assert.Len(t, factors, 3)
	assert.Equal(t, models.RiskCritical, models.RiskLevelForScore(score))
}

func TestFallbackRiskComponents(t *testing.T) {
	now := time.Now()

	calm := &models.Task{Status: models.StatusTodo, Priority: models.PriorityLow, AssigneeID: "u1"}
	score, factors := fallbackRisk(calm, now)
	assert.Equal(t, 0.0, score)
	assert.Empty(t, factors)

	blocked := &models.Task{Status: models.StatusTodo, Priority: models.PriorityLow, AssigneeID: "u1", IsBlocked: true}
	score, _ = fallbackRisk(blocked, now)
	assert.InDelta(t, 0.4, score, 1e-9)

	unassigned := &models.Task{Status: models.StatusTodo, Priority: models.PriorityLow}
	score, _ = fallbackRisk(unassigned, now)
	assert.InDelta(t, 0.2, score, 1e-9)

	// Done tasks are never overdue.
	due := now.Add(-time.Hour)
	done := &models.Task{Status: models.StatusDone, Priority: models.PriorityLow, AssigneeID: "u1", DueDate: &due}
	score, _ = fallbackRisk(done, now)
	assert.Equal(t, 0.0, score)
}

func TestFallbackEstimationPriorityBaselines(t *testing.T) {
	low := fallbackEstimation("t", "", models.PriorityLow, nil)
	med := fallbackEstimation("t", "", models.PriorityMedium, nil)
	high := fallbackEstimation("t", "", models.PriorityHigh, nil)
	urgent := fallbackEstimation("t", "", models.PriorityUrgent, nil)

	assert.Less(t, low.EstimatedHours, med.EstimatedHours)
	assert.Less(t, med.EstimatedHours, high.EstimatedHours)
	assert.Less(t, high.EstimatedHours, urgent.EstimatedHours)

	for _, r := range []estimationReply{low, med, high, urgent} {
		assert.Equal(t, fallbackConfidence, r.Confidence)
		assert.NotEmpty(t, r.Rationale)
	}
}

func TestFallbackEstimationScalesWithDescription(t *testing.T) {
	short := fallbackEstimation("t", "small fix", models.PriorityMedium, nil)
	long := fallbackEstimation("t", string(make([]byte, 1200)), models.PriorityMedium, nil)
	assert.Greater(t, long.EstimatedHours, short.EstimatedHours)
}

func TestFallbackEstimationBlendsHistory(t *testing.T) {
	hours := func(v float64) *float64 { return &v }
	history := []models.TaskCompletionHistory{
		{ActualHours: hours(10)},
		{ActualHours: hours(14)},
		{ActualHours: nil},
	}

	// Medium baseline is 4h; history mean 12h pulls the blend to 8h.
	r := fallbackEstimation("t", "", models.PriorityMedium, history)
	require.InDelta(t, 8.0, r.EstimatedHours, 1e-9)
}
