package ai

import (
	"fmt"
	"time"

	"taskboard-backend/pkg/models"
)

// fallbackConfidence marks deterministic results as less trustworthy
// than model output.
const fallbackConfidence = 0.3

// fallbackRisk scores a task with a fixed linear formula when the model
// is unreachable or unparseable: 0.4 for blocked, 0.3 for high or
// urgent priority, 0.5 for overdue, 0.2 for unassigned, clamped to 1.
func fallbackRisk(t *models.Task, now time.Time) (float64, []string) {
	score := 0.0
	var factors []string

	if t.IsBlocked {
		score += 0.4
		factors = append(factors, "task is blocked")
	}
	if t.Priority == models.PriorityHigh || t.Priority == models.PriorityUrgent {
		score += 0.3
		factors = append(factors, fmt.Sprintf("%s priority", t.Priority))
	}
	if t.IsOverdue(now) {
		score += 0.5
		factors = append(factors, "past due date")
	}
	if t.AssigneeID == "" {
		score += 0.2
		factors = append(factors, "no assignee")
	}

	return clamp01(score), factors
}

// fallbackEstimation derives hours from a priority baseline scaled by
// description length, blended toward the workspace's historical mean of
// actual hours when one exists.
func fallbackEstimation(title, description string, priority models.TaskPriority, history []models.TaskCompletionHistory) estimationReply {
	base := 4.0
	switch priority {
	case models.PriorityLow:
		base = 2.0
	case models.PriorityHigh:
		base = 8.0
	case models.PriorityUrgent:
		base = 12.0
	}

	// Longer descriptions suggest larger scope.
	size := len(title) + len(description)
	switch {
	case size > 1000:
		base *= 2.0
	case size > 300:
		base *= 1.5
	}

	if mean, ok := meanActualHours(history); ok {
		base = (base + mean) / 2
	}

	return estimationReply{
		EstimatedHours: base,
		Confidence:     fallbackConfidence,
		Rationale:      "Deterministic estimate from priority, description size and completion history.",
	}
}

func meanActualHours(history []models.TaskCompletionHistory) (float64, bool) {
	sum, n := 0.0, 0
	for _, h := range history {
		if h.ActualHours != nil && *h.ActualHours > 0 {
			sum += *h.ActualHours
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
