package ai

import (
	"fmt"
	"strings"
	"time"

	"taskboard-backend/pkg/models"
)

// riskPrompt templates the workspace task list into a cheat-sheet the
// model scores. The reply contract is restated inline because the model
// is the only consumer.
func riskPrompt(tasks []models.Task, now time.Time) string {
	var b strings.Builder
	b.WriteString("You are a project delivery analyst. Score each task's risk of delay.\n")
	b.WriteString("Reply with a single JSON object, no prose, shaped exactly like:\n")
	b.WriteString(`{"assessments":[{"task_id":"...","risk_score":0.0,"factors":["..."],"summary":"..."}],"patterns":[{"pattern":"...","occurrences":1}]}` + "\n")
	b.WriteString("risk_score is between 0 and 1.\n\nTasks:\n")

	for _, t := range tasks {
		b.WriteString(fmt.Sprintf("- id=%s title=%q status=%s priority=%s blocked=%v",
			t.ID, t.Title, t.Status, t.Priority, t.IsBlocked))
		if t.DueDate != nil {
			days := int(t.DueDate.Sub(now).Hours() / 24)
			b.WriteString(fmt.Sprintf(" due_in_days=%d", days))
		}
		if t.AssigneeID == "" {
			b.WriteString(" unassigned")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// estimationPrompt templates a task plus the workspace's completion
// history into an effort-estimation request.
func estimationPrompt(title, description string, priority models.TaskPriority, history []models.TaskCompletionHistory) string {
	var b strings.Builder
	b.WriteString("You are an engineering estimation assistant. Estimate the effort for one task.\n")
	b.WriteString("Reply with a single JSON object, no prose, shaped exactly like:\n")
	b.WriteString(`{"estimated_hours":0.0,"confidence":0.0,"rationale":"..."}` + "\n")
	b.WriteString("confidence is between 0 and 1.\n\n")
	b.WriteString(fmt.Sprintf("Task: title=%q priority=%s\n", title, priority))
	if description != "" {
		b.WriteString("Description: " + description + "\n")
	}

	if len(history) > 0 {
		b.WriteString("\nRecent completions in this workspace (estimated vs actual hours):\n")
		for i, h := range history {
			if i >= 20 {
				break
			}
			est, act := "?", "?"
			if h.EstimatedHours != nil {
				est = fmt.Sprintf("%.1f", *h.EstimatedHours)
			}
			if h.ActualHours != nil {
				act = fmt.Sprintf("%.1f", *h.ActualHours)
			}
			b.WriteString(fmt.Sprintf("- estimated=%s actual=%s late=%v\n", est, act, h.WasLate))
		}
	}
	return b.String()
}
