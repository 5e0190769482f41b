package models

import "time"

// TaskStatus is the board column a task sits in. Transitions are
// suggested by the UI, not enforced here.
type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in-progress"
	StatusDone       TaskStatus = "done"
)

// ValidTaskStatus reports whether s is a known board status.
func ValidTaskStatus(s TaskStatus) bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

// ValidTaskPriority reports whether p is a known priority.
func ValidTaskPriority(p TaskPriority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Task is a single work item inside a workspace.
type Task struct {
	ID                 string       `json:"id" db:"id"`
	WorkspaceID        string       `json:"workspace_id" db:"workspace_id"`
	ProjectID          string       `json:"project_id,omitempty" db:"project_id"`
	Title              string       `json:"title" db:"title"`
	Description        string       `json:"description,omitempty" db:"description"`
	Status             TaskStatus   `json:"status" db:"status"`
	Priority           TaskPriority `json:"priority" db:"priority"`
	AssigneeID         string       `json:"assignee_id,omitempty" db:"assignee_id"`
	ReporterID         string       `json:"reporter_id,omitempty" db:"reporter_id"`
	DueDate            *time.Time   `json:"due_date,omitempty" db:"due_date"`
	IsBlocked          bool         `json:"is_blocked" db:"is_blocked"`
	EstimatedHours     *float64     `json:"estimated_hours,omitempty" db:"estimated_hours"`
	ActualHours        *float64     `json:"actual_hours,omitempty" db:"actual_hours"`
	Position           int          `json:"position" db:"position"`
	RecurringPatternID string       `json:"recurring_pattern_id,omitempty" db:"recurring_pattern_id"`
	CompletedAt        *time.Time   `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt          time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at" db:"updated_at"`
}

// IsOverdue reports whether the task has a due date in the past and is
// not done.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now) && t.Status != StatusDone
}

// TaskFilter narrows task listings. Zero values mean "no filter".
type TaskFilter struct {
	WorkspaceID string
	ProjectID   string
	Status      TaskStatus
	AssigneeID  string
	DueBefore   *time.Time
	BlockedOnly bool
}

// TaskCompletionHistory records how long a finished task actually took,
// feeding the estimation fallback.
type TaskCompletionHistory struct {
	ID             string     `json:"id" db:"id"`
	TaskID         string     `json:"task_id" db:"task_id"`
	WorkspaceID    string     `json:"workspace_id" db:"workspace_id"`
	UserID         string     `json:"user_id,omitempty" db:"user_id"`
	EstimatedHours *float64   `json:"estimated_hours,omitempty" db:"estimated_hours"`
	ActualHours    *float64   `json:"actual_hours,omitempty" db:"actual_hours"`
	DueDate        *time.Time `json:"due_date,omitempty" db:"due_date"`
	CompletedAt    time.Time  `json:"completed_at" db:"completed_at"`
	WasLate        bool       `json:"was_late" db:"was_late"`
}
