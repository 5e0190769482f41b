package models

import "time"

type RecurrenceType string

const (
	RecurDaily   RecurrenceType = "daily"
	RecurWeekly  RecurrenceType = "weekly"
	RecurMonthly RecurrenceType = "monthly"
	RecurYearly  RecurrenceType = "yearly"
)

// ValidRecurrenceType reports whether t is a known recurrence kind.
func ValidRecurrenceType(t RecurrenceType) bool {
	switch t {
	case RecurDaily, RecurWeekly, RecurMonthly, RecurYearly:
		return true
	}
	return false
}

// RecurringTaskPattern generates concrete Task rows on a schedule.
// DaysOfWeek uses time.Weekday numbering (Sunday=0) and only applies to
// weekly patterns. DayOfMonth/UseLastDay only apply to monthly ones.
type RecurringTaskPattern struct {
	ID             string         `json:"id" db:"id"`
	WorkspaceID    string         `json:"workspace_id" db:"workspace_id"`
	ProjectID      string         `json:"project_id,omitempty" db:"project_id"`
	CreatedBy      string         `json:"created_by" db:"created_by"`
	RecurrenceType RecurrenceType `json:"recurrence_type" db:"recurrence_type"`
	Interval       int            `json:"interval" db:"interval"`
	DaysOfWeek     []int          `json:"days_of_week,omitempty" db:"days_of_week"`
	DayOfMonth     int            `json:"day_of_month,omitempty" db:"day_of_month"`
	UseLastDay     bool           `json:"use_last_day" db:"use_last_day"`
	StartDate      time.Time      `json:"start_date" db:"start_date"`
	EndDate        *time.Time     `json:"end_date,omitempty" db:"end_date"`
	MaxOccurrences int            `json:"max_occurrences,omitempty" db:"max_occurrences"`
	// Template fields copied onto every generated task.
	TitleTemplate string       `json:"title_template" db:"title_template"`
	Description   string       `json:"description,omitempty" db:"description"`
	Priority      TaskPriority `json:"priority" db:"priority"`
	AssigneeID    string       `json:"assignee_id,omitempty" db:"assignee_id"`
	IsActive      bool         `json:"is_active" db:"is_active"`
	LastGenerated *time.Time   `json:"last_generated,omitempty" db:"last_generated"`
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at" db:"updated_at"`
}
