package models

import (
	"encoding/json"
	"time"
)

// DashboardWidget is one tile on a user's dashboard. Config is an
// opaque JSON blob owned by the client.
type DashboardWidget struct {
	ID          string          `json:"id" db:"id"`
	UserID      string          `json:"user_id" db:"user_id"`
	WorkspaceID string          `json:"workspace_id" db:"workspace_id"`
	WidgetType  string          `json:"widget_type" db:"widget_type"`
	Title       string          `json:"title,omitempty" db:"title"`
	Position    int             `json:"position" db:"position"`
	Config      json.RawMessage `json:"config,omitempty" db:"config"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// UserPreferences is a per-user settings blob (theme, notification
// toggles, board defaults). The server stores it verbatim.
type UserPreferences struct {
	UserID      string          `json:"user_id" db:"user_id"`
	Preferences json.RawMessage `json:"preferences" db:"preferences"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// WorkloadMetric is a per-member aggregate for a time window.
type WorkloadMetric struct {
	ID             string    `json:"id" db:"id"`
	WorkspaceID    string    `json:"workspace_id" db:"workspace_id"`
	UserID         string    `json:"user_id" db:"user_id"`
	PeriodStart    time.Time `json:"period_start" db:"period_start"`
	PeriodEnd      time.Time `json:"period_end" db:"period_end"`
	OpenTasks      int       `json:"open_tasks" db:"open_tasks"`
	CompletedTasks int       `json:"completed_tasks" db:"completed_tasks"`
	OverdueTasks   int       `json:"overdue_tasks" db:"overdue_tasks"`
	TotalHours     float64   `json:"total_hours" db:"total_hours"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// WorkloadForecast is a projected workload row for an upcoming window.
type WorkloadForecast struct {
	ID            string    `json:"id" db:"id"`
	WorkspaceID   string    `json:"workspace_id" db:"workspace_id"`
	UserID        string    `json:"user_id" db:"user_id"`
	PeriodStart   time.Time `json:"period_start" db:"period_start"`
	PeriodEnd     time.Time `json:"period_end" db:"period_end"`
	ForecastHours float64   `json:"forecast_hours" db:"forecast_hours"`
	Confidence    float64   `json:"confidence" db:"confidence"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
