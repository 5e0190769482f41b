package models

import "time"

// RiskLevel buckets a risk score for display.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// RiskLevelForScore buckets score (0..1) into a level.
func RiskLevelForScore(score float64) RiskLevel {
	switch {
	case score >= 0.85:
		return RiskCritical
	case score >= 0.6:
		return RiskHigh
	case score >= 0.3:
		return RiskMedium
	default:
		return RiskLow
	}
}

// RiskAssessment is the per-task output of the delay-risk analysis,
// stored verbatim. Fallback rows carry Fallback=true and a lower
// confidence.
type RiskAssessment struct {
	ID          string    `json:"id" db:"id"`
	TaskID      string    `json:"task_id" db:"task_id"`
	WorkspaceID string    `json:"workspace_id" db:"workspace_id"`
	RiskScore   float64   `json:"risk_score" db:"risk_score"`
	RiskLevel   RiskLevel `json:"risk_level" db:"risk_level"`
	Factors     []string  `json:"factors,omitempty" db:"factors"`
	Summary     string    `json:"summary,omitempty" db:"summary"`
	Model       string    `json:"model,omitempty" db:"model"`
	Fallback    bool      `json:"fallback" db:"fallback"`
	Confidence  float64   `json:"confidence" db:"confidence"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// RiskAlert is a workspace-level alert raised when an assessment
// crosses the high-risk threshold.
type RiskAlert struct {
	ID           string    `json:"id" db:"id"`
	WorkspaceID  string    `json:"workspace_id" db:"workspace_id"`
	TaskID       string    `json:"task_id" db:"task_id"`
	AssessmentID string    `json:"assessment_id,omitempty" db:"assessment_id"`
	Level        RiskLevel `json:"level" db:"level"`
	Message      string    `json:"message" db:"message"`
	IsResolved   bool      `json:"is_resolved" db:"is_resolved"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// DelayRiskPattern is a recurring cause of delay the analysis noticed
// across tasks (e.g. "tasks assigned to X slip when blocked").
type DelayRiskPattern struct {
	ID          string    `json:"id" db:"id"`
	WorkspaceID string    `json:"workspace_id" db:"workspace_id"`
	Pattern     string    `json:"pattern" db:"pattern"`
	Occurrences int       `json:"occurrences" db:"occurrences"`
	Model       string    `json:"model,omitempty" db:"model"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// TaskEstimation is the output of the estimation function.
type TaskEstimation struct {
	ID             string    `json:"id" db:"id"`
	TaskID         string    `json:"task_id,omitempty" db:"task_id"`
	WorkspaceID    string    `json:"workspace_id" db:"workspace_id"`
	EstimatedHours float64   `json:"estimated_hours" db:"estimated_hours"`
	Confidence     float64   `json:"confidence" db:"confidence"`
	Rationale      string    `json:"rationale,omitempty" db:"rationale"`
	Model          string    `json:"model,omitempty" db:"model"`
	Fallback       bool      `json:"fallback" db:"fallback"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
