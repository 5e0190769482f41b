package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"taskboard-backend/pkg/database"
	"taskboard-backend/pkg/models"
)

// modelConfidence is attached to results the model produced itself.
const modelConfidence = 0.8

// Service runs the risk-analysis and estimation flows: fetch rows,
// template a prompt, call the model, parse with fallback, persist.
// Nothing is retried; a failed model call substitutes the deterministic
// formula and marks the result accordingly.
type Service struct {
	store database.Store
	gen   Generator
	now   func() time.Time
}

// NewService wires the service. gen may be nil, which forces the
// fallback path (useful when no API key is configured).
func NewService(store database.Store, gen Generator) *Service {
	return &Service{store: store, gen: gen, now: time.Now}
}

// RiskAnalysis is the aggregate result for one workspace.
type RiskAnalysis struct {
	Assessments []models.RiskAssessment   `json:"assessments"`
	Alerts      []models.RiskAlert        `json:"alerts"`
	Patterns    []models.DelayRiskPattern `json:"patterns,omitempty"`
	Fallback    bool                      `json:"fallback"`
	Model       string                    `json:"model,omitempty"`
}

// AnalyzeWorkspaceRisks scores every open task in the workspace,
// persists the assessments and raises alerts for high-risk ones.
func (s *Service) AnalyzeWorkspaceRisks(ctx context.Context, workspaceID string) (*RiskAnalysis, error) {
	tasks, err := s.store.ListTasks(models.TaskFilter{WorkspaceID: workspaceID})
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}

	open := tasks[:0]
	for _, t := range tasks {
		if t.Status != models.StatusDone {
			open = append(open, t)
		}
	}
	if len(open) == 0 {
		return &RiskAnalysis{}, nil
	}

	now := s.now()
	result := &RiskAnalysis{}

	var reply riskReply
	parsed := false
	if s.gen != nil {
		text, genErr := s.gen.Generate(ctx, riskPrompt(open, now))
		if genErr != nil {
			log.Warn().Err(genErr).Str("workspace_id", workspaceID).Msg("risk model call failed, using fallback")
		} else {
			reply, parsed = parseRiskReply(text)
			if !parsed {
				log.Warn().Str("workspace_id", workspaceID).Msg("risk reply unparseable, using fallback")
			}
		}
	}

	byID := make(map[string]*riskItem, len(reply.Assessments))
	if parsed {
		result.Model = s.gen.Model()
		for i := range reply.Assessments {
			byID[reply.Assessments[i].TaskID] = &reply.Assessments[i]
		}
		for _, p := range reply.Patterns {
			if p.Pattern == "" {
				continue
			}
			occ := p.Occurrences
			if occ < 1 {
				occ = 1
			}
			result.Patterns = append(result.Patterns, models.DelayRiskPattern{
				WorkspaceID: workspaceID,
				Pattern:     p.Pattern,
				Occurrences: occ,
				Model:       result.Model,
			})
		}
	} else {
		result.Fallback = true
	}

	for _, t := range open {
		a := models.RiskAssessment{
			TaskID:      t.ID,
			WorkspaceID: workspaceID,
		}
		if item, ok := byID[t.ID]; ok {
			a.RiskScore = item.RiskScore
			a.Factors = item.Factors
			a.Summary = item.Summary
			a.Model = result.Model
			a.Confidence = modelConfidence
		} else {
			// Tasks the model skipped get the deterministic formula too.
			score, factors := fallbackRisk(&t, now)
			a.RiskScore = score
			a.Factors = factors
			a.Fallback = true
			a.Confidence = fallbackConfidence
		}
		a.RiskLevel = models.RiskLevelForScore(a.RiskScore)
		result.Assessments = append(result.Assessments, a)
	}

	s.persistAnalysis(workspaceID, result)
	return result, nil
}

// persistAnalysis stores assessments, alerts and patterns. Persistence
// problems are logged, not surfaced, so the caller still gets the
// computed result.
func (s *Service) persistAnalysis(workspaceID string, result *RiskAnalysis) {
	for i := range result.Assessments {
		a := &result.Assessments[i]
		if err := s.store.SaveRiskAssessment(a); err != nil {
			log.Warn().Err(err).Str("task_id", a.TaskID).Msg("failed to persist risk assessment")
			continue
		}
		if a.RiskLevel == models.RiskHigh || a.RiskLevel == models.RiskCritical {
			alert := models.RiskAlert{
				WorkspaceID:  workspaceID,
				TaskID:       a.TaskID,
				AssessmentID: a.ID,
				Level:        a.RiskLevel,
				Message:      fmt.Sprintf("Task at %s risk of delay (score %.2f)", a.RiskLevel, a.RiskScore),
			}
			if err := s.store.SaveRiskAlert(&alert); err != nil {
				log.Warn().Err(err).Str("task_id", a.TaskID).Msg("failed to persist risk alert")
			} else {
				result.Alerts = append(result.Alerts, alert)
			}
		}
	}
	for i := range result.Patterns {
		if err := s.store.SaveDelayRiskPattern(&result.Patterns[i]); err != nil {
			log.Warn().Err(err).Msg("failed to persist delay pattern")
		}
	}
}

// EstimateRequest describes the task to estimate. TaskID is optional;
// when set, missing metadata is loaded from the stored task.
type EstimateRequest struct {
	WorkspaceID string
	TaskID      string
	Title       string
	Description string
	Priority    models.TaskPriority
}

// EstimateTask produces an effort estimate for one task and persists it.
func (s *Service) EstimateTask(ctx context.Context, req EstimateRequest) (*models.TaskEstimation, error) {
	if req.TaskID != "" && req.Title == "" {
		t, err := s.store.GetTask(req.TaskID)
		if err != nil {
			return nil, fmt.Errorf("failed to load task: %w", err)
		}
		req.Title = t.Title
		req.Description = t.Description
		req.Priority = t.Priority
	}
	if req.Priority == "" {
		req.Priority = models.PriorityMedium
	}

	history, err := s.store.ListCompletionHistory(req.WorkspaceID, 50)
	if err != nil && !database.IsNotMigrated(err) {
		log.Warn().Err(err).Str("workspace_id", req.WorkspaceID).Msg("failed to load completion history")
	}

	var reply estimationReply
	parsed := false
	if s.gen != nil {
		text, genErr := s.gen.Generate(ctx, estimationPrompt(req.Title, req.Description, req.Priority, history))
		if genErr != nil {
			log.Warn().Err(genErr).Str("workspace_id", req.WorkspaceID).Msg("estimation model call failed, using fallback")
		} else {
			reply, parsed = parseEstimationReply(text)
		}
	}

	est := &models.TaskEstimation{
		TaskID:      req.TaskID,
		WorkspaceID: req.WorkspaceID,
	}
	if parsed {
		est.EstimatedHours = reply.EstimatedHours
		est.Confidence = reply.Confidence
		est.Rationale = reply.Rationale
		est.Model = s.gen.Model()
	} else {
		fb := fallbackEstimation(req.Title, req.Description, req.Priority, history)
		est.EstimatedHours = fb.EstimatedHours
		est.Confidence = fb.Confidence
		est.Rationale = fb.Rationale
		est.Fallback = true
	}

	if err := s.store.SaveTaskEstimation(est); err != nil {
		log.Warn().Err(err).Str("workspace_id", req.WorkspaceID).Msg("failed to persist estimation")
	}
	return est, nil
}
