package ai

import (
	"encoding/json"
	"strings"
)

// riskReply is the JSON shape the risk prompt asks for.
type riskReply struct {
	Assessments []riskItem    `json:"assessments"`
	Patterns    []patternItem `json:"patterns"`
}

type riskItem struct {
	TaskID    string   `json:"task_id"`
	RiskScore float64  `json:"risk_score"`
	Factors   []string `json:"factors"`
	Summary   string   `json:"summary"`
}

type patternItem struct {
	Pattern     string `json:"pattern"`
	Occurrences int    `json:"occurrences"`
}

// estimationReply is the JSON shape the estimation prompt asks for.
type estimationReply struct {
	EstimatedHours float64 `json:"estimated_hours"`
	Confidence     float64 `json:"confidence"`
	Rationale      string  `json:"rationale"`
}

// extractJSON locates the first balanced {...} object in free text.
// Models wrap replies in prose or markdown fences; everything outside
// the object is discarded. Returns false when no object exists.
func extractJSON(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// parseRiskReply decodes the model's risk output, clamping scores into
// [0,1]. An unusable reply returns ok=false so the caller can fall
// back; the documented default is an empty reply, never an error.
func parseRiskReply(text string) (riskReply, bool) {
	var out riskReply
	raw, found := extractJSON(text)
	if !found {
		return out, false
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return riskReply{}, false
	}
	for i := range out.Assessments {
		out.Assessments[i].RiskScore = clamp01(out.Assessments[i].RiskScore)
	}
	return out, true
}

// parseEstimationReply decodes the model's estimation output, clamping
// confidence into [0,1] and rejecting non-positive hour values.
func parseEstimationReply(text string) (estimationReply, bool) {
	var out estimationReply
	raw, found := extractJSON(text)
	if !found {
		return out, false
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return estimationReply{}, false
	}
	if out.EstimatedHours <= 0 {
		return estimationReply{}, false
	}
	out.Confidence = clamp01(out.Confidence)
	return out, true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
