package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	raw, ok := extractJSON(`Here you go: {"a":1} hope that helps`)
	require.True(t, ok)
	assert.Equal(t, `{"a":1}`, raw)

	raw, ok = extractJSON("```json\n{\"nested\":{\"b\":2}}\n```")
	require.True(t, ok)
	assert.Equal(t, `{"nested":{"b":2}}`, raw)

	// Braces inside strings do not confuse the scanner.
	raw, ok = extractJSON(`{"s":"a } b { c"}`)
	require.True(t, ok)
	assert.Equal(t, `{"s":"a } b { c"}`, raw)

	_, ok = extractJSON("no object here at all")
	assert.False(t, ok)

	_, ok = extractJSON(`{"unterminated": true`)
	assert.False(t, ok)
}

func TestParseRiskReply(t *testing.T) {
	text := `Sure! {"assessments":[{"task_id":"t1","risk_score":0.7,"factors":["blocked"],"summary":"at risk"}],"patterns":[{"pattern":"blocked tasks slip","occurrences":3}]}`
	reply, ok := parseRiskReply(text)
	require.True(t, ok)
	require.Len(t, reply.Assessments, 1)
	assert.Equal(t, "t1", reply.Assessments[0].TaskID)
	assert.Equal(t, 0.7, reply.Assessments[0].RiskScore)
	require.Len(t, reply.Patterns, 1)
	assert.Equal(t, 3, reply.Patterns[0].Occurrences)
}

func TestParseRiskReplyClampsScores(t *testing.T) {
	text := `{"assessments":[{"task_id":"a","risk_score":3.5},{"task_id":"b","risk_score":-1}]}`
	reply, ok := parseRiskReply(text)
	require.True(t, ok)
	assert.Equal(t, 1.0, reply.Assessments[0].RiskScore)
	assert.Equal(t, 0.0, reply.Assessments[1].RiskScore)
}

func TestParseRiskReplyNoJSONReturnsDefault(t *testing.T) {
	// A reply with no {...} substring yields the empty default, not an
	// error or panic.
	reply, ok := parseRiskReply("I am unable to help with that.")
	assert.False(t, ok)
	assert.Empty(t, reply.Assessments)
	assert.Empty(t, reply.Patterns)
}

func TestParseRiskReplyMalformedJSON(t *testing.T) {
	reply, ok := parseRiskReply(`{"assessments": "not-an-array"}`)
	assert.False(t, ok)
	assert.Empty(t, reply.Assessments)
}

func TestParseEstimationReply(t *testing.T) {
	reply, ok := parseEstimationReply(`{"estimated_hours":6.5,"confidence":0.9,"rationale":"similar tasks took a day"}`)
	require.True(t, ok)
	assert.Equal(t, 6.5, reply.EstimatedHours)
	assert.Equal(t, 0.9, reply.Confidence)

	// Confidence clamps, hours must be positive.
	reply, ok = parseEstimationReply(`{"estimated_hours":2,"confidence":5}`)
	require.True(t, ok)
	assert.Equal(t, 1.0, reply.Confidence)

	_, ok = parseEstimationReply(`{"estimated_hours":0,"confidence":0.5}`)
	assert.False(t, ok)

	_, ok = parseEstimationReply("no json")
	assert.False(t, ok)
}
