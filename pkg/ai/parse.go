package ai

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/score_report.json
var scoreReportSchemaSource string

var scoreReportSchema = jsonschema.MustCompileString("score_report.json", scoreReportSchemaSource)

type scorePayload struct {
	CompletenessScore    *float64 `json:"completenessScore"`
	CompletenessFeedback *string  `json:"completenessFeedback"`
	ClarityScore         *float64 `json:"clarityScore"`
	ClarityFeedback      *string  `json:"clarityFeedback"`
	ConsistencyScore     *float64 `json:"consistencyScore"`
	ConsistencyFeedback  *string  `json:"consistencyFeedback"`
	VerificationScore    *float64 `json:"verificationScore"`
	VerificationFeedback *string  `json:"verificationFeedback"`
	OverallScore         *float64 `json:"overallScore"`
	OverallFeedback      *string  `json:"overallFeedback"`
}

// ParseScoreReport validates a scorer reply and converts it into a ScoreReport.
func ParseScoreReport(content string) (ScoreReport, error) {
	body := stripCodeFence(content)
	if body == "" {
		return ScoreReport{}, fmt.Errorf("%w: empty reply", ErrResponseMalformed)
	}

	var document interface{}
	if err := json.Unmarshal([]byte(body), &document); err != nil {
		return ScoreReport{}, fmt.Errorf("%w: invalid json: %v", ErrResponseMalformed, err)
	}
	if err := scoreReportSchema.Validate(document); err != nil {
		return ScoreReport{}, fmt.Errorf("%w: %v", ErrResponseMalformed, err)
	}

	var payload scorePayload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return ScoreReport{}, fmt.Errorf("%w: decode report: %v", ErrResponseMalformed, err)
	}

	if payload.CompletenessScore == nil {
		return ScoreReport{}, fmt.Errorf("%w: completeness score missing", ErrResponseMalformed)
	}
	if payload.ClarityScore == nil || payload.ConsistencyScore == nil || payload.VerificationScore == nil {
		return ScoreReport{}, fmt.Errorf("%w: sub-score missing", ErrResponseMalformed)
	}

	report := ScoreReport{
		Completeness: Criterion{Score: normalizeScore(*payload.CompletenessScore), Feedback: deref(payload.CompletenessFeedback)},
		Clarity:      Criterion{Score: normalizeScore(*payload.ClarityScore), Feedback: deref(payload.ClarityFeedback)},
		Consistency:  Criterion{Score: normalizeScore(*payload.ConsistencyScore), Feedback: deref(payload.ConsistencyFeedback)},
		Verification: Criterion{Score: normalizeScore(*payload.VerificationScore), Feedback: deref(payload.VerificationFeedback)},
		Overall:      Criterion{Feedback: deref(payload.OverallFeedback)},
	}

	if payload.OverallScore != nil {
		report.Overall.Score = normalizeScore(*payload.OverallScore)
	} else {
		sum := report.Completeness.Score + report.Clarity.Score + report.Consistency.Score + report.Verification.Score
		report.Overall.Score = normalizeScore(float64(sum) / 4)
	}

	return report, nil
}

// stripCodeFence removes a surrounding ```json fence some models add despite instructions.
func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	} else {
		trimmed = strings.TrimPrefix(trimmed, "json")
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// normalizeScore clamps before converting so magnitudes outside the int range cannot wrap.
func normalizeScore(value float64) int {
	switch {
	case math.IsNaN(value), value <= 0:
		return 0
	case value >= 100:
		return 100
	}
	return int(math.Round(value))
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}
