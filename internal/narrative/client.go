package narrative

import (
	"context"

	"callsight-backend/internal/audio"
	"callsight-backend/internal/charts"
	"callsight-backend/internal/fusion"
	"callsight-backend/internal/sentiment"
	"callsight-backend/internal/transcribe"
)

// Report is the synthesized investment narrative for a completed analysis.
type Report struct {
	ExecutiveSummary      string   `json:"executive_summary"`
	RiskIndicators        []string `json:"risk_indicators"`
	Opportunities         []string `json:"opportunities"`
	RedFlags              []string `json:"red_flags"`
	ConfidenceAssessment  string   `json:"confidence_assessment"`
	OverallRecommendation string   `json:"overall_recommendation"`
}

// Input carries every upstream stage output into narrative synthesis.
type Input struct {
	CompanyName    string
	CompanyContext string
	Transcript     transcribe.Transcript
	Features       audio.Features
	Sentiment      sentiment.Summary
	Charts         charts.Summary
	Fusion         fusion.Result
}

// Client generates the narrative report. Failures are recoverable: the
// pipeline substitutes a deterministic fallback when Generate errors.
type Client interface {
	Generate(ctx context.Context, in Input) (Report, error)
}
