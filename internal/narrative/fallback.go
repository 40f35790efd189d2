package narrative

import (
	"fmt"

	"callsight-backend/internal/fusion"
)

// Fallback builds a deterministic narrative from the fusion result when
// model synthesis fails. The job still completes with this report.
func Fallback(companyName string, fusionResult fusion.Result, audioConfidence float64, overallSentiment, failure string) Report {
	if companyName == "" {
		companyName = "the company"
	}
	if overallSentiment == "" {
		overallSentiment = "unknown"
	}
	if len(failure) > 200 {
		failure = failure[:200]
	}

	risks := []string{}
	for _, d := range fusionResult.Discrepancies {
		risks = append(risks, d.Description)
		if len(risks) == 3 {
			break
		}
	}

	return Report{
		ExecutiveSummary: fmt.Sprintf(
			"Multi-modal analysis complete for %s. Overall credibility score: %.2f. Risk level: %s. Deep narrative analysis failed: %s",
			companyName, fusionResult.CredibilityScore, fusionResult.RiskLevel, failure),
		RiskIndicators: risks,
		Opportunities:  []string{},
		RedFlags:       []string{},
		ConfidenceAssessment: fmt.Sprintf(
			"Multi-modal credibility: %.2f/1.0, Audio confidence: %.2f/1.0, Sentiment: %s",
			fusionResult.CredibilityScore, audioConfidence, overallSentiment),
		OverallRecommendation: "Review detailed multi-modal analysis sections for insights.",
	}
}
