package narrative

import (
	"reflect"
	"strings"
	"testing"

	"callsight-backend/internal/fusion"
)

func TestParseStructuredResponse(t *testing.T) {
	text := `### EXECUTIVE SUMMARY
Strong quarter with aligned signals.
Credibility score of 0.82 supports management claims.

### RISK INDICATORS
- Margin pressure - pitch variation 0.09 during margin discussion
- Guidance uncertainty - sentiment shift more_negative in Q&A

### OPPORTUNITIES
- Conservative guidance with confident delivery suggests upside

### RED FLAGS
- None identified

### CONFIDENCE ASSESSMENT
Management delivery was consistent across modalities.

### OVERALL RECOMMENDATION
CAUTIOUSLY BULLISH with medium conviction.
`

	report := Parse(text)

	wantSummary := "Strong quarter with aligned signals.\nCredibility score of 0.82 supports management claims."
	if report.ExecutiveSummary != wantSummary {
		t.Errorf("executive summary = %q", report.ExecutiveSummary)
	}
	if len(report.RiskIndicators) != 2 {
		t.Fatalf("risk indicators = %d, want 2", len(report.RiskIndicators))
	}
	if report.RiskIndicators[1] != "Guidance uncertainty - sentiment shift more_negative in Q&A" {
		t.Errorf("risk[1] = %q", report.RiskIndicators[1])
	}
	if !reflect.DeepEqual(report.Opportunities, []string{"Conservative guidance with confident delivery suggests upside"}) {
		t.Errorf("opportunities = %v", report.Opportunities)
	}
	if len(report.RedFlags) != 0 {
		t.Errorf("red flags = %v, want none", report.RedFlags)
	}
	if report.ConfidenceAssessment != "Management delivery was consistent across modalities." {
		t.Errorf("confidence assessment = %q", report.ConfidenceAssessment)
	}
	if report.OverallRecommendation != "CAUTIOUSLY BULLISH with medium conviction." {
		t.Errorf("recommendation = %q", report.OverallRecommendation)
	}
}

func TestParseIsTolerantOfMissingSections(t *testing.T) {
	report := Parse("## EXECUTIVE SUMMARY\nOnly a summary here.")
	if report.ExecutiveSummary != "Only a summary here." {
		t.Errorf("executive summary = %q", report.ExecutiveSummary)
	}
	if report.RiskIndicators == nil || report.Opportunities == nil || report.RedFlags == nil {
		t.Error("list sections should be empty, not nil")
	}
	if report.OverallRecommendation != "" {
		t.Errorf("recommendation = %q, want empty", report.OverallRecommendation)
	}
}

func TestParseIgnoresTextOutsideSections(t *testing.T) {
	report := Parse("Preamble the model added.\n### RISK INDICATORS\n- Real risk\nLoose line without bullet\n")
	if !reflect.DeepEqual(report.RiskIndicators, []string{"Real risk"}) {
		t.Errorf("risk indicators = %v", report.RiskIndicators)
	}
}

func TestParseHandlesBulletVariants(t *testing.T) {
	report := Parse("### OPPORTUNITIES\n- dash item\n• bullet item\n* star item\n")
	want := []string{"dash item", "bullet item", "star item"}
	if !reflect.DeepEqual(report.Opportunities, want) {
		t.Errorf("opportunities = %v", report.Opportunities)
	}
}

func TestFallbackUsesFusionResult(t *testing.T) {
	fusionResult := fusion.Result{
		CredibilityScore: 0.42,
		RiskLevel:        "high",
		Discrepancies: []fusion.Discrepancy{
			{Description: "first"},
			{Description: "second"},
			{Description: "third"},
			{Description: "fourth"},
		},
	}

	report := Fallback("Acme Corp", fusionResult, 0.31, "negative", "model timeout")

	wantSummary := "Multi-modal analysis complete for Acme Corp. Overall credibility score: 0.42. Risk level: high. Deep narrative analysis failed: model timeout"
	if report.ExecutiveSummary != wantSummary {
		t.Errorf("executive summary = %q", report.ExecutiveSummary)
	}
	if !reflect.DeepEqual(report.RiskIndicators, []string{"first", "second", "third"}) {
		t.Errorf("risk indicators = %v", report.RiskIndicators)
	}
	if report.ConfidenceAssessment != "Multi-modal credibility: 0.42/1.0, Audio confidence: 0.31/1.0, Sentiment: negative" {
		t.Errorf("confidence assessment = %q", report.ConfidenceAssessment)
	}
	if report.OverallRecommendation != "Review detailed multi-modal analysis sections for insights." {
		t.Errorf("recommendation = %q", report.OverallRecommendation)
	}
	if len(report.Opportunities) != 0 || len(report.RedFlags) != 0 {
		t.Error("opportunities and red flags should be empty in fallback")
	}
}

func TestFallbackDefaults(t *testing.T) {
	report := Fallback("", fusion.Result{RiskLevel: "low"}, 0, "", "boom")
	if report.ExecutiveSummary == "" {
		t.Fatal("empty summary")
	}
	if got := report.ExecutiveSummary; !strings.Contains(got, "the company") {
		t.Errorf("summary should name the company placeholder: %q", got)
	}
	if !strings.Contains(report.ConfidenceAssessment, "Sentiment: unknown") {
		t.Errorf("confidence assessment = %q", report.ConfidenceAssessment)
	}
}
