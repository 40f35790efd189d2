package sentiment

import (
	"testing"

	"callsight-backend/internal/transcribe"
)

func TestExtractKeyTopics(t *testing.T) {
	text := "Revenue grew strongly this quarter while margin pressure persisted. " +
		"Our guidance for next year reflects continued customer retention gains."
	topics := ExtractKeyTopics(text)

	want := map[string]bool{
		"Revenue Growth":       true,
		"Profitability":        true,
		"Guidance":             true,
		"Customer Acquisition": true,
	}
	for _, topic := range topics {
		if !want[topic] {
			t.Fatalf("unexpected topic %q", topic)
		}
		delete(want, topic)
	}
	if len(want) != 0 {
		t.Fatalf("missing topics: %v", want)
	}
}

func TestExtractKeyTopicsCapsAtFive(t *testing.T) {
	text := "revenue profit guidance market share innovation cost customer debt"
	topics := ExtractKeyTopics(text)
	if len(topics) != 5 {
		t.Fatalf("expected cap of 5 topics, got %d", len(topics))
	}
}

func TestExtractFinancialMetrics(t *testing.T) {
	text := "We reported revenue of $4.2 billion, EPS of $1.35, and 12% growth with a 38% margin."
	metrics := ExtractFinancialMetrics(text)

	byName := map[string]FinancialMetric{}
	for _, m := range metrics {
		byName[m.Metric] = m
	}

	if got := byName["revenue"]; got.Value != "4.2" || got.Unit != "billion" {
		t.Fatalf("revenue metric = %+v", got)
	}
	if got := byName["eps"]; got.Value != "1.35" {
		t.Fatalf("eps metric = %+v", got)
	}
	if got := byName["growth"]; got.Value != "12" {
		t.Fatalf("growth metric = %+v", got)
	}
	if got := byName["margin"]; got.Value != "38" {
		t.Fatalf("margin metric = %+v", got)
	}
}

func TestExtractFinancialMetricsEmptyText(t *testing.T) {
	if got := ExtractFinancialMetrics("no numbers here"); len(got) != 0 {
		t.Fatalf("expected no metrics, got %v", got)
	}
}

func analyzed(segType, label string) AnalyzedSegment {
	return AnalyzedSegment{
		Segment:   transcribe.Segment{SegmentType: segType},
		Sentiment: label,
	}
}

func TestSeparatePreparedQAShift(t *testing.T) {
	segments := []AnalyzedSegment{
		analyzed(transcribe.SegmentPrepared, Positive),
		analyzed(transcribe.SegmentPrepared, Positive),
		analyzed(transcribe.SegmentQA, Negative),
		analyzed(transcribe.SegmentQA, Negative),
	}

	discourse := SeparatePreparedQA(segments)
	if discourse.SentimentShift != "more_negative" {
		t.Fatalf("expected more_negative shift, got %s", discourse.SentimentShift)
	}
	if discourse.PreparedSentiment.Positive != 1.0 {
		t.Fatalf("prepared positive = %v, want 1.0", discourse.PreparedSentiment.Positive)
	}
	if discourse.QASentiment.Negative != 1.0 {
		t.Fatalf("qa negative = %v, want 1.0", discourse.QASentiment.Negative)
	}
}

func TestSeparatePreparedQAStable(t *testing.T) {
	segments := []AnalyzedSegment{
		analyzed(transcribe.SegmentPrepared, Neutral),
		analyzed(transcribe.SegmentQA, Neutral),
	}
	discourse := SeparatePreparedQA(segments)
	if discourse.SentimentShift != "stable" {
		t.Fatalf("expected stable shift, got %s", discourse.SentimentShift)
	}
}
