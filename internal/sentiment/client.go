package sentiment

import (
	"context"

	"callsight-backend/internal/transcribe"
)

// Sentiment labels.
const (
	Positive = "positive"
	Neutral  = "neutral"
	Negative = "negative"
)

// AnalyzedSegment is a transcript segment plus its sentiment label.
type AnalyzedSegment struct {
	transcribe.Segment
	Sentiment      string  `json:"sentiment"`
	SentimentScore float64 `json:"sentiment_score"`
}

// FinancialMetric is one numeric mention pulled out of the transcript.
type FinancialMetric struct {
	Metric  string `json:"metric"`
	Value   string `json:"value"`
	Unit    string `json:"unit"`
	Context string `json:"context"`
}

// DistributionStats is a label->fraction map over exactly the three labels.
type DistributionStats struct {
	Positive float64 `json:"positive"`
	Neutral  float64 `json:"neutral"`
	Negative float64 `json:"negative"`
}

// DiscourseAnalysis compares prepared remarks against the Q&A section.
type DiscourseAnalysis struct {
	PreparedSentiment DistributionStats `json:"prepared_sentiment"`
	QASentiment       DistributionStats `json:"qa_sentiment"`
	SentimentShift    string            `json:"sentiment_shift"`
}

// Summary is the sentiment collaborator's aggregate output.
type Summary struct {
	Segments              []AnalyzedSegment  `json:"segments"`
	OverallSentiment      string             `json:"overall_sentiment"`
	SentimentDistribution DistributionStats  `json:"sentiment_distribution"`
	KeyTopics             []string           `json:"key_topics"`
	FinancialMetrics      []FinancialMetric  `json:"financial_metrics"`
	Discourse             *DiscourseAnalysis `json:"discourse_analysis,omitempty"`
}

// Client classifies transcript segments. Implementations call an external
// service; the pipeline depends only on the Summary shape.
type Client interface {
	Analyze(ctx context.Context, segments []transcribe.Segment) (Summary, error)
}
