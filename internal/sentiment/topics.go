package sentiment

import (
	"regexp"
	"strings"

	"callsight-backend/internal/transcribe"
)

const (
	maxKeyTopics        = 5
	maxFinancialMetrics = 10
)

// topicKeywords maps each topic to the phrases that mark it. Order matters
// for deterministic output.
var topicKeywords = []struct {
	topic    string
	keywords []string
}{
	{"Revenue Growth", []string{"revenue", "sales", "top line", "growth"}},
	{"Profitability", []string{"profit", "margin", "earnings", "ebitda", "bottom line"}},
	{"Guidance", []string{"guidance", "outlook", "forecast", "expect", "project"}},
	{"Market Share", []string{"market share", "competition", "competitive"}},
	{"Innovation", []string{"innovation", "new product", "r&d", "development"}},
	{"Cost Management", []string{"cost", "expense", "efficiency", "savings"}},
	{"Customer Acquisition", []string{"customer", "client", "acquisition", "retention"}},
	{"Debt & Financing", []string{"debt", "leverage", "financing", "capital"}},
}

var metricPatterns = []struct {
	metric  string
	pattern *regexp.Regexp
}{
	{"revenue", regexp.MustCompile(`revenue\s+(?:of\s+)?\$?([\d.]+)\s*(billion|million|thousand)?`)},
	{"eps", regexp.MustCompile(`(?:eps|earnings per share)\s+(?:of\s+)?\$?([\d.]+)`)},
	{"growth", regexp.MustCompile(`([\d.]+)%?\s+growth`)},
	{"margin", regexp.MustCompile(`([\d.]+)%?\s+margin`)},
}

// ExtractKeyTopics does keyword-based topic spotting over the transcript,
// returning at most five topics.
func ExtractKeyTopics(text string) []string {
	lower := strings.ToLower(text)
	topics := []string{}
	for _, entry := range topicKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				topics = append(topics, entry.topic)
				break
			}
		}
		if len(topics) == maxKeyTopics {
			break
		}
	}
	return topics
}

// ExtractFinancialMetrics pulls numeric mentions (revenue, EPS, growth,
// margin) out of the transcript, capped at ten.
func ExtractFinancialMetrics(text string) []FinancialMetric {
	lower := strings.ToLower(text)
	metrics := []FinancialMetric{}
	for _, entry := range metricPatterns {
		for _, match := range entry.pattern.FindAllStringSubmatch(lower, -1) {
			unit := ""
			if len(match) > 2 {
				unit = match[2]
			}
			metrics = append(metrics, FinancialMetric{
				Metric:  entry.metric,
				Value:   match[1],
				Unit:    unit,
				Context: match[0],
			})
			if len(metrics) == maxFinancialMetrics {
				return metrics
			}
		}
	}
	return metrics
}

// SeparatePreparedQA compares sentiment between prepared statements and the
// Q&A section and classifies the shift.
func SeparatePreparedQA(segments []AnalyzedSegment) DiscourseAnalysis {
	var prepared, qa []AnalyzedSegment
	for _, seg := range segments {
		if seg.SegmentType == transcribe.SegmentPrepared {
			prepared = append(prepared, seg)
		} else {
			qa = append(qa, seg)
		}
	}

	preparedStats := distributionOf(prepared)
	qaStats := distributionOf(qa)

	return DiscourseAnalysis{
		PreparedSentiment: preparedStats,
		QASentiment:       qaStats,
		SentimentShift:    sentimentShift(preparedStats, qaStats),
	}
}

func distributionOf(segments []AnalyzedSegment) DistributionStats {
	if len(segments) == 0 {
		return DistributionStats{}
	}
	var stats DistributionStats
	for _, seg := range segments {
		switch seg.Sentiment {
		case Positive:
			stats.Positive++
		case Negative:
			stats.Negative++
		default:
			stats.Neutral++
		}
	}
	total := float64(len(segments))
	stats.Positive /= total
	stats.Neutral /= total
	stats.Negative /= total
	return stats
}

func sentimentShift(prepared, qa DistributionStats) string {
	preparedScore := prepared.Positive - prepared.Negative
	qaScore := qa.Positive - qa.Negative
	diff := qaScore - preparedScore
	switch {
	case diff < -0.1:
		return "more_negative"
	case diff > 0.1:
		return "more_positive"
	default:
		return "stable"
	}
}
