package fusion

import (
	"fmt"
	"math"
	"strings"

	"callsight-backend/internal/audio"
	"callsight-backend/internal/charts"
	"callsight-backend/internal/sentiment"
)

// Discrepancy is a contradiction between two modalities.
type Discrepancy struct {
	Type            string   `json:"type"`
	Severity        string   `json:"severity"`
	Description     string   `json:"description"`
	Modalities      []string `json:"modalities"`
	AudioConfidence float64  `json:"audio_confidence,omitempty"`
	TextSentiment   string   `json:"text_sentiment,omitempty"`
	StressCount     int      `json:"stress_count,omitempty"`
}

// AttentionWeights show which modality contributed most to the verdict.
type AttentionWeights struct {
	Audio float64 `json:"audio"`
	Text  float64 `json:"text"`
	Chart float64 `json:"chart"`
}

// Result is the cross-modal fusion verdict for one call.
type Result struct {
	CredibilityScore float64          `json:"credibility_score"`
	RiskLevel        string           `json:"risk_level"`
	Discrepancies    []Discrepancy    `json:"discrepancies"`
	FusionInsights   []string         `json:"fusion_insights"`
	AttentionWeights AttentionWeights `json:"attention_weights"`
}

// Config holds the modality weights for the credibility score.
type Config struct {
	AudioWeight float64
	TextWeight  float64
	ChartWeight float64

	InconsistencyPenalty float64
}

func DefaultConfig() Config {
	return Config{
		AudioWeight:          0.35,
		TextWeight:           0.40,
		ChartWeight:          0.25,
		InconsistencyPenalty: 0.15,
	}
}

// Engine fuses the per-modality analyses into a single credibility verdict.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Fuse combines the three modality summaries. It is pure: the same inputs
// always produce the same Result, and the inputs are never mutated.
func (e *Engine) Fuse(features audio.Features, sent sentiment.Summary, chart charts.Summary) Result {
	credibility := e.credibilityScore(features, sent, chart)
	discrepancies := e.detectDiscrepancies(features, sent, chart)
	risk := e.riskLevel(credibility, discrepancies, features, sent)
	insights := e.insights(features, sent, chart, discrepancies)
	attention := e.attention(features, sent, chart)

	return Result{
		CredibilityScore: credibility,
		RiskLevel:        risk,
		Discrepancies:    discrepancies,
		FusionInsights:   insights,
		AttentionWeights: attention,
	}
}

func (e *Engine) credibilityScore(features audio.Features, sent sentiment.Summary, chart charts.Summary) float64 {
	audioConf := features.OverallConfidence

	textConf := sent.SentimentDistribution.Positive - sent.SentimentDistribution.Negative + 0.5
	textConf = clamp01(textConf)

	chartConf := math.Max(0, 1.0-float64(len(chart.Inconsistencies))*e.cfg.InconsistencyPenalty)

	credibility := audioConf*e.cfg.AudioWeight + textConf*e.cfg.TextWeight + chartConf*e.cfg.ChartWeight
	return round3(credibility)
}

func (e *Engine) detectDiscrepancies(features audio.Features, sent sentiment.Summary, chart charts.Summary) []Discrepancy {
	discrepancies := []Discrepancy{}
	audioConf := features.OverallConfidence

	if audioConf < 0.5 && sent.OverallSentiment == sentiment.Positive {
		discrepancies = append(discrepancies, Discrepancy{
			Type:            "audio_text_mismatch",
			Severity:        "high",
			Description:     "Positive verbal statements but low vocal confidence detected",
			Modalities:      []string{"audio", "text"},
			AudioConfidence: audioConf,
			TextSentiment:   sent.OverallSentiment,
		})
	}

	if audioConf > 0.7 && sent.OverallSentiment == sentiment.Negative {
		discrepancies = append(discrepancies, Discrepancy{
			Type:            "audio_text_mismatch",
			Severity:        "medium",
			Description:     "Negative statements delivered with high confidence - potentially planned bad news",
			Modalities:      []string{"audio", "text"},
			AudioConfidence: audioConf,
			TextSentiment:   sent.OverallSentiment,
		})
	}

	for _, incon := range chart.Inconsistencies {
		severity := incon.Severity
		if severity == "" {
			severity = "medium"
		}
		description := incon.Description
		if description == "" {
			description = "Chart data doesn't match verbal statements"
		}
		discrepancies = append(discrepancies, Discrepancy{
			Type:        "chart_verbal_mismatch",
			Severity:    severity,
			Description: description,
			Modalities:  []string{"chart", "text"},
		})
	}

	if len(features.StressIndicators) > 2 && sent.OverallSentiment == sentiment.Positive {
		discrepancies = append(discrepancies, Discrepancy{
			Type:        "stress_sentiment_mismatch",
			Severity:    "medium",
			Description: fmt.Sprintf("Detected %d vocal stress indicators despite positive language", len(features.StressIndicators)),
			Modalities:  []string{"audio", "text"},
			StressCount: len(features.StressIndicators),
		})
	}

	return discrepancies
}

func (e *Engine) riskLevel(credibility float64, discrepancies []Discrepancy, features audio.Features, sent sentiment.Summary) string {
	score := 0

	if credibility < 0.4 {
		score += 3
	} else if credibility < 0.6 {
		score++
	}

	// High-severity discrepancies count twice: once here and once in
	// the per-discrepancy term below.
	for _, d := range discrepancies {
		if d.Severity == "high" {
			score += 2
		}
	}
	score += len(discrepancies)

	if sent.OverallSentiment == sentiment.Negative {
		score += 2
	}

	stressCount := len(features.StressIndicators)
	if stressCount > 3 {
		score += 2
	} else if stressCount > 1 {
		score++
	}

	switch {
	case score >= 6:
		return "high"
	case score >= 3:
		return "medium"
	default:
		return "low"
	}
}

func (e *Engine) insights(features audio.Features, sent sentiment.Summary, chart charts.Summary, discrepancies []Discrepancy) []string {
	insights := []string{}

	if features.OverallConfidence > 0.7 {
		insights = append(insights, "Executive team demonstrated high vocal confidence throughout the call")
	} else if features.OverallConfidence < 0.4 {
		insights = append(insights, "Vocal analysis reveals hesitation and uncertainty in delivery")
	}

	if sent.OverallSentiment == sentiment.Positive && sent.SentimentDistribution.Positive > 0.6 {
		insights = append(insights, "Overwhelmingly positive language used throughout the call")
	} else if sent.OverallSentiment == sentiment.Negative {
		insights = append(insights, "Negative sentiment detected - management acknowledging challenges")
	}

	if len(discrepancies) > 0 {
		insights = append(insights, fmt.Sprintf("Found %d cross-modal inconsistencies requiring attention", len(discrepancies)))
	}

	if len(chart.ChartDescriptions) > 0 {
		insights = append(insights, fmt.Sprintf("Visual data analysis of %d charts completed", len(chart.ChartDescriptions)))
	}

	if len(features.StressIndicators) > 2 {
		types := make([]string, 0, 3)
		for _, ind := range features.StressIndicators {
			types = append(types, ind.Type)
			if len(types) == 3 {
				break
			}
		}
		insights = append(insights, "Multiple vocal stress indicators detected: "+strings.Join(types, ", "))
	}

	return insights
}

func (e *Engine) attention(features audio.Features, sent sentiment.Summary, chart charts.Summary) AttentionWeights {
	audioW, textW, chartW := 0.33, 0.33, 0.33

	if len(features.StressIndicators) > 2 {
		audioW += 0.1
	}
	if len(sent.KeyTopics) > 3 {
		textW += 0.1
	}
	if len(chart.Inconsistencies) > 0 {
		chartW += 0.15
	}

	total := audioW + textW + chartW
	return AttentionWeights{
		Audio: round3(audioW / total),
		Text:  round3(textW / total),
		Chart: round3(chartW / total),
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
