package jobs

import (
	"time"

	"callsight-backend/internal/audio"
	"callsight-backend/internal/charts"
	"callsight-backend/internal/fusion"
	"callsight-backend/internal/narrative"
	"callsight-backend/internal/sentiment"
	"callsight-backend/internal/transcribe"
)

// Job status values. A job moves pending -> processing -> completed or
// failed; there are no other transitions.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Stage names, in pipeline order.
const (
	StageTranscription = "transcription"
	StageAudioFeatures = "audio_features"
	StageSentiment     = "sentiment"
	StageCharts        = "chart_analysis"
	StageFusion        = "fusion"
	StageNarrative     = "narrative"
	StageFinalize      = "finalize"
)

// Job is one analysis job. Stage outputs are nil until their stage has
// committed, so a reloaded job resumes exposing exactly what was
// persisted.
type Job struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Progress     int    `json:"progress"`
	CurrentStage string `json:"current_stage"`
	ErrorMessage string `json:"error_message,omitempty"`

	CompanyName    string `json:"company_name"`
	CompanyContext string `json:"company_context,omitempty"`

	AudioKey       string   `json:"-"`
	AudioFileName  string   `json:"audio_filename"`
	ChartKeys      []string `json:"-"`
	ChartFileNames []string `json:"chart_filenames"`

	Transcript        *transcribe.Transcript `json:"transcript,omitempty"`
	AudioAnalysis     *audio.Features        `json:"audio_analysis,omitempty"`
	SentimentAnalysis *sentiment.Summary     `json:"sentiment_analysis,omitempty"`
	ChartAnalysis     *charts.Summary        `json:"chart_analysis,omitempty"`
	FusionResult      *fusion.Result         `json:"fusion_result,omitempty"`
	Narrative         *narrative.Report      `json:"narrative,omitempty"`

	OverallConfidence *float64 `json:"overall_confidence,omitempty"`
	OverallSentiment  *string  `json:"overall_sentiment,omitempty"`
	RiskLevel         *string  `json:"risk_level,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Results is the full payload returned once a job completes.
type Results struct {
	JobID         string                `json:"job_id"`
	CompanyName   string                `json:"company_name"`
	Transcript    transcribe.Transcript `json:"transcript"`
	AudioAnalysis audio.Features        `json:"audio_analysis"`
	Sentiment     sentiment.Summary     `json:"sentiment_analysis"`
	ChartAnalysis charts.Summary        `json:"chart_analysis"`
	Fusion        fusion.Result         `json:"fusion_result"`
	Narrative     narrative.Report      `json:"narrative"`
	CompletedAt   *time.Time            `json:"completed_at,omitempty"`
}

// StatusView is the polling shape: progress without the stage payloads.
type StatusView struct {
	ID           string     `json:"id"`
	Status       string     `json:"status"`
	Progress     int        `json:"progress"`
	CurrentStage string     `json:"current_stage"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CompanyName  string     `json:"company_name"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

func (j *Job) StatusView() StatusView {
	return StatusView{
		ID:           j.ID,
		Status:       j.Status,
		Progress:     j.Progress,
		CurrentStage: j.CurrentStage,
		ErrorMessage: j.ErrorMessage,
		CompanyName:  j.CompanyName,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
		StartedAt:    j.StartedAt,
		CompletedAt:  j.CompletedAt,
	}
}

// ResultsView assembles the Results payload. The second return is false
// until the job has completed with all stage outputs present.
func (j *Job) ResultsView() (Results, bool) {
	if j.Status != StatusCompleted {
		return Results{}, false
	}
	if j.Transcript == nil || j.AudioAnalysis == nil || j.SentimentAnalysis == nil ||
		j.ChartAnalysis == nil || j.FusionResult == nil || j.Narrative == nil {
		return Results{}, false
	}
	return Results{
		JobID:         j.ID,
		CompanyName:   j.CompanyName,
		Transcript:    *j.Transcript,
		AudioAnalysis: *j.AudioAnalysis,
		Sentiment:     *j.SentimentAnalysis,
		ChartAnalysis: *j.ChartAnalysis,
		Fusion:        *j.FusionResult,
		Narrative:     *j.Narrative,
		CompletedAt:   j.CompletedAt,
	}, true
}
