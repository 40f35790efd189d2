package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"callsight-backend/internal/audio"
	"callsight-backend/internal/charts"
	"callsight-backend/internal/fusion"
	"callsight-backend/internal/narrative"
	"callsight-backend/internal/sentiment"
	"callsight-backend/internal/shared/metrics"
	"callsight-backend/internal/shared/storage/object"
	"callsight-backend/internal/shared/telemetry"
	"callsight-backend/internal/transcribe"
)

// Starter hands a created job to whatever executes it: the in-process
// worker pool, or a queue publisher when the worker runs separately.
type Starter interface {
	Start(ctx context.Context, jobID string) error
}

// Service owns the analysis pipeline. Each stage commits its output
// before the next stage starts, so a reloaded job exposes exactly the
// stages that finished.
type Service struct {
	repo        Repo
	store       object.ObjectStore
	transcriber transcribe.Client
	sentiments  sentiment.Client
	chartReader charts.Client
	extractor   *audio.Extractor
	engine      *fusion.Engine
	narrator    narrative.Client
}

func NewService(
	repo Repo,
	store object.ObjectStore,
	transcriber transcribe.Client,
	sentiments sentiment.Client,
	chartReader charts.Client,
	extractor *audio.Extractor,
	engine *fusion.Engine,
	narrator narrative.Client,
) *Service {
	return &Service{
		repo:        repo,
		store:       store,
		transcriber: transcriber,
		sentiments:  sentiments,
		chartReader: chartReader,
		extractor:   extractor,
		engine:      engine,
		narrator:    narrator,
	}
}

// ChartUpload is one chart image arriving with the job submission.
type ChartUpload struct {
	FileName string
	Reader   io.Reader
}

// CreateParams carries a job submission.
type CreateParams struct {
	CompanyName    string
	CompanyContext string
	AudioFileName  string
	Audio          io.Reader
	Charts         []ChartUpload
}

// Create persists the uploads and the pending job record. The job is
// not started here; the caller hands it to a Starter.
func (s *Service) Create(ctx context.Context, params CreateParams) (*Job, error) {
	if params.Audio == nil || params.AudioFileName == "" {
		return nil, fmt.Errorf("audio file is required")
	}

	jobID := uuid.NewString()

	audioKey, _, _, err := s.store.Save(ctx, jobID, params.AudioFileName, params.Audio)
	if err != nil {
		return nil, fmt.Errorf("store audio: %w", err)
	}

	chartKeys := []string{}
	chartNames := []string{}
	for _, chart := range params.Charts {
		key, _, _, err := s.store.Save(ctx, jobID, chart.FileName, chart.Reader)
		if err != nil {
			return nil, fmt.Errorf("store chart %s: %w", chart.FileName, err)
		}
		chartKeys = append(chartKeys, key)
		chartNames = append(chartNames, chart.FileName)
	}

	job := &Job{
		ID:             jobID,
		Status:         StatusPending,
		CompanyName:    params.CompanyName,
		CompanyContext: params.CompanyContext,
		AudioKey:       audioKey,
		AudioFileName:  params.AudioFileName,
		ChartKeys:      chartKeys,
		ChartFileNames: chartNames,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return job, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Job, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Job, error) {
	return s.repo.List(ctx, limit, offset)
}

// Process runs the full pipeline for a pending job. A second Process
// call for the same id returns ErrAlreadyRunning. Narrative synthesis
// recovers in place via the fallback report; any other failure marks
// the job failed.
func (s *Service) Process(ctx context.Context, jobID string) error {
	if err := s.repo.MarkProcessing(ctx, jobID); err != nil {
		return err
	}
	metrics.IncJobStarted()
	started := time.Now()

	job, err := s.repo.Get(ctx, jobID)
	if err != nil {
		return err
	}
	job.Status = StatusProcessing

	signal, sampleRate, err := s.runTranscription(ctx, job)
	if err != nil {
		return s.failJob(ctx, job, StageTranscription, err)
	}
	if err := s.runFeatures(ctx, job, signal, sampleRate); err != nil {
		return s.failJob(ctx, job, StageAudioFeatures, err)
	}
	if err := s.runSentiment(ctx, job); err != nil {
		return s.failJob(ctx, job, StageSentiment, err)
	}
	if err := s.runCharts(ctx, job); err != nil {
		return s.failJob(ctx, job, StageCharts, err)
	}
	if err := s.runFusion(ctx, job); err != nil {
		return s.failJob(ctx, job, StageFusion, err)
	}
	if err := s.runNarrative(ctx, job); err != nil {
		return s.failJob(ctx, job, StageNarrative, err)
	}
	if err := s.finalize(ctx, job); err != nil {
		return s.failJob(ctx, job, StageFinalize, err)
	}

	metrics.IncJobCompleted()
	metrics.ObserveJobDurationMs(float64(time.Since(started).Milliseconds()))
	telemetry.Info("job.completed", map[string]any{
		"job_id":      job.ID,
		"duration_ms": time.Since(started).Milliseconds(),
		"risk_level":  job.FusionResult.RiskLevel,
	})
	return nil
}

// runTranscription reads the stored audio once and reuses the bytes
// for both the transcription call and local feature extraction.
func (s *Service) runTranscription(ctx context.Context, job *Job) ([]float64, int, error) {
	defer s.observeStage(StageTranscription)()

	reader, err := s.store.Open(ctx, job.AudioKey)
	if err != nil {
		return nil, 0, fmt.Errorf("open audio: %w", err)
	}
	raw, err := io.ReadAll(reader)
	reader.Close()
	if err != nil {
		return nil, 0, fmt.Errorf("read audio: %w", err)
	}

	signal, sampleRate, err := audio.DecodeWAV(bytes.NewReader(raw))
	if err != nil {
		return nil, 0, err
	}

	transcript, err := s.transcriber.Transcribe(ctx, bytes.NewReader(raw), job.AudioFileName)
	if err != nil {
		return nil, 0, fmt.Errorf("transcribe: %w", err)
	}
	transcript.Segments = transcribe.AssignSpeakers(transcript.Segments)

	job.Transcript = &transcript
	if err := s.checkpoint(ctx, job, StageTranscription, 20); err != nil {
		return nil, 0, err
	}
	return signal, sampleRate, nil
}

func (s *Service) runFeatures(ctx context.Context, job *Job, signal []float64, sampleRate int) error {
	defer s.observeStage(StageAudioFeatures)()

	features, err := s.extractor.Extract(signal, sampleRate)
	if err != nil {
		return err
	}
	job.AudioAnalysis = &features
	return s.checkpoint(ctx, job, StageAudioFeatures, 35)
}

func (s *Service) runSentiment(ctx context.Context, job *Job) error {
	defer s.observeStage(StageSentiment)()

	summary, err := s.sentiments.Analyze(ctx, job.Transcript.Segments)
	if err != nil {
		return fmt.Errorf("sentiment: %w", err)
	}
	job.SentimentAnalysis = &summary
	return s.checkpoint(ctx, job, StageSentiment, 50)
}

// runCharts commits an empty summary when the job has no charts, so
// downstream stages never special-case the chart payload.
func (s *Service) runCharts(ctx context.Context, job *Job) error {
	defer s.observeStage(StageCharts)()

	if len(job.ChartKeys) == 0 {
		summary := charts.EmptySummary()
		job.ChartAnalysis = &summary
		return s.checkpoint(ctx, job, StageCharts, 65)
	}

	images := make([]charts.Image, 0, len(job.ChartKeys))
	for i, key := range job.ChartKeys {
		reader, err := s.store.Open(ctx, key)
		if err != nil {
			return fmt.Errorf("open chart: %w", err)
		}
		data, err := io.ReadAll(reader)
		reader.Close()
		if err != nil {
			return fmt.Errorf("read chart: %w", err)
		}
		fileName := key
		if i < len(job.ChartFileNames) {
			fileName = job.ChartFileNames[i]
		}
		images = append(images, charts.Image{
			FileName:  fileName,
			MediaType: charts.MediaTypeFor(fileName),
			Data:      data,
		})
	}

	summary, err := s.chartReader.Analyze(ctx, images, job.Transcript.FullText, job.CompanyContext)
	if err != nil {
		return fmt.Errorf("chart analysis: %w", err)
	}
	job.ChartAnalysis = &summary
	return s.checkpoint(ctx, job, StageCharts, 65)
}

func (s *Service) runFusion(ctx context.Context, job *Job) error {
	defer s.observeStage(StageFusion)()

	result := s.engine.Fuse(*job.AudioAnalysis, *job.SentimentAnalysis, *job.ChartAnalysis)
	job.FusionResult = &result

	confidence := job.AudioAnalysis.OverallConfidence
	overall := job.SentimentAnalysis.OverallSentiment
	risk := result.RiskLevel
	job.OverallConfidence = &confidence
	job.OverallSentiment = &overall
	job.RiskLevel = &risk

	return s.checkpoint(ctx, job, StageFusion, 75)
}

// runNarrative degrades synthesis errors to the deterministic fallback
// report. Only a failed checkpoint fails the job.
func (s *Service) runNarrative(ctx context.Context, job *Job) error {
	defer s.observeStage(StageNarrative)()

	report, err := s.narrator.Generate(ctx, narrative.Input{
		CompanyName:    job.CompanyName,
		CompanyContext: job.CompanyContext,
		Transcript:     *job.Transcript,
		Features:       *job.AudioAnalysis,
		Sentiment:      *job.SentimentAnalysis,
		Charts:         *job.ChartAnalysis,
		Fusion:         *job.FusionResult,
	})
	if err != nil {
		metrics.IncJobNarrativeFallback()
		telemetry.Warn("job.narrative_fallback", map[string]any{
			"job_id": job.ID,
			"error":  err.Error(),
		})
		report = narrative.Fallback(
			job.CompanyName,
			*job.FusionResult,
			job.AudioAnalysis.OverallConfidence,
			job.SentimentAnalysis.OverallSentiment,
			err.Error(),
		)
	}
	job.Narrative = &report
	return s.checkpoint(ctx, job, StageNarrative, 90)
}

func (s *Service) finalize(ctx context.Context, job *Job) error {
	defer s.observeStage(StageFinalize)()

	now := time.Now().UTC()
	job.Status = StatusCompleted
	job.CompletedAt = &now
	job.ErrorMessage = ""
	if err := s.checkpoint(ctx, job, StageFinalize, 100); err != nil {
		return err
	}
	s.saveResultsArtifact(ctx, job)
	return nil
}

// saveResultsArtifact writes the final payload next to the job's
// uploads so results survive independently of the database. Failures
// are logged, not fatal.
func (s *Service) saveResultsArtifact(ctx context.Context, job *Job) {
	results, ok := job.ResultsView()
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := writeJSON(&buf, results); err != nil {
		telemetry.Warn("job.artifact_failed", map[string]any{"job_id": job.ID, "error": err.Error()})
		return
	}
	key := object.ResultsKey(job.ID)
	if _, err := s.store.SaveWithKey(ctx, key, "application/json", &buf); err != nil {
		telemetry.Warn("job.artifact_failed", map[string]any{"job_id": job.ID, "error": err.Error()})
	}
}

func (s *Service) checkpoint(ctx context.Context, job *Job, stage string, progress int) error {
	job.CurrentStage = stage
	job.Progress = progress
	if err := s.repo.Update(ctx, job); err != nil {
		return fmt.Errorf("checkpoint %s: %w", stage, err)
	}
	telemetry.Info("job.stage_complete", map[string]any{
		"job_id":   job.ID,
		"stage":    stage,
		"progress": progress,
	})
	return nil
}

func (s *Service) failJob(ctx context.Context, job *Job, stage string, cause error) error {
	metrics.IncJobFailed()

	now := time.Now().UTC()
	job.Status = StatusFailed
	job.CurrentStage = stage
	job.ErrorMessage = sanitizeError(stage, cause)
	job.CompletedAt = &now
	if err := s.repo.Update(ctx, job); err != nil {
		telemetry.Error("job.fail_update_failed", map[string]any{
			"job_id": job.ID,
			"error":  err.Error(),
		})
	}
	telemetry.Error("job.failed", map[string]any{
		"job_id": job.ID,
		"stage":  stage,
		"error":  cause.Error(),
	})
	return fmt.Errorf("%s: %w", stage, cause)
}

// sanitizeError turns internal errors into the user-facing message
// stored on the job. Extraction errors keep their reason; everything
// else gets a generic per-stage message.
func sanitizeError(stage string, cause error) string {
	var extraction *audio.ExtractionError
	if errors.As(cause, &extraction) {
		return fmt.Sprintf("Audio analysis failed: %s", extraction.Reason)
	}
	stageName := strings.ReplaceAll(stage, "_", " ")
	return fmt.Sprintf("Analysis failed during %s", stageName)
}

func (s *Service) observeStage(stage string) func() {
	started := time.Now()
	return func() {
		metrics.ObserveStageDurationMs(stage, float64(time.Since(started).Milliseconds()))
	}
}

func writeJSON(buf *bytes.Buffer, v any) error {
	enc := json.NewEncoder(buf)
	return enc.Encode(v)
}
