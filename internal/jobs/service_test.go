package jobs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"strings"
	"testing"

	"callsight-backend/internal/audio"
	"callsight-backend/internal/charts"
	"callsight-backend/internal/fusion"
	"callsight-backend/internal/narrative"
	"callsight-backend/internal/sentiment"
	"callsight-backend/internal/shared/storage/object/local"
	"callsight-backend/internal/transcribe"
)

type fakeTranscriber struct {
	err error
}

func (f *fakeTranscriber) Transcribe(_ context.Context, r io.Reader, _ string) (transcribe.Transcript, error) {
	if f.err != nil {
		return transcribe.Transcript{}, f.err
	}
	io.Copy(io.Discard, r)
	return transcribe.Transcript{
		FullText: "Revenue grew twelve percent this quarter.",
		Segments: []transcribe.Segment{
			{Text: "Revenue grew twelve percent this quarter.", StartTime: 0, EndTime: 3},
		},
		Language: "en",
		Duration: 3,
	}, nil
}

type fakeSentiment struct {
	err error
}

func (f *fakeSentiment) Analyze(_ context.Context, segments []transcribe.Segment) (sentiment.Summary, error) {
	if f.err != nil {
		return sentiment.Summary{}, f.err
	}
	analyzed := make([]sentiment.AnalyzedSegment, len(segments))
	for i, seg := range segments {
		analyzed[i] = sentiment.AnalyzedSegment{Segment: seg, Sentiment: sentiment.Positive, SentimentScore: 0.8}
	}
	return sentiment.Summary{
		Segments:         analyzed,
		OverallSentiment: sentiment.Positive,
		SentimentDistribution: sentiment.DistributionStats{
			Positive: 0.7, Neutral: 0.2, Negative: 0.1,
		},
		KeyTopics:        []string{"Revenue Growth"},
		FinancialMetrics: []sentiment.FinancialMetric{},
	}, nil
}

type fakeCharts struct {
	calls int
}

func (f *fakeCharts) Analyze(_ context.Context, images []charts.Image, _, _ string) (charts.Summary, error) {
	f.calls++
	summary := charts.EmptySummary()
	for range images {
		summary.ChartDescriptions = append(summary.ChartDescriptions, "Revenue bar chart")
	}
	return summary, nil
}

type fakeNarrator struct {
	err   error
	calls int
}

func (f *fakeNarrator) Generate(_ context.Context, _ narrative.Input) (narrative.Report, error) {
	f.calls++
	if f.err != nil {
		return narrative.Report{}, f.err
	}
	return narrative.Report{
		ExecutiveSummary:      "Strong quarter.",
		RiskIndicators:        []string{},
		Opportunities:         []string{},
		RedFlags:              []string{},
		ConfidenceAssessment:  "High.",
		OverallRecommendation: "BULLISH",
	}, nil
}

func testWAV(t *testing.T) []byte {
	t.Helper()
	sampleRate := 8000
	signal := make([]float64, sampleRate*2)
	for i := range signal {
		signal[i] = 0.4 * math.Sin(2*math.Pi*120*float64(i)/float64(sampleRate))
	}
	var buf bytes.Buffer
	if err := audio.EncodeWAV(&buf, signal, sampleRate); err != nil {
		t.Fatalf("encode wav: %v", err)
	}
	return buf.Bytes()
}

type pipeline struct {
	service  *Service
	repo     *MemoryRepo
	narrator *fakeNarrator
	charts   *fakeCharts
}

func newPipeline(t *testing.T, narrator *fakeNarrator, transcriber transcribe.Client) pipeline {
	t.Helper()
	repo := NewMemoryRepo()
	store := local.New(t.TempDir())
	if narrator == nil {
		narrator = &fakeNarrator{}
	}
	if transcriber == nil {
		transcriber = &fakeTranscriber{}
	}
	chartClient := &fakeCharts{}
	service := NewService(
		repo,
		store,
		transcriber,
		&fakeSentiment{},
		chartClient,
		audio.NewExtractor(audio.DefaultConfig()),
		fusion.NewEngine(fusion.DefaultConfig()),
		narrator,
	)
	return pipeline{service: service, repo: repo, narrator: narrator, charts: chartClient}
}

func createJob(t *testing.T, p pipeline) *Job {
	t.Helper()
	job, err := p.service.Create(context.Background(), CreateParams{
		CompanyName:   "Acme Corp",
		AudioFileName: "call.wav",
		Audio:         bytes.NewReader(testWAV(t)),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return job
}

func TestProcessCompletesJob(t *testing.T) {
	p := newPipeline(t, nil, nil)
	job := createJob(t, p)

	if err := p.service.Process(context.Background(), job.ID); err != nil {
		t.Fatalf("process: %v", err)
	}

	got, err := p.repo.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("status = %q, want completed (error: %q)", got.Status, got.ErrorMessage)
	}
	if got.Progress != 100 || got.CurrentStage != StageFinalize {
		t.Errorf("progress = %d stage = %q", got.Progress, got.CurrentStage)
	}
	if got.CompletedAt == nil {
		t.Error("completed_at not set")
	}
	if got.Transcript == nil || got.AudioAnalysis == nil || got.SentimentAnalysis == nil ||
		got.ChartAnalysis == nil || got.FusionResult == nil || got.Narrative == nil {
		t.Error("completed job is missing stage outputs")
	}
	if got.OverallConfidence == nil || got.OverallSentiment == nil || got.RiskLevel == nil {
		t.Error("summary columns not populated")
	}
	if _, ok := got.ResultsView(); !ok {
		t.Error("results view unavailable for completed job")
	}
	// No charts were uploaded, so the chart client must not be called
	// and the committed summary must be empty but present.
	if p.charts.calls != 0 {
		t.Errorf("chart client called %d times for chartless job", p.charts.calls)
	}
	if got.ChartAnalysis.ChartDescriptions == nil {
		t.Error("chart summary lists should be empty, not nil")
	}
}

func TestProcessNarrativeFailureStillCompletes(t *testing.T) {
	narrator := &fakeNarrator{err: errors.New("model timeout")}
	p := newPipeline(t, narrator, nil)
	job := createJob(t, p)

	if err := p.service.Process(context.Background(), job.ID); err != nil {
		t.Fatalf("process: %v", err)
	}

	got, _ := p.repo.Get(context.Background(), job.ID)
	if got.Status != StatusCompleted {
		t.Fatalf("status = %q, want completed", got.Status)
	}
	if got.Narrative == nil || got.Narrative.ExecutiveSummary == "" {
		t.Fatal("fallback narrative missing")
	}
	if !strings.Contains(got.Narrative.ExecutiveSummary, "Acme Corp") {
		t.Errorf("fallback summary = %q", got.Narrative.ExecutiveSummary)
	}
	if got.Narrative.OverallRecommendation != "Review detailed multi-modal analysis sections for insights." {
		t.Errorf("fallback recommendation = %q", got.Narrative.OverallRecommendation)
	}
}

func TestProcessStageFailureMarksJobFailed(t *testing.T) {
	p := newPipeline(t, nil, &fakeTranscriber{err: errors.New("service down")})
	job := createJob(t, p)

	if err := p.service.Process(context.Background(), job.ID); err == nil {
		t.Fatal("expected process error")
	}

	got, _ := p.repo.Get(context.Background(), job.ID)
	if got.Status != StatusFailed {
		t.Fatalf("status = %q, want failed", got.Status)
	}
	if got.ErrorMessage == "" {
		t.Error("failed job needs a user-facing error message")
	}
	if strings.Contains(got.ErrorMessage, "service down") {
		t.Errorf("internal error leaked: %q", got.ErrorMessage)
	}
	if got.CompletedAt == nil {
		t.Error("failed job needs a completion timestamp")
	}
	if _, ok := got.ResultsView(); ok {
		t.Error("failed job must not expose results")
	}
}

// flakyRepo fails the first Update committed at failStage and behaves
// normally afterwards.
type flakyRepo struct {
	*MemoryRepo
	failStage string
	tripped   bool
}

func (r *flakyRepo) Update(ctx context.Context, job *Job) error {
	if !r.tripped && job.CurrentStage == r.failStage {
		r.tripped = true
		return errors.New("connection reset")
	}
	return r.MemoryRepo.Update(ctx, job)
}

func TestProcessNarrativeCheckpointFailureFailsJob(t *testing.T) {
	repo := &flakyRepo{MemoryRepo: NewMemoryRepo(), failStage: StageNarrative}
	service := NewService(
		repo,
		local.New(t.TempDir()),
		&fakeTranscriber{},
		&fakeSentiment{},
		&fakeCharts{},
		audio.NewExtractor(audio.DefaultConfig()),
		fusion.NewEngine(fusion.DefaultConfig()),
		&fakeNarrator{},
	)
	job, err := service.Create(context.Background(), CreateParams{
		CompanyName:   "Acme Corp",
		AudioFileName: "call.wav",
		Audio:         bytes.NewReader(testWAV(t)),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := service.Process(context.Background(), job.ID); err == nil {
		t.Fatal("expected process error")
	}

	got, _ := repo.Get(context.Background(), job.ID)
	if got.Status != StatusFailed {
		t.Fatalf("status = %q, want failed", got.Status)
	}
	if got.ErrorMessage != "Analysis failed during narrative" {
		t.Errorf("error message = %q", got.ErrorMessage)
	}
	if got.CompletedAt == nil {
		t.Error("failed job needs a completion timestamp")
	}
}

func TestProcessRejectsDuplicateStart(t *testing.T) {
	p := newPipeline(t, nil, nil)
	job := createJob(t, p)

	if err := p.service.Process(context.Background(), job.ID); err != nil {
		t.Fatalf("first process: %v", err)
	}
	err := p.service.Process(context.Background(), job.ID)
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second process err = %v, want ErrAlreadyRunning", err)
	}
	// The completed record is untouched by the rejected attempt.
	got, _ := p.repo.Get(context.Background(), job.ID)
	if got.Status != StatusCompleted {
		t.Errorf("status = %q after rejected restart", got.Status)
	}
	if p.narrator.calls != 1 {
		t.Errorf("narrator called %d times, want 1", p.narrator.calls)
	}
}

func TestProcessUnknownJob(t *testing.T) {
	p := newPipeline(t, nil, nil)
	err := p.service.Process(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryRepoRoundTripPreservesStageOutputs(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	job := &Job{
		ID:             "job-1",
		Status:         StatusPending,
		CompanyName:    "Acme Corp",
		AudioKey:       "ns/audio.wav",
		AudioFileName:  "audio.wav",
		ChartKeys:      []string{"ns/c1.png"},
		ChartFileNames: []string{"c1.png"},
	}
	if err := repo.Create(ctx, job); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.MarkProcessing(ctx, job.ID); err != nil {
		t.Fatalf("mark processing: %v", err)
	}

	job.Status = StatusProcessing
	job.Progress = 75
	job.CurrentStage = StageFusion
	job.FusionResult = &fusion.Result{
		CredibilityScore: 0.755,
		RiskLevel:        "medium",
		Discrepancies:    []fusion.Discrepancy{{Type: "audio_text_mismatch", Severity: "high"}},
		FusionInsights:   []string{"insight"},
		AttentionWeights: fusion.AttentionWeights{Audio: 0.33, Text: 0.33, Chart: 0.34},
	}
	if err := repo.Update(ctx, job); err != nil {
		t.Fatalf("update: %v", err)
	}

	reloaded, err := repo.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if reloaded.FusionResult == nil || reloaded.FusionResult.CredibilityScore != 0.755 {
		t.Errorf("fusion result did not round trip: %+v", reloaded.FusionResult)
	}
	if reloaded.AudioKey != "ns/audio.wav" || len(reloaded.ChartKeys) != 1 {
		t.Errorf("storage keys did not round trip")
	}

	// Mutating the returned job must not change the stored copy.
	reloaded.FusionResult.CredibilityScore = 0
	again, _ := repo.Get(ctx, job.ID)
	if again.FusionResult.CredibilityScore != 0.755 {
		t.Error("repo shares mutable state with callers")
	}
}
