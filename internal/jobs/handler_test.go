package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"callsight-backend/internal/audio"
	"callsight-backend/internal/fusion"
	"callsight-backend/internal/shared/storage/object/local"
)

type recordingStarter struct {
	started []string
	err     error
}

func (r *recordingStarter) Start(_ context.Context, jobID string) error {
	if r.err != nil {
		return r.err
	}
	r.started = append(r.started, jobID)
	return nil
}

func newTestRouter(t *testing.T, starter Starter) (*gin.Engine, *Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	service := NewService(
		NewMemoryRepo(),
		local.New(t.TempDir()),
		&fakeTranscriber{},
		&fakeSentiment{},
		&fakeCharts{},
		audio.NewExtractor(audio.DefaultConfig()),
		fusion.NewEngine(fusion.DefaultConfig()),
		&fakeNarrator{},
	)
	handler := NewHandler(service, starter, 10*1024*1024, 1024*1024)

	r := gin.New()
	handler.RegisterRoutes(r.Group("/api/v1"))
	return r, service
}

func multipartJob(t *testing.T, includeAudio bool) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if includeAudio {
		part, err := w.CreateFormFile("audio", "call.wav")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		part.Write(testWAV(t))
	}
	w.WriteField("company_name", "Acme Corp")
	w.WriteField("company_context", "Industrial conglomerate")
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &body, w.FormDataContentType()
}

func TestCreateJobAccepted(t *testing.T) {
	starter := &recordingStarter{}
	router, _ := newTestRouter(t, starter)

	body, contentType := multipartJob(t, true)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var view StatusView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Status != StatusPending || view.CompanyName != "Acme Corp" {
		t.Errorf("view = %+v", view)
	}
	if len(starter.started) != 1 || starter.started[0] != view.ID {
		t.Errorf("starter saw %v, want [%s]", starter.started, view.ID)
	}
}

func TestCreateJobRequiresAudio(t *testing.T) {
	router, _ := newTestRouter(t, &recordingStarter{})

	body, contentType := multipartJob(t, false)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGetJobStatusAndResults(t *testing.T) {
	router, service := newTestRouter(t, &recordingStarter{})

	job, err := service.Create(context.Background(), CreateParams{
		CompanyName:   "Acme Corp",
		AudioFileName: "call.wav",
		Audio:         bytes.NewReader(testWAV(t)),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Results before completion are a conflict.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+job.ID+"/results", nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("results before completion = %d, want 409", rec.Code)
	}

	if err := service.Process(context.Background(), job.ID); err != nil {
		t.Fatalf("process: %v", err)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+job.ID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var view StatusView
	json.Unmarshal(rec.Body.Bytes(), &view)
	if view.Status != StatusCompleted || view.Progress != 100 {
		t.Errorf("view = %+v", view)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+job.ID+"/results", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("results = %d, body = %s", rec.Code, rec.Body.String())
	}
	var results Results
	if err := json.Unmarshal(rec.Body.Bytes(), &results); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if results.JobID != job.ID || results.Narrative.ExecutiveSummary == "" {
		t.Errorf("results = %+v", results)
	}
}

func TestGetJobNotFound(t *testing.T) {
	router, _ := newTestRouter(t, &recordingStarter{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/unknown", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestListJobsNewestFirst(t *testing.T) {
	router, service := newTestRouter(t, &recordingStarter{})

	for i := 0; i < 3; i++ {
		_, err := service.Create(context.Background(), CreateParams{
			CompanyName:   "Acme Corp",
			AudioFileName: "call.wav",
			Audio:         bytes.NewReader(testWAV(t)),
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs?limit=2", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var payload struct {
		Jobs  []StatusView `json:"jobs"`
		Limit int          `json:"limit"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Jobs) != 2 || payload.Limit != 2 {
		t.Fatalf("payload = %+v", payload)
	}
	if payload.Jobs[0].CreatedAt.Before(payload.Jobs[1].CreatedAt) {
		t.Error("jobs not ordered newest first")
	}
}

func TestCreateJobStartFailure(t *testing.T) {
	router, _ := newTestRouter(t, &recordingStarter{err: context.DeadlineExceeded})

	body, contentType := multipartJob(t, true)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}
