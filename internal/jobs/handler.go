package jobs

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"callsight-backend/internal/shared/server/middleware"
	"callsight-backend/internal/shared/server/respond"
	"callsight-backend/internal/shared/telemetry"
	"callsight-backend/internal/shared/util"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	maxChartCount    = 10
)

// Handler exposes the job endpoints.
type Handler struct {
	service *Service
	starter Starter

	maxAudioBytes int64
	maxChartBytes int64
}

func NewHandler(service *Service, starter Starter, maxAudioBytes, maxChartBytes int64) *Handler {
	return &Handler{
		service:       service,
		starter:       starter,
		maxAudioBytes: maxAudioBytes,
		maxChartBytes: maxChartBytes,
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/jobs", h.create)
	rg.GET("/jobs", h.list)
	rg.GET("/jobs/:id", h.get)
	rg.GET("/jobs/:id/results", h.results)
}

func (h *Handler) create(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_form", "expected multipart form data", nil)
		return
	}

	audioHeaders := form.File["audio"]
	if len(audioHeaders) != 1 {
		respond.Error(c, http.StatusBadRequest, "audio_required", "exactly one audio file is required", nil)
		return
	}
	audioHeader := audioHeaders[0]
	if h.maxAudioBytes > 0 && audioHeader.Size > h.maxAudioBytes {
		respond.Error(c, http.StatusRequestEntityTooLarge, "audio_too_large",
			"audio file exceeds the size limit", gin.H{"max_bytes": h.maxAudioBytes})
		return
	}
	audioName, err := util.SanitizeFileName(audioHeader.Filename)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_filename", "invalid audio file name", nil)
		return
	}

	chartHeaders := form.File["charts"]
	if len(chartHeaders) > maxChartCount {
		respond.Error(c, http.StatusBadRequest, "too_many_charts",
			"too many chart images", gin.H{"max": maxChartCount})
		return
	}

	audioFile, err := audioHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_upload", "could not read audio upload", nil)
		return
	}
	defer audioFile.Close()

	chartUploads := make([]ChartUpload, 0, len(chartHeaders))
	chartFiles := make([]multipart.File, 0, len(chartHeaders))
	defer func() {
		for _, f := range chartFiles {
			f.Close()
		}
	}()
	for _, header := range chartHeaders {
		if h.maxChartBytes > 0 && header.Size > h.maxChartBytes {
			respond.Error(c, http.StatusRequestEntityTooLarge, "chart_too_large",
				"chart image exceeds the size limit", gin.H{"max_bytes": h.maxChartBytes, "file": header.Filename})
			return
		}
		name, err := util.SanitizeFileName(header.Filename)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "invalid_filename", "invalid chart file name", nil)
			return
		}
		f, err := header.Open()
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "invalid_upload", "could not read chart upload", nil)
			return
		}
		chartFiles = append(chartFiles, f)
		chartUploads = append(chartUploads, ChartUpload{FileName: name, Reader: f})
	}

	job, err := h.service.Create(c.Request.Context(), CreateParams{
		CompanyName:    strings.TrimSpace(c.PostForm("company_name")),
		CompanyContext: strings.TrimSpace(c.PostForm("company_context")),
		AudioFileName:  audioName,
		Audio:          audioFile,
		Charts:         chartUploads,
	})
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "create_failed", "could not create analysis job", nil)
		return
	}
	c.Set("jobId", job.ID)
	c.Set("statusTransition", "->pending")

	startCtx := middleware.WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	if err := h.starter.Start(startCtx, job.ID); err != nil {
		telemetry.Error("jobs.start_failed", map[string]any{
			"job_id": job.ID,
			"error":  err.Error(),
		})
		respond.Error(c, http.StatusServiceUnavailable, "start_failed", "analysis capacity exhausted, retry later", nil)
		return
	}

	respond.JSON(c, http.StatusAccepted, job.StatusView())
}

func (h *Handler) get(c *gin.Context) {
	id := c.Param("id")
	c.Set("jobId", id)

	job, err := h.service.Get(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		respond.Error(c, http.StatusNotFound, "not_found", "job not found", nil)
		return
	}
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal", "could not load job", nil)
		return
	}
	respond.OK(c, job.StatusView())
}

func (h *Handler) results(c *gin.Context) {
	id := c.Param("id")
	c.Set("jobId", id)

	job, err := h.service.Get(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		respond.Error(c, http.StatusNotFound, "not_found", "job not found", nil)
		return
	}
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal", "could not load job", nil)
		return
	}

	if job.Status == StatusFailed {
		respond.Error(c, http.StatusConflict, "job_failed", job.ErrorMessage, nil)
		return
	}
	results, ok := job.ResultsView()
	if !ok {
		respond.Error(c, http.StatusConflict, "not_completed", "job has not completed yet",
			gin.H{"status": job.Status, "progress": job.Progress})
		return
	}
	respond.OK(c, results)
}

func (h *Handler) list(c *gin.Context) {
	limit := queryInt(c, "limit", defaultListLimit)
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := queryInt(c, "offset", 0)

	jobs, err := h.service.List(c.Request.Context(), limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal", "could not list jobs", nil)
		return
	}

	views := make([]StatusView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, job.StatusView())
	}
	respond.OK(c, gin.H{"jobs": views, "limit": limit, "offset": offset})
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
