package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	jobsStartedTotal   atomic.Uint64
	jobsCompletedTotal atomic.Uint64
	jobsFailedTotal    atomic.Uint64
	jobsFallbackTotal  atomic.Uint64

	queueReceivedTotal             atomic.Uint64
	queueCompletedTotal            atomic.Uint64
	queueFailedTotal               atomic.Uint64
	queueDeletedUnrecoverableTotal atomic.Uint64

	jobDuration = newHistogram([]float64{1000, 5000, 15000, 30000, 60000, 120000, 300000, 600000})

	stageDurationBuckets = []float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000}
	stageMu              sync.Mutex
	stageDurations       = map[string]*histogram{}
)

// IncJobStarted increments the started counter.
func IncJobStarted() {
	jobsStartedTotal.Add(1)
}

// IncJobCompleted increments the completed counter.
func IncJobCompleted() {
	jobsCompletedTotal.Add(1)
}

// IncJobFailed increments the failed counter.
func IncJobFailed() {
	jobsFailedTotal.Add(1)
}

// IncJobNarrativeFallback increments the narrative-fallback counter.
func IncJobNarrativeFallback() {
	jobsFallbackTotal.Add(1)
}

// IncQueueJobsReceived increments the queue received counter.
func IncQueueJobsReceived() {
	queueReceivedTotal.Add(1)
}

// IncQueueJobsCompleted increments the queue completed counter.
func IncQueueJobsCompleted() {
	queueCompletedTotal.Add(1)
}

// IncQueueJobsFailed increments the queue failed counter.
func IncQueueJobsFailed() {
	queueFailedTotal.Add(1)
}

// IncQueueJobsDeletedUnrecoverable counts messages dropped as unrecoverable.
func IncQueueJobsDeletedUnrecoverable() {
	queueDeletedUnrecoverableTotal.Add(1)
}

// ObserveJobDurationMs records a whole-job duration in milliseconds.
func ObserveJobDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	jobDuration.Observe(value)
}

// ObserveStageDurationMs records a single pipeline-stage duration in
// milliseconds under a per-stage label.
func ObserveStageDurationMs(stage string, value float64) {
	if value < 0 {
		value = 0
	}
	stageMu.Lock()
	h, ok := stageDurations[stage]
	if !ok {
		h = newHistogram(stageDurationBuckets)
		stageDurations[stage] = h
	}
	stageMu.Unlock()
	h.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "analysis_jobs_started_total", "Total analysis jobs started", jobsStartedTotal.Load())
	writeCounter(&buf, "analysis_jobs_completed_total", "Total analysis jobs completed", jobsCompletedTotal.Load())
	writeCounter(&buf, "analysis_jobs_failed_total", "Total analysis jobs failed", jobsFailedTotal.Load())
	writeCounter(&buf, "analysis_jobs_narrative_fallback_total", "Total jobs completed with the fallback narrative", jobsFallbackTotal.Load())
	writeCounter(&buf, "queue_jobs_received_total", "Total queue messages received", queueReceivedTotal.Load())
	writeCounter(&buf, "queue_jobs_completed_total", "Total queue messages completed", queueCompletedTotal.Load())
	writeCounter(&buf, "queue_jobs_failed_total", "Total queue messages failed", queueFailedTotal.Load())
	writeCounter(&buf, "queue_jobs_deleted_unrecoverable_total", "Total queue messages dropped as unrecoverable", queueDeletedUnrecoverableTotal.Load())
	writeHistogram(&buf, "analysis_job_duration_ms", "Whole-job duration in milliseconds", jobDuration.Snapshot())
	writeStageHistograms(&buf)
	return buf.String()
}

func writeStageHistograms(buf *bytes.Buffer) {
	stageMu.Lock()
	stages := make([]string, 0, len(stageDurations))
	snaps := make(map[string]histogramSnapshot, len(stageDurations))
	for stage, h := range stageDurations {
		stages = append(stages, stage)
		snaps[stage] = h.Snapshot()
	}
	stageMu.Unlock()
	sort.Strings(stages)

	const name = "analysis_stage_duration_ms"
	fmt.Fprintf(buf, "# HELP %s Pipeline stage duration in milliseconds\n", name)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	for _, stage := range stages {
		writeHistogramSeries(buf, name, fmt.Sprintf("stage=%q,", stage), snaps[stage])
	}
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
	return out
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	writeHistogramSeries(buf, name, "", snap)
}

// writeHistogramSeries renders one histogram series. labels is either
// empty or a trailing-comma label list like `stage="fusion",`.
func writeHistogramSeries(buf *bytes.Buffer, name, labels string, snap histogramSnapshot) {
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{%sle=\"%s\"} %d\n", name, labels, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{%sle=\"+Inf\"} %d\n", name, labels, snap.count)
	if labels == "" {
		fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
		fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
		return
	}
	trimmed := strings.TrimSuffix(labels, ",")
	fmt.Fprintf(buf, "%s_sum{%s} %s\n", name, trimmed, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count{%s} %d\n", name, trimmed, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
