package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"callsight-backend/internal/transcribe"
)

// HTTPClient calls an external sentiment service over HTTP.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient constructs a sentiment client for the given base URL.
func NewHTTPClient(baseURL string) (*HTTPClient, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("SENTIMENT_URL is required")
	}
	timeout := 120 * time.Second
	if raw := strings.TrimSpace(os.Getenv("SENTIMENT_TIMEOUT_SECONDS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			timeout = time.Duration(parsed) * time.Second
		}
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type analyzeRequest struct {
	Segments []transcribe.Segment `json:"segments"`
}

// Analyze posts the segments to /analyze and enriches the response with the
// locally computed topics, metrics, and discourse comparison.
func (c *HTTPClient) Analyze(ctx context.Context, segments []transcribe.Segment) (Summary, error) {
	raw, err := json.Marshal(analyzeRequest{Segments: segments})
	if err != nil {
		return Summary{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(raw))
	if err != nil {
		return Summary{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Summary{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return Summary{}, fmt.Errorf("sentiment %s: %s", resp.Status, string(body))
	}

	var out Summary
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Summary{}, fmt.Errorf("sentiment decode: %w", err)
	}

	fullText := joinSegmentText(segments)
	if len(out.KeyTopics) == 0 {
		out.KeyTopics = ExtractKeyTopics(fullText)
	}
	if len(out.FinancialMetrics) == 0 {
		out.FinancialMetrics = ExtractFinancialMetrics(fullText)
	}
	if out.Discourse == nil {
		discourse := SeparatePreparedQA(out.Segments)
		out.Discourse = &discourse
	}
	return out, nil
}

func joinSegmentText(segments []transcribe.Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		parts = append(parts, seg.Text)
	}
	return strings.Join(parts, " ")
}

var _ Client = (*HTTPClient)(nil)
