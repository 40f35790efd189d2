package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// HTTPClient calls an external speech-to-text service over HTTP.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient constructs a transcription client for the given base URL.
func NewHTTPClient(baseURL string) (*HTTPClient, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("TRANSCRIBE_URL is required")
	}
	timeout := 300 * time.Second
	if raw := strings.TrimSpace(os.Getenv("TRANSCRIBE_TIMEOUT_SECONDS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			timeout = time.Duration(parsed) * time.Second
		}
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Transcribe posts the audio as multipart form data to /transcribe.
func (c *HTTPClient) Transcribe(ctx context.Context, audio io.Reader, fileName string) (Transcript, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	fw, err := w.CreateFormFile("file", fileName)
	if err != nil {
		return Transcript{}, err
	}
	if _, err := io.Copy(fw, audio); err != nil {
		return Transcript{}, err
	}
	if err := w.Close(); err != nil {
		return Transcript{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcribe", &body)
	if err != nil {
		return Transcript{}, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Transcript{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return Transcript{}, fmt.Errorf("transcribe %s: %s", resp.Status, string(raw))
	}

	var out Transcript
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Transcript{}, fmt.Errorf("transcribe decode: %w", err)
	}
	if out.FullText == "" && len(out.Segments) > 0 {
		parts := make([]string, 0, len(out.Segments))
		for _, seg := range out.Segments {
			parts = append(parts, seg.Text)
		}
		out.FullText = strings.Join(parts, " ")
	}
	return out, nil
}

var _ Client = (*HTTPClient)(nil)
