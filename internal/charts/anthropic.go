package charts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

const messagesURL = "https://api.anthropic.com/v1/messages"

// AnthropicClient analyzes chart images with a vision-capable Claude model.
type AnthropicClient struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewAnthropicClient constructs a chart analysis client.
func NewAnthropicClient(apiKey, model string) (*AnthropicClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("ANTHROPIC_MODEL is required")
	}
	timeout := 120 * time.Second
	if raw := strings.TrimSpace(os.Getenv("ANTHROPIC_TIMEOUT_SECONDS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			timeout = time.Duration(parsed) * time.Second
		}
	}
	return &AnthropicClient{
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type contentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Analyze sends each chart through the vision model and merges the parsed
// per-chart results. A single failed chart degrades to a placeholder
// description rather than failing the stage.
func (c *AnthropicClient) Analyze(ctx context.Context, images []Image, transcriptText, companyContext string) (Summary, error) {
	summary := EmptySummary()
	if len(images) == 0 {
		return summary, nil
	}

	prompt := buildChartPrompt(transcriptText, companyContext)
	for _, img := range images {
		text, err := c.analyzeOne(ctx, img, prompt)
		if err != nil {
			summary.ChartDescriptions = append(summary.ChartDescriptions,
				fmt.Sprintf("Failed to analyze chart: %v", err))
			continue
		}
		parsed := parseChartResponse(text)
		summary.ChartDescriptions = append(summary.ChartDescriptions, parsed.Description)
		summary.ExtractedData = append(summary.ExtractedData, parsed.Data...)
		summary.Inconsistencies = append(summary.Inconsistencies, parsed.Inconsistencies...)
	}
	return summary, nil
}

func (c *AnthropicClient) analyzeOne(ctx context.Context, img Image, prompt string) (string, error) {
	mediaType := img.MediaType
	if mediaType == "" {
		mediaType = "image/jpeg"
	}
	payload := messagesRequest{
		Model:     c.model,
		MaxTokens: 2000,
		Messages: []message{{
			Role: "user",
			Content: []contentBlock{
				{
					Type: "image",
					Source: &imageSource{
						Type:      "base64",
						MediaType: mediaType,
						Data:      base64.StdEncoding.EncodeToString(img.Data),
					},
				},
				{Type: "text", Text: prompt},
			},
		}},
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, messagesURL, bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	var out messagesResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("chart analysis decode: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("chart analysis %s: %s", out.Error.Type, out.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chart analysis %s", resp.Status)
	}

	var text strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return text.String(), nil
}

func buildChartPrompt(transcriptText, companyContext string) string {
	var b strings.Builder
	b.WriteString(`Analyze this financial chart in detail. Please provide:

1. **Chart Description**: What type of chart is this? (line, bar, pie, etc.) What does it show?

2. **Key Data Points**: Extract specific numbers, trends, and metrics shown in the chart.

3. **Trends & Insights**: What trends or patterns are visible?

4. **Inconsistencies**: If provided with transcript context below, identify any discrepancies between what the chart shows and what was stated verbally.
`)

	if companyContext != "" {
		fmt.Fprintf(&b, "\n**Company Context**: %s\n", companyContext)
	}
	if transcriptText != "" {
		words := strings.Fields(transcriptText)
		if len(words) > 500 {
			words = words[:500]
		}
		fmt.Fprintf(&b, "\n**Transcript Excerpt**: %s...\n", strings.Join(words, " "))
	}

	b.WriteString(`
Please structure your response as follows:

DESCRIPTION: [Brief description of the chart]

DATA:
- [Key data point 1]
- [Key data point 2]

TRENDS:
- [Trend 1]

INCONSISTENCIES:
- [Any inconsistency found, or "None detected"]
`)
	return b.String()
}

var _ Client = (*AnthropicClient)(nil)
