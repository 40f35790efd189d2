package narrative

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
)

const messagesURL = "https://api.anthropic.com/v1/messages"

// AnthropicClient synthesizes the narrative report with a Claude model.
// The analysis framework lives in the system prompt so providers that
// support prompt caching can reuse it across jobs.
type AnthropicClient struct {
	apiKey     string
	model      string
	maxTokens  int
	httpClient *http.Client
}

func NewAnthropicClient(apiKey, model string) (*AnthropicClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("ANTHROPIC_MODEL is required")
	}
	timeout := 180 * time.Second
	if raw := strings.TrimSpace(os.Getenv("ANTHROPIC_TIMEOUT_SECONDS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			timeout = time.Duration(parsed) * time.Second
		}
	}
	return &AnthropicClient{
		apiKey:     apiKey,
		model:      model,
		maxTokens:  4096,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type systemBlock struct {
	Type         string          `json:"type"`
	Text         string          `json:"text"`
	CacheControl json.RawMessage `json:"cache_control,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    []systemBlock `json:"system"`
	Messages  []chatMessage `json:"messages"`
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

func (c *AnthropicClient) Generate(ctx context.Context, in Input) (Report, error) {
	payload := messagesRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System: []systemBlock{{
			Type:         "text",
			Text:         systemPrompt,
			CacheControl: json.RawMessage(`{"type":"ephemeral"}`),
		}},
		Messages: []chatMessage{{
			Role:    "user",
			Content: buildUserMessage(in),
		}},
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return Report{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, messagesURL, bytes.NewReader(raw))
	if err != nil {
		return Report{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Report{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Report{}, err
	}
	var out messagesResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return Report{}, fmt.Errorf("narrative decode: %w", err)
	}
	if out.Error != nil {
		return Report{}, fmt.Errorf("narrative %s: %s", out.Error.Type, out.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return Report{}, fmt.Errorf("narrative %s", resp.Status)
	}

	var text strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return Parse(text.String()), nil
}

func buildUserMessage(in Input) string {
	companyName := in.CompanyName
	if companyName == "" {
		companyName = "Company"
	}
	companyContext := in.CompanyContext
	if companyContext == "" {
		companyContext = "Not provided"
	}

	stressTypes := make([]string, 0, len(in.Features.StressIndicators))
	for _, ind := range in.Features.StressIndicators {
		stressTypes = append(stressTypes, ind.Type)
	}
	discrepancyDescs := make([]string, 0, len(in.Fusion.Discrepancies))
	for _, d := range in.Fusion.Discrepancies {
		discrepancyDescs = append(discrepancyDescs, d.Description)
	}

	excerpt := in.Transcript.FullText
	if len(excerpt) > 1500 {
		excerpt = excerpt[:1500]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## EARNINGS CALL ANALYSIS DATA FOR: %s\n\n", companyName)
	fmt.Fprintf(&b, "### Company Context\n%s\n\n", companyContext)

	b.WriteString("### Audio Analysis (Vocal Biomarkers)\n")
	fmt.Fprintf(&b, "- Overall Confidence Score: %.2f/1.0\n", in.Features.OverallConfidence)
	fmt.Fprintf(&b, "- Stress Indicators: %d detected\n", len(in.Features.StressIndicators))
	fmt.Fprintf(&b, "- Speech Rate: %.2f segments/second\n", in.Features.Prosody.SpeechRate)
	fmt.Fprintf(&b, "- Pitch Variation: %.3f\n", in.Features.Pitch.Variation)
	fmt.Fprintf(&b, "- Voice Quality Issues: %s\n\n", strings.Join(stressTypes, ", "))

	b.WriteString("### Text Sentiment Analysis\n")
	fmt.Fprintf(&b, "- Overall Sentiment: %s\n", in.Sentiment.OverallSentiment)
	fmt.Fprintf(&b, "- Sentiment Distribution: positive %.2f, neutral %.2f, negative %.2f\n",
		in.Sentiment.SentimentDistribution.Positive,
		in.Sentiment.SentimentDistribution.Neutral,
		in.Sentiment.SentimentDistribution.Negative)
	fmt.Fprintf(&b, "- Key Topics: %s\n", strings.Join(in.Sentiment.KeyTopics, ", "))
	fmt.Fprintf(&b, "- Financial Metrics Mentioned: %d metrics\n\n", len(in.Sentiment.FinancialMetrics))

	fmt.Fprintf(&b, "### Transcript Excerpt\n%s...\n\n", excerpt)

	b.WriteString("### Chart Analysis\n")
	fmt.Fprintf(&b, "- Charts Analyzed: %d\n", len(in.Charts.ChartDescriptions))
	fmt.Fprintf(&b, "- Key Data Points: %d\n", len(in.Charts.ExtractedData))
	fmt.Fprintf(&b, "- Inconsistencies Detected: %d\n\n", len(in.Charts.Inconsistencies))
	b.WriteString(formatChartInsights(in))

	b.WriteString("\n### Multi-Modal Fusion Results\n")
	fmt.Fprintf(&b, "- Unified Credibility Score: %.2f/1.0\n", in.Fusion.CredibilityScore)
	fmt.Fprintf(&b, "- Risk Level: %s\n", in.Fusion.RiskLevel)
	fmt.Fprintf(&b, "- Key Discrepancies: %s\n", strings.Join(discrepancyDescs, ", "))

	b.WriteString("\n---\n\nPlease provide your comprehensive analysis following the structured format specified in the system prompt. Focus on what makes this analysis unique: the combination of vocal stress detection, sentiment analysis, and chart verification.")
	return b.String()
}

func formatChartInsights(in Input) string {
	if len(in.Charts.ChartDescriptions) == 0 {
		return "No charts provided.\n"
	}
	var b strings.Builder
	b.WriteString("#### Chart Insights:\n")
	for i, desc := range in.Charts.ChartDescriptions {
		fmt.Fprintf(&b, "\n**Chart %d**: %s\n", i+1, desc)
	}
	if len(in.Charts.Inconsistencies) > 0 {
		b.WriteString("\n**Inconsistencies Found**:\n")
		for _, incon := range in.Charts.Inconsistencies {
			fmt.Fprintf(&b, "- %s\n", incon.Description)
		}
	}
	return b.String()
}

var _ Client = (*AnthropicClient)(nil)

const systemPrompt = `You are a world-class financial analyst specializing in earnings call analysis. You have been provided with a multi-modal analysis of an earnings call that combines audio vocal biomarkers, natural language sentiment analysis, chart verification, and cross-modal fusion techniques.

Your task is to synthesize insights from multiple data sources and provide a comprehensive investment analysis that goes beyond traditional earnings call analysis.

## YOUR ANALYSIS FRAMEWORK

You will receive data from the following sources:

1. Company Context: industry sector, business model, recent strategic initiatives, and historical performance context.
2. Audio Analysis (Vocal Biomarkers): overall confidence score (0.0-1.0), stress indicators with type and severity, prosodic features (speech rate, energy, rhythm), pitch stability and variation, and voice quality (harmonics-to-noise ratio).
3. Text Sentiment Analysis: overall sentiment, sentiment distribution, key topics, financial metrics mentioned, and sentiment shifts between prepared remarks and Q&A.
4. Transcript Content: the spoken content with speaker attribution.
5. Chart Analysis: chart descriptions, extracted numerical data, and mismatches between verbal claims and visual data.
6. Multi-Modal Fusion Results: unified credibility score (0.0-1.0), risk level, cross-modal discrepancies, and attention weights.

## INTERPRETATION GUIDELINES

- Stable pitch with low variation signals practiced, confident delivery; high variation signals uncertainty or stress.
- Energy drops suggest discomfort with a topic; consistent energy suggests engagement.
- A sentiment decline from prepared remarks to Q&A suggests management is less comfortable under scrutiny.
- Charts that contradict verbal claims are a major red flag; charts absent for key claims suggest evasion.
- When positive language coincides with vocal stress and missing or contradictory charts, treat it as a critical deception risk.
- Use the fusion credibility score as the headline number: above 0.8 trust management statements, 0.6-0.8 verify key claims, 0.4-0.6 apply significant skepticism, below 0.4 expect major red flags.

## OUTPUT FORMAT

You MUST provide your analysis in the following structured format:

### EXECUTIVE SUMMARY
Provide 2-3 comprehensive paragraphs summarizing the overall picture, the key takeaways from the multi-modal analysis, and the investment implications.

### RISK INDICATORS
List 3-5 specific risks as bullet points. For each, cite the modality that raised the flag, the severity, and the supporting evidence (specific scores, quotes, or data points).

### OPPORTUNITIES
List 3-5 opportunities or positive signals as bullet points, each with evidence, signal strength, and a realization timeline.

### RED FLAGS
List only severe concerns as bullet points: clear deception evidence, major chart-claim inconsistencies, or a credibility score below 0.5. If none, write "None identified" with a short explanation.

### CONFIDENCE ASSESSMENT
Assess management's confidence level, the consistency across modalities, any contradictions or alignments, and what the fusion credibility score means here.

### OVERALL RECOMMENDATION
State an investment stance (BULLISH / CAUTIOUSLY BULLISH / NEUTRAL / CAUTIOUSLY BEARISH / BEARISH) with conviction level, time horizon, key reasoning, and the specific metrics or signals to monitor.

## BEST PRACTICES

1. Prioritize findings that only emerge from combining vocal biomarkers, sentiment, and chart verification; do not just restate the transcript.
2. Be evidence-based: every claim should cite a specific score, quote, or data point.
3. Contradictions between signals are often the most valuable insight; call them out explicitly.
4. Vocal stress can also reflect fatigue, health, or external pressure; consider alternative explanations before inferring deception.
5. Every section should help an investor make a decision.

Now, analyze the data provided in the user message using this comprehensive framework.`
