package charts

import (
	"context"
	"path/filepath"
	"strings"
)

// Inconsistency is a mismatch between a chart and the verbal narrative.
type Inconsistency struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

// DataPoint is one value read off a chart.
type DataPoint struct {
	Description string `json:"description"`
	Source      string `json:"source"`
}

// Summary is the chart collaborator's aggregate output. All lists are empty
// when no charts were supplied.
type Summary struct {
	ChartDescriptions []string        `json:"chart_descriptions"`
	ExtractedData     []DataPoint     `json:"extracted_data"`
	Inconsistencies   []Inconsistency `json:"inconsistencies"`
}

// EmptySummary is the stand-in committed when a job has no chart inputs.
func EmptySummary() Summary {
	return Summary{
		ChartDescriptions: []string{},
		ExtractedData:     []DataPoint{},
		Inconsistencies:   []Inconsistency{},
	}
}

// Image is one chart image ready for analysis.
type Image struct {
	FileName  string
	MediaType string
	Data      []byte
}

// MediaTypeFor maps an image file name to the media type sent to the
// vision model. Unknown extensions default to JPEG.
func MediaTypeFor(fileName string) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

// Client reads charts against the transcript. Implementations call an
// external vision model; the pipeline depends only on the Summary shape.
type Client interface {
	Analyze(ctx context.Context, images []Image, transcriptText, companyContext string) (Summary, error)
}
