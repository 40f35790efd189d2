package transcribe

import (
	"context"
	"io"
)

// Segment is one timed slice of the transcript.
type Segment struct {
	Text        string  `json:"text"`
	StartTime   float64 `json:"start_time"`
	EndTime     float64 `json:"end_time"`
	Speaker     string  `json:"speaker,omitempty"`
	SegmentType string  `json:"segment_type,omitempty"`
}

// Segment types assigned by AssignSpeakers.
const (
	SegmentPrepared = "prepared_statement"
	SegmentQA       = "qa"
)

// Transcript is the transcription collaborator's output shape.
type Transcript struct {
	FullText string    `json:"full_text"`
	Segments []Segment `json:"segments"`
	Language string    `json:"language"`
	Duration float64   `json:"duration"`
}

// Client transcribes an audio stream. Implementations call an external
// service; the pipeline only depends on the output shape.
type Client interface {
	Transcribe(ctx context.Context, audio io.Reader, fileName string) (Transcript, error)
}
