package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageVersion is bumped when the envelope shape changes. Consumers
// reject versions they do not understand instead of guessing.
const MessageVersion = 1

// Message is the queue envelope for one analysis job.
type Message struct {
	JobID      string    `json:"job_id"`
	RequestID  string    `json:"request_id,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	Version    int       `json:"version"`
}

func NewMessage(jobID, requestID string) Message {
	return Message{
		JobID:      jobID,
		RequestID:  requestID,
		EnqueuedAt: time.Now().UTC(),
		Version:    MessageVersion,
	}
}

func (m Message) Encode() (string, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode queue message: %w", err)
	}
	return string(raw), nil
}

// Decode parses and validates a queue message body.
func Decode(body string) (Message, error) {
	var m Message
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		return Message{}, fmt.Errorf("decode queue message: %w", err)
	}
	if m.JobID == "" {
		return Message{}, fmt.Errorf("queue message missing job_id")
	}
	if m.Version != MessageVersion {
		return Message{}, fmt.Errorf("unsupported queue message version %d", m.Version)
	}
	return m, nil
}
