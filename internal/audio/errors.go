package audio

import "fmt"

// ExtractionError marks an unrecoverable decode or empty-signal failure.
// Sub-feature computation never produces one; those degrade to neutral
// defaults instead.
type ExtractionError struct {
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("audio extraction: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("audio extraction: %s", e.Reason)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

func extractionErr(reason string, err error) *ExtractionError {
	return &ExtractionError{Reason: reason, Err: err}
}
