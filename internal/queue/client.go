package queue

import "context"

// Publisher enqueues jobs for a separately deployed worker.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// Received is one in-flight message; the handle is needed to delete or
// release it.
type Received struct {
	Message Message
	Handle  string

	// Raw keeps the original body for diagnostics when decoding fails.
	Raw string

	// DecodeErr is set when the body could not be parsed. Such
	// messages are unrecoverable and should be deleted.
	DecodeErr error
}

// Consumer receives and settles queue messages.
type Consumer interface {
	Receive(ctx context.Context, max int) ([]Received, error)
	Delete(ctx context.Context, handle string) error
}
