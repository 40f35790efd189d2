package object

import (
	"context"
	"io"

	"callsight-backend/internal/shared/util"
)

// ObjectStore defines the contract for saving and retrieving binary objects.
// Objects are namespaced per analysis job.
type ObjectStore interface {
	Save(ctx context.Context, jobID string, fileName string, r io.Reader) (storageKey string, sizeBytes int64, mimeType string, err error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	SaveWithKey(ctx context.Context, storageKey string, contentType string, r io.Reader) (int64, error)
}

// ResultsKey is the storage key of the final results artifact written
// when a job completes. It lives in the job's namespace next to the
// uploaded files.
func ResultsKey(jobID string) string {
	return util.HashNamespace(jobID) + "/results.json"
}
