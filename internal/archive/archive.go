// Package archive writes raw feed payloads to GCS for later audit and
// model-drift analysis. Archiving is advisory: the pipeline logs failures
// and moves on.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/storage"

	"github.com/cnoret/fraudpipe/internal/domain"
)

// Archiver stores one raw transaction per pipeline run.
type Archiver interface {
	ArchiveRaw(ctx context.Context, runID string, raw domain.RawTransaction) error
	Close() error
}

// GCSArchiver writes raw records under raw/<date>/<runID>.json in a
// bucket. Assumes Application Default Credentials.
type GCSArchiver struct {
	client *storage.Client
	bucket string
}

// NewGCSArchiver creates an archiver bound to a bucket.
func NewGCSArchiver(ctx context.Context, bucket string) (*GCSArchiver, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("archive: create storage client: %w", err)
	}
	return &GCSArchiver{client: client, bucket: bucket}, nil
}

// ArchiveRaw uploads the raw record as JSON.
func (a *GCSArchiver) ArchiveRaw(ctx context.Context, runID string, raw domain.RawTransaction) error {
	body, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("archive: encoding raw record: %w", err)
	}

	objectName := fmt.Sprintf("raw/%s/%s.json", time.Now().UTC().Format("2006-01-02"), runID)

	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	w := a.client.Bucket(a.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(body); err != nil {
		_ = w.Close()
		return fmt.Errorf("archive: writing %s: %w", objectName, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("archive: finalizing %s: %w", objectName, err)
	}
	return nil
}

// Close releases the storage client.
func (a *GCSArchiver) Close() error {
	return a.client.Close()
}
