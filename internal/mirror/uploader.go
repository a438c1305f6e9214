package mirror

import (
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
)

const uploadTimeout = 2 * time.Minute

// Uploader writes ledger snapshots to a fixed object in a GCS bucket.
// Every upload overwrites the previous one; the mirror is always the
// latest full snapshot, never a history.
// It assumes Application Default Credentials are configured
// (gcloud auth application-default login).
type Uploader struct {
	Bucket string
	Object string
}

// NewUploader creates an Uploader targeting gs://bucket/object.
func NewUploader(bucket, object string) *Uploader {
	return &Uploader{Bucket: bucket, Object: object}
}

// Upload pushes the snapshot bytes and returns the gs:// URL of the object.
func (u *Uploader) Upload(ctx context.Context, data []byte) (string, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := client.Bucket(u.Bucket).Object(u.Object).NewWriter(ctx)
	w.ContentType = "application/json"

	if _, err := w.Write(data); err != nil {
		// Ensure the writer is closed even on early returns
		_ = w.Close()
		return "", fmt.Errorf("write snapshot to GCS writer: %w", err)
	}

	// Close to finalize the upload
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize upload: %w", err)
	}

	return u.URL(), nil
}

// Fetch downloads the current mirrored snapshot. Used by the mirror-ledger
// tool for inspection and manual restores; the server never reads the
// mirror back.
func (u *Uploader) Fetch(ctx context.Context) ([]byte, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	r, err := client.Bucket(u.Bucket).Object(u.Object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open mirror object reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read mirror object: %w", err)
	}

	return data, nil
}

// URL returns the gs:// location the uploader writes to.
func (u *Uploader) URL() string {
	return fmt.Sprintf("gs://%s/%s", u.Bucket, u.Object)
}
