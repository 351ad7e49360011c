package imagestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/storage"
)

// GCSStore archives receipt images in a Google Cloud Storage bucket.
// It assumes Application Default Credentials are configured.
type GCSStore struct {
	Bucket string
}

func NewGCSStore(bucket string) *GCSStore {
	return &GCSStore{Bucket: bucket}
}

// Archive implements Store. Objects are keyed by capture date and session
// so one session's image is written exactly once.
func (s *GCSStore) Archive(ctx context.Context, sessionID string, image []byte, mimeType string) (string, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("imagestore: create storage client: %w", err)
	}
	defer client.Close()

	objectName := fmt.Sprintf("receipts/%s/%s%s", time.Now().Format("2006/01/02"), sessionID, extension(mimeType))

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(s.Bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = mimeType

	if _, err := w.Write(image); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("imagestore: write object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("imagestore: finalize upload: %w", err)
	}

	return fmt.Sprintf("gs://%s/%s", s.Bucket, objectName), nil
}

func extension(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	default:
		return ""
	}
}
