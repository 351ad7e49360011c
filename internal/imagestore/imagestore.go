package imagestore

import "context"

// Store archives captured receipt images so the raw input of every
// ingestion attempt can be re-inspected later.
type Store interface {
	// Archive persists the image and returns its URI.
	Archive(ctx context.Context, sessionID string, image []byte, mimeType string) (string, error)
}

// Disabled is the no-op Store used when no bucket is configured.
type Disabled struct{}

func (Disabled) Archive(ctx context.Context, sessionID string, image []byte, mimeType string) (string, error) {
	return "", nil
}
