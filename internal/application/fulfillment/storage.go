package fulfillment

import (
	"context"
	"time"
)

// DocumentStorage stores generated order documents for manual partners
// and hands back time-limited links for their intake teams. Implemented
// by the S3 adapter in infrastructure; a stub exists for development.
type DocumentStorage interface {
	// Upload stores a document under the given key
	Upload(ctx context.Context, storageKey string, data []byte, contentType string) error

	// GenerateDownloadURL returns a presigned download link for a stored
	// document along with its expiry
	GenerateDownloadURL(ctx context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error)
}
