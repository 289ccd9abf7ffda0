package catalogue

import (
	"context"
	"io"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// PageFetcher retrieves a URL and returns its parsed markup.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*goquery.Document, error)
}

// BlobStore writes an artifact and returns a URI describing where it landed.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes run notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// RowStore persists exported rows.
type RowStore interface {
	SaveRows(ctx context.Context, runID string, rows []OutputRow) error
}

// Hasher computes content digests.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
