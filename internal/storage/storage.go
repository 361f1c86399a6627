// Package storage archives raw transcript JSON from completed analysis
// jobs, either on the local filesystem or in an S3-compatible bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/audiosift/internal/config"
)

// Store abstracts the archive backends.
type Store interface {
	// Save stores a blob. key format: transcripts/{job_id}.json
	Save(ctx context.Context, key string, data []byte, contentType string) error

	// Open returns a reader for an archived blob.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists checks whether a blob is present.
	Exists(ctx context.Context, key string) bool

	// Type returns "local" or "s3".
	Type() string
}

// New creates a Store for the configured backend. backend "" returns
// (nil, nil): archiving disabled. Returns an error if S3 is configured but
// unreachable.
func New(backend string, archiveDir string, cfg config.S3Config, log zerolog.Logger) (Store, error) {
	switch backend {
	case "":
		return nil, nil
	case "local":
		return NewLocalStore(archiveDir), nil
	case "s3":
		s3store, err := NewS3Store(cfg, log)
		if err != nil {
			return nil, fmt.Errorf("s3 init failed: %w", err)
		}

		// Startup validation: verify credentials and bucket access.
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s3store.HeadBucket(ctx); err != nil {
			return nil, fmt.Errorf("s3 startup check failed (bucket=%q endpoint=%q): %w",
				cfg.Bucket, cfg.Endpoint, err)
		}
		log.Info().Str("bucket", cfg.Bucket).Str("endpoint", cfg.Endpoint).Msg("s3 connection verified")
		return s3store, nil
	default:
		return nil, fmt.Errorf("unknown archive backend %q (want local or s3)", backend)
	}
}
