package config

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/convivia-lab/convivia/pkg/service/storage"
)

// Storage holds CLI flags for the case document bucket.
type Storage struct {
	bucket string
}

// Flags returns CLI flags for storage configuration
func (s *Storage) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "storage-bucket",
			Usage:       "Default Cloud Storage bucket for case documents (empty disables document reading)",
			Category:    "Storage",
			Sources:     cli.EnvVars("CONVIVIA_STORAGE_BUCKET"),
			Destination: &s.bucket,
		},
	}
}

// Configure returns a document store, or nil when no bucket is set.
// Documents referenced by full gs:// URIs can still reach other buckets.
func (s *Storage) Configure(ctx context.Context) (*storage.Client, error) {
	if s.bucket == "" {
		return nil, nil
	}
	return storage.New(ctx, s.bucket)
}
