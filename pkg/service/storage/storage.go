// Package storage reads case documents (denuncias, informes, actas) from
// the school's Cloud Storage bucket so they can be fed into analysis and
// protocol generation.
package storage

import (
	"context"
	"io"
	"strings"

	gcs "cloud.google.com/go/storage"
	"github.com/convivia-lab/convivia/pkg/utils/safe"
	"github.com/m-mizutani/goerr/v2"
)

// Client reads case documents from a GCS bucket.
type Client struct {
	client *gcs.Client
	bucket string
}

// New creates a document store bound to one bucket.
func New(ctx context.Context, bucket string) (*Client, error) {
	if bucket == "" {
		return nil, goerr.New("bucket name is required")
	}

	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}

	return &Client{client: client, bucket: bucket}, nil
}

// Get returns the contents of a case document. The URI may be a full
// gs:// URI or a bare object name within the configured bucket.
func (c *Client) Get(ctx context.Context, uri string) ([]byte, error) {
	bucket, object := c.resolve(uri)

	r, err := c.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open case document",
			goerr.V("bucket", bucket),
			goerr.V("object", object))
	}
	defer safe.Close(ctx, r)

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read case document", goerr.V("object", object))
	}
	return data, nil
}

// Put stores a case document and returns its gs:// URI.
func (c *Client) Put(ctx context.Context, object string, data []byte) (string, error) {
	w := c.client.Bucket(c.bucket).Object(object).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", goerr.Wrap(err, "failed to write case document", goerr.V("object", object))
	}
	if err := w.Close(); err != nil {
		return "", goerr.Wrap(err, "failed to finalize case document", goerr.V("object", object))
	}
	return "gs://" + c.bucket + "/" + object, nil
}

// Close releases the underlying client.
func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) resolve(uri string) (string, string) {
	if rest, ok := strings.CutPrefix(uri, "gs://"); ok {
		if bucket, object, found := strings.Cut(rest, "/"); found {
			return bucket, object
		}
		return rest, ""
	}
	return c.bucket, uri
}
