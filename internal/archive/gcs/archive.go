// Package gcs archives page snapshots in a Google Cloud Storage bucket.
package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
)

// Archive implements crawler.BlobStore over one bucket.
type Archive struct {
	client *storage.Client
	bucket string
	prefix string
}

// New wraps an existing client. prefix, when set, is prepended to every
// object path.
func New(client *storage.Client, bucket, prefix string) (*Archive, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("archive.gcs_bucket is required")
	}
	return &Archive{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

// PutObject uploads data and returns its gs:// URI.
func (a *Archive) PutObject(ctx context.Context, objPath, contentType string, data []byte) (string, error) {
	if strings.TrimSpace(objPath) == "" {
		return "", fmt.Errorf("path is required")
	}
	key := objPath
	if a.prefix != "" {
		key = path.Join(a.prefix, objPath)
	}

	w := a.client.Bucket(a.bucket).Object(key).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		closeErr := w.Close()
		if closeErr != nil {
			return "", fmt.Errorf("upload snapshot: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("upload snapshot: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close snapshot writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", a.bucket, key), nil
}
