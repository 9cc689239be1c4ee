package gcs

import (
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
)

// openWriter returns a writer for bucket/object. Closing it commits the
// object unless ctx was cancelled first.
type openWriter func(ctx context.Context, bucket, object, contentType string) io.WriteCloser

// PhotoStore uploads hotspot photos to a Google Cloud Storage bucket.
// It implements domain.PhotoStore.
type PhotoStore struct {
	bucket  string
	baseURL string
	open    openWriter
}

// NewPhotoStore creates a PhotoStore writing to bucket through client.
// Object URLs are built as <baseURL>/<bucket>/<object>.
func NewPhotoStore(client *storage.Client, bucket, baseURL string) *PhotoStore {
	return newPhotoStore(bucket, baseURL, func(ctx context.Context, bucket, object, contentType string) io.WriteCloser {
		w := client.Bucket(bucket).Object(object).NewWriter(ctx)
		w.ContentType = contentType
		return w
	})
}

func newPhotoStore(bucket, baseURL string, open openWriter) *PhotoStore {
	return &PhotoStore{
		bucket:  bucket,
		baseURL: strings.TrimRight(baseURL, "/"),
		open:    open,
	}
}

// Upload streams r into the object name and returns its public URL. A failed
// copy abandons the object: the writer's context is cancelled before Close,
// so no partial object is committed.
func (p *PhotoStore) Upload(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := p.open(ctx, p.bucket, name, contentType)
	if _, err := io.Copy(w, r); err != nil {
		cancel()
		_ = w.Close()
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("commit %s: %w", name, err)
	}
	return p.URL(name), nil
}

// URL returns the public URL of an object in the store's bucket.
func (p *PhotoStore) URL(object string) string {
	return fmt.Sprintf("%s/%s/%s", p.baseURL, p.bucket, object)
}
