package objectstore

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// GCSStore uploads objects to a Google Cloud Storage bucket.
type GCSStore struct {
	client    *storage.Client
	bucket    string
	urlPrefix string
}

// NewGCSStore connects a GCS-backed object store. urlPrefix overrides the
// default public URL base when serving through a CDN.
func NewGCSStore(ctx context.Context, bucket, urlPrefix string) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GCSStore{client: client, bucket: bucket, urlPrefix: urlPrefix}, nil
}

func (s *GCSStore) Upload(ctx context.Context, folder, fileName, contentType string, body io.Reader) (string, error) {
	key := ObjectKey(folder, fileName)
	writer := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	writer.ContentType = contentType
	if _, err := io.Copy(writer, body); err != nil {
		_ = writer.Close()
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}
	if s.urlPrefix != "" {
		return fmt.Sprintf("%s/%s", s.urlPrefix, key), nil
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, key), nil
}

// Close releases the underlying client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}
