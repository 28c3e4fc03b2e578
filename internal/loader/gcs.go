package loader

import (
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
)

// Fetcher reads corpus files from Google Cloud Storage. One client is
// shared across fetches; Close releases it.
type Fetcher struct {
	client *storage.Client
}

func NewFetcher(ctx context.Context) (*Fetcher, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &Fetcher{client: client}, nil
}

// Fetch downloads one object. uri is either "gs://bucket/path/to/obj"
// or "bucket/path/to/obj".
func (f *Fetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	bucket, object, err := splitObjectURI(uri)
	if err != nil {
		return nil, err
	}

	r, err := f.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open GCS object reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read GCS object: %w", err)
	}
	return data, nil
}

func (f *Fetcher) Close() error {
	return f.client.Close()
}

func splitObjectURI(uri string) (bucket, object string, err error) {
	uri = strings.TrimPrefix(uri, "gs://")
	bucket, object, ok := strings.Cut(uri, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("invalid GCS object URI %q", uri)
	}
	return bucket, object, nil
}
