package supabase

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"time"

	storage "github.com/supabase-community/storage-go"
)

type StorageClient struct {
	client   *storage.Client
	bucket   string
	pathExpr *regexp.Regexp
}

func NewStorageClient(client *storage.Client, bucket string) *StorageClient {
	return &StorageClient{
		client:   client,
		bucket:   bucket,
		pathExpr: regexp.MustCompile(`/` + regexp.QuoteMeta(bucket) + `/([^?]+)`),
	}
}

func (s *StorageClient) Bucket() string {
	return s.bucket
}

func (s *StorageClient) Upload(ctx context.Context, path, contentType string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	upsert := false
	_, err := s.client.UploadFile(s.bucket, path, bytes.NewReader(data), storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return fmt.Errorf("failed to upload file: %w", err)
	}
	return nil
}

func (s *StorageClient) CreateSignedURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	resp, err := s.client.CreateSignedUrl(s.bucket, path, int(ttl.Seconds()))
	if err != nil {
		return "", fmt.Errorf("failed to create signed url: %w", err)
	}
	if resp.SignedURL == "" {
		return "", fmt.Errorf("failed to create signed url: empty response for %s", path)
	}
	return resp.SignedURL, nil
}

func (s *StorageClient) Remove(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := s.client.RemoveFile(s.bucket, paths); err != nil {
		return fmt.Errorf("failed to delete files: %w", err)
	}
	return nil
}

// ObjectPath extracts the object path from a signed or public URL for this
// bucket, e.g. ".../object/sign/photos/A1-x.jpg?token=..." -> "A1-x.jpg".
func (s *StorageClient) ObjectPath(url string) (string, bool) {
	m := s.pathExpr.FindStringSubmatch(url)
	if len(m) < 2 || m[1] == "" {
		return "", false
	}
	return m[1], true
}
