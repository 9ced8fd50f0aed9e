// Package minio implements ingest.ObjectStore over an S3-compatible bucket:
// same client construction and ensure-bucket-then-PutObject shape as other
// R2/S3 adapters in this codebase's history, generalized from Cloudflare R2
// specifically to any S3-compatible endpoint.
package minio

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/yanqian/ai-helloworld/internal/domain/ingest"
)

// Store implements ingest.ObjectStore over a minio.Client.
type Store struct {
	client *minio.Client
	bucket string
}

// New constructs a Store against an S3-compatible endpoint.
func New(endpoint, accessKey, secretKey, bucket, region string, useSSL bool) (*Store, error) {
	client, err := minio.New(sanitizeEndpoint(endpoint), &minio.Options{
		Creds:        credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure:       useSSL,
		Region:       region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("init object store client: %w", err)
	}
	return &Store{client: client, bucket: bucket}, nil
}

func (s *Store) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err == nil && exists {
		return nil
	}
	err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: ""})
	if err != nil && minio.ToErrorResponse(err).Code != "BucketAlreadyOwnedByYou" {
		return err
	}
	return nil
}

// Put uploads content under a fresh UUID-prefixed key (filename kept as a
// suffix for readability in bucket listings) and returns that key.
func (s *Store) Put(ctx context.Context, filename string, content []byte, contentType string) (string, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return "", err
	}
	key := uuid.New().String() + "-" + filename
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType:      contentType,
		DisableMultipart: len(content) < 5*1024*1024,
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

var _ ingest.ObjectStore = (*Store)(nil)

func sanitizeEndpoint(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://")
	if idx := strings.Index(raw, "/"); idx >= 0 {
		raw = raw[:idx]
	}
	return raw
}
