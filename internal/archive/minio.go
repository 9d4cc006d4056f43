// Package archive stores raw solver responses in S3-compatible object
// storage. The object URL becomes the run's logs_url.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// DefaultBucket is used when no bucket is configured.
const DefaultBucket = "shiftplane-solver-runs"

// Config holds object storage settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinIO archives solver responses to a MinIO or S3 bucket.
type MinIO struct {
	client *minio.Client
	bucket string

	mu          sync.Mutex
	bucketReady bool
}

// NewMinIO creates an archive. No network call happens until the first Put.
func NewMinIO(cfg Config) (*MinIO, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("archive endpoint is required")
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		bucket = DefaultBucket
	}
	return &MinIO{client: client, bucket: bucket}, nil
}

// ObjectName is the key of the response of one attempt of a run.
func ObjectName(runID int64, attempt int) string {
	return fmt.Sprintf("runs/%d/attempt-%d/solve-response.json", runID, attempt)
}

// Put uploads body and returns its URL.
func (m *MinIO) Put(ctx context.Context, runID int64, attempt int, body []byte) (string, error) {
	if err := m.ensureBucket(ctx); err != nil {
		return "", err
	}
	name := ObjectName(runID, attempt)
	_, err := m.client.PutObject(ctx, m.bucket, name, bytes.NewReader(body), int64(len(body)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", name, err)
	}
	return m.URL(name), nil
}

// URL is the address of an object in the archive bucket.
func (m *MinIO) URL(objectName string) string {
	u := *m.client.EndpointURL()
	u.Path = "/" + m.bucket + "/" + objectName
	return u.String()
}

func (m *MinIO) ensureBucket(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bucketReady {
		return nil
	}

	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", m.bucket, err)
	}
	if !exists {
		if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", m.bucket, err)
		}
	}
	m.bucketReady = true
	return nil
}
