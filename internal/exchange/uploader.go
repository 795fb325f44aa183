package exchange

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hyperengineering/leettrack/internal/config"
)

// ErrNotConfigured is returned when no export bucket is configured.
var ErrNotConfigured = errors.New("export storage not configured")

// Uploader copies export documents to object storage.
type Uploader interface {
	// Upload stores doc and returns its object key.
	Upload(ctx context.Context, doc Document) (string, error)

	// PresignedURL returns a time-limited download URL for key.
	PresignedURL(ctx context.Context, key string) (string, time.Time, error)
}

// s3Client is the subset of *minio.Client used here.
type s3Client interface {
	PutObject(ctx context.Context, bucket, objectName string, r io.Reader, size int64) error
	PresignedGetObject(ctx context.Context, bucket, objectName string, expiry time.Duration) (*url.URL, error)
}

type minioClientWrapper struct {
	client *minio.Client
}

func (w *minioClientWrapper) PutObject(ctx context.Context, bucket, objectName string, r io.Reader, size int64) error {
	_, err := w.client.PutObject(ctx, bucket, objectName, r, size, minio.PutObjectOptions{
		ContentType: "application/json",
	})
	return err
}

func (w *minioClientWrapper) PresignedGetObject(ctx context.Context, bucket, objectName string, expiry time.Duration) (*url.URL, error) {
	return w.client.PresignedGetObject(ctx, bucket, objectName, expiry, nil)
}

// S3Uploader stores exports in an S3-compatible bucket.
type S3Uploader struct {
	client    s3Client
	bucket    string
	urlExpiry time.Duration
}

// Upload encodes doc and puts it under {userId}/exports/.
func (u *S3Uploader) Upload(ctx context.Context, doc Document) (string, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, doc); err != nil {
		return "", err
	}

	key := objectKey(doc)
	if err := u.client.PutObject(ctx, u.bucket, key, &buf, int64(buf.Len())); err != nil {
		return "", fmt.Errorf("upload export to S3: %w", err)
	}
	return key, nil
}

// PresignedURL returns a pre-signed GET URL for key.
func (u *S3Uploader) PresignedURL(ctx context.Context, key string) (string, time.Time, error) {
	presigned, err := u.client.PresignedGetObject(ctx, u.bucket, key, u.urlExpiry)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate pre-signed URL: %w", err)
	}
	return presigned.String(), time.Now().Add(u.urlExpiry), nil
}

// NoopUploader is used when no bucket is configured.
type NoopUploader struct{}

// Upload returns ErrNotConfigured.
func (NoopUploader) Upload(ctx context.Context, doc Document) (string, error) {
	return "", ErrNotConfigured
}

// PresignedURL returns ErrNotConfigured.
func (NoopUploader) PresignedURL(ctx context.Context, key string) (string, time.Time, error) {
	return "", time.Time{}, ErrNotConfigured
}

// NewUploader returns a NoopUploader when cfg has no bucket and an
// S3Uploader otherwise.
func NewUploader(cfg config.ExportConfig) (Uploader, error) {
	if cfg.Bucket == "" {
		return NoopUploader{}, nil
	}

	useSSL := true
	if cfg.UseSSL != nil {
		useSSL = *cfg.UseSSL
	}
	endpoint := stripScheme(cfg.Endpoint, &useSSL)

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create S3 client: %w", err)
	}

	return &S3Uploader{
		client:    &minioClientWrapper{client: client},
		bucket:    cfg.Bucket,
		urlExpiry: time.Duration(cfg.URLExpiry),
	}, nil
}

// stripScheme removes an http(s):// prefix from endpoint, which minio
// rejects, and sets ssl from it.
func stripScheme(endpoint string, ssl *bool) string {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		*ssl = true
		return strings.TrimPrefix(endpoint, "https://")
	case strings.HasPrefix(endpoint, "http://"):
		*ssl = false
		return strings.TrimPrefix(endpoint, "http://")
	}
	return endpoint
}

// objectKey is {userId}/exports/leetcode-tracker-{YYYY-MM-DD}-{HHMMSS}.json.
func objectKey(doc Document) string {
	user := doc.UserID
	if user == "" {
		user = "anonymous"
	}
	t := doc.ExportDate.UTC()
	return fmt.Sprintf("%s/exports/%s-%s.json", url.PathEscape(user), strings.TrimSuffix(FileName(t), ".json"), t.Format("150405"))
}
