// Package media stores uploaded blobs and derives thumbnail URLs.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

const thumbnailExtension = ".jpg"

var (
	errMissingEndpoint = errors.New("media: endpoint required")
	errMissingBucket   = errors.New("media: bucket required")
)

// Store persists a blob and returns its public URL.
type Store interface {
	Put(ctx context.Context, objectName string, body io.Reader, size int64, contentType string) (string, error)
}

// ThumbnailURL derives the thumbnail location for a media URL by replacing the
// extension of its path with .jpg, or appending .jpg when the path has none.
func ThumbnailURL(mediaURL string) string {
	trimmed := strings.TrimSpace(mediaURL)
	if trimmed == "" {
		return ""
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Path == "" || strings.HasSuffix(parsed.Path, "/") {
		return replaceExtension(trimmed)
	}
	parsed.Path = replaceExtension(parsed.Path)
	parsed.RawPath = ""
	return parsed.String()
}

func replaceExtension(value string) string {
	ext := path.Ext(value)
	if ext == "" || strings.Contains(ext, "/") {
		return value + thumbnailExtension
	}
	return strings.TrimSuffix(value, ext) + thumbnailExtension
}

// ObjectName builds the bucket key for an upload, keeping the original extension.
func ObjectName(id, filename string) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(filename, "\\", "/"))))
	return id + ext
}

// MinioConfig describes an S3-compatible bucket.
type MinioConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PublicBaseURL string
	Logger        *zap.Logger
}

// MinioStore writes uploads to a MinIO or S3 bucket.
type MinioStore struct {
	client        *minio.Client
	bucket        string
	publicBaseURL string
	logger        *zap.Logger

	bucketMu    sync.Mutex
	bucketReady bool
}

// NewMinioStore constructs the store. No network traffic happens until the first upload.
func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errMissingEndpoint
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errMissingBucket
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("media: create client: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MinioStore{
		client:        client,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/"),
		logger:        logger,
	}, nil
}

// Put uploads the body and returns the object's public URL.
func (s *MinioStore) Put(ctx context.Context, objectName string, body io.Reader, size int64, contentType string) (string, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return "", err
	}
	info, err := s.client.PutObject(ctx, s.bucket, objectName, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		s.logger.Error("media upload failed",
			zap.String("bucket", s.bucket),
			zap.String("object", objectName),
			zap.Error(err))
		return "", fmt.Errorf("media: put object: %w", err)
	}
	s.logger.Info("media uploaded",
		zap.String("bucket", s.bucket),
		zap.String("object", objectName),
		zap.Int64("size", info.Size))
	return s.ObjectURL(objectName), nil
}

// Ping reports whether the bucket is reachable.
func (s *MinioStore) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucket)
	return err
}

// ObjectURL returns the public URL for objectName.
func (s *MinioStore) ObjectURL(objectName string) string {
	base := s.publicBaseURL
	if base == "" {
		base = strings.TrimRight(s.client.EndpointURL().String(), "/")
	}
	return base + "/" + s.bucket + "/" + strings.TrimLeft(objectName, "/")
}

func (s *MinioStore) ensureBucket(ctx context.Context) error {
	s.bucketMu.Lock()
	defer s.bucketMu.Unlock()
	if s.bucketReady {
		return nil
	}
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("media: check bucket: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("media: create bucket: %w", err)
		}
		s.logger.Info("media bucket created", zap.String("bucket", s.bucket))
	}
	s.bucketReady = true
	return nil
}
