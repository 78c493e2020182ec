package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/indieinfra/pantry/config"
	"github.com/indieinfra/pantry/storage/media"
	storageutil "github.com/indieinfra/pantry/storage/util"
)

// s3Client is the subset of the minio client the store relies on.
type s3Client interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

var newMinioClient = func(endpoint string, opts *minio.Options) (s3Client, error) {
	return minio.New(endpoint, opts)
}

// StoreImpl uploads media to S3 or any compatible service (R2, Backblaze, MinIO).
type StoreImpl struct {
	client         s3Client
	bucket         string
	publicBase     string
	forcePathStyle bool
	endpointHost   string
	secure         bool
	region         string
	pattern        *storageutil.PathPattern
	placeholder    string
	timeout        time.Duration
	now            func() time.Time
	newToken       func() string
}

var _ media.Store = (*StoreImpl)(nil)

func NewS3MediaStore(cfg *config.S3MediaStrategy, videoPlaceholder string, timeout time.Duration) (*StoreImpl, error) {
	if cfg == nil {
		return nil, fmt.Errorf("s3 media config is nil")
	}

	region := strings.TrimSpace(cfg.Region)
	clientRegion := region
	if strings.EqualFold(region, "auto") {
		clientRegion = ""
	}

	endpointHost := strings.TrimSpace(cfg.Endpoint)
	if endpointHost == "" {
		if clientRegion == "" {
			endpointHost = "s3.amazonaws.com"
		} else {
			endpointHost = fmt.Sprintf("s3.%s.amazonaws.com", clientRegion)
		}
	} else {
		if parsed, err := url.Parse(endpointHost); err == nil && parsed.Host != "" {
			endpointHost = parsed.Host
		}
	}

	lookup := minio.BucketLookupAuto
	if cfg.ForcePathStyle {
		lookup = minio.BucketLookupPath
	}

	secure := !cfg.DisableSSL

	client, err := newMinioClient(endpointHost, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKeyId, cfg.SecretKeyId, ""),
		Secure:       secure,
		Region:       clientRegion,
		BucketLookup: lookup,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}

	if timeout <= 0 {
		timeout = config.DefaultRemoteTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to verify s3 bucket %q: %w", cfg.Bucket, err)
	}

	if !exists {
		return nil, fmt.Errorf("s3 bucket %q does not exist or is not accessible", cfg.Bucket)
	}

	pattern := storageutil.DefaultRemotePattern()
	if cfg.PathPattern != "" {
		pattern = storageutil.NewPathPattern(cfg.PathPattern)
	}

	publicBase := ""
	if strings.TrimSpace(cfg.PublicUrl) != "" {
		publicBase = storageutil.NormalizeBaseURL(cfg.PublicUrl)
	}

	return &StoreImpl{
		client:         client,
		bucket:         cfg.Bucket,
		publicBase:     publicBase,
		forcePathStyle: cfg.ForcePathStyle,
		endpointHost:   endpointHost,
		secure:         secure,
		region:         region,
		pattern:        pattern,
		placeholder:    videoPlaceholder,
		timeout:        timeout,
		now:            time.Now,
		newToken:       uuid.NewString,
	}, nil
}

func (s *StoreImpl) Store(ctx context.Context, data []byte, originalName string, mimeType string) (*media.StoredObject, error) {
	key, err := s.objectKey(originalName, mimeType)
	if err != nil {
		return nil, fmt.Errorf("s3 store: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	opts := minio.PutObjectOptions{ContentType: mimeType}
	if _, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), opts); err != nil {
		return nil, media.StoreError("upload to s3", err)
	}

	obj := &media.StoredObject{
		NativeKey: key,
		URL:       s.URL(key),
		Size:      int64(len(data)),
	}
	media.Describe(obj, data, mimeType, s.placeholder)

	return obj, nil
}

func (s *StoreImpl) URL(nativeKey string) string {
	return s.objectURL(nativeKey)
}

// Delete removes an object. S3 treats deleting a missing key as success, and
// an explicit NoSuchKey from stricter implementations is treated the same way.
func (s *StoreImpl) Delete(ctx context.Context, nativeKey string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.RemoveObject(ctx, s.bucket, nativeKey, minio.RemoveObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil
		}
		return fmt.Errorf("delete from s3 failed: %w", err)
	}

	return nil
}

func (s *StoreImpl) objectKey(originalName, mimeType string) (string, error) {
	return media.ObjectKey(s.pattern, originalName, mimeType, s.now(), s.newToken())
}

func (s *StoreImpl) objectURL(key string) string {
	if s.publicBase != "" {
		return s.publicBase + key
	}

	scheme := "https"
	if !s.secure {
		scheme = "http"
	}

	if s.forcePathStyle {
		return fmt.Sprintf("%s://%s/%s/%s", scheme, s.endpointHost, s.bucket, key)
	}

	return fmt.Sprintf("%s://%s.%s/%s", scheme, s.bucket, s.endpointHost, key)
}
