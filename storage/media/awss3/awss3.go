package awss3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	"github.com/indieinfra/pantry/config"
	"github.com/indieinfra/pantry/storage/media"
	storageutil "github.com/indieinfra/pantry/storage/util"
)

type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type deleter interface {
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Store uploads media to Amazon S3 through the AWS SDK, using the default
// credential chain unless static keys are configured.
type Store struct {
	uploader    uploader
	deleter     deleter
	bucket      string
	publicBase  string
	pattern     *storageutil.PathPattern
	placeholder string
	timeout     time.Duration
	now         func() time.Time
	newToken    func() string
}

var _ media.Store = (*Store)(nil)

func NewAWSMediaStore(ctx context.Context, cfg *config.AWSMediaStrategy, videoPlaceholder string, timeout time.Duration) (*Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("aws media config is nil")
	}

	opts := []func(*awscfg.LoadOptions) error{awscfg.WithRegion(cfg.Region)}
	if cfg.AccessKeyId != "" {
		opts = append(opts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyId, cfg.SecretAccessKey, ""),
		))
	}

	awsConfig, err := awscfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return newStore(cfg, manager.NewUploader(client), client, videoPlaceholder, timeout), nil
}

func newStore(cfg *config.AWSMediaStrategy, up uploader, del deleter, videoPlaceholder string, timeout time.Duration) *Store {
	pattern := storageutil.DefaultRemotePattern()
	if cfg.PathPattern != "" {
		pattern = storageutil.NewPathPattern(cfg.PathPattern)
	}

	if timeout <= 0 {
		timeout = config.DefaultRemoteTimeout
	}

	return &Store{
		uploader:    up,
		deleter:     del,
		bucket:      cfg.Bucket,
		publicBase:  storageutil.NormalizeBaseURL(cfg.PublicUrl),
		pattern:     pattern,
		placeholder: videoPlaceholder,
		timeout:     timeout,
		now:         time.Now,
		newToken:    uuid.NewString,
	}
}

func (s *Store) Store(ctx context.Context, data []byte, originalName string, mimeType string) (*media.StoredObject, error) {
	key, err := media.ObjectKey(s.pattern, originalName, mimeType, s.now(), s.newToken())
	if err != nil {
		return nil, fmt.Errorf("aws store: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(mimeType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return nil, media.StoreError("upload to aws s3", err)
	}

	obj := &media.StoredObject{
		NativeKey: key,
		URL:       s.URL(key),
		Size:      int64(len(data)),
	}
	media.Describe(obj, data, mimeType, s.placeholder)

	return obj, nil
}

func (s *Store) URL(nativeKey string) string {
	return s.publicBase + nativeKey
}

func (s *Store) Delete(ctx context.Context, nativeKey string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.deleter.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(nativeKey),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchKey" {
			return nil
		}
		return fmt.Errorf("delete from aws s3 failed: %w", err)
	}

	return nil
}
