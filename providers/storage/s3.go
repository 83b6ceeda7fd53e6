package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/hengadev/phiguard/internal/phierr"
	"github.com/hengadev/phiguard/internal/reliability"
)

// s3Client is the subset of the S3 API used by the provider (allows mocking)
type s3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// s3Presigner signs GET requests (allows mocking)
type s3Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*PresignedRequest, error)
}

// PresignedRequest mirrors the fields of the SDK's presigned request that the
// provider reads.
type PresignedRequest struct {
	URL string
}

type sdkPresigner struct {
	client *s3.PresignClient
}

func (p sdkPresigner) PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*PresignedRequest, error) {
	req, err := p.client.PresignGetObject(ctx, params, optFns...)
	if err != nil {
		return nil, err
	}
	return &PresignedRequest{URL: req.URL}, nil
}

// S3Config configures the S3 backend.
type S3Config struct {
	// Bucket receives every object.
	Bucket string
	// Region is the AWS region (e.g., "us-east-1")
	// If empty, uses AWS_REGION environment variable or AWS config file
	Region string
	// AWSConfig is an optional pre-configured AWS config
	// If provided, Region is ignored
	AWSConfig *aws.Config
	// Retry bounds retries of PutObject and DeleteObject.
	Retry reliability.RetryConfig
}

// S3 stores objects in a bucket with server-side encryption.
type S3 struct {
	client    s3Client
	presigner s3Presigner
	bucket    string
	region    string
	retry     reliability.RetryConfig
	now       func() time.Time
}

// NewS3 creates an S3 provider.
//
// Usage:
//
//	// Using default AWS configuration
//	provider, err := storage.NewS3(ctx, storage.S3Config{Bucket: "phi-documents"})
//
//	// With specific region
//	provider, err := storage.NewS3(ctx, storage.S3Config{Bucket: "phi-documents", Region: "us-east-1"})
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, phierr.NewInvalidArgumentError("s3 bucket", "is required")
	}

	var awsConfig aws.Config
	if cfg.AWSConfig != nil {
		awsConfig = *cfg.AWSConfig
	} else {
		opts := []func(*config.LoadOptions) error{}
		if cfg.Region != "" {
			opts = append(opts, config.WithRegion(cfg.Region))
		}

		var err error
		awsConfig, err = config.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, phierr.NewStorageError("load AWS config", err)
		}
	}

	client := s3.NewFromConfig(awsConfig)
	return newS3(client, sdkPresigner{client: s3.NewPresignClient(client)}, cfg.Bucket, awsConfig.Region, cfg.Retry), nil
}

func newS3(client s3Client, presigner s3Presigner, bucket, region string, retry reliability.RetryConfig) *S3 {
	return &S3{
		client:    client,
		presigner: presigner,
		bucket:    bucket,
		region:    region,
		retry:     retry,
		now:       time.Now,
	}
}

func (p *S3) Type() Type {
	return TypeS3
}

func (p *S3) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	key, err := ObjectKey(in)
	if err != nil {
		return nil, err
	}

	var out *s3.PutObjectOutput
	err = reliability.Retry(ctx, p.retry, func(ctx context.Context) error {
		var err error
		out, err = p.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:               aws.String(p.bucket),
			Key:                  aws.String(key),
			Body:                 bytes.NewReader(in.Data),
			ContentLength:        aws.Int64(int64(len(in.Data))),
			ContentType:          aws.String(in.MimeType),
			ServerSideEncryption: types.ServerSideEncryptionAes256,
		})
		return err
	})
	if err != nil {
		return nil, phierr.NewStorageError("put object", err)
	}

	return &UploadResult{
		Key:         key,
		Bucket:      p.bucket,
		ETag:        aws.ToString(out.ETag),
		Location:    p.location(key),
		StorageType: TypeS3,
	}, nil
}

func (p *S3) location(key string) string {
	if p.region == "" {
		return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", p.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", p.bucket, p.region, key)
}

func (p *S3) GenerateDownloadURL(ctx context.Context, key string, ttl time.Duration, filename string) (*DownloadURL, error) {
	if key == "" {
		return nil, phierr.NewInvalidArgumentError("object key", "is required")
	}
	if ttl <= 0 {
		return nil, phierr.NewInvalidArgumentError("ttl", "must be positive")
	}

	issuedAt := p.now()
	req, err := p.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(p.bucket),
		Key:                        aws.String(key),
		ResponseContentDisposition: aws.String(contentDisposition(filename)),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return nil, phierr.NewStorageError("presign get object", err)
	}
	return &DownloadURL{URL: req.URL, ExpiresAt: issuedAt.Add(ttl)}, nil
}

func (p *S3) Delete(ctx context.Context, key string) error {
	err := reliability.Retry(ctx, p.retry, func(ctx context.Context) error {
		_, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(p.bucket),
			Key:    aws.String(key),
		})
		return err
	})
	if err != nil {
		return phierr.NewStorageError("delete object", err)
	}
	return nil
}
