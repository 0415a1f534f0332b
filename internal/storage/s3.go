// Package storage keeps plain-text snapshots of manuscript versions in
// S3-compatible object storage.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/cloo-solutions/inkwell/internal/domain"
)

const snapshotContentType = "text/plain; charset=utf-8"

// S3ClientConfig holds configuration for S3Client
type S3ClientConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UsePathStyle    bool
	URLExpiry       time.Duration
}

// S3Client stores version snapshots in S3-compatible storage (e.g., RustFS)
type S3Client struct {
	client        *s3.Client
	presignClient *s3.PresignClient
	bucket        string
	urlExpiry     time.Duration
}

// NewS3Client creates a new S3Client with the given configuration
func NewS3Client(ctx context.Context, cfg S3ClientConfig) (*S3Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}

	return &S3Client{
		client:        client,
		presignClient: s3.NewPresignClient(client),
		bucket:        cfg.Bucket,
		urlExpiry:     expiry,
	}, nil
}

// SnapshotKey returns the object key of a version snapshot.
func SnapshotKey(v *domain.Version) string {
	return fmt.Sprintf("manuscripts/%s/versions/%s.txt", v.ManuscriptID, v.Tag)
}

// PutVersion uploads the version's content. Versions are immutable, so
// re-uploading the same version is harmless.
func (c *S3Client) PutVersion(ctx context.Context, v *domain.Version) error {
	_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(SnapshotKey(v)),
		Body:        strings.NewReader(v.Content),
		ContentType: aws.String(snapshotContentType),
		Metadata: map[string]string{
			"manuscript-id": v.ManuscriptID,
			"version-id":    v.ID,
		},
	})
	if err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, domain.ErrStorageOperationFail.Message, err)
	}
	return nil
}

// VersionURL creates a presigned URL for downloading a version snapshot
func (c *S3Client) VersionURL(ctx context.Context, v *domain.Version) (string, error) {
	presignedReq, err := c.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(SnapshotKey(v)),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = c.urlExpiry
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate download URL: %w", err)
	}

	return presignedReq.URL, nil
}

// GetVersion reads a snapshot back.
func (c *S3Client) GetVersion(ctx context.Context, v *domain.Version) (string, error) {
	out, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(SnapshotKey(v)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get object: %w", err)
	}
	defer out.Body.Close()

	var b bytes.Buffer
	if _, err := b.ReadFrom(out.Body); err != nil {
		return "", fmt.Errorf("failed to read object: %w", err)
	}
	return b.String(), nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (c *S3Client) EnsureBucket(ctx context.Context) error {
	_, err := c.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err == nil {
		return nil
	}

	_, err = c.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	return nil
}
