package s3

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	KeyPrefix       string
	PresignTTL      time.Duration
}

type ItfS3 interface {
	Save(ctx context.Context, name string, contentType string, data []byte) (string, error)
	PresignUrl(key string) (string, error)
	DeleteFile(key string) error
}

type s3Client struct {
	client     *s3.S3
	uploader   *s3manager.Uploader
	bucketName string
	keyPrefix  string
	presignTTL time.Duration
}

func New(cfg Config) (ItfS3, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, err
	}

	if cfg.BucketName == "" {
		return nil, fmt.Errorf("s3 bucket name is required")
	}

	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &s3Client{
		client:     s3.New(sess),
		uploader:   s3manager.NewUploader(sess),
		bucketName: cfg.BucketName,
		keyPrefix:  cfg.KeyPrefix,
		presignTTL: ttl,
	}, nil
}

// Save uploads data under keyPrefix+name and returns a presigned GET URL,
// since radiographs are never stored in a public bucket.
func (s *s3Client) Save(ctx context.Context, name string, contentType string, data []byte) (string, error) {
	key := s.keyPrefix + name

	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	return s.PresignUrl(key)
}

func (s *s3Client) PresignUrl(key string) (string, error) {
	req, _ := s.client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})

	urlStr, err := req.Presign(s.presignTTL)
	if err != nil {
		return "", err
	}

	return urlStr, nil
}

func (s *s3Client) DeleteFile(key string) error {
	_, err := s.client.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})

	return err
}
