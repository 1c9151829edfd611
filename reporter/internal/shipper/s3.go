package shipper

import (
	"bytes"
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/obsidianstack/slareport/reporter/internal/apperr"
	"github.com/obsidianstack/slareport/reporter/internal/config"
)

// objectPutter is the subset of *s3.Client the uploader needs.
type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader writes objects to one bucket.
type S3Uploader struct {
	client objectPutter
	bucket string
}

// NewS3Uploader builds an S3 client from cfg. Static credentials are used
// when the configured env vars are set; otherwise requests go unsigned,
// which suits public-write test buckets and local gateways only.
func NewS3Uploader(cfg config.S3Config) *S3Uploader {
	opts := s3.Options{
		Region:       cfg.Region,
		UsePathStyle: cfg.PathStyle,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	if key, secret := cfg.AccessKey(), cfg.SecretKey(); key != "" && secret != "" {
		opts.Credentials = credentials.NewStaticCredentialsProvider(key, secret, cfg.SessionToken())
	}
	return &S3Uploader{client: s3.New(opts), bucket: cfg.Bucket}
}

// Upload puts obj under its key.
func (u *S3Uploader) Upload(ctx context.Context, obj Object) error {
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(obj.Key),
		Body:          bytes.NewReader(obj.Body),
		ContentLength: aws.Int64(int64(len(obj.Body))),
		ContentType:   aws.String(obj.ContentType),
	})
	if err != nil {
		return apperr.Transport("s3 put "+u.bucket+"/"+obj.Key, "put object", err)
	}
	return nil
}
