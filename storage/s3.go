package storage

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
)

type S3Config struct {
	AccessKey string
	SecretKey string
	Region    string
	// Endpoint overrides the AWS endpoint for S3 compatible stores such as
	// DigitalOcean Spaces or MinIO.
	Endpoint string
}

// objectPutter is the subset of *s3.Client used here.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Writer struct {
	client objectPutter
	bucket string
	key    string
}

func NewS3Writer(ctx context.Context, cfg S3Config, bucket, key string) (*S3Writer, error) {
	opts := []func(*config.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "unable to load SDK config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Writer(client, bucket, key), nil
}

func newS3Writer(client objectPutter, bucket, key string) *S3Writer {
	return &S3Writer{client: client, bucket: bucket, key: key}
}

func (w *S3Writer) Location() string {
	return s3Scheme + w.bucket + "/" + w.key
}

// Prepare only checks the context. Bucket and key were validated when the
// path was parsed, and probing the bucket would need extra permissions.
func (w *S3Writer) Prepare(ctx context.Context) error {
	return ctx.Err()
}

func (w *S3Writer) Write(ctx context.Context, text string) error {
	_, err := w.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(w.key),
		Body:        strings.NewReader(withTrailingNewline(text)),
		ContentType: aws.String("text/plain; charset=utf-8"),
	})
	if err != nil {
		return errors.Wrapf(err, "failed to upload transcript to %s", w.Location())
	}
	return nil
}

// ParseS3Path splits s3://bucket/key. Both parts are required.
func ParseS3Path(dest string) (string, string, error) {
	if !IsS3Path(dest) {
		return "", "", errors.Errorf("not an s3 path: %q", dest)
	}
	rest := strings.TrimPrefix(dest, s3Scheme)
	bucket, key, found := strings.Cut(rest, "/")
	if !found || bucket == "" || strings.Trim(key, "/") == "" {
		return "", "", errors.Errorf("s3 path must look like s3://bucket/key, got %q", dest)
	}
	return bucket, key, nil
}
