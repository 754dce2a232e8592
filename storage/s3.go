package storage

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/Cortexa-LLC/mcp/src/mdconvert/config"
)

const markdownContentType = "text/markdown; charset=utf-8"

// objectAPI is the part of the S3 client the sink needs.
type objectAPI interface {
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// uploader is satisfied by *manager.Uploader.
type uploader interface {
	Upload(ctx context.Context, in *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3 uploads markdown to a bucket under a key prefix.
type S3 struct {
	bucket   string
	prefix   string
	client   objectAPI
	uploader uploader
}

// NewS3 builds an S3 sink from cfg. Static credentials are used when both
// keys are set; otherwise the default AWS chain applies. A custom endpoint
// switches to path-style addressing for S3-compatible stores.
func NewS3(ctx context.Context, cfg config.S3Config) (*S3, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}
	client := s3.NewFromConfig(awsCfg, s3Opts...)
	return newS3(cfg.Bucket, cfg.Prefix, client, manager.NewUploader(client)), nil
}

func newS3(bucket, prefix string, client objectAPI, up uploader) *S3 {
	return &S3{bucket: bucket, prefix: strings.TrimPrefix(prefix, "/"), client: client, uploader: up}
}

// Key returns the object key for name.
func (s *S3) Key(name string) string {
	return path.Join(s.prefix, name)
}

// Save implements Sink. The location is an s3:// URI.
func (s *S3) Save(ctx context.Context, name, markdown string) (string, error) {
	name, err := cleanName(name)
	if err != nil {
		return "", err
	}
	key := s.Key(name)
	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(markdown),
		ContentType: aws.String(markdownContentType),
	})
	if err != nil {
		return "", fmt.Errorf("s3 upload: %w", err)
	}
	return "s3://" + s.bucket + "/" + key, nil
}

// Remove implements Remover for a location returned by Save.
func (s *S3) Remove(ctx context.Context, location string) error {
	key, ok := strings.CutPrefix(location, "s3://"+s.bucket+"/")
	if !ok {
		return fmt.Errorf("%w: %s is not in bucket %s", errBadName, location, s.bucket)
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 delete: %w", err)
	}
	return nil
}
