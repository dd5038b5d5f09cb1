package infra

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/tnqbao/gau-share-service/config"
)

// S3BlobStore keeps blobs in an S3 compatible bucket through the AWS SDK
type S3BlobStore struct {
	Client *s3.Client
	Bucket string
}

func InitS3BlobStore(ctx context.Context, cfg *config.EnvConfig) (*S3BlobStore, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3.Region),
	}
	if cfg.S3.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3.AccessKey,
			cfg.S3.SecretKey,
			"",
		)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return &S3BlobStore{Client: client, Bucket: cfg.S3.Bucket}, nil
}

func (s *S3BlobStore) Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) error {
	if err := validateBlobName(name); err != nil {
		return err
	}

	_, err := s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.Bucket),
		Key:           aws.String(name),
		Body:          r,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to put object %q: %w", name, err)
	}
	return nil
}

func (s *S3BlobStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := validateBlobName(name); err != nil {
		return nil, err
	}

	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, fmt.Errorf("blob %q: %w", name, ErrBlobNotFound)
		}
		return nil, fmt.Errorf("failed to get object %q: %w", name, err)
	}
	return out.Body, nil
}

func (s *S3BlobStore) Exists(ctx context.Context, name string) (bool, error) {
	if err := validateBlobName(name); err != nil {
		return false, err
	}

	_, err := s.Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		if isS3NotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to head object %q: %w", name, err)
	}
	return true, nil
}

func (s *S3BlobStore) Delete(ctx context.Context, name string) error {
	if err := validateBlobName(name); err != nil {
		return err
	}

	_, err := s.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(name),
	})
	if err != nil && !isS3NotFound(err) {
		return fmt.Errorf("failed to delete object %q: %w", name, err)
	}
	return nil
}

func (s *S3BlobStore) Walk(ctx context.Context, fn func(BlobInfo) error) error {
	paginator := s3.NewListObjectsV2Paginator(s.Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.Bucket),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			info := BlobInfo{
				Name: aws.ToString(obj.Key),
				Size: aws.ToInt64(obj.Size),
			}
			if obj.LastModified != nil {
				info.ModTime = *obj.LastModified
			}
			if err := fn(info); err != nil {
				return err
			}
		}
	}
	return nil
}

func isS3NotFound(err error) bool {
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchKey" || code == "NotFound"
	}
	return false
}
