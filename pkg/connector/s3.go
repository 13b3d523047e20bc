package connector

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/ctxeco/backend/pkg/common"
	"github.com/ctxeco/backend/pkg/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Source pulls objects from one S3 bucket. An explicit endpoint plus
// path-style addressing keeps MinIO deployments working unchanged.
type S3Source struct {
	bucket string
	prefix string
	cfg    map[string]any
	client *s3.Client
}

func newS3Source(cfg map[string]any) (Source, error) {
	bucket := cfgString(cfg, "bucket", "")
	if bucket == "" {
		return nil, fmt.Errorf("%w: S3 connector requires a bucket", common.ErrValidation)
	}
	return &S3Source{
		bucket: bucket,
		prefix: cfgString(cfg, "prefix", ""),
		cfg:    cfg,
	}, nil
}

func (s *S3Source) Connect(ctx context.Context) error {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfgString(s.cfg, "region", "us-east-1")),
	}
	if endpoint := cfgString(s.cfg, "endpoint", ""); endpoint != "" {
		opts = append(opts, config.WithBaseEndpoint(endpoint))
	}
	if accessKey := cfgString(s.cfg, "access_key", ""); accessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey,
			cfgString(s.cfg, "secret_key", ""),
			"",
		)))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to load S3 configuration: %w", err)
	}
	s.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	}); err != nil {
		return fmt.Errorf("failed to reach bucket %s: %w", s.bucket, err)
	}

	logger.Info("[Connector][S3] Connected", "bucket", s.bucket)
	return nil
}

func (s *S3Source) List(ctx context.Context) ([]Item, error) {
	if s.client == nil {
		if err := s.Connect(ctx); err != nil {
			return nil, err
		}
	}

	var items []Item
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	}
	if s.prefix != "" {
		input.Prefix = aws.String(s.prefix)
	}

	for {
		out, err := s.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to list bucket %s: %w", s.bucket, err)
		}

		for _, obj := range out.Contents {
			if obj.Key == nil {
				continue
			}
			item := Item{ID: *obj.Key, Name: path.Base(*obj.Key)}
			if obj.Size != nil {
				item.Size = *obj.Size
			}
			if obj.LastModified != nil {
				item.Modified = *obj.LastModified
			}
			items = append(items, item)
		}

		if out.IsTruncated != nil && *out.IsTruncated {
			input.ContinuationToken = out.NextContinuationToken
		} else {
			break
		}
	}

	return items, nil
}

func (s *S3Source) Fetch(ctx context.Context, id string) (string, io.ReadCloser, error) {
	if s.client == nil {
		if err := s.Connect(ctx); err != nil {
			return "", nil, err
		}
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to get object %s: %w", id, err)
	}
	return path.Base(id), out.Body, nil
}

// Disconnect drops the client so the next call dials fresh.
func (s *S3Source) Disconnect(ctx context.Context) error {
	s.client = nil
	return nil
}
