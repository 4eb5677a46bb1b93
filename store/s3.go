package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/aluiziolira/go-harvest/config"
)

// S3API is the subset of the S3 client the gateway uses.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Gateway stores the four collection documents as objects under a prefix.
type S3Gateway struct {
	*documentGateway
}

// NewS3Gateway builds a client from the default AWS credential chain.
func NewS3Gateway(ctx context.Context, cfg config.StorageConfig, field string) (*S3Gateway, error) {
	if cfg.S3Bucket == "" {
		return nil, wrap("s3", "open", errors.New("bucket is required"))
	}
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, wrap("s3", "load aws config", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.S3Endpoint != "" {
		endpoint := cfg.S3Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.S3PathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	return NewS3GatewayWithClient(s3.NewFromConfig(awsCfg, s3Opts...), cfg.S3Bucket, cfg.S3Prefix, field), nil
}

// NewS3GatewayWithClient wraps an existing client.
func NewS3GatewayWithClient(client S3API, bucket, prefix, field string) *S3Gateway {
	return &S3Gateway{
		documentGateway: newDocumentGateway("s3", s3Blobs{client: client, bucket: bucket, prefix: prefix}, field),
	}
}

type s3Blobs struct {
	client S3API
	bucket string
	prefix string
}

func (b s3Blobs) key(name string) string {
	if b.prefix == "" {
		return name
	}
	return path.Join(b.prefix, name)
}

func (b s3Blobs) Get(ctx context.Context, name string) ([]byte, bool, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(name)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		var notFound *types.NotFound
		if errors.As(err, &noKey) || errors.As(err, &notFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get %s: %w", b.key(name), err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", b.key(name), err)
	}
	return data, true, nil
}

func (b s3Blobs) Put(ctx context.Context, name string, data []byte) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(b.key(name)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", b.key(name), err)
	}
	return nil
}
