package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/chive/backend/internal/util"
)

// S3API is the subset of *s3.Client a Bucket needs.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

func NewS3Client(ctx context.Context) (*s3.Client, error) {
	cfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion(util.GetEnvString("AWS_REGION", "us-east-1")),
		config.WithBaseEndpoint(util.GetEnv("AWS_ENDPOINT")),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			util.GetEnv("AWS_ACCESS_KEY"),
			util.GetEnv("AWS_SECRET_KEY"),
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	}), nil
}

// Bucket holds job inputs and result archives.
type Bucket struct {
	client S3API
	name   string
}

func NewBucket(client S3API, name string) *Bucket {
	return &Bucket{client: client, name: name}
}

// Put stores data under key. An empty contentType is guessed from the key's
// extension.
func (b *Bucket) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = mime.TypeByExtension(path.Ext(key))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.name),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

func (b *Bucket) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.name),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

func (b *Bucket) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := b.eachPage(ctx, prefix, func(objs []types.Object) error {
		for _, obj := range objs {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}
		return nil
	})
	return keys, err
}

// DeleteFolder removes every object under prefix.
func (b *Bucket) DeleteFolder(ctx context.Context, prefix string) error {
	return b.eachPage(ctx, prefix, func(objs []types.Object) error {
		if len(objs) == 0 {
			return nil
		}
		ids := make([]types.ObjectIdentifier, 0, len(objs))
		for _, obj := range objs {
			ids = append(ids, types.ObjectIdentifier{Key: obj.Key})
		}
		_, err := b.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(b.name),
			Delete: &types.Delete{
				Objects: ids,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return fmt.Errorf("failed to delete objects in folder %s: %w", prefix, err)
		}
		return nil
	})
}

func (b *Bucket) eachPage(ctx context.Context, prefix string, fn func([]types.Object) error) error {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(b.name),
		Prefix: aws.String(prefix),
	}
	for {
		out, err := b.client.ListObjectsV2(ctx, input)
		if err != nil {
			return fmt.Errorf("failed to list objects with prefix %s: %w", prefix, err)
		}
		if err := fn(out.Contents); err != nil {
			return err
		}
		if out.IsTruncated == nil || !*out.IsTruncated {
			return nil
		}
		input.ContinuationToken = out.NextContinuationToken
	}
}
