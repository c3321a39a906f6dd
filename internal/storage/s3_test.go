package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memS3 serves at most pageSize keys per list call. Continuation tokens are
// the last key returned, so deleting between pages does not skip keys.
type memS3 struct {
	mu       sync.Mutex
	objects  map[string][]byte
	types    map[string]string
	pageSize int
	lists    int
}

func newMemS3() *memS3 {
	return &memS3{objects: map[string][]byte{}, types: map[string]string{}, pageSize: 2}
}

func (m *memS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *memS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[*in.Key] = data
	m.types[*in.Key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (m *memS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if in.ContinuationToken != nil {
		start = sort.SearchStrings(keys, *in.ContinuationToken)
		if start < len(keys) && keys[start] == *in.ContinuationToken {
			start++
		}
	}
	end := min(start+m.pageSize, len(keys))
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(keys))}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	if end < len(keys) {
		out.NextContinuationToken = aws.String(keys[end-1])
	}
	return out, nil
}

func (m *memS3) DeleteObjects(_ context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range in.Delete.Objects {
		delete(m.objects, *id.Key)
	}
	return &s3.DeleteObjectsOutput{}, nil
}

func TestPutGet(t *testing.T) {
	fake := newMemS3()
	b := NewBucket(fake, "chive")
	ctx := context.Background()

	require.NoError(t, b.Put(ctx, "jobs/a/input/cat.png", []byte("png"), ""))
	require.NoError(t, b.Put(ctx, "jobs/a/result.zip", []byte("zip"), "application/zip"))
	require.NoError(t, b.Put(ctx, "jobs/a/blob", []byte("?"), ""))

	got, err := b.Get(ctx, "jobs/a/input/cat.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), got)

	assert.Equal(t, "image/png", fake.types["jobs/a/input/cat.png"])
	assert.Equal(t, "application/zip", fake.types["jobs/a/result.zip"])
	assert.Equal(t, "application/octet-stream", fake.types["jobs/a/blob"])
}

func TestGetMissing(t *testing.T) {
	_, err := NewBucket(newMemS3(), "chive").Get(context.Background(), "nope")
	var nsk *types.NoSuchKey
	assert.True(t, errors.As(err, &nsk))
}

func TestListAndDeleteFolderPaginate(t *testing.T) {
	fake := newMemS3()
	b := NewBucket(fake, "chive")
	ctx := context.Background()
	for _, k := range []string{"jobs/a/1", "jobs/a/2", "jobs/a/3", "jobs/a/4", "jobs/a/5", "jobs/b/1"} {
		require.NoError(t, b.Put(ctx, k, []byte(k), ""))
	}

	keys, err := b.List(ctx, "jobs/a/")
	require.NoError(t, err)
	assert.Equal(t, []string{"jobs/a/1", "jobs/a/2", "jobs/a/3", "jobs/a/4", "jobs/a/5"}, keys)
	assert.Equal(t, 3, fake.lists)

	require.NoError(t, b.DeleteFolder(ctx, "jobs/a/"))
	keys, err = b.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"jobs/b/1"}, keys)
}
