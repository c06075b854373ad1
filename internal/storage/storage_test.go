package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocation(t *testing.T) {
	loc, err := ParseLocation("s3://ai-s3-disk/datasets/StocksData/")
	require.NoError(t, err)
	assert.Equal(t, Location{Bucket: "ai-s3-disk", Prefix: "datasets/StocksData/"}, loc)
	assert.Equal(t, "s3://ai-s3-disk/datasets/StocksData/", loc.String())

	loc, err = ParseLocation("s3://bucket")
	require.NoError(t, err)
	assert.Equal(t, "", loc.Prefix)

	for _, bad := range []string{"", "https://bucket/key", "s3:///no-bucket", "/local/path"} {
		_, err := ParseLocation(bad)
		assert.Error(t, err, bad)
	}
}

func TestSplitEndpoint(t *testing.T) {
	tests := []struct {
		in         string
		useSSL     bool
		wantHost   string
		wantSecure bool
	}{
		{"https://s3.example.com/", false, "s3.example.com", true},
		{"http://localhost:9000", true, "localhost:9000", false},
		{"minio.internal:9000", true, "minio.internal:9000", true},
		{"//minio.internal", false, "minio.internal", false},
	}
	for _, tt := range tests {
		host, secure := splitEndpoint(tt.in, tt.useSSL)
		assert.Equal(t, tt.wantHost, host, tt.in)
		assert.Equal(t, tt.wantSecure, secure, tt.in)
	}
}

func TestNewMinioClient_Validation(t *testing.T) {
	_, err := NewMinioClient(MinioConfig{AccessKey: "a", SecretKey: "b", Bucket: "c"})
	assert.ErrorContains(t, err, "endpoint")

	_, err = NewMinioClient(MinioConfig{Endpoint: "localhost:9000", Bucket: "c"})
	assert.ErrorContains(t, err, "credentials")

	_, err = NewMinioClient(MinioConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"})
	assert.ErrorContains(t, err, "bucket")

	c, err := NewMinioClient(MinioConfig{Endpoint: "http://localhost:9000", AccessKey: "a", SecretKey: "b", Bucket: "c"})
	require.NoError(t, err)
	assert.Equal(t, "c", c.bucket)
}

func TestNewS3Client_RequiresBucket(t *testing.T) {
	_, err := NewS3Client(context.Background(), S3Config{})
	assert.ErrorContains(t, err, "bucket")
}

type fakeS3 struct {
	pages   []*s3.ListObjectsV2Output
	objects map[string][]byte
	listed  int
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if f.listed >= len(f.pages) {
		return nil, fmt.Errorf("unexpected page request %d", f.listed)
	}
	page := f.pages[f.listed]
	f.listed++
	return page, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, fmt.Errorf("no such key %s", aws.ToString(in.Key))
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: aws.Int64(int64(len(body))),
		ContentRange:  aws.String(fmt.Sprintf("bytes 0-%d/%d", len(body)-1, len(body))),
	}, nil
}

func TestS3Client_ListObjectsPaginates(t *testing.T) {
	api := &fakeS3{pages: []*s3.ListObjectsV2Output{
		{
			Contents: []types.Object{
				{Key: aws.String("datasets/StocksData/"), Size: aws.Int64(0)},
				{Key: aws.String("datasets/StocksData/2330.csv"), Size: aws.Int64(120)},
			},
			IsTruncated:           aws.Bool(true),
			NextContinuationToken: aws.String("page-2"),
		},
		{
			Contents: []types.Object{
				{Key: aws.String("datasets/StocksData/tw/0050.csv"), Size: aws.Int64(64)},
			},
			IsTruncated: aws.Bool(false),
		},
	}}

	objects, err := newS3Client(api, "ai-s3-disk").ListObjects(context.Background(), "datasets/StocksData/")
	require.NoError(t, err)
	assert.Equal(t, []ObjectInfo{
		{Key: "datasets/StocksData/", Size: 0},
		{Key: "datasets/StocksData/2330.csv", Size: 120},
		{Key: "datasets/StocksData/tw/0050.csv", Size: 64},
	}, objects)
	assert.Equal(t, 2, api.listed)
	assert.True(t, IsDirectoryMarker(objects[0]))
	assert.False(t, IsDirectoryMarker(objects[1]))
}

func TestS3Client_DownloadObject(t *testing.T) {
	content := []byte("date,open,close\n2024-01-02,593,586\n")
	api := &fakeS3{objects: map[string][]byte{"datasets/StocksData/2330.csv": content}}

	dest := filepath.Join(t.TempDir(), "nested", "2330.csv")
	require.NoError(t, newS3Client(api, "ai-s3-disk").DownloadObject(context.Background(), "datasets/StocksData/2330.csv", dest))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	entries, err := os.ReadDir(filepath.Dir(dest))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp part files must not be left behind")
}

func TestS3Client_DownloadObjectFailureLeavesNoFile(t *testing.T) {
	api := &fakeS3{objects: map[string][]byte{}}

	dest := filepath.Join(t.TempDir(), "missing.csv")
	err := newS3Client(api, "ai-s3-disk").DownloadObject(context.Background(), "missing.csv", dest)
	require.Error(t, err)

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}
