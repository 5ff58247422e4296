//go:build integration

package storage

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"
)

// createTestClient points at LOCALSTACK_ENDPOINT, or localhost:4566
// if unset.
func createTestClient(t *testing.T) *s3.Client {
	t.Helper()

	endpoint := os.Getenv("LOCALSTACK_ENDPOINT")
	if endpoint == "" {
		endpoint = "http://localhost:4566"
	}

	ctx := context.Background()
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("us-east-1"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
	)
	require.NoError(t, err)

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = &endpoint
		o.UsePathStyle = true
	})
}

func createTestBucket(t *testing.T, client *s3.Client, bucket string) func() {
	t.Helper()
	ctx := context.Background()

	_, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
	require.NoError(t, err)

	return func() {
		listed, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{Bucket: aws.String(bucket)})
		if err == nil {
			for _, obj := range listed.Contents {
				_, _ = client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(bucket), Key: obj.Key})
			}
		}
		_, _ = client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucket)})
	}
}

func TestS3Store_WriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := createTestClient(t)
	cleanup := createTestBucket(t, client, "pesit-write-read")
	defer cleanup()

	store := NewS3Store(client, S3Config{Bucket: "pesit-write-read", KeyPrefix: "transfers/"})

	sink, err := store.OpenWrite(ctx, "report.txt")
	require.NoError(t, err)
	_, err = sink.Write([]byte("hello from s3"))
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	src, err := store.OpenRead(ctx, "report.txt")
	require.NoError(t, err)
	defer src.Close()

	data, err := io.ReadAll(src)
	require.NoError(t, err)
	require.Equal(t, "hello from s3", string(data))
}

func TestS3Store_OpenReadMissingReturnsErrNotFound(t *testing.T) {
	ctx := context.Background()
	client := createTestClient(t)
	cleanup := createTestBucket(t, client, "pesit-not-found")
	defer cleanup()

	store := NewS3Store(client, S3Config{Bucket: "pesit-not-found"})
	_, err := store.OpenRead(ctx, "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestS3Store_SeekForRestart(t *testing.T) {
	ctx := context.Background()
	client := createTestClient(t)
	cleanup := createTestBucket(t, client, "pesit-restart")
	defer cleanup()

	store := NewS3Store(client, S3Config{Bucket: "pesit-restart"})

	sink, err := store.OpenWrite(ctx, "f.bin")
	require.NoError(t, err)
	_, err = sink.Write([]byte("0123456789"))
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	src, err := store.OpenRead(ctx, "f.bin")
	require.NoError(t, err)
	defer src.Close()

	_, err = src.Seek(5, io.SeekStart)
	require.NoError(t, err)
	rest, err := io.ReadAll(src)
	require.NoError(t, err)
	require.Equal(t, "56789", string(rest))
}
