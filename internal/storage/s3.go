package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/pesit-e/pesitengine/internal/transfer"
)

// S3Config names the bucket and key namespace an S3Store writes
// under.
type S3Config struct {
	Bucket    string
	KeyPrefix string
}

// S3Store is the optional durable ObjectStore backed by S3-compatible
// object storage. Objects are whole-object: OpenWrite buffers in
// memory, starting from the object's current contents if it exists,
// and uploads on Close, and OpenRead issues ranged GETs so the
// transfer layer's Seek still works for restart.
type S3Store struct {
	client *s3.Client
	cfg    S3Config
}

func NewS3Store(client *s3.Client, cfg S3Config) *S3Store {
	return &S3Store{client: client, cfg: cfg}
}

func (s *S3Store) key(name string) string {
	return s.cfg.KeyPrefix + name
}

func (s *S3Store) OpenRead(ctx context.Context, name string) (transfer.ByteSource, error) {
	size, err := s.Len(ctx, name)
	if err != nil {
		return nil, err
	}
	return &s3Source{ctx: ctx, client: s.client, bucket: s.cfg.Bucket, key: s.key(name), size: size}, nil
}

func (s *S3Store) OpenWrite(ctx context.Context, name string) (transfer.ByteSink, error) {
	sink := &s3Sink{ctx: ctx, client: s.client, bucket: s.cfg.Bucket, key: s.key(name)}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.key(name)),
	})
	if isNotFound(err) {
		return sink, nil
	}
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()
	if sink.buf, err = io.ReadAll(out.Body); err != nil {
		return nil, err
	}
	return sink, nil
}

func (s *S3Store) Len(ctx context.Context, name string) (int64, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.key(name)),
	})
	if isNotFound(err) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	if out.ContentLength == nil {
		return 0, nil
	}
	return *out.ContentLength, nil
}

func (s *S3Store) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.Len(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

var _ ObjectStore = (*S3Store)(nil)

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	return errors.As(err, &nsk)
}

// s3Source implements transfer.ByteSource with ranged GETs, so Seek
// followed by Read resumes from the requested byte offset.
type s3Source struct {
	ctx    context.Context
	client *s3.Client
	bucket string
	key    string
	size   int64
	offset int64
	body   io.ReadCloser
}

func (s *s3Source) Size() (int64, error) { return s.size, nil }

func (s *s3Source) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = s.offset + offset
	case io.SeekEnd:
		target = s.size + offset
	default:
		return 0, fmt.Errorf("s3Source: invalid whence %d", whence)
	}
	if target != s.offset && s.body != nil {
		_ = s.body.Close()
		s.body = nil
	}
	s.offset = target
	return s.offset, nil
}

func (s *s3Source) Read(p []byte) (int, error) {
	if s.body == nil {
		if s.offset >= s.size {
			return 0, io.EOF
		}
		out, err := s.client.GetObject(s.ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.key),
			Range:  aws.String(fmt.Sprintf("bytes=%d-%d", s.offset, s.size-1)),
		})
		if err != nil {
			return 0, err
		}
		s.body = out.Body
	}
	n, err := s.body.Read(p)
	s.offset += int64(n)
	return n, err
}

func (s *s3Source) Close() error {
	if s.body != nil {
		return s.body.Close()
	}
	return nil
}

// s3Sink buffers the whole object in memory and uploads it in one
// PutObject call on Close, since S3 has no in-place byte-range write.
// This is adequate for this profile's transfer sizes; a production
// deployment moving to multipart upload would replace this type
// without touching transfer.ByteSink's contract.
type s3Sink struct {
	ctx    context.Context
	client *s3.Client
	bucket string
	key    string
	buf    []byte
	offset int64
}

func (s *s3Sink) Write(p []byte) (int, error) {
	end := s.offset + int64(len(p))
	if end > int64(len(s.buf)) {
		grown := make([]byte, end)
		copy(grown, s.buf)
		s.buf = grown
	}
	n := copy(s.buf[s.offset:end], p)
	s.offset += int64(n)
	return n, nil
}

func (s *s3Sink) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		s.offset = offset
	case io.SeekCurrent:
		s.offset += offset
	case io.SeekEnd:
		s.offset = int64(len(s.buf)) + offset
	default:
		return 0, fmt.Errorf("s3Sink: invalid whence %d", whence)
	}
	return s.offset, nil
}

func (s *s3Sink) Truncate(size int64) error {
	if size > int64(len(s.buf)) {
		grown := make([]byte, size)
		copy(grown, s.buf)
		s.buf = grown
		return nil
	}
	s.buf = s.buf[:size]
	return nil
}

// Sync is a no-op: nothing is durable until Close uploads the object.
// A sync-point during an S3-backed transfer still commits sync
// bookkeeping (internal/sync.Counters) even though the bytes are only
// flushed to the remote object once the transfer completes.
func (s *s3Sink) Sync() error { return nil }

func (s *s3Sink) Close() error {
	_, err := s.client.PutObject(s.ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
		Body:   bytes.NewReader(s.buf),
	})
	return err
}

var _ transfer.ByteSource = (*s3Source)(nil)
var _ transfer.ByteSink = (*s3Sink)(nil)
