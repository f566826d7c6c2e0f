// Package s3 stores media objects in Amazon S3 or an S3-compatible service.
//
// Reads use byte-range GETs, so a retrieval that needs only the first
// 64 KiB of a 20 MiB photo transfers only that much.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/marmos91/fotoprobe/pkg/content"
	"github.com/marmos91/fotoprobe/pkg/metrics"
)

// Client is the subset of *s3.Client the store uses.
type Client interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

var _ Client = (*s3.Client)(nil)

// S3ContentStore implements content.WritableStore on an S3 bucket.
//
// Key Design:
//   - ContentID is used as the object key below KeyPrefix
//   - Example: prefix "library/" and ID "chat-42/1001.jpg" map to
//     "library/chat-42/1001.jpg"
//
// Error Mapping:
// S3 API errors are classified by code and HTTP status into the content
// errors (see classify), so callers never depend on SDK types.
//
// Thread Safety:
// Safe for concurrent use. Concurrent writes to one key are last-write-wins.
type S3ContentStore struct {
	client    Client
	bucket    string
	keyPrefix string
	metrics   metrics.ContentMetrics
}

// S3ContentStoreConfig contains configuration for the S3 content store.
type S3ContentStoreConfig struct {
	// Client is the configured S3 client.
	Client Client

	// Bucket must already exist.
	Bucket string

	// KeyPrefix is prepended to every key, e.g. "fotoprobe/".
	KeyPrefix string

	// Metrics is optional.
	Metrics metrics.ContentMetrics
}

// NewS3ContentStore verifies bucket access and returns the store.
//
// Parameters:
//   - ctx: Context for the HeadBucket probe
//   - cfg: S3 configuration
//
// Returns:
//   - *S3ContentStore: Initialized store
//   - error: Missing configuration or bucket access failure
func NewS3ContentStore(ctx context.Context, cfg S3ContentStoreConfig) (*S3ContentStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	_, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, classify("", err))
	}

	m := cfg.Metrics
	if m == nil {
		m = metrics.NewNoopContentMetrics()
	}

	return &S3ContentStore{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
		metrics:   m,
	}, nil
}

func (s *S3ContentStore) getObjectKey(id content.ContentID) string {
	return s.keyPrefix + string(id)
}

// ReadAt issues a ranged GET for [offset, offset+len(p)).
//
// Returns io.EOF with the bytes read when the object ends inside the range,
// and 0, io.EOF when offset is past the end (S3 answers InvalidRange).
func (s *S3ContentStore) ReadAt(ctx context.Context, id content.ContentID, p []byte, offset uint64) (n int, err error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveOperation("ReadAt", time.Since(start), ignoreEOF(err))
		if n > 0 {
			s.metrics.RecordBytes("read", int64(n))
		}
	}()

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}

	// S3 ranges are inclusive.
	end := offset + uint64(len(p)) - 1
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.getObjectKey(id)),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", offset, end)),
	})
	if err != nil {
		return 0, classify(id, err)
	}
	defer func() { _ = result.Body.Close() }()

	n, err = io.ReadFull(result.Body, p)
	switch err {
	case nil:
		return n, nil
	case io.ErrUnexpectedEOF, io.EOF:
		return n, io.EOF
	default:
		return n, fmt.Errorf("read body of %s: %w: %w", id, content.ErrUnavailable, err)
	}
}

// GetContentSize issues a HEAD request.
func (s *S3ContentStore) GetContentSize(ctx context.Context, id content.ContentID) (size uint64, err error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveOperation("GetContentSize", time.Since(start), err)
	}()

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	result, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.getObjectKey(id)),
	})
	if err != nil {
		return 0, classify(id, err)
	}
	if result.ContentLength == nil {
		return 0, fmt.Errorf("content length not available for %s", id)
	}

	return uint64(*result.ContentLength), nil
}

// ContentExists issues a HEAD request; a 404 is (false, nil).
func (s *S3ContentStore) ContentExists(ctx context.Context, id content.ContentID) (bool, error) {
	_, err := s.GetContentSize(ctx, id)
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, err
}

// WriteContent uploads data with a single PUT.
func (s *S3ContentStore) WriteContent(ctx context.Context, id content.ContentID, data []byte) (err error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveOperation("WriteContent", time.Since(start), err)
		if err == nil {
			s.metrics.RecordBytes("write", int64(len(data)))
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	if id == "" {
		return content.ErrInvalidContentID
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.getObjectKey(id)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return classify(id, err)
	}
	return nil
}

// Delete removes the object. S3 reports success for missing keys.
func (s *S3ContentStore) Delete(ctx context.Context, id content.ContentID) (err error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveOperation("Delete", time.Since(start), err)
	}()

	if err := ctx.Err(); err != nil {
		return err
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.getObjectKey(id)),
	})
	if err != nil && !isNotFound(classify(id, err)) {
		return classify(id, err)
	}
	return nil
}

// Close is a no-op; the client is owned by the caller.
func (s *S3ContentStore) Close() error {
	return nil
}
