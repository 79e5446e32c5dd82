// Package s3 implements the content store on Amazon S3 or any S3-compatible
// service.
//
// Objects are stored under "<key_prefix><location>". Uploads are spooled to a
// local temp file before PutObject, so an upload whose client stalls or
// disconnects never produces a partial S3 object.
package s3

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/tcpfs/pkg/store/content"
)

// maxDeleteBatch is the S3 DeleteObjects limit.
const maxDeleteBatch = 1000

// Client is the subset of the S3 API used by the store. *s3.Client
// satisfies it.
type Client interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, opts ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3ContentStore implements content.GarbageCollectableStore on an S3 bucket.
//
// Thread Safety:
// Safe for concurrent use; the AWS client is goroutine-safe and locations
// never collide within a process.
type S3ContentStore struct {
	client    Client
	bucket    string
	keyPrefix string
	spoolDir  string
	clock     *content.Clock
}

// S3ContentStoreConfig contains configuration for the S3 content store.
type S3ContentStoreConfig struct {
	// Client is the configured S3 client.
	Client Client

	// Bucket is the S3 bucket name. It must exist.
	Bucket string

	// KeyPrefix is prepended to every location.
	// Example: "tcpfs/" results in keys like "tcpfs/<ns>/2024/.../file.data"
	KeyPrefix string

	// SpoolDir holds upload spool files (default: os.TempDir()).
	SpoolDir string

	// SkipBucketCheck disables the HeadBucket probe at construction.
	SkipBucketCheck bool
}

// NewS3ContentStore validates the configuration and verifies bucket access.
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
	if cfg.KeyPrefix != "" && !strings.HasSuffix(cfg.KeyPrefix, "/") {
		cfg.KeyPrefix += "/"
	}

	spoolDir := cfg.SpoolDir
	if spoolDir == "" {
		spoolDir = os.TempDir()
	}
	if err := os.MkdirAll(spoolDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create spool directory: %w", err)
	}

	store := &S3ContentStore{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
		spoolDir:  spoolDir,
		clock:     content.NewClock(),
	}

	if !cfg.SkipBucketCheck {
		if err := store.Healthcheck(ctx); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// objectKey returns the S3 key of a location.
func (s *S3ContentStore) objectKey(location string) string {
	return s.keyPrefix + location
}

// locationFromKey strips the key prefix.
func (s *S3ContentStore) locationFromKey(key string) (string, bool) {
	if !strings.HasPrefix(key, s.keyPrefix) {
		return "", false
	}
	return key[len(s.keyPrefix):], true
}

// Healthcheck verifies the bucket is reachable with the configured
// credentials.
func (s *S3ContentStore) Healthcheck(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("failed to access bucket %q: %w", s.bucket, err)
	}
	return nil
}

// Close is a no-op.
func (s *S3ContentStore) Close() error {
	return nil
}

// Compile-time interface check
var _ content.GarbageCollectableStore = (*S3ContentStore)(nil)
