package e2e

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	s3store "github.com/marmos91/tcpfs/pkg/store/content/s3"
)

// LocalstackHelper creates throwaway buckets on a Localstack endpoint
// (LOCALSTACK_ENDPOINT, default http://localhost:4566) and removes them on
// Cleanup.
type LocalstackHelper struct {
	T        *testing.T
	Endpoint string
	Client   *s3.Client
	buckets  []string
}

func NewLocalstackHelper(t *testing.T) *LocalstackHelper {
	t.Helper()

	endpoint := os.Getenv("LOCALSTACK_ENDPOINT")
	if endpoint == "" {
		endpoint = "http://localhost:4566"
	}

	client, err := s3store.NewClient(context.Background(), s3store.ClientConfig{
		Region:          "us-east-1",
		Endpoint:        endpoint,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		ForcePathStyle:  true,
	})
	if err != nil {
		t.Fatalf("Failed to create S3 client: %v", err)
	}

	return &LocalstackHelper{T: t, Endpoint: endpoint, Client: client}
}

// Available reports whether the endpoint answers a ListBuckets call.
func (lh *LocalstackHelper) Available() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err := lh.Client.ListBuckets(ctx, &s3.ListBucketsInput{})
	return err == nil
}

// NewBucket creates a uniquely named bucket for name.
func (lh *LocalstackHelper) NewBucket(ctx context.Context, name string) (string, error) {
	bucket := strings.ToLower(fmt.Sprintf("tcpfs-e2e-%s-%d", name, time.Now().UnixNano()))
	if _, err := lh.Client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)}); err != nil {
		return "", fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	lh.buckets = append(lh.buckets, bucket)
	return bucket, nil
}

// Cleanup empties and deletes every bucket created by this helper.
func (lh *LocalstackHelper) Cleanup() {
	ctx := context.Background()
	for _, bucket := range lh.buckets {
		lh.empty(ctx, bucket)
		_, _ = lh.Client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucket)})
	}
	lh.buckets = nil
}

func (lh *LocalstackHelper) empty(ctx context.Context, bucket string) {
	pages := s3.NewListObjectsV2Paginator(lh.Client, &s3.ListObjectsV2Input{Bucket: aws.String(bucket)})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil || len(page.Contents) == 0 {
			return
		}

		ids := make([]types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			ids = append(ids, types.ObjectIdentifier{Key: obj.Key})
		}
		_, _ = lh.Client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
	}
}

// SetupS3Config points config at a fresh bucket on helper's endpoint.
func SetupS3Config(t *testing.T, config *TestConfig, helper *LocalstackHelper) {
	t.Helper()

	bucket, err := helper.NewBucket(context.Background(), config.Name)
	if err != nil {
		t.Fatalf("Failed to create S3 bucket: %v", err)
	}

	config.s3Endpoint = helper.Endpoint
	config.s3Bucket = bucket
}
