package s3

import (
	"context"
	"errors"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/marmos91/tcpfs/pkg/store/content"
	contenttesting "github.com/marmos91/tcpfs/pkg/store/content/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeObject is one object held by fakeClient.
type fakeObject struct {
	data     []byte
	modified time.Time
	metadata map[string]string
}

// fakeClient is an in-memory stand-in for the S3 API.
type fakeClient struct {
	mu       sync.Mutex
	bucket   string
	objects  map[string]fakeObject
	pageSize int

	putErr    error
	deleteErr map[string]string
}

func newFakeClient(bucket string) *fakeClient {
	return &fakeClient{
		bucket:   bucket,
		objects:  make(map[string]fakeObject),
		pageSize: 2,
	}
}

func (f *fakeClient) checkBucket(bucket *string) error {
	if aws.ToString(bucket) != f.bucket {
		return &types.NoSuchBucket{Message: aws.String("no such bucket")}
	}
	return nil
}

func (f *fakeClient) HeadBucket(_ context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if err := f.checkBucket(in.Bucket); err != nil {
		return nil, err
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeClient) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if err := f.checkBucket(in.Bucket); err != nil {
		return nil, err
	}
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	if in.ContentLength != nil && *in.ContentLength != int64(len(data)) {
		return nil, errors.New("content length mismatch")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = fakeObject{data: data, modified: time.Now(), metadata: in.Metadata}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeClient) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if err := f.checkBucket(in.Bucket); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("no such key")}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader(string(obj.data))),
		ContentLength: aws.Int64(int64(len(obj.data))),
	}, nil
}

func (f *fakeClient) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if err := f.checkBucket(in.Bucket); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeClient) DeleteObjects(_ context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	if err := f.checkBucket(in.Bucket); err != nil {
		return nil, err
	}
	if len(in.Delete.Objects) > maxDeleteBatch {
		return nil, errors.New("too many objects in one request")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	out := &s3.DeleteObjectsOutput{}
	for _, obj := range in.Delete.Objects {
		key := aws.ToString(obj.Key)
		if code, ok := f.deleteErr[key]; ok {
			out.Errors = append(out.Errors, types.Error{
				Key:     aws.String(key),
				Code:    aws.String(code),
				Message: aws.String("injected"),
			})
			continue
		}
		delete(f.objects, key)
	}
	return out, nil
}

func (f *fakeClient) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if err := f.checkBucket(in.Bucket); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	keys := make([]string, 0, len(f.objects))
	for key := range f.objects {
		if strings.HasPrefix(key, aws.ToString(in.Prefix)) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	start := 0
	if token := aws.ToString(in.ContinuationToken); token != "" {
		start = sort.SearchStrings(keys, token)
	}
	end := start + f.pageSize
	if end > len(keys) {
		end = len(keys)
	}

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(keys))}
	for _, key := range keys[start:end] {
		obj := f.objects[key]
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(key),
			Size:         aws.Int64(int64(len(obj.data))),
			LastModified: aws.Time(obj.modified),
		})
	}
	if end < len(keys) {
		out.NextContinuationToken = aws.String(keys[end])
	}
	return out, nil
}

func newTestStore(t *testing.T, client *fakeClient, prefix string) *S3ContentStore {
	t.Helper()
	store, err := NewS3ContentStore(context.Background(), S3ContentStoreConfig{
		Client:    client,
		Bucket:    client.bucket,
		KeyPrefix: prefix,
		SpoolDir:  t.TempDir(),
	})
	require.NoError(t, err)
	return store
}

func TestS3ContentStore(t *testing.T) {
	suite := &contenttesting.StoreTestSuite{
		NewStore: func(t *testing.T) content.ContentStore {
			return newTestStore(t, newFakeClient("bucket"), "tcpfs")
		},
	}
	suite.Run(t)
}

func TestNewS3ContentStore_Validation(t *testing.T) {
	ctx := context.Background()

	_, err := NewS3ContentStore(ctx, S3ContentStoreConfig{Bucket: "b"})
	assert.Error(t, err)

	_, err = NewS3ContentStore(ctx, S3ContentStoreConfig{Client: newFakeClient("b")})
	assert.Error(t, err)

	_, err = NewS3ContentStore(ctx, S3ContentStoreConfig{Client: newFakeClient("b"), Bucket: "other", SpoolDir: t.TempDir()})
	assert.Error(t, err, "bucket check should fail")

	_, err = NewS3ContentStore(ctx, S3ContentStoreConfig{
		Client:          newFakeClient("b"),
		Bucket:          "other",
		SpoolDir:        t.TempDir(),
		SkipBucketCheck: true,
	})
	assert.NoError(t, err)
}

func TestPut_UsesKeyPrefixAndChecksumMetadata(t *testing.T) {
	client := newFakeClient("bucket")
	store := newTestStore(t, client, "data")

	p, err := store.Put(context.Background(), uuid.New(), strings.NewReader("hello"), 5)
	require.NoError(t, err)

	obj, ok := client.objects["data/"+p.Location]
	require.True(t, ok, "expected key with prefix")
	assert.Equal(t, p.Checksum, obj.metadata["blake3"])
}

func TestPut_SpoolRemoved(t *testing.T) {
	client := newFakeClient("bucket")
	spool := t.TempDir()
	store, err := NewS3ContentStore(context.Background(), S3ContentStoreConfig{
		Client:   client,
		Bucket:   "bucket",
		SpoolDir: spool,
	})
	require.NoError(t, err)

	_, err = store.Put(context.Background(), uuid.New(), strings.NewReader("abc"), 3)
	require.NoError(t, err)

	_, err = store.Put(context.Background(), uuid.New(), strings.NewReader("abc"), 30)
	require.ErrorIs(t, err, content.ErrShortWrite)

	client.putErr = errors.New("service unavailable")
	_, err = store.Put(context.Background(), uuid.New(), strings.NewReader("abc"), 3)
	require.Error(t, err)

	entries, err := os.ReadDir(spool)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPut_ShortSourceNeverUploads(t *testing.T) {
	client := newFakeClient("bucket")
	store := newTestStore(t, client, "")

	_, err := store.Put(context.Background(), uuid.New(), strings.NewReader("abc"), 30)
	require.ErrorIs(t, err, content.ErrShortWrite)
	assert.Empty(t, client.objects)
}

func TestWalk_IgnoresKeysOutsidePrefix(t *testing.T) {
	client := newFakeClient("bucket")
	store := newTestStore(t, client, "mine/")
	client.objects["theirs/x"] = fakeObject{data: []byte("x"), modified: time.Now()}

	p, err := store.Put(context.Background(), uuid.New(), strings.NewReader("y"), 1)
	require.NoError(t, err)

	var locations []string
	err = store.Walk(context.Background(), func(item content.Item) error {
		locations = append(locations, item.Location)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{p.Location}, locations)
}

func TestDeleteBatch_ReportsPerKeyErrors(t *testing.T) {
	client := newFakeClient("bucket")
	store := newTestStore(t, client, "")
	ctx := context.Background()

	ok, err := store.Put(ctx, uuid.New(), strings.NewReader("a"), 1)
	require.NoError(t, err)
	denied, err := store.Put(ctx, uuid.New(), strings.NewReader("b"), 1)
	require.NoError(t, err)
	client.deleteErr = map[string]string{denied.Location: "AccessDenied"}

	failures, err := store.DeleteBatch(ctx, []string{ok.Location, denied.Location, "../bad"})
	require.NoError(t, err)
	require.Len(t, failures, 2)
	assert.Contains(t, failures[denied.Location].Error(), "AccessDenied")
	assert.ErrorIs(t, failures["../bad"], content.ErrInvalidLocation)
}

func TestDeleteBatch_ChunksLargeBatches(t *testing.T) {
	client := newFakeClient("bucket")
	client.pageSize = 1000
	store := newTestStore(t, client, "")

	locations := make([]string, 0, maxDeleteBatch+5)
	ns := uuid.New()
	clock := content.NewClock()
	for i := 0; i < maxDeleteBatch+5; i++ {
		loc := content.NewLocation(ns, clock.Next())
		client.objects[loc] = fakeObject{data: []byte{1}, modified: time.Now()}
		locations = append(locations, loc)
	}

	failures, err := store.DeleteBatch(context.Background(), locations)
	require.NoError(t, err)
	assert.Empty(t, failures)
	assert.Empty(t, client.objects)
}

func TestNewClient_RequiresRegion(t *testing.T) {
	_, err := NewClient(context.Background(), ClientConfig{})
	assert.Error(t, err)
}

func TestNewClient_CustomEndpoint(t *testing.T) {
	client, err := NewClient(context.Background(), ClientConfig{
		Region:          "us-east-1",
		Endpoint:        "http://localhost:4566",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	})
	require.NoError(t, err)

	opts := client.Options()
	assert.True(t, opts.UsePathStyle)
	assert.Equal(t, "http://localhost:4566", aws.ToString(opts.BaseEndpoint))
}
