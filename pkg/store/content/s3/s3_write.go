package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/marmos91/tcpfs/internal/logger"
	"github.com/marmos91/tcpfs/pkg/store/content"
)

// Put spools exactly size bytes to a local temp file, then uploads the file
// with a single PutObject.
func (s *S3ContentStore) Put(ctx context.Context, namespace uuid.UUID, r io.Reader, size uint64) (*content.Placement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	spool, err := os.CreateTemp(s.spoolDir, "tcpfs-spool-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create spool file: %w", err)
	}
	defer func() {
		_ = spool.Close()
		if err := os.Remove(spool.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("Failed to remove spool file %s: %v", spool.Name(), err)
		}
	}()

	checksum, err := content.CopyExact(ctx, spool, r, size)
	if err != nil {
		return nil, err
	}
	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind spool file: %w", err)
	}

	location := content.NewLocation(namespace, s.clock.Next())
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.objectKey(location)),
		Body:          spool,
		ContentLength: aws.Int64(int64(size)),
		Metadata:      map[string]string{"blake3": checksum},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to write content to S3: %w", err)
	}

	return &content.Placement{Location: location, Size: size, Checksum: checksum}, nil
}

// Open streams the object body.
func (s *S3ContentStore) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	if err := content.ValidateLocation(location); err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(location)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%s: %w", location, content.ErrContentNotFound)
		}
		return nil, fmt.Errorf("failed to read content from S3: %w", err)
	}
	return out.Body, nil
}

// Delete removes the object. S3 deletes are idempotent.
func (s *S3ContentStore) Delete(ctx context.Context, location string) error {
	if err := content.ValidateLocation(location); err != nil {
		return err
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(location)),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete content from S3: %w", err)
	}
	return nil
}

// isNotFound reports whether err is an S3 missing-key error.
func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	return errors.As(err, &notFound)
}
