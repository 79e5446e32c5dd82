package s3

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/marmos91/tcpfs/pkg/store/content"
)

// Walk lists every object under the key prefix page by page.
func (s *S3ContentStore) Walk(ctx context.Context, fn func(content.Item) error) error {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.keyPrefix),
	})

	for paginator.HasMorePages() {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to list objects: %w", err)
		}

		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			location, ok := s.locationFromKey(*obj.Key)
			if !ok || location == "" {
				continue
			}

			item := content.Item{Location: location}
			if obj.Size != nil && *obj.Size > 0 {
				item.Size = uint64(*obj.Size)
			}
			if obj.LastModified != nil {
				item.ModTime = *obj.LastModified
			}
			if err := fn(item); err != nil {
				return err
			}
		}
	}
	return nil
}

// DeleteBatch removes locations with DeleteObjects, chunked to the S3 limit.
func (s *S3ContentStore) DeleteBatch(ctx context.Context, locations []string) (map[string]error, error) {
	failures := make(map[string]error)

	for i := 0; i < len(locations); i += maxDeleteBatch {
		if err := ctx.Err(); err != nil {
			for _, location := range locations[i:] {
				failures[location] = err
			}
			return failures, err
		}

		end := i + maxDeleteBatch
		if end > len(locations) {
			end = len(locations)
		}
		batch := locations[i:end]

		objects := make([]types.ObjectIdentifier, 0, len(batch))
		for _, location := range batch {
			if err := content.ValidateLocation(location); err != nil {
				failures[location] = err
				continue
			}
			objects = append(objects, types.ObjectIdentifier{
				Key: aws.String(s.objectKey(location)),
			})
		}
		if len(objects) == 0 {
			continue
		}

		result, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{
				Objects: objects,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			for _, obj := range objects {
				location, _ := s.locationFromKey(*obj.Key)
				failures[location] = err
			}
			continue
		}

		for _, deleteErr := range result.Errors {
			if deleteErr.Key == nil {
				continue
			}
			location, ok := s.locationFromKey(*deleteErr.Key)
			if !ok {
				continue
			}
			msg := "unknown error"
			if deleteErr.Code != nil && deleteErr.Message != nil {
				msg = fmt.Sprintf("%s: %s", *deleteErr.Code, *deleteErr.Message)
			}
			failures[location] = errors.New(msg)
		}
	}

	return failures, nil
}
