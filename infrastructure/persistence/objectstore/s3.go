// Package objectstore implements the cold tier (spec §4.6: "cold (>=
// tens of ms) in object storage") on AWS S3, following the same
// thin-client-plus-logger shape as the teacher's dynamodb.Store
// (infrastructure/persistence/dynamodb/client.go): one struct wrapping
// an AWS SDK client and a bucket name, with each operation mapping SDK
// errors onto the engine's typed error kinds.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	pkgerrors "relevance-engine/pkg/errors"
)

// S3ObjectStore implements ports.ObjectStore on a single S3 bucket.
// Keys are the caller's cold-tier key, typically `USER#<id>/<memoryID>`.
type S3ObjectStore struct {
	client *s3.Client
	bucket string
	logger *zap.Logger
}

// NewS3ObjectStore builds an S3ObjectStore against bucket.
func NewS3ObjectStore(client *s3.Client, bucket string, logger *zap.Logger) *S3ObjectStore {
	return &S3ObjectStore{client: client, bucket: bucket, logger: logger}
}

// Put writes body under key, overwriting any existing object (spec
// §4.6: cold archival copies a warm memory's content down a tier).
func (s *S3ObjectStore) Put(ctx context.Context, key string, body []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return pkgerrors.NewDependencyError("s3 put-object failed", err)
	}
	return nil
}

// Get reads the object at key. A missing key surfaces as a NotFound
// engine error so callers (the tier manager's cold read path) can
// distinguish "not archived" from a transient dependency failure.
func (s *S3ObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, pkgerrors.NewNotFoundError("object not found in cold storage")
		}
		return nil, pkgerrors.NewDependencyError("s3 get-object failed", err)
	}
	defer out.Body.Close()
	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, pkgerrors.NewDependencyError("s3 get-object read failed", err)
	}
	return body, nil
}

// Delete removes the object at key. A missing key is not an error,
// mirroring the vector index's idempotent-delete convention.
func (s *S3ObjectStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return pkgerrors.NewDependencyError("s3 delete-object failed", err)
	}
	return nil
}
