package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3PutAPI is the part of the S3 client the sink uses.
type S3PutAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink archives each report as a JSON object under
// <prefix>/<list>/<yyyy-mm-dd>/<run id>.json.
type S3Sink struct {
	client S3PutAPI
	bucket string
	prefix string
}

// NewS3Sink creates an S3 archive sink.
func NewS3Sink(client S3PutAPI, bucket, prefix string) *S3Sink {
	return &S3Sink{client: client, bucket: bucket, prefix: prefix}
}

// Key returns the object key a report is stored under.
func (s *S3Sink) Key(r Report) string {
	return path.Join(s.prefix, r.ListID, r.StartedAt.UTC().Format("2006-01-02"), r.RunID+".json")
}

func (s *S3Sink) Publish(ctx context.Context, r Report) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshaling run report: %w", err)
	}
	key := s.Key(r)
	contentType := "application/json"
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: &contentType,
	})
	if err != nil {
		return fmt.Errorf("S3 PutObject %s/%s: %w", s.bucket, key, err)
	}
	return nil
}
