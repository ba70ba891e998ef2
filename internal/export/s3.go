package export

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// KeyTimePlaceholder in an object key is replaced with the UTC export time,
// so each run lands in its own object.
const KeyTimePlaceholder = "{time}"

type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Destination uploads each service snapshot to a bucket.
type S3Destination struct {
	client putObjectAPI
	bucket string
	key    string
	now    func() time.Time
}

// NewS3Destination loads the default AWS credential chain. A non-empty
// endpoint switches to path-style addressing for MinIO and similar stores.
func NewS3Destination(ctx context.Context, bucket, key, region, endpoint string) (*S3Destination, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Destination(client, bucket, key), nil
}

func newS3Destination(client putObjectAPI, bucket, key string) *S3Destination {
	return &S3Destination{client: client, bucket: bucket, key: key, now: time.Now}
}

// ObjectKey returns the key the next snapshot is written to.
func (d *S3Destination) ObjectKey() string {
	return strings.ReplaceAll(d.key, KeyTimePlaceholder, d.now().UTC().Format("20060102T150405Z"))
}

// ForRun returns a copy of d whose ObjectKey is fixed to at, so retries of
// one export reuse the same object.
func (d *S3Destination) ForRun(at time.Time) Destination {
	run := *d
	run.now = func() time.Time { return at }
	return &run
}

// Write stores data under ObjectKey. The number of service lines rides
// along as object metadata.
func (d *S3Destination) Write(ctx context.Context, data []byte) error {
	key := d.ObjectKey()
	lines := bytes.Count(data, []byte("\n"))
	if lines > 0 {
		lines-- // header
	}
	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/x-ndjson"),
		Metadata:    map[string]string{"services": strconv.Itoa(lines)},
	})
	if err != nil {
		return fmt.Errorf("s3 put object %s/%s: %w", d.bucket, key, err)
	}
	return nil
}
