package archive

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// multipartThreshold is the payload size above which Writer switches from a
// single PutObject call to a multipart upload.
const multipartThreshold = 5 * 1024 * 1024

// Writer uploads archive payloads to one S3 bucket.
type Writer struct {
	client *Client
}

// NewWriter builds a Writer backed by c.
func NewWriter(c *Client) *Writer {
	return &Writer{client: c}
}

// Put uploads data to path under the writer's bucket, choosing a single or
// multipart upload based on payload size.
func (w *Writer) Put(ctx context.Context, path string, data []byte, contentType string) error {
	if len(data) > multipartThreshold {
		return w.putMultipart(ctx, path, data, contentType)
	}
	_, err := w.client.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.client.bucket),
		Key:         aws.String(path),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("archive: put %s: %w", path, err)
	}
	return nil
}

func (w *Writer) putMultipart(ctx context.Context, path string, data []byte, contentType string) error {
	uploader := manager.NewUploader(w.client.s3)
	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.client.bucket),
		Key:         aws.String(path),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("archive: multipart put %s: %w", path, err)
	}
	return nil
}
