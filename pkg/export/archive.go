package export

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/vegetable-invoicing/pkg/invoice"
)

// Archiver stores an exported document somewhere outside the machine and returns its location.
type Archiver interface {
	Archive(ctx context.Context, name string, body io.Reader) (string, error)
}

// S3Archiver uploads exported PDFs to an S3 bucket.
type S3Archiver struct {
	uploader *s3manager.Uploader
	bucket   string
}

func NewS3Archiver(region, bucket string) (*S3Archiver, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, fmt.Errorf("creating aws session: %w", err)
	}
	return &S3Archiver{
		uploader: s3manager.NewUploader(sess),
		bucket:   bucket,
	}, nil
}

func (a *S3Archiver) Archive(ctx context.Context, name string, body io.Reader) (string, error) {
	out, err := a.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(name),
		Body:        body,
		ContentType: aws.String("application/pdf"),
	})
	if err != nil {
		return "", fmt.Errorf("uploading %s to s3://%s: %w", name, a.bucket, err)
	}
	return out.Location, nil
}

// Archive renders the invoice PDF and hands it to the archiver under its file name.
func (e *Exporter) Archive(ctx context.Context, a Archiver, inv invoice.Invoice) (string, error) {
	var buf bytes.Buffer
	if err := e.WritePDF(&buf, inv); err != nil {
		return "", err
	}
	return a.Archive(ctx, e.FileName(inv), &buf)
}
