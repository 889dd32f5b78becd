// Package media uploads locally staged files to an S3-compatible object
// store (the media host) and returns a durable public URL for each object.
package media

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/pixelfeed/user-service/internal/common"
	sc "github.com/pixelfeed/user-service/internal/config"
)

// Uploader pushes staged files to the configured bucket. Calls are bounded
// by a per-attempt timeout and a small retry budget; persistent failure is
// reported as common.ErrorUpload.
type Uploader struct {
	client        *s3.Client
	bucket        string
	publicBaseURL string
	timeout       time.Duration
	attempts      int
}

func NewUploader(ctx context.Context, cfg *sc.Config) (*Uploader, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKey,
			cfg.S3SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("failed to load s3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return &Uploader{
		client:        client,
		bucket:        cfg.S3Bucket,
		publicBaseURL: strings.TrimRight(cfg.S3PublicBaseURL, "/"),
		timeout:       cfg.UploadTimeout,
		attempts:      cfg.UploadAttempts,
	}, nil
}

// StorageKey returns a date-partitioned object key preserving the file
// extension of the staged upload.
func StorageKey(localPath string) string {
	d := time.Now().UTC()
	return fmt.Sprintf("users/%d/%d/%d/%v%s", d.Year(), d.Month(), d.Day(), uuid.New(), filepath.Ext(localPath))
}

// Upload stores the file at localPath in the bucket and returns its public
// URL. The caller remains responsible for removing the staged file.
func (u *Uploader) Upload(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open staged file: %w", err)
	}
	defer f.Close()

	key := StorageKey(localPath)
	contentType := mime.TypeByExtension(filepath.Ext(localPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	var lastErr error
	for attempt := 0; attempt < u.attempts; attempt++ {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return "", fmt.Errorf("failed to rewind staged file: %w", err)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, u.timeout)
		_, lastErr = u.client.PutObject(attemptCtx, &s3.PutObjectInput{
			Bucket:      aws.String(u.bucket),
			Key:         aws.String(key),
			Body:        f,
			ContentType: aws.String(contentType),
		})
		cancel()

		if lastErr == nil {
			return u.publicBaseURL + "/" + key, nil
		}
		if ctx.Err() != nil {
			break
		}
	}

	return "", fmt.Errorf("%w: %v", common.ErrorUpload, lastErr)
}
