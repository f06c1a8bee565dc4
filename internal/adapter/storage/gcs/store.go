// Package gcs stores rendered laudos in a Google Cloud Storage bucket.
package gcs

import (
	"bytes"
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"github.com/sethvargo/go-retry"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/heartmarshall/laudo-backend/internal/config"
)

const contentType = "application/pdf"

// ErrContentMismatch means an object for the report already exists with
// different bytes. Report ids are never reused, so this is not retried.
var ErrContentMismatch = errors.New("stored object differs from artifact")

// uploader writes one object. The bucket handle implements it in production.
type uploader interface {
	upload(ctx context.Context, key string, data []byte) error
	attrs(ctx context.Context, key string) (*storage.ObjectAttrs, error)
}

// Store writes artifacts under <prefix><reportID>.pdf.
type Store struct {
	client   *storage.Client
	objects  uploader
	bucket   string
	prefix   string
	attempts uint64
	backoff  time.Duration
	log      *slog.Logger
}

// NewStore creates a GCS client from application default credentials, or an
// unauthenticated client against cfg.Endpoint when one is set (emulators).
func NewStore(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (*Store, error) {
	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs: create client: %w", err)
	}

	s := newStore(bucketUploader{bucket: client.Bucket(cfg.Bucket)}, cfg, logger)
	s.client = client
	return s, nil
}

func newStore(objects uploader, cfg config.StorageConfig, logger *slog.Logger) *Store {
	return &Store{
		objects:  objects,
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
		attempts: cfg.UploadAttempts,
		backoff:  200 * time.Millisecond,
		log:      logger.With("adapter", "gcs"),
	}
}

// Store uploads data for the report and returns its gs:// location. Uploading
// the same bytes again is a no-op.
func (s *Store) Store(ctx context.Context, reportID int64, data []byte) (string, error) {
	key := s.objectKey(reportID)

	backoff := retry.WithMaxRetries(s.attempts-1, retry.NewExponential(s.backoff))
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := s.put(ctx, key, data)
		if err == nil || errors.Is(err, ErrContentMismatch) || ctx.Err() != nil {
			return err
		}
		s.log.WarnContext(ctx, "upload failed",
			slog.Int64("report_id", reportID),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
		return retry.RetryableError(err)
	})
	if err != nil {
		return "", fmt.Errorf("gcs: store report %d: %w", reportID, err)
	}

	location := s.location(key)
	s.log.InfoContext(ctx, "artifact stored",
		slog.Int64("report_id", reportID),
		slog.String("location", location),
		slog.Int("bytes", len(data)),
	)
	return location, nil
}

func (s *Store) put(ctx context.Context, key string, data []byte) error {
	err := s.objects.upload(ctx, key, data)
	if err == nil {
		return nil
	}

	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusPreconditionFailed {
		return err
	}

	// The object exists from an earlier attempt whose response was lost.
	attrs, err := s.objects.attrs(ctx, key)
	if err != nil {
		return fmt.Errorf("read existing object: %w", err)
	}
	sum := md5.Sum(data)
	if !bytes.Equal(attrs.MD5, sum[:]) {
		return fmt.Errorf("%w: %s", ErrContentMismatch, key)
	}
	return nil
}

func (s *Store) objectKey(reportID int64) string {
	return fmt.Sprintf("%s%d.pdf", s.prefix, reportID)
}

func (s *Store) location(key string) string {
	return fmt.Sprintf("gs://%s/%s", s.bucket, key)
}

// Close releases the underlying client.
func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

// ---------------------------------------------------------------------------
// Bucket adapter
// ---------------------------------------------------------------------------

type bucketUploader struct {
	bucket *storage.BucketHandle
}

func (b bucketUploader) upload(ctx context.Context, key string, data []byte) error {
	obj := b.bucket.Object(key).If(storage.Conditions{DoesNotExist: true})

	w := obj.NewWriter(ctx)
	w.ContentType = contentType
	sum := md5.Sum(data)
	w.MD5 = sum[:]

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return fmt.Errorf("write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

func (b bucketUploader) attrs(ctx context.Context, key string) (*storage.ObjectAttrs, error) {
	return b.bucket.Object(key).Attrs(ctx)
}
