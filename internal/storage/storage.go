package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
)

var (
	// ErrUploadTransient marks failures worth retrying later (throttling,
	// timeouts, 5xx). Nothing in this module retries on its own.
	ErrUploadTransient = errors.New("upload failed (transient)")
	ErrUploadPermanent = errors.New("upload failed")
)

// Uploader stores bytes under key and returns a URL the recipients can read.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
}

var retryables = retry.IsErrorRetryables(retry.DefaultRetryables)

// Classify wraps err with ErrUploadTransient or ErrUploadPermanent.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUploadTransient) || errors.Is(err, ErrUploadPermanent) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || retryables.IsErrorRetryable(err) == aws.TrueTernary {
		return fmt.Errorf("%w: %w", ErrUploadTransient, err)
	}
	return fmt.Errorf("%w: %w", ErrUploadPermanent, err)
}

// ImageKey builds images/<timestamp>-<name>, with ':' and '.' in the
// timestamp replaced so the key stays path friendly.
func ImageKey(now time.Time, name string) string {
	ts := now.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	ts = strings.NewReplacer(":", "-", ".", "-").Replace(ts)
	name = strings.ReplaceAll(name, "/", "_")
	return "images/" + ts + "-" + name
}

// Disabled rejects every upload. It stands in when no bucket is configured.
type Disabled struct{}

func (Disabled) Upload(context.Context, string, string, []byte) (string, error) {
	return "", fmt.Errorf("%w: object storage is not configured", ErrUploadPermanent)
}
