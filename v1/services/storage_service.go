package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"github.com/taskbridge/intake-backend/v1/models"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/googleapi"
)

// ObjectStore is the minimal surface the uploader needs from a storage
// backend
type ObjectStore interface {
	EnsureBucket(ctx context.Context, bucket string) error
	Put(ctx context.Context, bucket, object, contentType string, data []byte) (string, error)
}

// mimeExtensions is the fixed MIME-to-extension mapping. Unknown MIME types
// fall back to a generic extension.
var mimeExtensions = map[string]string{
	"image/jpeg":      "jpg",
	"image/jpg":       "jpg",
	"image/png":       "png",
	"image/webp":      "webp",
	"image/gif":       "gif",
	"application/pdf": "pdf",
}

func extensionFor(mime string) string {
	if ext, ok := mimeExtensions[mime]; ok {
		return ext
	}
	return "bin"
}

// GCSStore is the primary upload path backed by the high-level storage
// client
type GCSStore struct {
	client    *storage.Client
	projectID string
}

// NewGCSStore creates the primary object store
func NewGCSStore(client *storage.Client, projectID string) *GCSStore {
	return &GCSStore{client: client, projectID: projectID}
}

// EnsureBucket creates the bucket if it does not exist. Safe to call
// repeatedly; an already-exists answer is not an error.
func (s *GCSStore) EnsureBucket(ctx context.Context, bucket string) error {
	_, err := s.client.Bucket(bucket).Attrs(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrBucketNotExist) {
		return fmt.Errorf("failed to check bucket %s: %w", bucket, err)
	}

	err = s.client.Bucket(bucket).Create(ctx, s.projectID, nil)
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusConflict {
			return nil
		}
		return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	return nil
}

// Put uploads with overwrite allowed so re-submission of the same slot
// replaces the prior object
func (s *GCSStore) Put(ctx context.Context, bucket, object, contentType string, data []byte) (string, error) {
	writer := s.client.Bucket(bucket).Object(object).NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return "", fmt.Errorf("failed to write object %s/%s: %w", bucket, object, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize object %s/%s: %w", bucket, object, err)
	}
	return publicObjectURL(bucket, object), nil
}

func publicObjectURL(bucket, object string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, object)
}

// FallbackStore uploads through the raw storage JSON API with a plain HTTP
// client, independent of the primary client library. Bucket-not-found and
// client-version mismatches in the primary path are routed around here.
type FallbackStore struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewFallbackStore creates the lower-level upload path
func NewFallbackStore() *FallbackStore {
	return &FallbackStore{
		BaseURL:    "https://storage.googleapis.com/upload/storage/v1",
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// EnsureBucket is a no-op on the fallback path; the primary path owns
// bucket provisioning
func (s *FallbackStore) EnsureBucket(ctx context.Context, bucket string) error {
	return nil
}

// Put issues a media upload directly against the JSON API
func (s *FallbackStore) Put(ctx context.Context, bucket, object, contentType string, data []byte) (string, error) {
	uploadURL := fmt.Sprintf("%s/b/%s/o?uploadType=media&name=%s", s.BaseURL, url.PathEscape(bucket), url.QueryEscape(object))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fallback upload failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("fallback upload returned status %d: %s", resp.StatusCode, string(body))
	}
	return publicObjectURL(bucket, object), nil
}

// StorageService uploads attachments with a primary path and a mandatory
// fallback path
type StorageService struct {
	primary  ObjectStore
	fallback ObjectStore
}

// NewStorageService creates a new storage service
func NewStorageService(primary, fallback ObjectStore) *StorageService {
	return &StorageService{primary: primary, fallback: fallback}
}

// EnsureBuckets idempotently ensures every named bucket exists before first
// use
func (s *StorageService) EnsureBuckets(ctx context.Context, buckets ...string) error {
	for _, bucket := range buckets {
		if err := s.primary.EnsureBucket(ctx, bucket); err != nil {
			return err
		}
	}
	return nil
}

// UploadSlot stores one attachment under a deterministic path derived from
// the submission group id and slot name. Hosted URLs pass through without
// an upload. On a primary-path failure the payload is re-decoded and pushed
// through the fallback path before an error is surfaced.
func (s *StorageService) UploadSlot(ctx context.Context, bucket, groupID, slot string, att *Attachment) (string, error) {
	if att == nil {
		return "", nil
	}
	if att.HostedURL != "" {
		return att.HostedURL, nil
	}
	if att.Base64 == "" {
		return "", nil
	}

	data, err := att.Decode()
	if err != nil {
		return "", &models.StorageError{Slot: slot, Err: fmt.Errorf("invalid base64 payload: %w", err)}
	}

	object := fmt.Sprintf("%s/%s.%s", groupID, slot, extensionFor(att.MIME))

	uploadedURL, primaryErr := s.primary.Put(ctx, bucket, object, att.MIME, data)
	if primaryErr == nil {
		return uploadedURL, nil
	}

	slog.Warn("primary upload failed, retrying via fallback", "bucket", bucket, "object", object, "error", primaryErr)
	storageFallbackTotal.WithLabelValues(bucket).Inc()

	// Re-decode so the fallback never depends on primary-path state
	data, err = att.Decode()
	if err != nil {
		return "", &models.StorageError{Slot: slot, Err: fmt.Errorf("invalid base64 payload: %w", err)}
	}

	uploadedURL, fallbackErr := s.fallback.Put(ctx, bucket, object, att.MIME, data)
	if fallbackErr == nil {
		return uploadedURL, nil
	}

	return "", &models.StorageError{
		Slot: slot,
		Err:  fmt.Errorf("primary: %v; fallback: %w", primaryErr, fallbackErr),
	}
}

// UploadAll uploads a set of document slots in parallel. Slots are mutually
// independent: an optional slot that fails both paths degrades to an empty
// value with a warning, while a mandatory slot failure fails the whole step.
func (s *StorageService) UploadAll(ctx context.Context, bucket, groupID string, slots map[string]*Attachment, mandatory map[string]bool) (map[string]string, error) {
	results := make(map[string]string, len(slots))
	var mu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	for slot, att := range slots {
		group.Go(func() error {
			uploadedURL, err := s.UploadSlot(groupCtx, bucket, groupID, slot, att)
			if err != nil {
				if mandatory[slot] {
					return err
				}
				slog.Warn("optional document slot degraded to empty", "slot", slot, "error", err)
				uploadedURL = ""
			}
			mu.Lock()
			results[slot] = uploadedURL
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
