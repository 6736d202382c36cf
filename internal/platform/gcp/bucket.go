package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/aprovia/aprovia-backend/internal/pkg/logger"
)

// BucketService stores and fetches edital PDFs. One bucket, flat keys.
type BucketService interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) error
	Download(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
	// KeyFromURL strips the public URL prefix, accepting either a bare key
	// or a full https://storage.googleapis.com/<bucket>/<key> URL.
	KeyFromURL(fileURL string) string
}

type bucketService struct {
	log     *logger.Logger
	client  *storage.Client
	bucket  string
	baseURL string
}

func NewBucketService(ctx context.Context, log *logger.Logger) (BucketService, error) {
	bucket := strings.TrimSpace(os.Getenv("EDICT_GCS_BUCKET_NAME"))
	if bucket == "" {
		return nil, fmt.Errorf("missing env var EDICT_GCS_BUCKET_NAME")
	}

	var (
		client *storage.Client
		err    error
	)
	emulator := strings.TrimRight(strings.TrimSpace(os.Getenv("STORAGE_EMULATOR_HOST")), "/")
	if emulator != "" {
		client, err = storage.NewClient(ctx,
			option.WithoutAuthentication(),
			option.WithEndpoint(emulator+"/storage/v1/"),
		)
	} else {
		client, err = storage.NewClient(ctx, option.WithScopes(storage.ScopeReadWrite))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	baseURL := "https://storage.googleapis.com/" + bucket + "/"
	if emulator != "" {
		baseURL = emulator + "/" + bucket + "/"
	}

	serviceLog := log.With("service", "BucketService")
	serviceLog.Info("Object storage initialized", "bucket", bucket, "emulator_host", emulator)
	return &bucketService{
		log:     serviceLog,
		client:  client,
		bucket:  bucket,
		baseURL: baseURL,
	}, nil
}

func (s *bucketService) Upload(ctx context.Context, key string, r io.Reader, contentType string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("empty object key")
	}
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("upload %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

func (s *bucketService) Download(ctx context.Context, key string) ([]byte, error) {
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("empty object key")
	}
	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", key, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

func (s *bucketService) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.Bucket(s.bucket).Object(key).Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	return false, err
}

func (s *bucketService) Delete(ctx context.Context, key string) error {
	err := s.client.Bucket(s.bucket).Object(key).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return err
}

func (s *bucketService) PublicURL(key string) string {
	return s.baseURL + key
}

func (s *bucketService) KeyFromURL(fileURL string) string {
	fileURL = strings.TrimSpace(fileURL)
	if fileURL == "" {
		return ""
	}
	if strings.HasPrefix(fileURL, s.baseURL) {
		return strings.TrimPrefix(fileURL, s.baseURL)
	}
	marker := "/" + s.bucket + "/"
	if idx := strings.Index(fileURL, marker); idx >= 0 {
		return fileURL[idx+len(marker):]
	}
	return fileURL
}
