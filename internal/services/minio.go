package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/tags"
	"go.uber.org/zap"
)

// ScanTagKey is the object tag the scanner writes its verdict to.
const ScanTagKey = "scan-status"

// ObjectStore wraps the MinIO client for the single share bucket.
type ObjectStore struct {
	client *minio.Client
	bucket string
	logger *zap.Logger
}

// NewObjectStore connects to MinIO and ensures the bucket exists.
func NewObjectStore(endpoint, accessKey, secretKey, bucket string, useSSL bool, logger *zap.Logger) (*ObjectStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
		logger.Info("created bucket", zap.String("bucket", bucket))
	}

	return &ObjectStore{client: client, bucket: bucket, logger: logger}, nil
}

// CheckConnection is used by the health endpoint.
func (s *ObjectStore) CheckConnection(ctx context.Context) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("object store not initialized")
	}
	_, err := s.client.BucketExists(ctx, s.bucket)
	return err
}

// PresignPut returns a short-lived URL the client uploads the object
// bytes to directly.
func (s *ObjectStore) PresignPut(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedPutObject(ctx, s.bucket, key, ttl)
	if err != nil {
		return "", fmt.Errorf("presign put %s: %w", key, err)
	}
	return u.String(), nil
}

// PresignGet returns a short-lived download URL that forces an
// attachment disposition with the original filename.
func (s *ObjectStore) PresignGet(ctx context.Context, key, filename string, ttl time.Duration) (string, error) {
	params := url.Values{}
	params.Set("response-content-disposition",
		fmt.Sprintf(`attachment; filename="%s"`, sanitizeFilename(filename)))

	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, params)
	if err != nil {
		return "", fmt.Errorf("presign get %s: %w", key, err)
	}
	return u.String(), nil
}

// Exists stats the object, distinguishing absence from storage failure.
func (s *ObjectStore) Exists(ctx context.Context, key string) (bool, int64, error) {
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, 0, nil
		}
		return false, 0, fmt.Errorf("stat %s: %w", key, err)
	}
	return true, info.Size, nil
}

// Delete removes a single object.
func (s *ObjectStore) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// DeleteByPrefix removes every object under prefix. A share's objects
// all live under one prefix, so delete clears it wholesale rather than
// trusting a single stored key.
func (s *ObjectStore) DeleteByPrefix(ctx context.Context, prefix string) error {
	objectsCh := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})

	errorCh := s.client.RemoveObjects(ctx, s.bucket, objectsCh, minio.RemoveObjectsOptions{})
	for removeErr := range errorCh {
		if removeErr.Err != nil {
			return fmt.Errorf("remove %s: %w", removeErr.ObjectName, removeErr.Err)
		}
	}
	return nil
}

// FGet downloads the object to a local path; the scan worker uses this
// to hand the bytes to ClamAV.
func (s *ObjectStore) FGet(ctx context.Context, key, localPath string) error {
	if err := s.client.FGetObject(ctx, s.bucket, key, localPath, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("fget %s: %w", key, err)
	}
	return nil
}

// ScanTag reads the scanner's verdict tag from the object. The second
// return value is false while no verdict has been written yet.
func (s *ObjectStore) ScanTag(ctx context.Context, key string) (string, bool, error) {
	t, err := s.client.GetObjectTagging(ctx, s.bucket, key, minio.GetObjectTaggingOptions{})
	if err != nil {
		return "", false, fmt.Errorf("get tagging %s: %w", key, err)
	}
	v, ok := t.ToMap()[ScanTagKey]
	return v, ok, nil
}

// SetScanTag writes the scanner's verdict tag onto the object.
func (s *ObjectStore) SetScanTag(ctx context.Context, key, value string) error {
	t, err := tags.NewTags(map[string]string{ScanTagKey: value}, true)
	if err != nil {
		return fmt.Errorf("build tags: %w", err)
	}
	if err := s.client.PutObjectTagging(ctx, s.bucket, key, t, minio.PutObjectTaggingOptions{}); err != nil {
		return fmt.Errorf("put tagging %s: %w", key, err)
	}
	return nil
}

func sanitizeFilename(name string) string {
	r := strings.NewReplacer(`"`, "", "\r", "", "\n", "")
	return r.Replace(name)
}
