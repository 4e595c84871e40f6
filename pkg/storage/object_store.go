// Package storage stores report images in MinIO/S3 compatible object storage.
// Stored documents carry the full public URL of their image, so the store can
// resolve a key back out of a URL when a report is deleted.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ImagePrefix is the key prefix for uploaded report images.
const ImagePrefix = "found_images"

// legacyImagePrefix covers objects uploaded before the key scheme changed.
var legacyImagePrefixes = []string{"found_images", "found-objects"}

// ImageStore provides access to report image storage.
type ImageStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// URL returns the durable public URL stored in documents for the key.
	URL(key string) string
	// DeleteByURL resolves a stored image URL back to its key and removes
	// the object. Unrecognized URLs are ignored.
	DeleteByURL(ctx context.Context, imageURL string) error
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// MinioStore implements ImageStore for MinIO/S3 compatible storage.
type MinioStore struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

// NewMinioStore connects to MinIO and ensures the bucket exists. publicBase
// is the externally reachable base URL of the bucket; when empty, URLs are
// built from the endpoint.
func NewMinioStore(endpoint, accessKey, secretKey, bucket, publicBase string, useSSL bool) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}
	base := strings.TrimRight(publicBase, "/")
	if base == "" {
		scheme := "http"
		if useSSL {
			scheme = "https"
		}
		base = fmt.Sprintf("%s://%s/%s", scheme, endpoint, bucket)
	}
	return &MinioStore{client: client, bucket: bucket, baseURL: base}, nil
}

// NewImageKey builds a fresh object key for an uploaded image, keeping the
// original filename's extension.
func NewImageKey(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" {
		ext = ".jpg"
	}
	return ImagePrefix + "/" + uuid.NewString() + ext
}

// Put uploads an object.
func (m *MinioStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// URL returns the public URL for a key.
func (m *MinioStore) URL(key string) string {
	return m.baseURL + "/" + key
}

// DeleteByURL removes the object a stored image URL points at.
func (m *MinioStore) DeleteByURL(ctx context.Context, imageURL string) error {
	key, ok := KeyFromURL(imageURL)
	if !ok {
		return nil
	}
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// PresignGet generates a pre-signed GET URL.
func (m *MinioStore) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := m.client.PresignedGetObject(ctx, m.bucket, key, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return u.String(), nil
}

// KeyFromURL extracts the object key from a stored image URL. It recognizes
// current and legacy key prefixes anywhere in the URL path, so URLs minted
// against older endpoints still resolve.
func KeyFromURL(imageURL string) (string, bool) {
	parsed, err := url.Parse(imageURL)
	if err != nil {
		return "", false
	}
	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	for i, segment := range segments {
		for _, prefix := range legacyImagePrefixes {
			if segment == prefix && i < len(segments)-1 {
				return strings.Join(segments[i:], "/"), true
			}
		}
	}
	return "", false
}
