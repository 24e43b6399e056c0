// Package storage keeps listing images in an S3-compatible object store.
// Implementations stream bytes and never touch local disk.
package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"sunnyapi/internal/model"
)

// PutObjectOptions define optional parameters for uploading objects.
// Size should be the exact number of bytes when known, -1 otherwise.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Storage is an S3-compatible object storage client.
type Storage interface {
	// Put uploads an object under key.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Get retrieves an object's content as a streaming reader alongside its info.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Delete removes an object by key. Removing a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// DeleteMany removes keys in one batch and returns the keys that failed.
	DeleteMany(ctx context.Context, keys []string) ([]string, error)
	// PresignGet returns a time-limited download URL.
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// ImageTypes maps accepted image content types to file extensions.
var ImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// ImageKey builds the object key of a listing image: "<plural>/<listing>/<image><ext>".
func ImageKey(kind model.Kind, listingID, imageID, contentType string) string {
	return fmt.Sprintf("%s/%s/%s%s", kind.Plural(), listingID, imageID, ImageTypes[contentType])
}
