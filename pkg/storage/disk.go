// Package storage stores uploaded files on the local filesystem or in an
// S3-compatible bucket (AWS S3, MinIO, R2).
//
//	disk, err := storage.Open(ctx)
//	err = disk.Put(ctx, "products/7/photo.png", r, "image/png")
//	url := disk.URL("products/7/photo.png")
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/freshbulk/storefront/config"
)

var (
	ErrNotFound    = errors.New("storage: file not found")
	ErrInvalidPath = errors.New("storage: invalid path")
)

type Disk interface {
	Name() string
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
	// Get returns ErrNotFound for a missing key. The caller closes the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
	// Delete of a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// URL is the public address of key.
	URL(key string) string
}

// Open builds the disk named by STORAGE_DISK.
func Open(ctx context.Context) (Disk, error) {
	switch name := config.StorageDefault(); name {
	case "local":
		return NewLocalDisk(config.StorageLocalRoot(), config.StorageURL())
	case "s3":
		return NewS3Disk(ctx, S3Options{
			Bucket:   config.StorageS3Bucket(),
			Region:   config.StorageS3Region(),
			Key:      config.StorageS3Key(),
			Secret:   config.StorageS3Secret(),
			Endpoint: config.StorageS3Endpoint(),
			BaseURL:  config.StorageS3URL(),
		})
	default:
		return nil, fmt.Errorf("storage: unknown disk %q", name)
	}
}

// cleanKey normalises a slash-separated key and rejects anything that
// would escape the disk root.
func cleanKey(key string) (string, error) {
	if key == "" || strings.Contains(key, "\\") {
		return "", ErrInvalidPath
	}
	cleaned := path.Clean("/" + key)
	if cleaned == "/" {
		return "", ErrInvalidPath
	}
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned != strings.TrimPrefix(key, "/") {
		return "", ErrInvalidPath
	}
	return cleaned, nil
}
