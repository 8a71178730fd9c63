package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"htmlvault/internal/config"
)

// Package storage contains the managed storage abstraction and its drivers.
// Keys live in a single flat namespace and are served publicly at /uploads/<key>.

var (
	// ErrNotFound is returned by Get when the key does not exist.
	ErrNotFound = errors.New("object not found")
	// ErrInvalidKey is returned for keys that are empty or would escape the flat namespace.
	ErrInvalidKey = errors.New("invalid object key")
)

// PutObjectOptions define optional parameters for uploading objects.
// Size should be the exact number of bytes if known; if unknown, set to -1 and the implementation
// will buffer/chunk as supported by the backend.
// ContentType and Metadata are optional.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about an object in storage.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Storage is the managed storage client interface.
// Methods use context and streaming readers/writers.
type Storage interface {
	// Put stores an object under the given key using the provided reader and options.
	// Put never overwrites an existing key on drivers that can detect it.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Get retrieves an object's content as a streaming reader alongside its info.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Delete removes an object by key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// PresignGet returns a time-limited URL that can be used to download the object without credentials.
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
	// Ping verifies the backend is reachable and writable.
	Ping(ctx context.Context) error
}

// PublicPath is the URL path under which the static file route serves key.
func PublicPath(key string) string {
	return "/uploads/" + key
}

// New selects the managed storage driver named by cfg.Driver.
func New(cfg config.StorageConfig, minioCfg config.MinIOConfig) (Storage, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocal(cfg.UploadsDir)
	case "minio", "s3":
		return NewMinIO(minioCfg)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}
