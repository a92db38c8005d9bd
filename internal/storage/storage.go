// Package storage provides object storage backends used to publish and fetch
// persisted databases.
package storage

import (
	"context"

	"github.com/annotab/annotab/internal/errors"
)

// Common errors for storage operations. Upload and download failures are
// retryable.
var (
	ErrObjectNotFound = errors.ErrObjectNotFound
	ErrUploadFailed   = errors.New(errors.ErrCategoryStorage, errors.CodeUploadFailed, "upload failed")
	ErrDownloadFailed = errors.New(errors.ErrCategoryStorage, errors.CodeDownloadFailed, "download failed")
	ErrDeleteFailed   = errors.New(errors.ErrCategoryStorage, errors.CodeDeleteFailed, "delete failed")
)

// ObjectStorage abstracts object storage operations.
// Implementations include S3 and the local filesystem.
type ObjectStorage interface {
	// Upload uploads the file at localPath to objectPath.
	Upload(ctx context.Context, localPath, objectPath string) error

	// UploadMultipart uploads large files in parts and returns the ETag of
	// the uploaded object.
	UploadMultipart(ctx context.Context, localPath, objectPath string) (string, error)

	// Download downloads objectPath to localPath, creating parent
	// directories. A missing object yields ErrObjectNotFound.
	Download(ctx context.Context, objectPath, localPath string) error

	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, objectPath string) error

	// Exists checks if an object exists in storage.
	Exists(ctx context.Context, objectPath string) (bool, error)

	// ListObjects returns all object paths under the given prefix, using
	// forward slashes.
	ListObjects(ctx context.Context, prefix string) ([]string, error)
}

// MultipartUploadConfig holds configuration for multipart uploads.
type MultipartUploadConfig struct {
	// PartSize is the size of each part in bytes (default: 5MB).
	PartSize int64
}

// DefaultMultipartConfig returns the default multipart upload configuration.
func DefaultMultipartConfig() MultipartUploadConfig {
	return MultipartUploadConfig{
		PartSize: 5 * 1024 * 1024, // 5MB
	}
}
