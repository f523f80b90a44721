package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

var (
	// ErrFileNotFound is returned when a requested object does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrInvalidPath is returned when a path is empty, absolute, or
	// escapes the storage root.
	ErrInvalidPath = errors.New("invalid path")
)

// BlobStorage stores finalized job artifacts durably so reporting
// collaborators can read them after the worker host recycles.
type BlobStorage interface {
	Upload(ctx context.Context, path string, reader io.Reader) error
	Download(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)

	// GetURL returns a URL for accessing the object: a filesystem path
	// for local storage, a presigned URL for S3.
	GetURL(ctx context.Context, path string) (string, error)
}

// Config selects and parameterizes a storage backend.
type Config struct {
	Type          string        `json:"type" mapstructure:"type"`
	BaseDir       string        `json:"base_dir" mapstructure:"base_dir"`
	Bucket        string        `json:"bucket" mapstructure:"bucket"`
	Region        string        `json:"region" mapstructure:"region"`
	PresignExpiry time.Duration `json:"presign_expiry" mapstructure:"presign_expiry"`
}

// New creates the BlobStorage implementation the config names.
func New(cfg Config) (BlobStorage, error) {
	switch strings.ToLower(cfg.Type) {
	case "local":
		if cfg.BaseDir == "" {
			return nil, fmt.Errorf("base_dir is required for local storage")
		}
		return NewLocalStorage(cfg.BaseDir)

	case "s3":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("bucket is required for S3 storage")
		}
		if cfg.Region == "" {
			return nil, fmt.Errorf("region is required for S3 storage")
		}
		s3Storage, err := NewS3Storage(cfg.Bucket, cfg.Region)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 storage: %w", err)
		}
		if cfg.PresignExpiry > 0 {
			s3Storage.presignExpiration = cfg.PresignExpiry
		}
		return s3Storage, nil

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
