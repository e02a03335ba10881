// Package core holds the blob store contract shared by the drivers under
// internal/infra/blob and the public wrapper package internal/blob.
package core

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

// Driver names a blob store backend.
type Driver string

const (
	// DriverFilesystem keeps content below a local directory.
	DriverFilesystem Driver = "fs"
	// DriverS3 talks to an S3 compatible service.
	DriverS3 Driver = "s3"
	// DriverMemory keeps content in process memory.
	DriverMemory Driver = "memory"
)

// PutOptions carries the optional attributes of a new blob.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// SignedURLOptions controls PresignURL. Only GET is supported.
type SignedURLOptions struct {
	Method string
	Expiry time.Duration
}

// DefaultURLExpiry applies when SignedURLOptions.Expiry is not positive.
const DefaultURLExpiry = 15 * time.Minute

// Info describes a stored blob.
type Info struct {
	Key         string            `json:"key"`
	Size        int64             `json:"size_bytes"`
	ContentType string            `json:"content_type,omitempty"`
	Checksum    string            `json:"checksum,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	StoredAt    time.Time         `json:"stored_at"`
}

// Store keeps attachment content and export artifacts. Put never overwrites:
// every attachment version and every export gets its own key.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Head(ctx context.Context, key string) (Info, error)
	Delete(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]Info, error)
	PresignURL(ctx context.Context, key string, opts SignedURLOptions) (string, error)
	Driver() Driver
}

var (
	// ErrNotFound reports a key without content.
	ErrNotFound = errors.New("blob: not found")
	// ErrExists reports a Put on a key that is already taken.
	ErrExists = errors.New("blob: key already exists")
	// ErrUnsupported reports a capability the driver lacks.
	ErrUnsupported = errors.New("blob: unsupported operation")
	// ErrInvalidKey reports an empty key or one escaping the store.
	ErrInvalidKey = errors.New("blob: invalid key")
)

// CheckKey rejects keys that are empty, absolute or contain parent
// directory segments.
func CheckKey(key string) error {
	if strings.TrimSpace(key) == "" || strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return ErrInvalidKey
	}
	for _, segment := range strings.Split(key, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return ErrInvalidKey
		}
	}
	return nil
}

// CloneMetadata copies a metadata map so callers cannot alias stored state.
func CloneMetadata(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
