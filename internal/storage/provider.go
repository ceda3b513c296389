// Package storage persists uploaded images on local disk or in an
// S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

// ErrNotFound is returned by Open for a missing key.
var ErrNotFound = errors.New("object not found")

// PublicPrefix is the URL path under which stored objects are served.
const PublicPrefix = "/uploads/"

// Provider stores objects under slash-separated keys.
type Provider interface {
	Put(ctx context.Context, key string, body io.ReadSeeker, size int64, contentType string) error
	Open(ctx context.Context, key string) (*Object, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// Object is an open stored object. The caller closes Body.
type Object struct {
	Body          io.ReadCloser
	ContentLength int64
	ContentType   string
	LastModified  time.Time
}

// ObjectInfo describes a listed object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// PublicPath returns the URL path that serves key.
func PublicPath(key string) string {
	return PublicPrefix + strings.TrimPrefix(key, "/")
}

// KeyFromPath is the inverse of PublicPath. It reports false for paths
// outside PublicPrefix.
func KeyFromPath(p string) (string, bool) {
	if !strings.HasPrefix(p, PublicPrefix) {
		return "", false
	}
	key := strings.TrimPrefix(p, PublicPrefix)
	if key == "" {
		return "", false
	}
	return key, true
}

// validKey rejects keys that could escape the storage root.
func validKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return false
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return false
		}
	}
	return true
}

// ErrInvalidKey is returned for keys that are empty or escape the root.
var ErrInvalidKey = errors.New("invalid object key")
