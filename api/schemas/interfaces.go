package schemas

import (
	"context"
	"errors"
	"io"
	"time"
)

// -- Store Interface --

// ErrNotFound is returned by KeyValueStore.Get when the key is absent or expired.
var ErrNotFound = errors.New("key not found")

// KeyValueStore is the persistence contract of the service. Values are opaque
// JSON documents. This abstraction keeps the engine independent of the backing
// database (memory, PostgreSQL, SQLite).
type KeyValueStore interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Del removes key. Removing an absent key is not an error.
	Del(ctx context.Context, key string) error
	// Keys lists live keys matching a glob pattern ("*" and "?" wildcards).
	Keys(ctx context.Context, pattern string) ([]string, error)
	// Close releases any resources held by the store.
	Close() error
}

// -- Email Interface --

// EmailMessage is a single outbound transactional email.
type EmailMessage struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// EmailSender delivers transactional email and returns the provider message id.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) (string, error)
}

// -- Blob Interface --

// ErrBlobNotFound is returned by BlobStore.Open when the object does not exist.
var ErrBlobNotFound = errors.New("blob not found")

// BlobStore provides access to static report files.
type BlobStore interface {
	// Open streams the named object. The caller closes the reader.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Put uploads an object, replacing any existing one.
	Put(ctx context.Context, name string, r io.Reader, contentType string) error
}
