// Package storage holds the blob backends behind uploaded files. Asset records
// keep only the key returned by Save; names and folders live in the database.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// copyBufferSize is used for every streaming copy into a backend.
const copyBufferSize = 256 * 1024

var (
	ErrNotFound     = errors.New("storage: object not found")
	ErrFileTooLarge = errors.New("storage: file exceeds maximum size")
)

// StorageBackend stores opaque blobs under generated keys.
type StorageBackend interface {
	Save(ctx context.Context, r io.Reader, opts SaveOptions) (SaveResult, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete is idempotent: a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Stat(ctx context.Context, key string) (FileInfo, error)
	// HealthCheck is cheap and safe for frequent polling.
	HealthCheck(ctx context.Context) error
	// ValidateAccess performs a full write/read/delete round trip.
	ValidateAccess(ctx context.Context) error
}

type SaveOptions struct {
	Filename    string // Client filename, only its extension is kept in the key
	ContentType string
	MaxSize     int64 // 0 means unlimited
}

type SaveResult struct {
	Key  string
	Hash string // hex sha256 of the content
	Size int64
}

type FileInfo struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// newKey returns a fresh flat key carrying the sanitized extension of filename.
func newKey(filename string) string {
	return uuid.New().String() + cleanExt(filename)
}

func cleanExt(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(strings.ReplaceAll(filename, "\\", "/")), "."))
	if ext == "" || len(ext) > 15 {
		return ""
	}
	for _, r := range ext {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return ""
		}
	}
	return "." + ext
}

// DeleteAll removes every key, continuing past failures. The returned error
// joins all individual failures.
func DeleteAll(ctx context.Context, backend StorageBackend, keys []string) error {
	var errs []error
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := backend.Delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// limitReader fails with ErrFileTooLarge once more than max bytes are read.
func limitReader(r io.Reader, max int64) io.Reader {
	if max <= 0 {
		return r
	}
	return &limitedReader{reader: r, remaining: max}
}

type limitedReader struct {
	reader    io.Reader
	remaining int64
	done      bool
}

func (lr *limitedReader) Read(p []byte) (int, error) {
	if lr.done {
		return 0, io.EOF
	}
	if lr.remaining <= 0 {
		return 0, ErrFileTooLarge
	}

	if int64(len(p)) > lr.remaining {
		p = p[:lr.remaining]
	}
	n, err := lr.reader.Read(p)
	lr.remaining -= int64(n)

	if lr.remaining <= 0 && err == nil {
		// Exactly at the limit: probe for one more byte.
		var probe [1]byte
		probeN, probeErr := lr.reader.Read(probe[:])
		if probeN > 0 || (probeErr != nil && probeErr != io.EOF) {
			return n, ErrFileTooLarge
		}
		lr.done = true
		return n, io.EOF
	}
	return n, err
}
