package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"sync"

	"github.com/liamg/memoryfs"
)

// MemoryBackend keeps blobs in an in-memory filesystem. Used by tests and by
// STORAGE_BACKEND=memory. Safe for concurrent use.
type MemoryBackend struct {
	fs *memoryfs.FS
	mu sync.RWMutex
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{fs: memoryfs.New()}
}

func (m *MemoryBackend) Save(ctx context.Context, r io.Reader, opts SaveOptions) (SaveResult, error) {
	key := newKey(opts.Filename)

	// memoryfs.WriteFile takes the whole content, so buffer while hashing.
	hasher := sha256.New()
	var buf bytes.Buffer
	size, err := io.CopyBuffer(io.MultiWriter(&buf, hasher), limitReader(r, opts.MaxSize), make([]byte, copyBufferSize))
	if err != nil {
		if errors.Is(err, ErrFileTooLarge) {
			return SaveResult{}, ErrFileTooLarge
		}
		return SaveResult{}, fmt.Errorf("failed to read content: %w", err)
	}

	m.mu.Lock()
	err = m.fs.WriteFile(key, buf.Bytes(), 0o644)
	m.mu.Unlock()
	if err != nil {
		return SaveResult{}, fmt.Errorf("failed to write file: %w", err)
	}

	return SaveResult{Key: key, Hash: hex.EncodeToString(hasher.Sum(nil)), Size: size}, nil
}

func (m *MemoryBackend) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	content, err := m.fs.ReadFile(key)
	m.mu.RUnlock()
	if err != nil {
		if isNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (m *MemoryBackend) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	err := m.fs.Remove(key)
	m.mu.Unlock()
	if err != nil && !isNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (m *MemoryBackend) Stat(ctx context.Context, key string) (FileInfo, error) {
	m.mu.RLock()
	info, err := m.fs.Stat(key)
	m.mu.RUnlock()
	if err != nil {
		if isNotExist(err) {
			return FileInfo{}, ErrNotFound
		}
		return FileInfo{}, fmt.Errorf("failed to stat file: %w", err)
	}
	return FileInfo{Key: key, Size: info.Size(), ModTime: info.ModTime()}, nil
}

func (m *MemoryBackend) HealthCheck(ctx context.Context) error { return nil }

func (m *MemoryBackend) ValidateAccess(ctx context.Context) error { return nil }

// FileCount returns the number of stored blobs.
func (m *MemoryBackend) FileCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries, err := m.fs.ReadDir(".")
	if err != nil {
		return 0
	}
	count := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			count++
		}
	}
	return count
}

func isNotExist(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, fs.ErrNotExist) {
		return true
	}
	// memoryfs does not always wrap fs.ErrNotExist
	msg := err.Error()
	return strings.Contains(msg, "file does not exist") || strings.Contains(msg, "no such file")
}
