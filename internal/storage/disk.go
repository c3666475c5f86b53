package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
)

// DiskBackend stores blobs below a directory. All operations go through
// os.Root, so keys cannot escape the base path.
type DiskBackend struct {
	root     *os.Root
	basePath string
}

// NewDiskBackend opens basePath as the storage root, creating it if needed.
func NewDiskBackend(basePath string) (*DiskBackend, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	root, err := os.OpenRoot(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage root: %w", err)
	}

	return &DiskBackend{root: root, basePath: basePath}, nil
}

// Save streams r to a new key. A partially written file is removed on error.
func (d *DiskBackend) Save(ctx context.Context, r io.Reader, opts SaveOptions) (SaveResult, error) {
	key := newKey(opts.Filename)

	file, err := d.root.Create(key)
	if err != nil {
		return SaveResult{}, fmt.Errorf("failed to create file: %w", err)
	}

	hasher := sha256.New()
	size, err := io.CopyBuffer(io.MultiWriter(file, hasher), limitReader(r, opts.MaxSize), make([]byte, copyBufferSize))
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		d.root.Remove(key)
		if errors.Is(err, ErrFileTooLarge) {
			return SaveResult{}, ErrFileTooLarge
		}
		return SaveResult{}, fmt.Errorf("failed to write file: %w", err)
	}

	return SaveResult{Key: key, Hash: hex.EncodeToString(hasher.Sum(nil)), Size: size}, nil
}

func (d *DiskBackend) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	file, err := d.root.Open(key)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

func (d *DiskBackend) Delete(ctx context.Context, key string) error {
	if err := d.root.Remove(key); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (d *DiskBackend) Stat(ctx context.Context, key string) (FileInfo, error) {
	info, err := d.root.Stat(key)
	if err != nil {
		if os.IsNotExist(err) {
			return FileInfo{}, ErrNotFound
		}
		return FileInfo{}, fmt.Errorf("failed to stat file: %w", err)
	}
	return FileInfo{Key: key, Size: info.Size(), ModTime: info.ModTime()}, nil
}

func (d *DiskBackend) HealthCheck(ctx context.Context) error {
	if _, err := d.root.Stat("."); err != nil {
		return fmt.Errorf("storage health check failed: %w", err)
	}
	return nil
}

func (d *DiskBackend) ValidateAccess(ctx context.Context) error {
	probe := ".assetadmin-access-test-" + uuid.New().String()
	content := []byte("assetadmin-storage-test")
	defer d.root.Remove(probe)

	if err := d.root.WriteFile(probe, content, 0o600); err != nil {
		return fmt.Errorf("storage write test failed (%s): %w", d.basePath, err)
	}
	got, err := d.root.ReadFile(probe)
	if err != nil {
		return fmt.Errorf("storage read test failed (%s): %w", d.basePath, err)
	}
	if !bytes.Equal(got, content) {
		return fmt.Errorf("storage read test failed (%s): content mismatch", d.basePath)
	}
	if err := d.root.Remove(probe); err != nil {
		return fmt.Errorf("storage delete test failed (%s): %w", d.basePath, err)
	}
	return nil
}

func (d *DiskBackend) Close() error {
	return d.root.Close()
}
