package infra

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const localTempDir = ".tmp"

// LocalBlobStore stores blobs as plain files in one directory. Writes land in a
// temp file first and are renamed into place, so readers never see partial files.
type LocalBlobStore struct {
	root string
}

func NewLocalBlobStore(root string) (*LocalBlobStore, error) {
	if root == "" {
		return nil, errors.New("local blob store root is empty")
	}
	if err := os.MkdirAll(filepath.Join(root, localTempDir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &LocalBlobStore{root: root}, nil
}

func (s *LocalBlobStore) Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) error {
	if err := validateBlobName(name); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Join(s.root, localTempDir), "put-*")
	if err != nil {
		return fmt.Errorf("put blob %q: %w", name, err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmp, contextReader{ctx: ctx, r: r}); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("put blob %q: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("put blob %q: %w", name, err)
	}

	if err := os.Rename(tmpPath, filepath.Join(s.root, name)); err != nil {
		return fmt.Errorf("committing blob %q: %w", name, err)
	}
	committed = true

	return nil
}

func (s *LocalBlobStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := validateBlobName(name); err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(s.root, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("blob %q: %w", name, ErrBlobNotFound)
		}
		return nil, fmt.Errorf("open blob %q: %w", name, err)
	}
	return f, nil
}

func (s *LocalBlobStore) Exists(ctx context.Context, name string) (bool, error) {
	if err := validateBlobName(name); err != nil {
		return false, err
	}

	_, err := os.Stat(filepath.Join(s.root, name))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *LocalBlobStore) Delete(ctx context.Context, name string) error {
	if err := validateBlobName(name); err != nil {
		return err
	}

	err := os.Remove(filepath.Join(s.root, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete blob %q: %w", name, err)
	}
	return nil
}

// Walk visits every committed blob. Temp files and hidden entries are skipped.
func (s *LocalBlobStore) Walk(ctx context.Context, fn func(BlobInfo) error) error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return fmt.Errorf("walk blobs: %w", err)
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("stat blob %q: %w", entry.Name(), err)
		}

		if err := fn(BlobInfo{Name: entry.Name(), Size: info.Size(), ModTime: info.ModTime()}); err != nil {
			return err
		}
	}

	return nil
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
