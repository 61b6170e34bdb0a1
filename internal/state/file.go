package state

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

// FileBackend keeps the document in a single file. Writes go to a temp file
// in the same directory that is then renamed over the target.
type FileBackend struct {
	fs   billy.Filesystem
	name string
}

// NewFileBackend stores the document at path on the local disk.
func NewFileBackend(path string) *FileBackend {
	dir, name := filepath.Split(filepath.Clean(path))
	if dir == "" {
		dir = "."
	}
	return NewFileBackendFS(osfs.New(dir), name)
}

// NewFileBackendFS stores the document as name inside fs.
func NewFileBackendFS(fs billy.Filesystem, name string) *FileBackend {
	if name == "" {
		panic("state: file name must not be empty")
	}
	return &FileBackend{fs: fs, name: name}
}

func (b *FileBackend) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := util.ReadFile(b.fs, b.name)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", b.name, err)
	}
	return data, nil
}

func (b *FileBackend) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(b.name)
	if dir != "." {
		if err := b.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	tmp, err := util.TempFile(b.fs, dir, "."+filepath.Base(b.name)+".tmp-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = b.fs.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := syncFile(tmp); err != nil {
		_ = tmp.Close()
		_ = b.fs.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = b.fs.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}

	// An abort that fired during the write must not let the document land.
	if err := ctx.Err(); err != nil {
		_ = b.fs.Remove(tmpName)
		return err
	}

	if err := b.fs.Rename(tmpName, b.name); err != nil {
		_ = b.fs.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", b.name, err)
	}
	return nil
}

func (b *FileBackend) Close() error { return nil }

// syncFile flushes to disk when the underlying file supports it.
func syncFile(f io.Closer) error {
	if s, ok := f.(interface{ Sync() error }); ok {
		return s.Sync()
	}
	return nil
}
