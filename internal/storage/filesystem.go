package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/leca/photophriend/internal/model"
)

// Compile-time check that FileSystem implements Storage.
var _ Storage = (*FileSystem)(nil)

// FileSystem implements Storage using the local filesystem.
// A key maps to <basePath>/<key>.
type FileSystem struct {
	basePath string
}

// NewFileSystem creates a new FileSystem storage rooted at basePath.
func NewFileSystem(basePath string) *FileSystem {
	return &FileSystem{basePath: basePath}
}

// resolve maps key to a path under basePath, rejecting keys that would escape it.
func (fs *FileSystem) resolve(key string) (string, error) {
	rel := filepath.FromSlash(key)
	if key == "" || !filepath.IsLocal(rel) {
		return "", model.ErrValidation.New("invalid storage key %q", key)
	}
	return filepath.Join(fs.basePath, rel), nil
}

// Store writes data from the reader to disk using atomic write (temp file + rename).
// It returns the number of bytes written.
func (fs *FileSystem) Store(key string, data io.Reader) (int64, error) {
	dst, err := fs.resolve(key)
	if err != nil {
		return 0, err
	}
	dir := filepath.Dir(dst)

	// Write to a temp file in the same directory for atomic rename. A
	// concurrent Delete may remove the directory once it is empty, so the
	// directory is recreated when the temp file cannot be created.
	var tmp *os.File
	for attempt := 0; ; attempt++ {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return 0, model.ErrStorage.Wrap(fmt.Errorf("creating directory %s: %w", dir, err))
		}
		tmp, err = os.CreateTemp(dir, ".upload-*")
		if err == nil {
			break
		}
		if !os.IsNotExist(err) || attempt == 2 {
			return 0, model.ErrStorage.Wrap(fmt.Errorf("creating temp file: %w", err))
		}
	}
	tmpPath := tmp.Name()

	defer func() {
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
	}()

	n, err := io.Copy(tmp, data)
	if err != nil {
		tmp.Close()
		return 0, model.ErrStorage.Wrap(fmt.Errorf("writing data: %w", err))
	}

	if err := tmp.Close(); err != nil {
		return 0, model.ErrStorage.Wrap(fmt.Errorf("closing temp file: %w", err))
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		return 0, model.ErrStorage.Wrap(fmt.Errorf("renaming temp file to %s: %w", dst, err))
	}

	// Rename succeeded; prevent deferred cleanup from removing the final file.
	tmpPath = ""

	return n, nil
}

// Retrieve opens the stored file and returns an io.ReadCloser.
func (fs *FileSystem) Retrieve(key string) (io.ReadCloser, error) {
	path, err := fs.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.ErrNotFound.New("file %s", key)
		}
		return nil, model.ErrStorage.Wrap(fmt.Errorf("opening file %s: %w", path, err))
	}
	return f, nil
}

// Delete removes the file and any parent directories it leaves empty.
// It is idempotent: deleting a non-existent file returns no error.
func (fs *FileSystem) Delete(key string) error {
	path, err := fs.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return model.ErrStorage.Wrap(fmt.Errorf("removing file %s: %w", path, err))
	}

	root := filepath.Clean(fs.basePath)
	for dir := filepath.Dir(path); dir != root && len(dir) > len(root); dir = filepath.Dir(dir) {
		// Remove fails on non-empty directories, which ends the walk.
		if os.Remove(dir) != nil {
			break
		}
	}
	return nil
}

// Exists checks whether the file exists on disk.
func (fs *FileSystem) Exists(key string) (bool, error) {
	path, err := fs.resolve(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, model.ErrStorage.Wrap(fmt.Errorf("checking file %s: %w", path, err))
}
