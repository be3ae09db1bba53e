package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/newthinker/ladder/internal/core"
)

// LocalFS implements Storage for local filesystem
type LocalFS struct {
	basePath string
}

// NewLocalFS creates a new LocalFS storage rooted at basePath
func NewLocalFS(basePath string) (*LocalFS, error) {
	if basePath == "" {
		return nil, core.WrapError(core.ErrConfigMissing, errors.New("storage path not set"))
	}
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("creating base path: %w", err))
	}
	return &LocalFS{basePath: basePath}, nil
}

// fullPath resolves path under the base directory. Cleaning against a
// rooted path keeps ".." segments from leaving it.
func (l *LocalFS) fullPath(path string) string {
	return filepath.Join(l.basePath, filepath.Clean(filepath.FromSlash("/"+path)))
}

func (l *LocalFS) Write(ctx context.Context, path string, data []byte) error {
	fullPath := l.fullPath(path)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("creating directories: %w", err))
	}

	// Write then rename so readers never observe a partial file
	tmp := fullPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("writing %s: %w", path, err))
	}
	if err := os.Rename(tmp, fullPath); err != nil {
		os.Remove(tmp)
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("renaming %s: %w", path, err))
	}
	return nil
}

func (l *LocalFS) Read(ctx context.Context, path string) ([]byte, error) {
	fullPath := l.fullPath(path)
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("reading %s: %w", path, err))
	}
	return data, nil
}

// List returns the slash-separated paths of all files under prefix, sorted
func (l *LocalFS) List(ctx context.Context, prefix string) ([]string, error) {
	searchPath := l.fullPath(prefix)

	paths := []string{}
	err := filepath.Walk(searchPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && !strings.HasSuffix(path, ".tmp") {
			relPath, err := filepath.Rel(l.basePath, path)
			if err != nil {
				return err
			}
			paths = append(paths, filepath.ToSlash(relPath))
		}
		return nil
	})

	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("listing %s: %w", prefix, err))
	}
	sort.Strings(paths)
	return paths, nil
}

func (l *LocalFS) Delete(ctx context.Context, path string) error {
	fullPath := l.fullPath(path)
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("deleting %s: %w", path, err))
	}
	return nil
}

func (l *LocalFS) Exists(ctx context.Context, path string) (bool, error) {
	fullPath := l.fullPath(path)
	_, err := os.Stat(fullPath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, core.WrapError(core.ErrStorageFailed, err)
	}
	return true, nil
}
