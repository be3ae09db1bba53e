package archive

import (
	"context"
	"fmt"

	"github.com/newthinker/ladder/internal/core"
)

// Storage defines the interface for blob storage backends holding cached
// price series and archived backtest runs. Paths are slash-separated and
// relative to the backend root.
type Storage interface {
	// Write stores data at the given path
	Write(ctx context.Context, path string, data []byte) error

	// Read retrieves data from the given path
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns all paths matching the prefix
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the data at the given path
	Delete(ctx context.Context, path string) error

	// Exists checks if data exists at the given path
	Exists(ctx context.Context, path string) (bool, error)
}

const (
	TypeLocalFS = "localfs"
	TypeS3      = "s3"
)

// Config selects and configures a storage backend
type Config struct {
	Type string
	Path string
	S3   S3Config
}

// New creates the backend named by cfg.Type
func New(cfg Config) (Storage, error) {
	switch cfg.Type {
	case TypeLocalFS, "":
		return NewLocalFS(cfg.Path)
	case TypeS3:
		return NewS3(cfg.S3)
	default:
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown storage type %q", cfg.Type))
	}
}
