// Package filestore persists contact images as blobs under generated unique names.
//
// A blob is never modified after it has been stored. Replacing an image means storing a new blob
// and deleting the old one. Deleting a blob that does not exist is not an error.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	BackendLocal = "local"
	BackendMinio = "minio"

	// maxNameAttempts bounds the retries when a generated name is already taken.
	maxNameAttempts = 5
)

var (
	ErrNotExist    = errors.New("filestore: file does not exist")
	ErrInvalidName = errors.New("filestore: invalid file name")

	extPattern = regexp.MustCompile(`^\.[a-z0-9]{1,10}$`)
)

// Store is the contract of a blob storage backend.
type Store interface {
	// Store persists the content under a newly generated name and returns that name. An existing
	// blob is never overwritten.
	Store(ctx context.Context, content io.Reader, originalName string) (string, error)

	// Delete removes the named blob. A missing blob is logged and treated as deleted.
	Delete(ctx context.Context, name string) error

	// Exists reports whether the named blob exists.
	Exists(ctx context.Context, name string) (bool, error)

	// Open returns the content of the named blob, or ErrNotExist.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// Config selects and configures the storage backend.
type Config struct {
	Backend string      `yaml:"backend" validate:"oneof=local minio" default:"local"`
	Dir     string      `yaml:"dir"     default:"public/images"`
	Minio   MinioConfig `yaml:"minio"`
}

// New creates the backend selected by the configuration.
func New(ctx context.Context, cfg Config, log *zap.Logger) (Store, error) {
	switch cfg.Backend {
	case BackendLocal:
		return NewLocal(cfg.Dir, log)
	case BackendMinio:
		return NewMinio(ctx, cfg.Minio, log)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// NewName generates a blob name from the current time, a random component and the extension of
// the original file name, e.g. "1700000000000-5b0e0b2c-3f7a-4c1e-9d55-0e6a3f7d1c2b.png".
func NewName(originalName string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	if !extPattern.MatchString(ext) {
		ext = ""
	}
	return fmt.Sprintf("%d-%s%s", now.UnixMilli(), uuid.NewString(), ext)
}

// validName reports whether name can be used as a blob name. It must not address anything
// outside of the store.
func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}
