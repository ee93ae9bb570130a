package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Local stores blobs as files in a directory.
type Local struct {
	dir string
	log *zap.Logger
	now func() time.Time
}

var _ Store = (*Local)(nil)

// NewLocal creates the directory if necessary and returns a store for it.
func NewLocal(dir string, log *zap.Logger) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create image directory %s: %w", dir, err)
	}
	return &Local{dir: dir, log: log.Named("filestore"), now: time.Now}, nil
}

// Dir returns the directory that holds the files.
func (s *Local) Dir() string {
	return s.dir
}

func (s *Local) Store(ctx context.Context, content io.Reader, originalName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	for range maxNameAttempts {
		name := NewName(originalName, s.now())
		path := filepath.Join(s.dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644) // nosemgrep
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("could not create file %s: %w", name, err)
		}
		if err := write(f, content); err != nil {
			os.Remove(path)
			return "", fmt.Errorf("could not write file %s: %w", name, err)
		}
		s.log.Debug("stored file", zap.String("filename", name))
		return name, nil
	}
	return "", fmt.Errorf("could not generate a unique file name after %d attempts", maxNameAttempts)
}

// write copies the content into f, flushes it to disk and closes f.
func write(f *os.File, content io.Reader) error {
	if _, err := io.Copy(f, content); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (s *Local) Delete(_ context.Context, name string) error {
	if !validName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		s.log.Warn("file to delete does not exist", zap.String("filename", name))
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not delete file %s: %w", name, err)
	}
	s.log.Debug("deleted file", zap.String("filename", name))
	return nil
}

func (s *Local) Exists(_ context.Context, name string) (bool, error) {
	if !validName(name) {
		return false, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	_, err := os.Stat(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("could not stat file %s: %w", name, err)
	}
	return true, nil
}

func (s *Local) Open(_ context.Context, name string) (io.ReadCloser, error) {
	if !validName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	f, err := os.Open(filepath.Join(s.dir, name)) // nosemgrep
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("could not open file %s: %w", name, err)
	}
	return f, nil
}
