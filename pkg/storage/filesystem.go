package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrTooLarge is returned when an upload exceeds the allowed size.
var ErrTooLarge = errors.New("file exceeds size limit")

// ErrOutsideBase is returned for paths escaping the storage directory.
var ErrOutsideBase = errors.New("path escapes storage directory")

// LocalStorage persists files on disk under a base directory.
type LocalStorage struct {
	baseDir string
}

// NewLocalStorage ensures the base directory exists and returns a handle.
func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("storage directory required")
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve storage directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &LocalStorage{baseDir: abs}, nil
}

// Save writes the given bytes to the relative path and returns that path.
func (s *LocalStorage) Save(name string, data []byte) (string, error) {
	path, err := s.resolve(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("prepare directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return name, nil
}

// SaveStream copies at most maxBytes from r into the relative path. A partial
// file is removed when the limit is exceeded.
func (s *LocalStorage) SaveStream(name string, r io.Reader, maxBytes int64) (string, error) {
	path, err := s.resolve(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("prepare directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer file.Close() //nolint:errcheck

	reader := r
	if maxBytes > 0 {
		reader = io.LimitReader(r, maxBytes+1)
	}
	written, err := io.Copy(file, reader)
	if err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("write stream: %w", err)
	}
	if maxBytes > 0 && written > maxBytes {
		_ = os.Remove(path)
		return "", ErrTooLarge
	}
	return name, nil
}

// Read returns the full contents of a stored file.
func (s *LocalStorage) Read(name string) ([]byte, error) {
	path, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

// Open returns a read-only handle for the stored file.
func (s *LocalStorage) Open(name string) (*os.File, error) {
	path, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return file, nil
}

// Delete removes a stored file if present.
func (s *LocalStorage) Delete(name string) error {
	path, err := s.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// Path exposes the absolute path of a stored file.
func (s *LocalStorage) Path(name string) (string, error) {
	return s.resolve(name)
}

func (s *LocalStorage) resolve(name string) (string, error) {
	clean := filepath.Clean("/" + filepath.ToSlash(name))
	path := filepath.Join(s.baseDir, clean)
	if path != s.baseDir && !strings.HasPrefix(path, s.baseDir+string(filepath.Separator)) {
		return "", ErrOutsideBase
	}
	return path, nil
}
