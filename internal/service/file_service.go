package service

import (
	"errors"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/birthday-greetings-api/internal/dto"
	appErrors "github.com/noah-isme/birthday-greetings-api/pkg/errors"
	"github.com/noah-isme/birthday-greetings-api/pkg/storage"
)

// Storage buckets.
const (
	BucketPhotos      = "photos"
	BucketCards       = "cards"
	BucketBackgrounds = "backgrounds"
)

type fileStore interface {
	Save(name string, data []byte) (string, error)
	SaveStream(name string, r io.Reader, maxBytes int64) (string, error)
	Read(name string) ([]byte, error)
	Delete(name string) error
	Path(name string) (string, error)
}

type fileSigner interface {
	Generate(bucket, relPath string) (string, time.Time, error)
	Parse(token string) (bucket, relPath string, err error)
}

// FileService stores employee photos, rendered cards and card backgrounds and
// hands out signed download links for them.
type FileService struct {
	buckets   map[string]fileStore
	signer    fileSigner
	urlPrefix string
	logger    *zap.Logger
}

// NewFileService wires named buckets to their stores. urlPrefix is the public path
// that serves tokens, e.g. "/api/v1/files".
func NewFileService(buckets map[string]*storage.LocalStorage, signer fileSigner, urlPrefix string, logger *zap.Logger) *FileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	stores := make(map[string]fileStore, len(buckets))
	for name, store := range buckets {
		if store != nil {
			stores[name] = store
		}
	}
	return &FileService{buckets: stores, signer: signer, urlPrefix: strings.TrimRight(urlPrefix, "/"), logger: logger}
}

func (s *FileService) bucket(name string) (fileStore, error) {
	store, ok := s.buckets[name]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "unknown storage bucket")
	}
	return store, nil
}

// Save writes data into bucket under name.
func (s *FileService) Save(bucket, name string, data []byte) (string, error) {
	store, err := s.bucket(bucket)
	if err != nil {
		return "", err
	}
	rel, err := store.Save(name, data)
	if err != nil {
		return "", appErrors.Internal(err, "failed to store file")
	}
	return rel, nil
}

// SaveStream writes r into bucket, failing with PAYLOAD_TOO_LARGE above maxBytes.
func (s *FileService) SaveStream(bucket, name string, r io.Reader, maxBytes int64) (string, error) {
	store, err := s.bucket(bucket)
	if err != nil {
		return "", err
	}
	rel, err := store.SaveStream(name, r, maxBytes)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return "", appErrors.Clone(appErrors.ErrPayloadTooLarge, "file exceeds the upload limit")
		}
		return "", appErrors.Internal(err, "failed to store file")
	}
	return rel, nil
}

// Read loads a stored file.
func (s *FileService) Read(bucket, rel string) ([]byte, error) {
	store, err := s.bucket(bucket)
	if err != nil {
		return nil, err
	}
	data, err := store.Read(rel)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, appErrors.Internal(err, "failed to read file")
	}
	return data, nil
}

// Remove deletes a stored file; missing files are ignored.
func (s *FileService) Remove(bucket, rel string) {
	store, err := s.bucket(bucket)
	if err != nil || rel == "" {
		return
	}
	if err := store.Delete(rel); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("failed to delete stored file", zap.String("bucket", bucket), zap.String("path", rel), zap.Error(err))
	}
}

// Link signs a download link for bucket/rel.
func (s *FileService) Link(bucket, rel string) (*dto.FileLink, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "file signing not configured")
	}
	token, expiresAt, err := s.signer.Generate(bucket, rel)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to sign file link")
	}
	return &dto.FileLink{URL: s.urlPrefix + "/" + token, ExpiresAt: expiresAt}, nil
}

// URL returns a signed URL or "" when rel is empty or signing fails.
func (s *FileService) URL(bucket string, rel *string) string {
	if s == nil || rel == nil || *rel == "" {
		return ""
	}
	link, err := s.Link(bucket, *rel)
	if err != nil {
		s.logger.Warn("failed to sign file url", zap.String("bucket", bucket), zap.Error(err))
		return ""
	}
	return link.URL
}

// Resolve validates a download token and returns the absolute path and a download name.
func (s *FileService) Resolve(token string) (string, string, error) {
	if s.signer == nil {
		return "", "", appErrors.Clone(appErrors.ErrNotFound, "file not found")
	}
	bucket, rel, err := s.signer.Parse(token)
	if err != nil {
		return "", "", appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired file link")
	}
	store, err := s.bucket(bucket)
	if err != nil {
		return "", "", err
	}
	abs, err := store.Path(rel)
	if err != nil {
		return "", "", appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid file path")
	}
	if _, err := os.Stat(abs); err != nil {
		return "", "", appErrors.Clone(appErrors.ErrNotFound, "file not found")
	}
	return abs, path.Base(rel), nil
}
