package service

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/birthday-greetings-api/pkg/errors"
	"github.com/noah-isme/birthday-greetings-api/pkg/storage"
)

func newTestFileService(t *testing.T) *FileService {
	t.Helper()
	buckets := map[string]*storage.LocalStorage{}
	for _, name := range []string{BucketPhotos, BucketCards} {
		store, err := storage.NewLocalStorage(t.TempDir())
		require.NoError(t, err)
		buckets[name] = store
	}
	signer := storage.NewSignedURLSigner("file-secret", time.Hour)
	return NewFileService(buckets, signer, "/api/v1/files/", zap.NewNop())
}

func TestFileServiceLinkResolvesToStoredFile(t *testing.T) {
	svc := newTestFileService(t)

	rel, err := svc.Save(BucketCards, "2024-03-10/a.pdf", []byte("%PDF"))
	require.NoError(t, err)

	link, err := svc.Link(BucketCards, rel)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link.URL, "/api/v1/files/cards."))
	assert.True(t, link.ExpiresAt.After(time.Now()))

	token := strings.TrimPrefix(link.URL, "/api/v1/files/")
	abs, name, err := svc.Resolve(token)
	require.NoError(t, err)
	assert.Equal(t, "a.pdf", name)
	data, err := os.ReadFile(abs)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF"), data)
}

func TestFileServiceResolveRejectsTamperedToken(t *testing.T) {
	svc := newTestFileService(t)
	rel, err := svc.Save(BucketPhotos, "e1/photo.png", pngHeader)
	require.NoError(t, err)
	link, err := svc.Link(BucketPhotos, rel)
	require.NoError(t, err)

	token := strings.TrimPrefix(link.URL, "/api/v1/files/")
	_, _, err = svc.Resolve(strings.Replace(token, "photos", "cards", 1))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestFileServiceResolveMissingFile(t *testing.T) {
	svc := newTestFileService(t)
	link, err := svc.Link(BucketPhotos, "e1/gone.png")
	require.NoError(t, err)

	_, _, err = svc.Resolve(strings.TrimPrefix(link.URL, "/api/v1/files/"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestFileServiceSaveStreamEnforcesLimit(t *testing.T) {
	svc := newTestFileService(t)

	_, err := svc.SaveStream(BucketPhotos, "e1/big.png", bytes.NewReader(make([]byte, 64)), 32)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPayloadTooLarge.Code, appErrors.FromError(err).Code)

	_, err = svc.Read(BucketPhotos, "e1/big.png")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestFileServiceUnknownBucketAndURL(t *testing.T) {
	svc := newTestFileService(t)

	_, err := svc.Save("avatars", "x.png", pngHeader)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	assert.Empty(t, svc.URL(BucketPhotos, nil))
	empty := ""
	assert.Empty(t, svc.URL(BucketPhotos, &empty))
	rel := "e1/photo.png"
	assert.NotEmpty(t, svc.URL(BucketPhotos, &rel))

	var nilSvc *FileService
	assert.Empty(t, nilSvc.URL(BucketPhotos, &rel))

	svc.Remove(BucketPhotos, "e1/missing.png")
}
