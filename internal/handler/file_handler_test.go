package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/birthday-greetings-api/pkg/errors"
)

type fakeFileResolver struct {
	path string
}

func (f fakeFileResolver) Resolve(token string) (string, string, error) {
	if token != "good" {
		return "", "", appErrors.Clone(appErrors.ErrForbidden, "invalid or expired file link")
	}
	return f.path, filepath.Base(f.path), nil
}

func TestFileHandlerServe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "card.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-card"), 0o600))
	handler := NewFileHandler(fakeFileResolver{path: path})

	c, rec := newTestContext(http.MethodGet, "/files/good", nil)
	c.AddParam("token", "good")
	handler.Serve(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "%PDF-card", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "card.pdf")
}

func TestFileHandlerRejectsBadToken(t *testing.T) {
	handler := NewFileHandler(fakeFileResolver{})

	c, rec := newTestContext(http.MethodGet, "/files/bad", nil)
	c.AddParam("token", "bad")
	handler.Serve(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
