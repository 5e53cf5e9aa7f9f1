package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/birthday-greetings-api/pkg/response"
)

type fileResolver interface {
	Resolve(token string) (string, string, error)
}

// FileHandler serves stored photos, backgrounds and cards behind signed tokens.
type FileHandler struct {
	files fileResolver
}

// NewFileHandler constructs the handler.
func NewFileHandler(files fileResolver) *FileHandler {
	return &FileHandler{files: files}
}

// Serve godoc
// @Summary Download a stored file
// @Tags Files
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /files/{token} [get]
func (h *FileHandler) Serve(c *gin.Context) {
	abs, name, err := h.files.Resolve(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Cache-Control", "private, max-age=300")
	c.Header("Content-Disposition", "inline; filename=\""+name+"\"")
	c.File(abs)
}
