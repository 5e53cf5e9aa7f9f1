package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/birthday-greetings-api/internal/models"
	appErrors "github.com/noah-isme/birthday-greetings-api/pkg/errors"
	"github.com/noah-isme/birthday-greetings-api/pkg/response"
)

const (
	backgroundFormField = "background"
	pdfContentType      = "application/pdf"
	defaultPreviewName  = "Jane Doe"
)

type cardTemplateService interface {
	List(ctx context.Context) ([]models.CardTemplate, error)
	Get(ctx context.Context, id string) (*models.CardTemplate, error)
	Create(ctx context.Context, actor models.AuthContext, req models.CardTemplateRequest) (*models.CardTemplate, error)
	Update(ctx context.Context, actor models.AuthContext, id string, req models.UpdateCardTemplateRequest) (*models.CardTemplate, error)
	Delete(ctx context.Context, actor models.AuthContext, id string) error
	UploadBackground(ctx context.Context, actor models.AuthContext, id, filename string, r io.Reader) (*models.CardTemplate, error)
	Preview(ctx context.Context, id, name string) ([]byte, error)
}

// CardTemplateHandler manages greeting card template endpoints.
type CardTemplateHandler struct {
	service cardTemplateService
}

// NewCardTemplateHandler constructs the handler.
func NewCardTemplateHandler(svc cardTemplateService) *CardTemplateHandler {
	return &CardTemplateHandler{service: svc}
}

// List godoc
// @Summary List card templates
// @Tags Card Templates
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /card-templates [get]
func (h *CardTemplateHandler) List(c *gin.Context) {
	templates, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, templates, nil)
}

// Get godoc
// @Summary Get card template
// @Tags Card Templates
// @Produce json
// @Param id path string true "Template ID"
// @Success 200 {object} response.Envelope
// @Router /card-templates/{id} [get]
func (h *CardTemplateHandler) Get(c *gin.Context) {
	tpl, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tpl, nil)
}

// Create godoc
// @Summary Create card template
// @Tags Card Templates
// @Accept json
// @Produce json
// @Param payload body models.CardTemplateRequest true "Template payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /card-templates [post]
func (h *CardTemplateHandler) Create(c *gin.Context) {
	auth, ok := currentAuth(c)
	if !ok {
		return
	}
	var req models.CardTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	tpl, err := h.service.Create(c.Request.Context(), auth, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, tpl)
}

// Update godoc
// @Summary Update card template
// @Tags Card Templates
// @Accept json
// @Produce json
// @Param id path string true "Template ID"
// @Param payload body models.UpdateCardTemplateRequest true "Template payload"
// @Success 200 {object} response.Envelope
// @Router /card-templates/{id} [patch]
func (h *CardTemplateHandler) Update(c *gin.Context) {
	auth, ok := currentAuth(c)
	if !ok {
		return
	}
	var req models.UpdateCardTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	tpl, err := h.service.Update(c.Request.Context(), auth, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tpl, nil)
}

// Delete godoc
// @Summary Delete card template
// @Tags Card Templates
// @Param id path string true "Template ID"
// @Success 204 {object} response.Envelope
// @Router /card-templates/{id} [delete]
func (h *CardTemplateHandler) Delete(c *gin.Context) {
	auth, ok := currentAuth(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), auth, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UploadBackground godoc
// @Summary Upload template background image
// @Tags Card Templates
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Template ID"
// @Param background formData file true "Background image"
// @Success 200 {object} response.Envelope
// @Router /card-templates/{id}/background [post]
func (h *CardTemplateHandler) UploadBackground(c *gin.Context) {
	auth, ok := currentAuth(c)
	if !ok {
		return
	}
	header, err := c.FormFile(backgroundFormField)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "background file required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unable to read background"))
		return
	}
	defer file.Close()

	tpl, err := h.service.UploadBackground(c.Request.Context(), auth, c.Param("id"), header.Filename, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tpl, nil)
}

// Preview godoc
// @Summary Render template preview
// @Tags Card Templates
// @Produce application/pdf
// @Param id path string true "Template ID"
// @Param name query string false "Name substituted into the text"
// @Success 200 {string} string "PDF"
// @Router /card-templates/{id}/preview [get]
func (h *CardTemplateHandler) Preview(c *gin.Context) {
	id := c.Param("id")
	pdf, err := h.service.Preview(c.Request.Context(), id, c.DefaultQuery("name", defaultPreviewName))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", "inline; filename=\"preview-"+id+".pdf\"")
	c.Data(http.StatusOK, pdfContentType, pdf)
}
