package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/birthday-greetings-api/internal/models"
	"github.com/noah-isme/birthday-greetings-api/pkg/response"
)

type mailingSettingsService interface {
	Get(ctx context.Context) (*models.MailingSettings, error)
	Update(ctx context.Context, actor models.AuthContext, req models.UpdateMailingSettingsRequest) (*models.MailingSettings, error)
}

// MailingSettingsHandler exposes the SMTP and schedule settings.
type MailingSettingsHandler struct {
	service mailingSettingsService
}

// NewMailingSettingsHandler constructs the handler.
func NewMailingSettingsHandler(svc mailingSettingsService) *MailingSettingsHandler {
	return &MailingSettingsHandler{service: svc}
}

// Get godoc
// @Summary Get mailing settings
// @Description The SMTP password is masked.
// @Tags Mailing Settings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /mailing-settings [get]
func (h *MailingSettingsHandler) Get(c *gin.Context) {
	settings, err := h.service.Get(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}

// Update godoc
// @Summary Update mailing settings
// @Tags Mailing Settings
// @Accept json
// @Produce json
// @Param payload body models.UpdateMailingSettingsRequest true "Settings payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /mailing-settings [patch]
func (h *MailingSettingsHandler) Update(c *gin.Context) {
	auth, ok := currentAuth(c)
	if !ok {
		return
	}
	var req models.UpdateMailingSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	settings, err := h.service.Update(c.Request.Context(), auth, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}
