package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/birthday-greetings-api/internal/dto"
	"github.com/noah-isme/birthday-greetings-api/internal/middleware"
	appErrors "github.com/noah-isme/birthday-greetings-api/pkg/errors"
	"github.com/noah-isme/birthday-greetings-api/pkg/response"
)

type dashboardService interface {
	Dashboard(ctx context.Context, lang string, includeHidden bool) (*dto.BirthdayDashboard, bool, error)
}

// DashboardHandler wires the birthday dashboard to HTTP endpoints.
type DashboardHandler struct {
	service  dashboardService
	language languageResolver
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService, language languageResolver) *DashboardHandler {
	return &DashboardHandler{service: service, language: language}
}

// Birthdays godoc
// @Summary Birthday dashboard
// @Description Today's birthdays and those inside the upcoming window
// @Tags Dashboard
// @Produce json
// @Param lang query string false "Language (en, ru)"
// @Success 200 {object} response.Envelope
// @Router /dashboard/birthdays [get]
func (h *DashboardHandler) Birthdays(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	auth, ok := currentAuth(c)
	if !ok {
		return
	}
	summary, cacheHit, err := h.service.Dashboard(c.Request.Context(), requestLanguage(c, h.language), auth.IsHR())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, summary, nil, middleware.ExtractMeta(c))
}
