package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/birthday-greetings-api/internal/models"
	"github.com/noah-isme/birthday-greetings-api/internal/service"
	appErrors "github.com/noah-isme/birthday-greetings-api/pkg/errors"
	"github.com/noah-isme/birthday-greetings-api/pkg/response"
)

type greetingService interface {
	RunManual(ctx context.Context, actor models.AuthContext) (*models.GreetingRunResult, error)
	History(ctx context.Context, filter models.GreetingLogFilter) ([]models.GreetingLog, *models.Pagination, error)
}

type historyExporter interface {
	History(ctx context.Context, format, lang string, filter models.GreetingLogFilter) (*service.ExportFile, error)
}

// GreetingHandler exposes manual dispatch and the greeting history.
type GreetingHandler struct {
	service  greetingService
	exporter historyExporter
	language languageResolver
}

// NewGreetingHandler constructs the handler.
func NewGreetingHandler(svc greetingService, exporter historyExporter, language languageResolver) *GreetingHandler {
	return &GreetingHandler{service: svc, exporter: exporter, language: language}
}

// Run godoc
// @Summary Send today's birthday cards now
// @Tags Greetings
// @Produce json
// @Success 202 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /greetings/run [post]
func (h *GreetingHandler) Run(c *gin.Context) {
	auth, ok := currentAuth(c)
	if !ok {
		return
	}
	result, err := h.service.RunManual(c.Request.Context(), auth)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, result, nil)
}

// History godoc
// @Summary Greeting history
// @Tags Greetings
// @Produce json
// @Param employee_id query string false "Employee"
// @Param success query bool false "Delivery outcome"
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Limit"
// @Success 200 {object} response.Envelope
// @Router /employees/birthday-history [get]
func (h *GreetingHandler) History(c *gin.Context) {
	filter, err := historyFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	logs, pagination, err := h.service.History(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, pagination)
}

// ExportHistory godoc
// @Summary Export greeting history
// @Tags Greetings
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" default(csv)
// @Param lang query string false "Language (en, ru)"
// @Success 200 {string} string "File"
// @Router /employees/birthday-history/export [get]
func (h *GreetingHandler) ExportHistory(c *gin.Context) {
	filter, err := historyFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.exporter.History(c.Request.Context(), c.DefaultQuery("format", "csv"), requestLanguage(c, h.language), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}

func historyFilter(c *gin.Context) (models.GreetingLogFilter, error) {
	filter := models.GreetingLogFilter{
		EmployeeID: strings.TrimSpace(c.Query("employee_id")),
		Success:    queryBool(c, "success"),
		Page:       queryInt(c, "page", 1),
		PageSize:   queryInt(c, "limit", 20),
	}
	var err error
	if filter.From, err = queryDate(c, "from"); err != nil {
		return filter, err
	}
	if filter.To, err = queryDate(c, "to"); err != nil {
		return filter, err
	}
	return filter, nil
}

func queryDate(c *gin.Context, key string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid "+key+" date, expected YYYY-MM-DD")
	}
	return &parsed, nil
}
