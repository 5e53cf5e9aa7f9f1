package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/birthday-greetings-api/internal/dto"
	"github.com/noah-isme/birthday-greetings-api/internal/middleware"
	"github.com/noah-isme/birthday-greetings-api/internal/models"
	"github.com/noah-isme/birthday-greetings-api/internal/service"
	"github.com/noah-isme/birthday-greetings-api/pkg/response"
)

const (
	calendarContentType = "text/calendar; charset=utf-8"
	vcardContentType    = "text/vcard; charset=utf-8"
)

type birthdayLister interface {
	Colleagues(ctx context.Context, lang string, includeHidden bool) (*dto.BirthdayList, bool, error)
}

type birthdayCalendar interface {
	Feed(ctx context.Context, lang string, includeHidden bool) ([]byte, error)
	VCard(ctx context.Context, employeeID string, includeHidden bool) ([]byte, error)
	VCards(ctx context.Context, includeHidden bool) ([]byte, error)
}

type upcomingExporter interface {
	Upcoming(ctx context.Context, format, lang string, days int, includeHidden bool) (*service.ExportFile, error)
}

// BirthdayHandler serves the colleague birthday views and their exports.
type BirthdayHandler struct {
	birthdays birthdayLister
	calendar  birthdayCalendar
	exporter  upcomingExporter
	language  languageResolver
}

// NewBirthdayHandler constructs the handler.
func NewBirthdayHandler(birthdays birthdayLister, calendar birthdayCalendar, exporter upcomingExporter, language languageResolver) *BirthdayHandler {
	return &BirthdayHandler{birthdays: birthdays, calendar: calendar, exporter: exporter, language: language}
}

// List godoc
// @Summary Colleague birthdays
// @Description Colleagues sorted by days until their next birthday with a localized badge
// @Tags Birthdays
// @Produce json
// @Param lang query string false "Language (en, ru)"
// @Success 200 {object} response.Envelope
// @Router /employees/birthdays [get]
func (h *BirthdayHandler) List(c *gin.Context) {
	auth, ok := currentAuth(c)
	if !ok {
		return
	}
	list, cacheHit, err := h.birthdays.Colleagues(c.Request.Context(), requestLanguage(c, h.language), auth.IsHR())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, list, nil, middleware.ExtractMeta(c))
}

// Calendar godoc
// @Summary Birthday calendar feed
// @Tags Birthdays
// @Produce text/calendar
// @Param lang query string false "Language (en, ru)"
// @Success 200 {string} string "iCalendar feed"
// @Router /employees/birthdays/calendar.ics [get]
func (h *BirthdayHandler) Calendar(c *gin.Context) {
	auth, ok := currentAuth(c)
	if !ok {
		return
	}
	feed, err := h.calendar.Feed(c.Request.Context(), requestLanguage(c, h.language), auth.IsHR())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, "birthdays.ics", calendarContentType, feed)
}

// Contacts godoc
// @Summary Colleague contacts
// @Tags Birthdays
// @Produce text/vcard
// @Success 200 {string} string "vCard collection"
// @Router /employees/birthdays/contacts.vcf [get]
func (h *BirthdayHandler) Contacts(c *gin.Context) {
	auth, ok := currentAuth(c)
	if !ok {
		return
	}
	cards, err := h.calendar.VCards(c.Request.Context(), auth.IsHR())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, "colleagues.vcf", vcardContentType, cards)
}

// VCard godoc
// @Summary Employee vCard
// @Tags Birthdays
// @Produce text/vcard
// @Param id path string true "Employee ID"
// @Success 200 {string} string "vCard"
// @Failure 404 {object} response.Envelope
// @Router /employees/{id}/vcard [get]
func (h *BirthdayHandler) VCard(c *gin.Context) {
	auth, ok := currentAuth(c)
	if !ok {
		return
	}
	id := c.Param("id")
	card, err := h.calendar.VCard(c.Request.Context(), id, canSeeHidden(auth, id))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, id+".vcf", vcardContentType, card)
}

// Export godoc
// @Summary Export upcoming birthdays
// @Tags Birthdays
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" default(csv)
// @Param days query int false "Window in days"
// @Param lang query string false "Language (en, ru)"
// @Success 200 {string} string "File"
// @Failure 400 {object} response.Envelope
// @Router /employees/birthdays/export [get]
func (h *BirthdayHandler) Export(c *gin.Context) {
	auth, ok := currentAuth(c)
	if !ok {
		return
	}
	file, err := h.exporter.Upcoming(c.Request.Context(), c.DefaultQuery("format", "csv"), requestLanguage(c, h.language), queryInt(c, "days", 0), auth.IsHR())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}

func canSeeHidden(auth models.AuthContext, employeeID string) bool {
	return auth.IsHR() || (auth.EmployeeID != "" && auth.EmployeeID == employeeID)
}
