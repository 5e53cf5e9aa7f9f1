package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/birthday-greetings-api/internal/dto"
	"github.com/noah-isme/birthday-greetings-api/internal/locale"
	"github.com/noah-isme/birthday-greetings-api/internal/models"
	appErrors "github.com/noah-isme/birthday-greetings-api/pkg/errors"
	"github.com/noah-isme/birthday-greetings-api/pkg/export"
)

// Export formats.
const (
	FormatCSV = "csv"
	FormatPDF = "pdf"
)

const (
	historyExportPageSize = 100
	historyExportLimit    = 10000
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type upcomingSource interface {
	Upcoming(ctx context.Context, lang string, days int, includeHidden bool) (*dto.BirthdayList, error)
}

type historySource interface {
	List(ctx context.Context, filter models.GreetingLogFilter) ([]models.GreetingLog, int, error)
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders the upcoming birthdays list and greeting history as CSV or PDF
// with headers in the requested language.
type ExportService struct {
	birthdays  upcomingSource
	history    historySource
	translator *locale.Translator
	csv        csvRenderer
	pdf        pdfRenderer
	logger     *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(birthdays upcomingSource, history historySource, translator *locale.Translator, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if translator == nil {
		translator = locale.MustNew("")
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{birthdays: birthdays, history: history, translator: translator, csv: csv, pdf: pdf, logger: logger}
}

// Upcoming exports birthdays within days from today.
func (s *ExportService) Upcoming(ctx context.Context, format, lang string, days int, includeHidden bool) (*ExportFile, error) {
	format, err := normalizeFormat(format)
	if err != nil {
		return nil, err
	}
	list, err := s.birthdays.Upcoming(ctx, lang, days, includeHidden)
	if err != nil {
		return nil, err
	}
	lang = list.Language

	cols := s.columns(lang, "ColumnName", "ColumnDepartment", "ColumnPosition", "ColumnBirthDate", "ColumnNextBirthday", "ColumnDaysUntil")
	ds := export.Dataset{Headers: cols}
	for _, item := range list.Items {
		ds.Rows = append(ds.Rows, map[string]string{
			cols[0]: item.FullName,
			cols[1]: item.Department,
			cols[2]: item.Position,
			cols[3]: item.BirthDate.String(),
			cols[4]: item.NextOccurrence.String(),
			cols[5]: strconv.Itoa(item.DaysUntil),
		})
	}
	title := s.translator.Message(lang, "UpcomingTitle", nil)
	return s.render(ds, format, title, "upcoming-birthdays-"+list.Date.String())
}

// History exports greeting logs matching filter; paging fields are ignored.
func (s *ExportService) History(ctx context.Context, format, lang string, filter models.GreetingLogFilter) (*ExportFile, error) {
	format, err := normalizeFormat(format)
	if err != nil {
		return nil, err
	}
	lang = s.translator.Resolve(lang, "")
	logs, err := s.allHistory(ctx, filter)
	if err != nil {
		return nil, err
	}

	cols := s.columns(lang, "ColumnName", "ColumnTemplate", "ColumnSentAt", "ColumnStatus", "ColumnError")
	sent := s.translator.Message(lang, "StatusSent", nil)
	failed := s.translator.Message(lang, "StatusFailed", nil)
	ds := export.Dataset{Headers: cols}
	for _, entry := range logs {
		status := sent
		if !entry.Success {
			status = failed
		}
		ds.Rows = append(ds.Rows, map[string]string{
			cols[0]: entry.EmployeeName,
			cols[1]: deref(entry.TemplateName),
			cols[2]: entry.SentAt.UTC().Format(time.RFC3339),
			cols[3]: status,
			cols[4]: deref(entry.ErrorMessage),
		})
	}
	title := s.translator.Message(lang, "HistoryTitle", nil)
	return s.render(ds, format, title, "greeting-history-"+time.Now().UTC().Format("20060102"))
}

func (s *ExportService) allHistory(ctx context.Context, filter models.GreetingLogFilter) ([]models.GreetingLog, error) {
	filter.PageSize = historyExportPageSize
	var all []models.GreetingLog
	for page := 1; len(all) < historyExportLimit; page++ {
		filter.Page = page
		logs, total, err := s.history.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to load greeting history")
		}
		all = append(all, logs...)
		if len(logs) < historyExportPageSize || len(all) >= total {
			break
		}
	}
	if len(all) > historyExportLimit {
		all = all[:historyExportLimit]
	}
	return all, nil
}

func (s *ExportService) render(ds export.Dataset, format, title, basename string) (*ExportFile, error) {
	switch format {
	case FormatPDF:
		data, err := s.pdf.Render(ds, title)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to render pdf")
		}
		return &ExportFile{Filename: basename + ".pdf", ContentType: "application/pdf", Data: data}, nil
	default:
		data, err := s.csv.Render(ds)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to render csv")
		}
		return &ExportFile{Filename: basename + ".csv", ContentType: "text/csv; charset=utf-8", Data: data}, nil
	}
}

func (s *ExportService) columns(lang string, ids ...string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = s.translator.Message(lang, id, nil)
	}
	return out
}

func normalizeFormat(format string) (string, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatPDF:
		return FormatPDF, nil
	}
	return "", appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
