package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/birthday-greetings-api/internal/birthday"
	"github.com/noah-isme/birthday-greetings-api/internal/dto"
	"github.com/noah-isme/birthday-greetings-api/internal/locale"
	"github.com/noah-isme/birthday-greetings-api/internal/models"
	appErrors "github.com/noah-isme/birthday-greetings-api/pkg/errors"
)

type rosterSource interface {
	ListActive(ctx context.Context) ([]models.Employee, error)
}

type photoLinker interface {
	URL(bucket string, rel *string) string
}

// RosterEntry is the cached projection of an active employee used by birthday views.
type RosterEntry struct {
	ID         string        `json:"id"`
	FullName   string        `json:"fullName"`
	FirstName  string        `json:"firstName"`
	LastName   string        `json:"lastName"`
	MiddleName string        `json:"middleName,omitempty"`
	Email      string        `json:"email"`
	Department string        `json:"department,omitempty"`
	Position   string        `json:"position,omitempty"`
	PhotoPath  *string       `json:"photoPath,omitempty"`
	BirthDate  birthday.Date `json:"birthDate"`
	Public     bool          `json:"public"`
}

// BirthdayService builds the colleague lists and dashboard from the active roster.
// The roster may be cached; proximity is recomputed from the clock on every call.
type BirthdayService struct {
	repo       rosterSource
	cache      *CacheService
	cacheTTL   time.Duration
	files      photoLinker
	translator *locale.Translator
	classifier birthday.Classifier
	clock      birthday.Clock
	metrics    *MetricsService
	logger     *zap.Logger
}

// BirthdayServiceConfig carries the tunables for BirthdayService.
type BirthdayServiceConfig struct {
	Classifier birthday.Classifier
	Clock      birthday.Clock
	CacheTTL   time.Duration
}

// NewBirthdayService constructs a BirthdayService.
func NewBirthdayService(repo rosterSource, cache *CacheService, files photoLinker, translator *locale.Translator, metrics *MetricsService, cfg BirthdayServiceConfig, logger *zap.Logger) *BirthdayService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Classifier.SoonDays <= 0 {
		cfg.Classifier.SoonDays = birthday.DefaultClassifier.SoonDays
	}
	if cfg.Classifier.UpcomingDays <= 0 {
		cfg.Classifier.UpcomingDays = birthday.DefaultClassifier.UpcomingDays
	}
	if cfg.Clock == nil {
		cfg.Clock = birthday.SystemClock{}
	}
	if translator == nil {
		translator = locale.MustNew("")
	}
	return &BirthdayService{
		repo:       repo,
		cache:      cache,
		cacheTTL:   cfg.CacheTTL,
		files:      files,
		translator: translator,
		classifier: cfg.Classifier,
		clock:      cfg.Clock,
		metrics:    metrics,
		logger:     logger,
	}
}

// Today returns the service's current calendar date.
func (s *BirthdayService) Today() birthday.Date {
	return birthday.Today(s.clock)
}

// Colleagues lists everyone's next birthday in proximity order. Employees who hid
// their birthday are left out unless includeHidden is set. The flag reports a roster cache hit.
func (s *BirthdayService) Colleagues(ctx context.Context, lang string, includeHidden bool) (*dto.BirthdayList, bool, error) {
	today := s.Today()
	views, hit, err := s.annotate(ctx, today, lang, includeHidden)
	if err != nil {
		return nil, false, err
	}
	return &dto.BirthdayList{Date: today, Language: s.lang(lang), Items: views}, hit, nil
}

// Upcoming lists birthdays within days from today, today's included.
func (s *BirthdayService) Upcoming(ctx context.Context, lang string, days int, includeHidden bool) (*dto.BirthdayList, error) {
	if days <= 0 {
		days = s.classifier.UpcomingDays
	}
	today := s.Today()
	views, _, err := s.annotate(ctx, today, lang, includeHidden)
	if err != nil {
		return nil, err
	}
	filtered := make([]dto.BirthdayView, 0, len(views))
	for _, v := range views {
		if v.DaysUntil <= days {
			filtered = append(filtered, v)
		}
	}
	return &dto.BirthdayList{Date: today, Language: s.lang(lang), Items: filtered}, nil
}

// Dashboard splits the roster into today's birthdays and those in the upcoming window.
func (s *BirthdayService) Dashboard(ctx context.Context, lang string, includeHidden bool) (*dto.BirthdayDashboard, bool, error) {
	today := s.Today()
	roster, hit, err := s.roster(ctx)
	if err != nil {
		return nil, false, err
	}
	roster = visible(roster, includeHidden)
	proximities, err := s.classify(roster, today)
	if err != nil {
		return nil, false, err
	}

	index := indexRoster(roster)
	lang = s.lang(lang)
	todays := birthday.TodayOnly(proximities)
	upcoming := birthday.Within(proximities, s.classifier.UpcomingDays)
	s.metrics.SetBirthdaysToday(len(todays))

	return &dto.BirthdayDashboard{
		Date:         today,
		WindowDays:   s.classifier.UpcomingDays,
		Today:        s.views(todays, index, lang),
		Upcoming:     s.views(upcoming, index, lang),
		TotalTracked: len(roster),
	}, hit, nil
}

// Roster returns active employees, from cache when possible.
func (s *BirthdayService) Roster(ctx context.Context) ([]RosterEntry, error) {
	roster, _, err := s.roster(ctx)
	return roster, err
}

func (s *BirthdayService) roster(ctx context.Context) ([]RosterEntry, bool, error) {
	var cached []RosterEntry
	if s.cache.Get(ctx, RosterCacheKey, &cached) {
		return cached, true, nil
	}
	employees, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, false, appErrors.Internal(err, "failed to load employees")
	}
	roster := make([]RosterEntry, 0, len(employees))
	for _, e := range employees {
		entry := RosterEntry{
			ID:         e.ID,
			FullName:   e.FullName(),
			FirstName:  e.FirstName,
			LastName:   e.LastName,
			MiddleName: e.MiddleName,
			Email:      e.Email,
			PhotoPath:  e.PhotoPath,
			BirthDate:  e.BirthDate,
			Public:     e.ShowBirthdayPublic,
		}
		if e.DepartmentName != nil {
			entry.Department = *e.DepartmentName
		}
		if e.PositionName != nil {
			entry.Position = *e.PositionName
		}
		roster = append(roster, entry)
	}
	s.cache.Set(ctx, RosterCacheKey, roster, s.cacheTTL)
	return roster, false, nil
}

// InvalidateRoster drops the cached roster.
func (s *BirthdayService) InvalidateRoster(ctx context.Context) {
	s.cache.Invalidate(ctx, RosterCacheKey)
}

func (s *BirthdayService) annotate(ctx context.Context, today birthday.Date, lang string, includeHidden bool) ([]dto.BirthdayView, bool, error) {
	roster, hit, err := s.roster(ctx)
	if err != nil {
		return nil, false, err
	}
	roster = visible(roster, includeHidden)
	proximities, err := s.classify(roster, today)
	if err != nil {
		return nil, false, err
	}
	return s.views(proximities, indexRoster(roster), s.lang(lang)), hit, nil
}

func (s *BirthdayService) classify(roster []RosterEntry, today birthday.Date) ([]birthday.Proximity, error) {
	records := make([]birthday.Record, len(roster))
	for i, entry := range roster {
		records[i] = birthday.Record{ID: entry.ID, BirthDate: entry.BirthDate}
	}
	proximities, err := s.classifier.ClassifyAndSort(records, today)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidDate.Code, appErrors.ErrInvalidDate.Status, err.Error())
	}
	return proximities, nil
}

func (s *BirthdayService) views(list []birthday.Proximity, index map[string]RosterEntry, lang string) []dto.BirthdayView {
	out := make([]dto.BirthdayView, 0, len(list))
	for _, p := range list {
		entry := index[p.ID]
		view := dto.BirthdayView{
			EmployeeID:     p.ID,
			FullName:       entry.FullName,
			Department:     entry.Department,
			Position:       entry.Position,
			BirthDate:      p.BirthDate,
			NextOccurrence: p.NextOccurrence,
			DaysUntil:      p.DaysUntil,
			IsToday:        p.IsToday,
			Category:       p.Category,
			CategoryLabel:  s.translator.Category(lang, p.Category),
			Badge:          s.translator.Badge(lang, p),
		}
		if s.files != nil {
			view.PhotoURL = s.files.URL(BucketPhotos, entry.PhotoPath)
		}
		out = append(out, view)
	}
	return out
}

func (s *BirthdayService) lang(lang string) string {
	return s.translator.Resolve(lang, "")
}

func visible(roster []RosterEntry, includeHidden bool) []RosterEntry {
	if includeHidden {
		return roster
	}
	out := make([]RosterEntry, 0, len(roster))
	for _, entry := range roster {
		if entry.Public {
			out = append(out, entry)
		}
	}
	return out
}

func indexRoster(roster []RosterEntry) map[string]RosterEntry {
	index := make(map[string]RosterEntry, len(roster))
	for _, entry := range roster {
		index[entry.ID] = entry
	}
	return index
}
