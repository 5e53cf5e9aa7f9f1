package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/birthday-greetings-api/internal/models"
	appErrors "github.com/noah-isme/birthday-greetings-api/pkg/errors"
	"github.com/noah-isme/birthday-greetings-api/pkg/export"
	"github.com/noah-isme/birthday-greetings-api/pkg/validation"
)

const maxRemoteBackgroundBytes = 10 << 20

type cardTemplateRepository interface {
	List(ctx context.Context) ([]models.CardTemplate, error)
	FindByID(ctx context.Context, id string) (*models.CardTemplate, error)
	Create(ctx context.Context, tpl *models.CardTemplate) error
	Update(ctx context.Context, tpl *models.CardTemplate) error
	Delete(ctx context.Context, id string) error
}

type cardRenderer interface {
	Render(card export.Card) ([]byte, error)
}

type backgroundStore interface {
	SaveStream(bucket, name string, r io.Reader, maxBytes int64) (string, error)
	Read(bucket, rel string) ([]byte, error)
	Remove(bucket, rel string)
	URL(bucket string, rel *string) string
}

// CardTemplateService manages card templates and renders cards from them.
type CardTemplateService struct {
	repo      cardTemplateRepository
	renderer  cardRenderer
	files     backgroundStore
	audit     auditWriter
	http      *http.Client
	maxUpload int64
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCardTemplateService constructs a CardTemplateService.
func NewCardTemplateService(repo cardTemplateRepository, renderer cardRenderer, files backgroundStore, audit auditWriter, maxUpload int64, validate *validator.Validate, logger *zap.Logger) *CardTemplateService {
	if renderer == nil {
		renderer = export.NewCardRenderer()
	}
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxUpload <= 0 {
		maxUpload = 5 << 20
	}
	return &CardTemplateService{
		repo:      repo,
		renderer:  renderer,
		files:     files,
		audit:     audit,
		http:      &http.Client{Timeout: 10 * time.Second},
		maxUpload: maxUpload,
		validator: validate,
		logger:    logger,
	}
}

// List returns all templates.
func (s *CardTemplateService) List(ctx context.Context) ([]models.CardTemplate, error) {
	templates, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list card templates")
	}
	if templates == nil {
		templates = []models.CardTemplate{}
	}
	for i := range templates {
		s.decorate(&templates[i])
	}
	return templates, nil
}

// Get returns a template by ID.
func (s *CardTemplateService) Get(ctx context.Context, id string) (*models.CardTemplate, error) {
	tpl, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "card template not found")
		}
		return nil, appErrors.Internal(err, "failed to load card template")
	}
	s.decorate(tpl)
	return tpl, nil
}

// Create validates and stores a new template.
func (s *CardTemplateService) Create(ctx context.Context, actor models.AuthContext, req models.CardTemplateRequest) (*models.CardTemplate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, validation.Message(err))
	}
	if err := checkTextTemplate(req.TextTemplate); err != nil {
		return nil, err
	}
	tpl := &models.CardTemplate{
		Name:               strings.TrimSpace(req.Name),
		BackgroundImageURL: strings.TrimSpace(req.BackgroundImageURL),
		TextTemplate:       req.TextTemplate,
		FontSize:           req.FontSize,
		FontColor:          strings.ToUpper(req.FontColor),
		TextX:              req.TextX,
		TextY:              req.TextY,
		DepartmentID:       req.DepartmentID,
		PositionID:         req.PositionID,
	}
	if err := s.repo.Create(ctx, tpl); err != nil {
		return nil, appErrors.Internal(err, "failed to create card template")
	}
	s.record(ctx, actor, tpl.ID, "create")
	s.decorate(tpl)
	return tpl, nil
}

// Update patches a template.
func (s *CardTemplateService) Update(ctx context.Context, actor models.AuthContext, id string, req models.UpdateCardTemplateRequest) (*models.CardTemplate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, validation.Message(err))
	}
	tpl, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		tpl.Name = strings.TrimSpace(*req.Name)
	}
	if req.BackgroundImageURL != nil {
		tpl.BackgroundImageURL = strings.TrimSpace(*req.BackgroundImageURL)
	}
	if req.TextTemplate != nil {
		if err := checkTextTemplate(*req.TextTemplate); err != nil {
			return nil, err
		}
		tpl.TextTemplate = *req.TextTemplate
	}
	if req.FontSize != nil {
		tpl.FontSize = *req.FontSize
	}
	if req.FontColor != nil {
		tpl.FontColor = strings.ToUpper(*req.FontColor)
	}
	if req.TextX != nil {
		tpl.TextX = *req.TextX
	}
	if req.TextY != nil {
		tpl.TextY = *req.TextY
	}
	if req.DepartmentID != nil {
		tpl.DepartmentID = req.DepartmentID
	}
	if req.PositionID != nil {
		tpl.PositionID = req.PositionID
	}
	if req.ClearDepartment {
		tpl.DepartmentID = nil
	}
	if req.ClearPosition {
		tpl.PositionID = nil
	}
	if err := s.repo.Update(ctx, tpl); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "card template not found")
		}
		return nil, appErrors.Internal(err, "failed to update card template")
	}
	s.record(ctx, actor, tpl.ID, "update")
	s.decorate(tpl)
	return tpl, nil
}

// Delete removes a template and its uploaded background.
func (s *CardTemplateService) Delete(ctx context.Context, actor models.AuthContext, id string) error {
	tpl, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "card template not found")
		}
		return appErrors.Internal(err, "failed to delete card template")
	}
	if key := storedBackgroundKey(tpl.BackgroundImageURL); key != "" && s.files != nil {
		s.files.Remove(BucketBackgrounds, key)
	}
	s.record(ctx, actor, id, "delete")
	return nil
}

// UploadBackground stores an image and points the template's background at it.
func (s *CardTemplateService) UploadBackground(ctx context.Context, actor models.AuthContext, id, filename string, r io.Reader) (*models.CardTemplate, error) {
	tpl, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, appErrors.Internal(err, "failed to read upload")
	}
	head = head[:n]
	mime := http.DetectContentType(head)
	if mime != "image/jpeg" && mime != "image/png" {
		return nil, appErrors.Clone(appErrors.ErrUnsupportedMedia, "background must be a JPEG or PNG image")
	}
	name := tpl.ID + "/" + uuid.NewString() + photoExtension(filename, mime)
	rel, err := s.files.SaveStream(BucketBackgrounds, name, io.MultiReader(bytes.NewReader(head), r), s.maxUpload)
	if err != nil {
		return nil, err
	}
	previous := storedBackgroundKey(tpl.BackgroundImageURL)
	tpl.BackgroundImageURL = rel
	if err := s.repo.Update(ctx, tpl); err != nil {
		s.files.Remove(BucketBackgrounds, rel)
		return nil, appErrors.Internal(err, "failed to update card template")
	}
	if previous != "" {
		s.files.Remove(BucketBackgrounds, previous)
	}
	s.record(ctx, actor, tpl.ID, "background")
	s.decorate(tpl)
	return tpl, nil
}

// Preview renders the template for a sample name.
func (s *CardTemplateService) Preview(ctx context.Context, id, name string) ([]byte, error) {
	tpl, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		name = "Ivan Ivanov"
	}
	return s.Render(ctx, tpl, name)
}

// Render draws a card for name using tpl. A background that cannot be loaded is skipped.
func (s *CardTemplateService) Render(ctx context.Context, tpl *models.CardTemplate, name string) ([]byte, error) {
	card := export.Card{
		Background: s.background(ctx, tpl.BackgroundImageURL),
		Text:       strings.ReplaceAll(tpl.TextTemplate, models.NamePlaceholder, name),
		FontSize:   tpl.FontSize,
		FontColor:  tpl.FontColor,
		TextX:      tpl.TextX,
		TextY:      tpl.TextY,
	}
	pdf, err := s.renderer.Render(card)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render card")
	}
	return pdf, nil
}

// SelectTemplate chooses a department+position template, then department only,
// then position only, then one with neither. Ties go to the oldest template.
// It returns nil when nothing matches.
func SelectTemplate(templates []models.CardTemplate, departmentID, positionID *string) *models.CardTemplate {
	candidates := make([]models.CardTemplate, 0, len(templates))
	for _, tpl := range templates {
		if tpl.Matches(departmentID, positionID) {
			candidates = append(candidates, tpl)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		si, sj := specificity(candidates[i]), specificity(candidates[j])
		if si != sj {
			return si > sj
		}
		if !candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
			return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
		}
		return candidates[i].ID < candidates[j].ID
	})
	chosen := candidates[0]
	return &chosen
}

func specificity(tpl models.CardTemplate) int {
	score := 0
	if tpl.DepartmentID != nil {
		score += 2
	}
	if tpl.PositionID != nil {
		score++
	}
	return score
}

func (s *CardTemplateService) background(ctx context.Context, ref string) []byte {
	if ref == "" {
		return nil
	}
	if key := storedBackgroundKey(ref); key != "" {
		if s.files == nil {
			return nil
		}
		data, err := s.files.Read(BucketBackgrounds, key)
		if err != nil {
			s.logger.Warn("card background unavailable", zap.String("key", key), zap.Error(err))
			return nil
		}
		return data
	}
	data, err := s.fetch(ctx, ref)
	if err != nil {
		s.logger.Warn("card background download failed", zap.String("url", ref), zap.Error(err))
		return nil
	}
	return data
}

func (s *CardTemplateService) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteBackgroundBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxRemoteBackgroundBytes {
		return nil, fmt.Errorf("background exceeds %d bytes", maxRemoteBackgroundBytes)
	}
	return data, nil
}

func (s *CardTemplateService) decorate(tpl *models.CardTemplate) {
	key := storedBackgroundKey(tpl.BackgroundImageURL)
	switch {
	case key != "" && s.files != nil:
		tpl.BackgroundURL = s.files.URL(BucketBackgrounds, &key)
	case key == "":
		tpl.BackgroundURL = tpl.BackgroundImageURL
	}
}

func (s *CardTemplateService) record(ctx context.Context, actor models.AuthContext, id, op string) {
	if s.audit == nil {
		return
	}
	entry := &models.AuditLog{Action: models.AuditActionTemplateChange, Resource: "card_template", ResourceID: &id}
	if actor.UserID != "" {
		userID := actor.UserID
		entry.UserID = &userID
	}
	entry.NewValues, _ = json.Marshal(map[string]string{"operation": op})
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record template audit log", zap.Error(err))
	}
}

func checkTextTemplate(text string) error {
	if !strings.Contains(text, models.NamePlaceholder) {
		return appErrors.Clone(appErrors.ErrValidation, "text_template must contain "+models.NamePlaceholder)
	}
	return nil
}

// storedBackgroundKey returns the bucket key for uploaded backgrounds, or "" for remote URLs.
func storedBackgroundKey(ref string) string {
	if ref == "" {
		return ""
	}
	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return ""
	}
	return ref
}
