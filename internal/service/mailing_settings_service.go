package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/birthday-greetings-api/internal/models"
	"github.com/noah-isme/birthday-greetings-api/pkg/config"
	appErrors "github.com/noah-isme/birthday-greetings-api/pkg/errors"
	"github.com/noah-isme/birthday-greetings-api/pkg/validation"
)

type mailingSettingsRepository interface {
	Get(ctx context.Context) (*models.MailingSettings, error)
	Upsert(ctx context.Context, settings *models.MailingSettings) error
}

// MailingSettingsService exposes the HR-managed SMTP and schedule settings.
// Until HR saves settings, values come from the SMTP_* environment defaults.
type MailingSettingsService struct {
	repo      mailingSettingsRepository
	defaults  models.MailingSettings
	audit     auditWriter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewMailingSettingsService constructs a MailingSettingsService.
func NewMailingSettingsService(repo mailingSettingsRepository, defaults config.SMTPConfig, audit auditWriter, validate *validator.Validate, logger *zap.Logger) *MailingSettingsService {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	base := models.MailingSettings{
		SendTime:      defaults.SendTime,
		SMTPHost:      defaults.Host,
		SMTPPort:      defaults.Port,
		SMTPUser:      defaults.User,
		SMTPPass:      defaults.Password,
		FromEmail:     defaults.FromEmail,
		RetryAttempts: defaults.RetryAttempts,
	}
	if _, err := validation.ParseClock(base.SendTime); err != nil {
		base.SendTime = "09:00"
	}
	if base.SMTPPort == 0 {
		base.SMTPPort = 587
	}
	if base.RetryAttempts < 0 {
		base.RetryAttempts = 0
	}
	return &MailingSettingsService{repo: repo, defaults: base, audit: audit, validator: validate, logger: logger}
}

// Get returns the settings with the password masked.
func (s *MailingSettingsService) Get(ctx context.Context) (*models.MailingSettings, error) {
	settings, err := s.Effective(ctx)
	if err != nil {
		return nil, err
	}
	masked := settings.Masked()
	return &masked, nil
}

// Effective returns the settings used for delivery, password included.
func (s *MailingSettingsService) Effective(ctx context.Context) (*models.MailingSettings, error) {
	stored, err := s.repo.Get(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			settings := s.defaults
			return &settings, nil
		}
		return nil, appErrors.Internal(err, "failed to load mailing settings")
	}
	return stored, nil
}

// Update patches the settings. Sending the masked password back keeps the stored one.
func (s *MailingSettingsService) Update(ctx context.Context, actor models.AuthContext, req models.UpdateMailingSettingsRequest) (*models.MailingSettings, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, validation.Message(err))
	}
	settings, err := s.Effective(ctx)
	if err != nil {
		return nil, err
	}

	changed := make([]string, 0, 7)
	if req.SendTime != nil {
		settings.SendTime = *req.SendTime
		changed = append(changed, "send_time")
	}
	if req.SMTPHost != nil {
		settings.SMTPHost = strings.TrimSpace(*req.SMTPHost)
		changed = append(changed, "smtp_host")
	}
	if req.SMTPPort != nil {
		settings.SMTPPort = *req.SMTPPort
		changed = append(changed, "smtp_port")
	}
	if req.SMTPUser != nil {
		settings.SMTPUser = strings.TrimSpace(*req.SMTPUser)
		changed = append(changed, "smtp_user")
	}
	if req.SMTPPass != nil && *req.SMTPPass != models.MaskedPassword {
		settings.SMTPPass = *req.SMTPPass
		changed = append(changed, "smtp_pass")
	}
	if req.FromEmail != nil {
		settings.FromEmail = strings.TrimSpace(*req.FromEmail)
		changed = append(changed, "from_email")
	}
	if req.RetryAttempts != nil {
		settings.RetryAttempts = *req.RetryAttempts
		changed = append(changed, "retry_attempts")
	}

	if err := s.repo.Upsert(ctx, settings); err != nil {
		return nil, appErrors.Internal(err, "failed to save mailing settings")
	}

	if s.audit != nil {
		entry := &models.AuditLog{Action: models.AuditActionSettingsChange, Resource: "mailing_settings"}
		if actor.UserID != "" {
			userID := actor.UserID
			entry.UserID = &userID
		}
		entry.NewValues, _ = json.Marshal(map[string][]string{"fields": changed})
		if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
			s.logger.Warn("failed to record mailing settings audit log", zap.Error(err))
		}
	}

	masked := settings.Masked()
	return &masked, nil
}
