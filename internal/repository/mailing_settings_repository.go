package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/birthday-greetings-api/internal/models"
)

const mailingSettingsID = 1

// MailingSettingsRepository reads and writes the single mailing settings row.
type MailingSettingsRepository struct {
	db *sqlx.DB
}

// NewMailingSettingsRepository creates a new instance of MailingSettingsRepository.
func NewMailingSettingsRepository(db *sqlx.DB) *MailingSettingsRepository {
	return &MailingSettingsRepository{db: db}
}

// Get returns the stored settings or sql.ErrNoRows when HR never saved any.
func (r *MailingSettingsRepository) Get(ctx context.Context) (*models.MailingSettings, error) {
	const query = `SELECT id, send_time, smtp_host, smtp_port, smtp_user, smtp_pass, from_email, retry_attempts, updated_at FROM mailing_settings WHERE id = $1`
	var settings models.MailingSettings
	if err := r.db.GetContext(ctx, &settings, query, mailingSettingsID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get mailing settings: %w", err)
	}
	return &settings, nil
}

// Upsert stores the settings row.
func (r *MailingSettingsRepository) Upsert(ctx context.Context, settings *models.MailingSettings) error {
	settings.ID = mailingSettingsID
	settings.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO mailing_settings (id, send_time, smtp_host, smtp_port, smtp_user, smtp_pass, from_email, retry_attempts, updated_at)
VALUES (:id, :send_time, :smtp_host, :smtp_port, :smtp_user, :smtp_pass, :from_email, :retry_attempts, :updated_at)
ON CONFLICT (id)
DO UPDATE SET send_time = EXCLUDED.send_time, smtp_host = EXCLUDED.smtp_host, smtp_port = EXCLUDED.smtp_port,
              smtp_user = EXCLUDED.smtp_user, smtp_pass = EXCLUDED.smtp_pass, from_email = EXCLUDED.from_email,
              retry_attempts = EXCLUDED.retry_attempts, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, settings); err != nil {
		return fmt.Errorf("upsert mailing settings: %w", err)
	}
	return nil
}
