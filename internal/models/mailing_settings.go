package models

import "time"

// MaskedPassword replaces the stored SMTP password in responses.
const MaskedPassword = "********"

// MailingSettings is the single-row SMTP and schedule configuration managed by HR.
type MailingSettings struct {
	ID            int       `db:"id" json:"-"`
	SendTime      string    `db:"send_time" json:"send_time"`
	SMTPHost      string    `db:"smtp_host" json:"smtp_host"`
	SMTPPort      int       `db:"smtp_port" json:"smtp_port"`
	SMTPUser      string    `db:"smtp_user" json:"smtp_user"`
	SMTPPass      string    `db:"smtp_pass" json:"smtp_pass,omitempty"`
	FromEmail     string    `db:"from_email" json:"from_email"`
	RetryAttempts int       `db:"retry_attempts" json:"retry_attempts"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Masked returns a copy safe to send to clients.
func (s MailingSettings) Masked() MailingSettings {
	if s.SMTPPass != "" {
		s.SMTPPass = MaskedPassword
	}
	return s
}

// UpdateMailingSettingsRequest patches the mailing settings.
type UpdateMailingSettingsRequest struct {
	SendTime      *string `json:"send_time" validate:"omitempty,clock"`
	SMTPHost      *string `json:"smtp_host" validate:"omitempty,hostname_rfc1123|ip"`
	SMTPPort      *int    `json:"smtp_port" validate:"omitempty,min=1,max=65535"`
	SMTPUser      *string `json:"smtp_user" validate:"omitempty,max=255"`
	SMTPPass      *string `json:"smtp_pass" validate:"omitempty,max=255"`
	FromEmail     *string `json:"from_email" validate:"omitempty,email"`
	RetryAttempts *int    `json:"retry_attempts" validate:"omitempty,min=0,max=10"`
}
