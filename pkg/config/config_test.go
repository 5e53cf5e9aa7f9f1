package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	cfg := fromViper(v)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 7, cfg.Birthdays.SoonDays)
	assert.Equal(t, 30, cfg.Birthdays.UpcomingDays)
	assert.Equal(t, "09:00", cfg.SMTP.SendTime)
	assert.Equal(t, []string{"image/jpeg", "image/png"}, cfg.Storage.AllowedMIMEs)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiration)
	assert.Equal(t, time.Local, cfg.Birthdays.Location())
}

func TestOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("BIRTHDAYS_UPCOMING_DAYS", 14)
	v.Set("BIRTHDAYS_TIMEZONE", "UTC")
	v.Set("GREETINGS_TICK_INTERVAL", "not-a-duration")
	v.Set("ALLOWED_ORIGINS", " http://a.test , ,http://b.test")
	v.Set("SMTP_TLS_MODE", "tls")
	cfg := fromViper(v)

	assert.Equal(t, 14, cfg.Birthdays.UpcomingDays)
	assert.Equal(t, time.UTC, cfg.Birthdays.Location())
	assert.Equal(t, time.Minute, cfg.Greetings.TickInterval)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "tls", cfg.SMTP.TLSMode)
}
