package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Birthdays BirthdaysConfig
	Greetings GreetingsConfig
	SMTP      SMTPConfig
	Storage   StorageConfig
	Metrics   MetricsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Issuer            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// BirthdaysConfig tunes proximity buckets and list caching.
type BirthdaysConfig struct {
	SoonDays      int
	UpcomingDays  int
	CacheTTL      time.Duration
	DefaultLocale string
	Timezone      string
	CalendarFeed  bool
}

// GreetingsConfig drives the daily card dispatch.
type GreetingsConfig struct {
	SchedulerEnabled bool
	TickInterval     time.Duration
	RenderWorkers    int
	DeliveryWorkers  int
	RetryDelay       time.Duration
}

// SMTPConfig seeds mailing settings until HR saves their own.
type SMTPConfig struct {
	Host          string
	Port          int
	User          string
	Password      string
	FromEmail     string
	SendTime      string
	RetryAttempts int
	TLSMode       string
	Timeout       time.Duration
}

// StorageConfig controls photo and rendered card storage.
type StorageConfig struct {
	PhotosDir        string
	CardsDir         string
	BackgroundsDir   string
	SignedURLSecret  string
	SignedURLTTL     time.Duration
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("ENABLE_REDIS"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Issuer:            v.GetString("JWT_ISSUER"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Birthdays = BirthdaysConfig{
		SoonDays:      v.GetInt("BIRTHDAYS_SOON_DAYS"),
		UpcomingDays:  v.GetInt("BIRTHDAYS_UPCOMING_DAYS"),
		CacheTTL:      parseDuration(v.GetString("BIRTHDAYS_CACHE_TTL"), 5*time.Minute),
		DefaultLocale: v.GetString("BIRTHDAYS_LOCALE"),
		Timezone:      v.GetString("BIRTHDAYS_TIMEZONE"),
		CalendarFeed:  v.GetBool("ENABLE_CALENDAR_FEED"),
	}

	cfg.Greetings = GreetingsConfig{
		SchedulerEnabled: v.GetBool("ENABLE_GREETINGS_SCHEDULER"),
		TickInterval:     parseDuration(v.GetString("GREETINGS_TICK_INTERVAL"), time.Minute),
		RenderWorkers:    v.GetInt("GREETINGS_RENDER_WORKERS"),
		DeliveryWorkers:  v.GetInt("GREETINGS_DELIVERY_WORKERS"),
		RetryDelay:       parseDuration(v.GetString("GREETINGS_RETRY_DELAY"), 30*time.Second),
	}

	cfg.SMTP = SMTPConfig{
		Host:          v.GetString("SMTP_HOST"),
		Port:          v.GetInt("SMTP_PORT"),
		User:          v.GetString("SMTP_USER"),
		Password:      v.GetString("SMTP_PASSWORD"),
		FromEmail:     v.GetString("SMTP_FROM"),
		SendTime:      v.GetString("GREETINGS_SEND_TIME"),
		RetryAttempts: v.GetInt("GREETINGS_RETRY_ATTEMPTS"),
		TLSMode:       v.GetString("SMTP_TLS_MODE"),
		Timeout:       parseDuration(v.GetString("SMTP_TIMEOUT"), 15*time.Second),
	}

	maxUpload := v.GetInt64("STORAGE_MAX_FILE_SIZE")
	if maxUpload <= 0 {
		maxUpload = 5 * 1024 * 1024
	}
	cfg.Storage = StorageConfig{
		PhotosDir:        v.GetString("STORAGE_PHOTOS_DIR"),
		CardsDir:         v.GetString("STORAGE_CARDS_DIR"),
		BackgroundsDir:   v.GetString("STORAGE_BACKGROUNDS_DIR"),
		SignedURLSecret:  v.GetString("STORAGE_SIGNED_URL_SECRET"),
		SignedURLTTL:     parseDuration(v.GetString("STORAGE_SIGNED_URL_TTL"), 24*time.Hour),
		MaxFileSizeBytes: maxUpload,
		AllowedMIMEs:     splitAndTrim(v.GetString("STORAGE_ALLOWED_MIME_TYPES")),
	}

	cfg.Metrics = MetricsConfig{Enabled: v.GetBool("ENABLE_METRICS")}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "birthday_greetings")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("ENABLE_REDIS", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "birthday-greetings-api")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("BIRTHDAYS_SOON_DAYS", 7)
	v.SetDefault("BIRTHDAYS_UPCOMING_DAYS", 30)
	v.SetDefault("BIRTHDAYS_CACHE_TTL", "5m")
	v.SetDefault("BIRTHDAYS_LOCALE", "ru")
	v.SetDefault("BIRTHDAYS_TIMEZONE", "Local")
	v.SetDefault("ENABLE_CALENDAR_FEED", true)

	v.SetDefault("ENABLE_GREETINGS_SCHEDULER", false)
	v.SetDefault("GREETINGS_TICK_INTERVAL", "1m")
	v.SetDefault("GREETINGS_RENDER_WORKERS", 4)
	v.SetDefault("GREETINGS_DELIVERY_WORKERS", 2)
	v.SetDefault("GREETINGS_RETRY_DELAY", "30s")
	v.SetDefault("GREETINGS_SEND_TIME", "09:00")
	v.SetDefault("GREETINGS_RETRY_ATTEMPTS", 3)

	v.SetDefault("SMTP_HOST", "localhost")
	v.SetDefault("SMTP_PORT", 25)
	v.SetDefault("SMTP_USER", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "greetings@example.com")
	v.SetDefault("SMTP_TIMEOUT", "15s")
	v.SetDefault("SMTP_TLS_MODE", "")

	v.SetDefault("STORAGE_PHOTOS_DIR", "./storage/photos")
	v.SetDefault("STORAGE_CARDS_DIR", "./storage/cards")
	v.SetDefault("STORAGE_BACKGROUNDS_DIR", "./storage/backgrounds")
	v.SetDefault("STORAGE_SIGNED_URL_SECRET", "dev_storage_secret")
	v.SetDefault("STORAGE_SIGNED_URL_TTL", "24h")
	v.SetDefault("STORAGE_MAX_FILE_SIZE", 5*1024*1024)
	v.SetDefault("STORAGE_ALLOWED_MIME_TYPES", "image/jpeg,image/png")

	v.SetDefault("ENABLE_METRICS", true)
}

// Location resolves the configured birthday timezone, falling back to local time.
func (c BirthdaysConfig) Location() *time.Location {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
