package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/birthday-greetings-api/api/swagger"
	"github.com/noah-isme/birthday-greetings-api/internal/birthday"
	"github.com/noah-isme/birthday-greetings-api/internal/handler"
	"github.com/noah-isme/birthday-greetings-api/internal/locale"
	"github.com/noah-isme/birthday-greetings-api/internal/models"
	"github.com/noah-isme/birthday-greetings-api/internal/repository"
	"github.com/noah-isme/birthday-greetings-api/internal/service"
	"github.com/noah-isme/birthday-greetings-api/pkg/cache"
	"github.com/noah-isme/birthday-greetings-api/pkg/config"
	"github.com/noah-isme/birthday-greetings-api/pkg/database"
	"github.com/noah-isme/birthday-greetings-api/pkg/export"
	"github.com/noah-isme/birthday-greetings-api/pkg/jobs"
	"github.com/noah-isme/birthday-greetings-api/pkg/logger"
	"github.com/noah-isme/birthday-greetings-api/pkg/mailer"
	"github.com/noah-isme/birthday-greetings-api/pkg/storage"
	"github.com/noah-isme/birthday-greetings-api/pkg/validation"
)

const (
	shutdownTimeout   = 10 * time.Second
	greetingQueueSize = 64
)

// @title Birthday Greetings API
// @version 1.0.0
// @description Colleague birthdays, greeting cards and scheduled email delivery
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db, logr); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	app, err := buildApp(cfg, db, redisClient, logr)
	if err != nil {
		return err
	}

	app.queue.Start(ctx)
	defer app.queue.Stop()
	if cfg.Greetings.SchedulerEnabled {
		app.scheduler.Start(ctx)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	router := newRouter(cfg, app, logr)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type app struct {
	auth      *service.AuthService
	metrics   *service.MetricsService
	audit     *repository.UserRepository
	queue     *jobs.Queue
	scheduler *service.GreetingScheduler
	handlers  handlers
}

type handlers struct {
	auth        *handler.AuthHandler
	employees   *handler.EmployeeHandler
	birthdays   *handler.BirthdayHandler
	dashboard   *handler.DashboardHandler
	departments *handler.CatalogHandler[models.Department]
	positions   *handler.CatalogHandler[models.Position]
	templates   *handler.CardTemplateHandler
	mailing     *handler.MailingSettingsHandler
	greetings   *handler.GreetingHandler
	files       *handler.FileHandler
	metrics     *handler.MetricsHandler
}

func buildApp(cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, logr *zap.Logger) (*app, error) {
	location := time.Local
	if cfg.Birthdays.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Birthdays.Timezone)
		if err != nil {
			return nil, fmt.Errorf("load timezone %q: %w", cfg.Birthdays.Timezone, err)
		}
		location = loc
	}
	clock := birthday.SystemClock{Location: location}

	translator, err := locale.New(cfg.Birthdays.DefaultLocale)
	if err != nil {
		return nil, fmt.Errorf("load translations: %w", err)
	}
	validate := validation.New()
	metrics := service.NewMetricsService()

	cacheRepo := repository.NewCacheRepository(redisClient, "birthday-greetings")
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Birthdays.CacheTTL, logr, redisClient != nil)

	buckets := map[string]string{
		service.BucketPhotos:      cfg.Storage.PhotosDir,
		service.BucketCards:       cfg.Storage.CardsDir,
		service.BucketBackgrounds: cfg.Storage.BackgroundsDir,
	}
	stores := make(map[string]*storage.LocalStorage, len(buckets))
	for name, dir := range buckets {
		store, err := storage.NewLocalStorage(dir)
		if err != nil {
			return nil, fmt.Errorf("init %s storage: %w", name, err)
		}
		stores[name] = store
	}
	signer := storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL)
	files := service.NewFileService(stores, signer, cfg.APIPrefix+"/files", logr)

	users := repository.NewUserRepository(db)
	employees := repository.NewEmployeeRepository(db)
	departments := repository.NewDepartmentRepository(db)
	positions := repository.NewPositionRepository(db)
	templates := repository.NewCardTemplateRepository(db)
	greetingLogs := repository.NewGreetingLogRepository(db)
	mailingSettings := repository.NewMailingSettingsRepository(db)

	authSvc := service.NewAuthService(users, employees, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	employeeSvc := service.NewEmployeeService(employees, users, files, cacheSvc, service.PhotoPolicy{
		MaxBytes:     cfg.Storage.MaxFileSizeBytes,
		AllowedMIMEs: cfg.Storage.AllowedMIMEs,
	}, validate, logr)
	birthdaySvc := service.NewBirthdayService(employees, cacheSvc, files, translator, metrics, service.BirthdayServiceConfig{
		Classifier: birthday.Classifier{SoonDays: cfg.Birthdays.SoonDays, UpcomingDays: cfg.Birthdays.UpcomingDays},
		Clock:    clock,
		CacheTTL: cfg.Birthdays.CacheTTL,
	}, logr)
	departmentSvc := service.NewDepartmentService(departments, cacheSvc, validate, logr)
	positionSvc := service.NewPositionService(positions, cacheSvc, validate, logr)
	templateSvc := service.NewCardTemplateService(templates, export.NewCardRenderer(), files, users, cfg.Storage.MaxFileSizeBytes, validate, logr)
	mailingSvc := service.NewMailingSettingsService(mailingSettings, cfg.SMTP, users, validate, logr)
	calendarSvc := service.NewCalendarService(birthdaySvc, translator, clock, logr)
	exportSvc := service.NewExportService(birthdaySvc, greetingLogs, translator, logr, nil, nil)

	greetingSvc := service.NewGreetingService(employees, greetingLogs, templateSvc, files, mailingSvc, mailer.NewSMTPSender(), translator, clock, metrics, users, service.GreetingConfig{
		RenderWorkers: cfg.Greetings.RenderWorkers,
		SMTPTimeout:   cfg.SMTP.Timeout,
		SMTPTLSMode:   mailer.ParseTLSMode(cfg.SMTP.TLSMode),
		Language:      translator.Default(),
	}, logr)
	queue := jobs.NewQueue("greetings", greetingSvc.Deliver, jobs.QueueConfig{
		Workers:     cfg.Greetings.DeliveryWorkers,
		BufferSize:  greetingQueueSize,
		MaxAttempts: cfg.SMTP.RetryAttempts + 1,
		RetryDelay:  cfg.Greetings.RetryDelay,
		OnExhausted: greetingSvc.DeliveryExhausted,
		Logger:      logr,
	})
	greetingSvc.SetQueue(queue)
	scheduler := service.NewGreetingScheduler(greetingSvc, mailingSvc, clock, cfg.Greetings.TickInterval, logr)

	readiness := map[string]handler.ReadinessCheck{"postgres": db.PingContext}
	if redisClient != nil {
		readiness["redis"] = cacheRepo.Ping
	}

	return &app{
		auth:      authSvc,
		metrics:   metrics,
		audit:     users,
		queue:     queue,
		scheduler: scheduler,
		handlers: handlers{
			auth:        handler.NewAuthHandler(authSvc),
			employees:   handler.NewEmployeeHandler(employeeSvc),
			birthdays:   handler.NewBirthdayHandler(birthdaySvc, calendarSvc, exportSvc, translator),
			dashboard:   handler.NewDashboardHandler(birthdaySvc, translator),
			departments: handler.NewDepartmentHandler(departmentSvc),
			positions:   handler.NewPositionHandler(positionSvc),
			templates:   handler.NewCardTemplateHandler(templateSvc),
			mailing:     handler.NewMailingSettingsHandler(mailingSvc),
			greetings:   handler.NewGreetingHandler(greetingSvc, exportSvc, translator),
			files:       handler.NewFileHandler(files),
			metrics:     handler.NewMetricsHandler(metrics, readiness, logr),
		},
	}, nil
}
