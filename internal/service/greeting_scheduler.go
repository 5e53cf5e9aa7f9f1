package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/birthday-greetings-api/internal/birthday"
	"github.com/noah-isme/birthday-greetings-api/internal/models"
	appErrors "github.com/noah-isme/birthday-greetings-api/pkg/errors"
	"github.com/noah-isme/birthday-greetings-api/pkg/validation"
)

type greetingRunner interface {
	Run(ctx context.Context, trigger string) (*models.GreetingRunResult, error)
}

// GreetingScheduler starts one greeting run per day once the local time passes
// the configured send time.
type GreetingScheduler struct {
	runner   greetingRunner
	settings settingsSource
	clock    birthday.Clock
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	lastRun birthday.Date
}

// NewGreetingScheduler constructs a scheduler ticking every interval.
func NewGreetingScheduler(runner greetingRunner, settings settingsSource, clock birthday.Clock, interval time.Duration, logger *zap.Logger) *GreetingScheduler {
	if clock == nil {
		clock = birthday.SystemClock{}
	}
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GreetingScheduler{runner: runner, settings: settings, clock: clock, interval: interval, logger: logger}
}

// Start boots the ticking goroutine; it stops when ctx is cancelled.
func (s *GreetingScheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		s.Tick(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Tick(ctx)
			}
		}
	}()
	s.logger.Info("greeting scheduler started", zap.Duration("interval", s.interval))
}

// Tick runs today's greetings if they are due and reports whether a run happened.
func (s *GreetingScheduler) Tick(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	today := birthday.DateOf(now)
	if s.lastRun == today {
		return false
	}

	settings, err := s.settings.Effective(ctx)
	if err != nil {
		s.logger.Warn("scheduler could not load mailing settings", zap.Error(err))
		return false
	}
	sendAt, err := validation.ParseClock(settings.SendTime)
	if err != nil {
		s.logger.Warn("invalid send time, using 09:00", zap.String("send_time", settings.SendTime))
		sendAt = 9 * time.Hour
	}
	sinceMidnight := time.Duration(now.Hour())*time.Hour + time.Duration(now.Minute())*time.Minute + time.Duration(now.Second())*time.Second
	if sinceMidnight < sendAt {
		return false
	}

	result, err := s.runner.Run(ctx, TriggerScheduler)
	if err != nil {
		if errors.Is(err, ErrRunInProgress) {
			return false
		}
		if appErr := appErrors.FromError(err); appErr != nil {
			s.logger.Error("scheduled greeting run failed", zap.String("code", appErr.Code), zap.Error(err))
		}
		return false
	}
	s.lastRun = today
	s.logger.Info("scheduled greeting run complete", zap.String("date", result.Date), zap.Int("queued", result.Queued))
	return true
}
