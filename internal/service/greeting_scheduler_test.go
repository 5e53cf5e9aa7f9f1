package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/noah-isme/birthday-greetings-api/internal/models"
)

type manualClock struct {
	now time.Time
}

func (c *manualClock) Now() time.Time { return c.now }

type countingRunner struct {
	calls    int
	triggers []string
	err      error
}

func (r *countingRunner) Run(ctx context.Context, trigger string) (*models.GreetingRunResult, error) {
	r.calls++
	r.triggers = append(r.triggers, trigger)
	if r.err != nil {
		return nil, r.err
	}
	return &models.GreetingRunResult{Date: "2024-03-10"}, nil
}

func TestGreetingSchedulerRunsOnceAfterSendTime(t *testing.T) {
	clock := &manualClock{now: time.Date(2024, time.March, 10, 8, 59, 0, 0, time.UTC)}
	runner := &countingRunner{}
	scheduler := NewGreetingScheduler(runner, &fakeSettings{settings: models.MailingSettings{SendTime: "09:00"}}, clock, time.Minute, zap.NewNop())

	assert.False(t, scheduler.Tick(context.Background()))
	assert.Equal(t, 0, runner.calls)

	clock.now = time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC)
	assert.True(t, scheduler.Tick(context.Background()))
	clock.now = clock.now.Add(3 * time.Hour)
	assert.False(t, scheduler.Tick(context.Background()))
	assert.Equal(t, 1, runner.calls)
	assert.Equal(t, []string{TriggerScheduler}, runner.triggers)

	clock.now = time.Date(2024, time.March, 11, 9, 5, 0, 0, time.UTC)
	assert.True(t, scheduler.Tick(context.Background()))
	assert.Equal(t, 2, runner.calls)
}

func TestGreetingSchedulerRetriesAfterFailure(t *testing.T) {
	clock := &manualClock{now: time.Date(2024, time.March, 10, 10, 0, 0, 0, time.UTC)}
	runner := &countingRunner{err: errors.New("database unavailable")}
	scheduler := NewGreetingScheduler(runner, &fakeSettings{settings: models.MailingSettings{SendTime: "09:30"}}, clock, time.Minute, zap.NewNop())

	assert.False(t, scheduler.Tick(context.Background()))
	runner.err = nil
	assert.True(t, scheduler.Tick(context.Background()))
	assert.Equal(t, 2, runner.calls)
}

func TestGreetingSchedulerFallsBackOnInvalidSendTime(t *testing.T) {
	clock := &manualClock{now: time.Date(2024, time.March, 10, 8, 0, 0, 0, time.UTC)}
	runner := &countingRunner{}
	scheduler := NewGreetingScheduler(runner, &fakeSettings{settings: models.MailingSettings{SendTime: "later"}}, clock, time.Minute, zap.NewNop())

	assert.False(t, scheduler.Tick(context.Background()))
	clock.now = clock.now.Add(time.Hour)
	assert.True(t, scheduler.Tick(context.Background()))
}

func TestGreetingSchedulerStartStopsWithContext(t *testing.T) {
	clock := &manualClock{now: time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)}
	runner := &countingRunner{}
	scheduler := NewGreetingScheduler(runner, &fakeSettings{settings: models.MailingSettings{SendTime: "09:00"}}, clock, 10*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	scheduler.Start(ctx)
	assert.Eventually(t, func() bool {
		scheduler.mu.Lock()
		defer scheduler.mu.Unlock()
		return runner.calls == 1
	}, time.Second, 5*time.Millisecond)
	cancel()
}
