package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type failingCacheRepo struct{}

func (failingCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	return errors.New("connection refused")
}

func (failingCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return errors.New("connection refused")
}

func (failingCacheRepo) Delete(ctx context.Context, keys ...string) error {
	return errors.New("connection refused")
}

func TestCacheServiceRoundTripRecordsMetrics(t *testing.T) {
	metrics := NewMetricsService()
	svc := NewCacheService(newMemoryCacheRepo(), metrics, time.Minute, zap.NewNop(), true)

	var out []string
	assert.False(t, svc.Get(context.Background(), "k", &out))
	svc.Set(context.Background(), "k", []string{"a", "b"}, 0)
	assert.True(t, svc.Get(context.Background(), "k", &out))
	assert.Equal(t, []string{"a", "b"}, out)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.cacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.cacheMisses))

	svc.Invalidate(context.Background(), "k")
	assert.False(t, svc.Get(context.Background(), "k", &out))
}

func TestCacheServiceDegradesOnErrors(t *testing.T) {
	svc := NewCacheService(failingCacheRepo{}, nil, time.Minute, zap.NewNop(), true)

	var out string
	assert.False(t, svc.Get(context.Background(), "k", &out))
	svc.Set(context.Background(), "k", "v", time.Second)
	svc.Invalidate(context.Background(), "k")
}

func TestCacheServiceDisabled(t *testing.T) {
	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
	assert.False(t, nilSvc.Get(context.Background(), "k", nil))

	svc := NewCacheService(newMemoryCacheRepo(), nil, 0, nil, false)
	svc.Set(context.Background(), "k", "v", 0)
	var out string
	assert.False(t, svc.Get(context.Background(), "k", &out))
}
