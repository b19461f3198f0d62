package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fbadmin/internal/admin"
)

func TestTestConfig(t *testing.T) {
	cfg := TestConfig()
	require.NotNil(t, cfg)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "news", cfg.Messaging.Topic)
	assert.Equal(t, "30 14 * * SUN", cfg.Database.WeeklyCron)
}

func TestMockCache(t *testing.T) {
	ctx := context.Background()
	cache := MockCache()
	cache.On("Get", ctx, "present").Return([]byte("v"), nil)
	cache.On("Get", ctx, "absent").Return(nil, admin.ErrCacheKeyNotFound)
	cache.On("Stats").Return(admin.CacheStats{Type: "memory"})

	value, err := cache.Get(ctx, "present")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), value)

	_, err = cache.Get(ctx, "absent")
	assert.ErrorIs(t, err, admin.ErrCacheKeyNotFound)
	assert.Equal(t, "memory", cache.Stats().Type)
	cache.AssertExpectations(t)
}

func TestMockMetrics_AllowAll(t *testing.T) {
	m := MockMetrics().AllowAll()
	m.IncTokenCache("hit")
	m.ObserveRemoteCall(admin.ServiceTypeAuth, "get_user", admin.OutcomeSuccess, time.Millisecond)
	m.AssertCalled(t, "IncTokenCache", "hit")
	m.AssertNotCalled(t, "IncJobRuns", "weekly_email", admin.OutcomeSuccess)
}

func TestMockLogger(t *testing.T) {
	logger := MockLogger()
	logger.On("Info", "hello", "key", "value").Once()
	logger.On("With", []any{"service", "auth"}).Return(NopLogger{})

	logger.Info("hello", "key", "value")
	child := logger.With("service", "auth")
	child.Error("swallowed", "error", errors.New("x"))

	logger.AssertExpectations(t)
}

func TestTimeEquals(t *testing.T) {
	now := time.Now()
	TimeEquals(t, now, now.Add(500*time.Millisecond))
}

func TestWithTimeout(t *testing.T) {
	WithTimeout(t, time.Second, func(ctx context.Context) {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
	})
}

func TestMustNotPanic(t *testing.T) {
	MustNotPanic(t, func() {})
}
