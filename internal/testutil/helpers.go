// Package testutil provides common utilities and helpers for testing
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"fbadmin/internal/admin"
)

// TestConfig creates a Config populated with the documented defaults
func TestConfig() *admin.Config {
	return &admin.Config{
		Firebase: admin.FirebaseConfig{
			ProjectID:       "test-project",
			CredentialsPath: "service-account.json",
			DatabaseURL:     "https://test-project.firebaseio.com",
		},
		RemoteConfig: admin.RemoteConfigConfig{
			BaseURL:          "https://firebaseremoteconfig.googleapis.com",
			TemplatePath:     "config.json",
			VersionsPageSize: 5,
		},
		Messaging: admin.MessagingConfig{
			BaseURL: "https://fcm.googleapis.com",
			Topic:   "news",
		},
		Database: admin.DatabaseConfig{
			WeeklyCron:    "30 14 * * SUN",
			TopPostsLimit: 5,
			EventBuffer:   64,
		},
		Server: admin.ServerConfig{
			Port:            "8080",
			Host:            "127.0.0.1",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Cache: admin.CacheConfig{
			Type:            admin.CacheTypeMemory,
			KeyPrefix:       "fbadmin:",
			MaxKeys:         256,
			CleanupInterval: 5 * time.Minute,
		},
		Logging: admin.LoggingConfig{Level: "debug", Format: "text"},
		Metrics: admin.MetricsConfig{Enabled: true, Path: "/metrics", Namespace: "fbadmin"},
	}
}

// MockCache creates a mock cache for testing
func MockCache() *MockCacheImpl {
	return &MockCacheImpl{}
}

// MockCacheImpl is a mock implementation of Cache for testing
type MockCacheImpl struct {
	mock.Mock
}

func (m *MockCacheImpl) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockCacheImpl) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *MockCacheImpl) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockCacheImpl) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockCacheImpl) Stats() admin.CacheStats {
	args := m.Called()
	return args.Get(0).(admin.CacheStats)
}

// MockMetrics creates a mock metrics for testing
func MockMetrics() *MockMetricsImpl {
	return &MockMetricsImpl{}
}

// MockMetricsImpl is a mock implementation of Metrics for testing
type MockMetricsImpl struct {
	mock.Mock
}

func (m *MockMetricsImpl) ObserveRemoteCall(service admin.ServiceType, operation, outcome string, duration time.Duration) {
	m.Called(service, operation, outcome, duration)
}

func (m *MockMetricsImpl) IncTokenCache(result string) {
	m.Called(result)
}

func (m *MockMetricsImpl) IncListenerEvents(kind string) {
	m.Called(kind)
}

func (m *MockMetricsImpl) SetActiveSubscriptions(count int) {
	m.Called(count)
}

func (m *MockMetricsImpl) IncJobRuns(job, outcome string) {
	m.Called(job, outcome)
}

// AllowAll makes every metrics call succeed without expectations
func (m *MockMetricsImpl) AllowAll() *MockMetricsImpl {
	m.On("ObserveRemoteCall", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Maybe()
	m.On("IncTokenCache", mock.Anything).Maybe()
	m.On("IncListenerEvents", mock.Anything).Maybe()
	m.On("SetActiveSubscriptions", mock.Anything).Maybe()
	m.On("IncJobRuns", mock.Anything, mock.Anything).Maybe()
	return m
}

// MockLogger creates a mock logger for testing
func MockLogger() *MockLoggerImpl {
	return &MockLoggerImpl{}
}

// MockLoggerImpl is a mock implementation of Logger for testing
type MockLoggerImpl struct {
	mock.Mock
}

func (m *MockLoggerImpl) Info(msg string, keysAndValues ...any) {
	args := []any{msg}
	args = append(args, keysAndValues...)
	m.Called(args...)
}

func (m *MockLoggerImpl) Debug(msg string, keysAndValues ...any) {
	args := []any{msg}
	args = append(args, keysAndValues...)
	m.Called(args...)
}

func (m *MockLoggerImpl) Error(msg string, keysAndValues ...any) {
	args := []any{msg}
	args = append(args, keysAndValues...)
	m.Called(args...)
}

func (m *MockLoggerImpl) Warn(msg string, keysAndValues ...any) {
	args := []any{msg}
	args = append(args, keysAndValues...)
	m.Called(args...)
}

func (m *MockLoggerImpl) With(keysAndValues ...any) admin.Logger {
	args := m.Called(keysAndValues)
	return args.Get(0).(admin.Logger)
}

// NopLogger discards every log line. Use it where log output is not under test.
type NopLogger struct{}

func (NopLogger) Debug(string, ...any)       {}
func (NopLogger) Info(string, ...any)        {}
func (NopLogger) Warn(string, ...any)        {}
func (NopLogger) Error(string, ...any)       {}
func (l NopLogger) With(...any) admin.Logger { return l }

// TimeEquals checks if two times are approximately equal (within 1 second)
func TimeEquals(t *testing.T, expected, actual time.Time, msgAndArgs ...interface{}) {
	diff := expected.Sub(actual)
	if diff < 0 {
		diff = -diff
	}
	assert.True(t, diff < time.Second, msgAndArgs...)
}

// WithTimeout runs a test function with a timeout context
func WithTimeout(t *testing.T, timeout time.Duration, fn func(ctx context.Context)) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan bool)
	go func() {
		defer close(done)
		fn(ctx)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("Test timed out")
	}
}

// MustNotPanic ensures that a function doesn't panic
func MustNotPanic(t *testing.T, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("Function panicked: %v", r)
		}
	}()
	fn()
}
