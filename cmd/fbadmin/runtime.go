package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"fbadmin/internal/admin"
	"fbadmin/internal/cache"
	"fbadmin/internal/config"
	"fbadmin/internal/credential"
	"fbadmin/internal/logging"
	"fbadmin/internal/metrics"
	"fbadmin/internal/restclient"
	"fbadmin/pkg/concurrency"
)

// runtime holds what the commands share. Everything is built on first use so
// usage errors and local-only commands never touch credentials.
type runtime struct {
	configPath string
	envPrefix  string
	dotenvPath string

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	config   *admin.Config
	logger   admin.Logger
	metrics  admin.Metrics
	registry *prometheus.Registry
	cache    admin.Cache
	provider *credential.Provider
}

// setup loads configuration and builds logging, metrics and the token cache
func (rt *runtime) setup() error {
	if rt.config != nil {
		return nil
	}

	cfg, err := config.NewLoader(rt.configPath, rt.envPrefix).WithDotenv(rt.dotenvPath).Load()
	if err != nil {
		if errors.Is(err, admin.ErrConfigurationError) {
			return err
		}
		return fmt.Errorf("%w: %v", admin.ErrConfigurationError, err)
	}

	logger, err := logging.NewLoggerTo(rt.errOut, cfg.Logging)
	if err != nil {
		return fmt.Errorf("%w: %v", admin.ErrConfigurationError, err)
	}

	var m admin.Metrics = metrics.Nop{}
	if cfg.Metrics.Enabled {
		collector, err := metrics.NewMetrics(cfg.Metrics)
		if err != nil {
			return fmt.Errorf("failed to create metrics: %w", err)
		}
		m = collector
		rt.registry = collector.Registry()
	}

	tokenCache, err := cache.NewCache(cfg.Cache, logger)
	if err != nil {
		return fmt.Errorf("failed to create cache: %w", err)
	}

	rt.config = cfg
	rt.logger = logger
	rt.metrics = m
	rt.cache = tokenCache
	return nil
}

// credentials loads the service account on top of setup
func (rt *runtime) credentials(ctx context.Context) (*credential.Provider, error) {
	if rt.provider != nil {
		return rt.provider, nil
	}
	if err := rt.setup(); err != nil {
		return nil, err
	}

	provider, err := credential.NewProvider(ctx, rt.config.Firebase, rt.cache, concurrency.NewMutexManager(), rt.logger, rt.metrics)
	if err != nil {
		return nil, err
	}
	rt.provider = provider
	return provider, nil
}

// projectID is the project of the loaded credential
func (rt *runtime) projectID(ctx context.Context) (string, error) {
	provider, err := rt.credentials(ctx)
	if err != nil {
		return "", err
	}
	projectID, err := provider.ProjectID()
	if err != nil {
		return "", fmt.Errorf("%w: %v", admin.ErrConfigurationError, err)
	}
	return projectID, nil
}

// restClient builds an authenticated REST client for one backend
func (rt *runtime) restClient(service admin.ServiceType, httpClient *http.Client, baseURL string, scopes ...string) *restclient.Client {
	return &restclient.Client{
		HTTP:    httpClient,
		Tokens:  rt.provider.TokenSource(scopes...),
		BaseURL: baseURL,
		Service: service,
		Metrics: rt.metrics,
	}
}

func (rt *runtime) close() {
	if rt.cache != nil {
		if err := rt.cache.Close(); err != nil && rt.logger != nil {
			rt.logger.Warn("failed to close cache", "error", err)
		}
	}
}
