package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"fbadmin/internal/admin"
)

// DefaultEnvPrefix is the prefix of every environment override
const DefaultEnvPrefix = "FBADMIN"

// Loader handles configuration loading from a .env file, a YAML file and
// environment variables, in that order of increasing precedence.
type Loader struct {
	configPath string
	dotenvPath string
	env        envSource
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, envPrefix string) *Loader {
	return &Loader{
		configPath: configPath,
		dotenvPath: ".env",
		env:        newEnvSource(envPrefix),
	}
}

// WithDotenv sets the .env file read before anything else. Empty disables it.
func (l *Loader) WithDotenv(path string) *Loader {
	l.dotenvPath = path
	return l
}

// Load loads configuration from YAML file and applies environment variable overrides
func (l *Loader) Load() (*admin.Config, error) {
	config := &admin.Config{}

	if err := l.loadDotenv(); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	if l.configPath != "" {
		if err := l.loadFromYAML(config); err != nil {
			return nil, fmt.Errorf("failed to load YAML config: %w", err)
		}
	}

	l.applyDefaults(config)
	l.applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// loadDotenv exports variables from the .env file without overriding the
// process environment. A missing file is not an error.
func (l *Loader) loadDotenv() error {
	if l.dotenvPath == "" {
		return nil
	}
	err := godotenv.Load(l.dotenvPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// loadFromYAML loads configuration from YAML file
func (l *Loader) loadFromYAML(config *admin.Config) error {
	data, err := os.ReadFile(l.configPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil // Config file is optional
	}
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}

	return nil
}

// applyDefaults applies default values to configuration fields
func (l *Loader) applyDefaults(config *admin.Config) {
	// Firebase defaults
	if !config.Firebase.UseDefaultCredentials &&
		config.Firebase.CredentialsPath == "" && config.Firebase.CredentialsBase64 == "" {
		config.Firebase.CredentialsPath = "service-account.json"
	}

	// Remote Config defaults
	if config.RemoteConfig.BaseURL == "" {
		config.RemoteConfig.BaseURL = "https://firebaseremoteconfig.googleapis.com"
	}
	if config.RemoteConfig.TemplatePath == "" {
		config.RemoteConfig.TemplatePath = "config.json"
	}
	if config.RemoteConfig.VersionsPageSize == 0 {
		config.RemoteConfig.VersionsPageSize = 5
	}

	// Messaging defaults
	if config.Messaging.BaseURL == "" {
		config.Messaging.BaseURL = "https://fcm.googleapis.com"
	}
	if config.Messaging.Topic == "" {
		config.Messaging.Topic = "news"
	}

	// Database defaults
	if config.Database.WeeklyCron == "" {
		config.Database.WeeklyCron = "30 14 * * SUN"
	}
	if config.Database.TopPostsLimit == 0 {
		config.Database.TopPostsLimit = 5
	}
	if config.Database.EventBuffer == 0 {
		config.Database.EventBuffer = 64
	}

	// Server defaults
	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}
	if config.Server.Host == "" {
		config.Server.Host = "0.0.0.0"
	}
	if config.Server.ReadTimeout == 0 {
		config.Server.ReadTimeout = 10 * time.Second
	}
	if config.Server.WriteTimeout == 0 {
		config.Server.WriteTimeout = 10 * time.Second
	}
	if config.Server.ShutdownTimeout == 0 {
		config.Server.ShutdownTimeout = 30 * time.Second
	}

	// Logging defaults
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "text"
	}

	// An absent metrics section means metrics are on
	if config.Metrics.Path == "" && config.Metrics.Namespace == "" {
		config.Metrics.Enabled = true
	}
	if config.Metrics.Path == "" {
		config.Metrics.Path = "/metrics"
	}
	if config.Metrics.Namespace == "" {
		config.Metrics.Namespace = "fbadmin"
	}

	// Cache defaults
	if config.Cache.KeyPrefix == "" {
		config.Cache.KeyPrefix = "fbadmin:"
	}
	if config.Cache.MaxKeys == 0 {
		config.Cache.MaxKeys = 256
	}
	if config.Cache.CleanupInterval == 0 {
		config.Cache.CleanupInterval = 5 * time.Minute
	}
}

// applyEnvOverrides applies environment variable overrides to configuration
func (l *Loader) applyEnvOverrides(config *admin.Config) {
	env := l.env

	// Firebase overrides; a base64 key replaces any file path
	env.setString("project_id", &config.Firebase.ProjectID)
	env.setString("credentials_path", &config.Firebase.CredentialsPath)
	if encoded, ok := env.Get("credentials_base64"); ok {
		config.Firebase.CredentialsBase64 = encoded
		config.Firebase.CredentialsPath = ""
	}
	env.setBool("use_default_credentials", &config.Firebase.UseDefaultCredentials)
	if config.Firebase.UseDefaultCredentials {
		config.Firebase.CredentialsPath = ""
		config.Firebase.CredentialsBase64 = ""
	}
	env.setString("database_url", &config.Firebase.DatabaseURL)

	// Remote Config overrides
	env.setString("remote_config.base_url", &config.RemoteConfig.BaseURL)
	env.setString("template_path", &config.RemoteConfig.TemplatePath)
	env.setInt("versions_page_size", &config.RemoteConfig.VersionsPageSize)

	// Messaging overrides
	env.setString("messaging.base_url", &config.Messaging.BaseURL)
	env.setString("topic", &config.Messaging.Topic)

	// Database overrides
	env.setString("weekly_cron", &config.Database.WeeklyCron)
	env.setInt("top_posts_limit", &config.Database.TopPostsLimit)

	// Server overrides
	env.setString("server.port", &config.Server.Port)
	env.setString("server.host", &config.Server.Host)
	env.setDuration("server.read_timeout", &config.Server.ReadTimeout)
	env.setDuration("server.write_timeout", &config.Server.WriteTimeout)

	// Logging overrides
	env.setString("log.level", &config.Logging.Level)
	env.setString("log.format", &config.Logging.Format)

	// Metrics overrides
	env.setBool("metrics.enabled", &config.Metrics.Enabled)

	// Cache overrides
	if cacheType, ok := env.Get("cache.type"); ok {
		config.Cache.Type = admin.ParseCacheType(cacheType)
	}
	env.setString("redis_url", &config.Cache.RedisURL)
	env.setString("redis_password", &config.Cache.RedisPassword)
	env.setInt("redis_db", &config.Cache.RedisDB)
}
