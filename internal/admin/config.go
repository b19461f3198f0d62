package admin

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config represents the main configuration structure
type Config struct {
	Firebase     FirebaseConfig     `yaml:"firebase"`
	RemoteConfig RemoteConfigConfig `yaml:"remote_config"`
	Messaging    MessagingConfig    `yaml:"messaging"`
	Database     DatabaseConfig     `yaml:"database"`
	Server       ServerConfig       `yaml:"server"`
	Cache        CacheConfig        `yaml:"cache"`
	Logging      LoggingConfig      `yaml:"logging"`
	Metrics      MetricsConfig      `yaml:"metrics"`
}

// FirebaseConfig locates the project and its service credential.
// CredentialsBase64 wins over CredentialsPath. UseDefaultCredentials, or
// neither key setting, selects application default credentials.
type FirebaseConfig struct {
	ProjectID             string `yaml:"project_id"`
	CredentialsPath       string `yaml:"credentials_path" default:"service-account.json"`
	CredentialsBase64     string `yaml:"credentials_base64"`
	UseDefaultCredentials bool   `yaml:"use_default_credentials"`
	DatabaseURL           string `yaml:"database_url" validate:"omitempty,url"`
}

// RemoteConfigConfig configures the Remote Config REST client
type RemoteConfigConfig struct {
	BaseURL          string `yaml:"base_url" default:"https://firebaseremoteconfig.googleapis.com" validate:"omitempty,url"`
	TemplatePath     string `yaml:"template_path" default:"config.json" validate:"required"`
	VersionsPageSize int    `yaml:"versions_page_size" default:"5" validate:"min=1,max=300"`
}

// MessagingConfig configures the FCM HTTP v1 client
type MessagingConfig struct {
	BaseURL string `yaml:"base_url" default:"https://fcm.googleapis.com" validate:"omitempty,url"`
	Topic   string `yaml:"topic" default:"news"`
}

// DatabaseConfig configures the realtime database listeners and weekly email job
type DatabaseConfig struct {
	WeeklyCron    string `yaml:"weekly_cron" default:"30 14 * * SUN" validate:"required"`
	TopPostsLimit int    `yaml:"top_posts_limit" default:"5" validate:"gt=0"`
	EventBuffer   int    `yaml:"event_buffer" default:"64" validate:"min=0"`
}

// ServerConfig represents the health and metrics endpoint of long-running commands
type ServerConfig struct {
	Port            string        `yaml:"port" default:"8080" validate:"required"`
	Host            string        `yaml:"host" default:"0.0.0.0"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"30s"`
}

// CacheConfig represents access token cache configuration
type CacheConfig struct {
	Type            CacheType     `yaml:"type" default:"memory"`
	RedisURL        string        `yaml:"redis_url"`
	RedisPassword   string        `yaml:"redis_password"`
	RedisDB         int           `yaml:"redis_db" default:"0"`
	KeyPrefix       string        `yaml:"key_prefix" default:"fbadmin:"`
	MaxKeys         int           `yaml:"max_keys" default:"256"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" default:"5m"`
}

var configValidator = newConfigValidator()

// newConfigValidator reports fields by their YAML path
func newConfigValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate validates the configuration
func (c *Config) Validate() error {
	err := configValidator.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrConfigurationError, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fieldError(fe))
	}
	return fmt.Errorf("%w: %s", ErrConfigurationError, strings.Join(msgs, "; "))
}

func fieldError(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required":
		return field + " is empty"
	case "url":
		return field + " must be a URL"
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, fe.Tag())
	}
}
