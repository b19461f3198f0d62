package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// envSource reads typed values from prefixed environment variables.
// Keys use config notation ("server.port") and map to PREFIX_SERVER_PORT.
type envSource struct {
	envPrefix string
}

func newEnvSource(envPrefix string) envSource {
	return envSource{envPrefix: strings.TrimSuffix(envPrefix, "_")}
}

// Get retrieves a non-empty value by key
func (e envSource) Get(key string) (string, bool) {
	value := os.Getenv(e.buildEnvKey(key))
	if value == "" {
		return "", false
	}
	return value, true
}

// GetBool retrieves a boolean value; unparsable values count as unset
func (e envSource) GetBool(key string) (bool, bool) {
	value, ok := e.Get(key)
	if !ok {
		return false, false
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return false, false
	}
	return boolValue, true
}

// GetInt retrieves an integer value; unparsable values count as unset
func (e envSource) GetInt(key string) (int, bool) {
	value, ok := e.Get(key)
	if !ok {
		return 0, false
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}
	return intValue, true
}

// GetDuration retrieves a time.Duration value; unparsable values count as unset
func (e envSource) GetDuration(key string) (time.Duration, bool) {
	value, ok := e.Get(key)
	if !ok {
		return 0, false
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, false
	}
	return duration, true
}

func (e envSource) setString(key string, dst *string) {
	if value, ok := e.Get(key); ok {
		*dst = value
	}
}

func (e envSource) setInt(key string, dst *int) {
	if value, ok := e.GetInt(key); ok {
		*dst = value
	}
}

func (e envSource) setBool(key string, dst *bool) {
	if value, ok := e.GetBool(key); ok {
		*dst = value
	}
}

func (e envSource) setDuration(key string, dst *time.Duration) {
	if value, ok := e.GetDuration(key); ok {
		*dst = value
	}
}

// buildEnvKey builds an environment variable key from a config key
func (e envSource) buildEnvKey(key string) string {
	envKey := strings.ReplaceAll(key, ".", "_")
	envKey = strings.ReplaceAll(envKey, "-", "_")
	envKey = strings.ToUpper(envKey)

	if e.envPrefix != "" {
		return e.envPrefix + "_" + envKey
	}
	return envKey
}
