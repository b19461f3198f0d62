package admin

import "context"

// ServiceType identifies the Firebase surface a remote call or log line belongs to
type ServiceType int

const (
	ServiceTypeUnknown ServiceType = iota
	ServiceTypeAuth
	ServiceTypeRemoteConfig
	ServiceTypeDatabase
	ServiceTypeMessaging
	ServiceTypeCredential
)

// String returns the string representation of the service type
func (s ServiceType) String() string {
	switch s {
	case ServiceTypeAuth:
		return "auth"
	case ServiceTypeRemoteConfig:
		return "remote_config"
	case ServiceTypeDatabase:
		return "database"
	case ServiceTypeMessaging:
		return "messaging"
	case ServiceTypeCredential:
		return "credential"
	default:
		return "unknown"
	}
}

// ParseServiceType parses a string to ServiceType
func ParseServiceType(s string) ServiceType {
	switch s {
	case "auth":
		return ServiceTypeAuth
	case "remote_config", "config":
		return ServiceTypeRemoteConfig
	case "database":
		return ServiceTypeDatabase
	case "messaging":
		return ServiceTypeMessaging
	case "credential":
		return ServiceTypeCredential
	default:
		return ServiceTypeUnknown
	}
}

// LockManager defines the interface for keyed mutual exclusion
type LockManager interface {
	// Lock acquires a lock for the given key
	Lock(key string)

	// Unlock releases the lock for the given key
	Unlock(key string)
}

// HealthChecker is implemented by long-running components that report liveness
type HealthChecker interface {
	Name() string
	Health(ctx context.Context) error
}
