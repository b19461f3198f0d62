package admin

import "time"

// Outcome labels shared by every metrics implementation
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics interface for monitoring remote calls and background work
type Metrics interface {
	// ObserveRemoteCall records one call to a Firebase backend
	ObserveRemoteCall(service ServiceType, operation, outcome string, duration time.Duration)

	// IncTokenCache records an access token cache lookup; result is "hit" or "miss"
	IncTokenCache(result string)

	// IncListenerEvents counts events delivered to database listeners
	IncListenerEvents(kind string)

	// SetActiveSubscriptions sets the number of open database subscriptions
	SetActiveSubscriptions(count int)

	// IncJobRuns counts scheduled job executions
	IncJobRuns(job, outcome string)
}

// MetricsConfig represents metrics configuration
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" default:"true"`
	Path      string `yaml:"path" default:"/metrics"`
	Namespace string `yaml:"namespace" default:"fbadmin"`
}
