package xapi

import (
	"net/url"
	"time"

	"github.com/gamepop/fin-x-watcher/pkg/clients"
	"github.com/gamepop/fin-x-watcher/pkg/config"
	"github.com/gamepop/fin-x-watcher/pkg/logging"
)

// Config holds configuration for the X API client.
type Config struct {
	BearerToken string
	BaseURL     string
	Timeout     time.Duration

	// WindowHours bounds recent searches to the trailing N hours.
	WindowHours int

	// SortOrder is the upstream result ordering for recent search, either
	// "recency" or "relevancy".
	SortOrder string

	// QuotaRequests / QuotaWindow cap local request volume ahead of the
	// upstream limit (1500 requests per 15 minutes on the basic tier).
	QuotaRequests int
	QuotaWindow   time.Duration

	Breaker clients.CircuitBreakerConfig
	Retry   clients.RetryConfig
	Logger  logging.Logger
}

// LoadConfig reads client settings from the environment. Bearer tokens pasted
// from the developer portal are often percent-encoded, so the token is
// unescaped when possible.
func LoadConfig(logger logging.Logger) Config {
	token := config.GetEnv("X_BEARER_TOKEN", "")
	if unescaped, err := url.QueryUnescape(token); err == nil {
		token = unescaped
	}

	breaker := clients.DefaultCircuitBreakerConfig()
	breaker.Name = "x-api"
	breaker.FailureThreshold = config.GetEnvInt("X_BREAKER_FAILURE_THRESHOLD", breaker.FailureThreshold)
	breaker.RecoveryTimeout = config.GetEnvDuration("X_BREAKER_RECOVERY_TIMEOUT", breaker.RecoveryTimeout)
	breaker.Logger = logger

	return Config{
		BearerToken:   token,
		BaseURL:       config.GetEnv("X_API_URL", "https://api.x.com/2"),
		Timeout:       config.GetEnvDuration("X_API_TIMEOUT", 30*time.Second),
		WindowHours:   config.GetEnvInt("X_SEARCH_WINDOW_HOURS", 24),
		SortOrder:     config.GetEnv("X_SEARCH_SORT_ORDER", "recency"),
		QuotaRequests: config.GetEnvInt("X_QUOTA_REQUESTS", 1500),
		QuotaWindow:   config.GetEnvDuration("X_QUOTA_WINDOW", 15*time.Minute),
		Breaker:       breaker,
		Retry:         clients.DefaultRetryConfig(),
		Logger:        logger,
	}
}
