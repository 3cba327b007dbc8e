package monitoring

import (
	"time"
)

// CircuitBreakerConfig defines the configuration for circuit breakers
type CircuitBreakerConfig struct {
	MaxRequests                 uint32        `json:"max_requests"`
	Interval                    time.Duration `json:"interval"`
	Timeout                     time.Duration `json:"timeout"`
	ConsecutiveFailureThreshold int           `json:"consecutive_failure_threshold"`
}

// APIErrorType represents different types of API errors for classification
type APIErrorType string

const (
	ErrorTypeTimeout      APIErrorType = "timeout"
	ErrorTypeNetworkError APIErrorType = "network_error"
	ErrorTypeServerError  APIErrorType = "server_error"
	ErrorTypeClientError  APIErrorType = "client_error"
	ErrorTypeUnknown      APIErrorType = "unknown"
)

var defaultAdapterBreaker = CircuitBreakerConfig{
	MaxRequests:                 3,
	Interval:                    time.Minute,
	Timeout:                     90 * time.Second,
	ConsecutiveFailureThreshold: 5,
}

// CircuitBreakerConfigs provides default configurations per external service
var CircuitBreakerConfigs = map[string]CircuitBreakerConfig{
	"btc_adapter": {
		MaxRequests:                 5,
		Interval:                    30 * time.Second,
		Timeout:                     60 * time.Second,
		ConsecutiveFailureThreshold: 5,
	},
	"eth_adapter": defaultAdapterBreaker,
	"sol_adapter": defaultAdapterBreaker,
	"base_rpc": {
		MaxRequests:                 3,
		Interval:                    45 * time.Second,
		Timeout:                     120 * time.Second,
		ConsecutiveFailureThreshold: 5,
	},
}

// BreakerConfigFor falls back to the adapter default for unknown names.
func BreakerConfigFor(name string) CircuitBreakerConfig {
	if cfg, ok := CircuitBreakerConfigs[name]; ok {
		return cfg
	}
	return defaultAdapterBreaker
}
