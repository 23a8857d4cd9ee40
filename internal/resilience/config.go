package resilience

import (
	"time"

	"github.com/sells-group/riskmap/internal/config"
)

// RetryFromConfig converts prediction client settings to a RetryConfig.
func RetryFromConfig(cfg config.PredictionConfig) RetryConfig {
	rc := DefaultRetryConfig()
	if cfg.MaxAttempts > 0 {
		rc.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.InitialBackoffMs > 0 {
		rc.InitialBackoff = time.Duration(cfg.InitialBackoffMs) * time.Millisecond
	}
	if cfg.MaxBackoffMs > 0 {
		rc.MaxBackoff = time.Duration(cfg.MaxBackoffMs) * time.Millisecond
	}
	return rc
}

// BreakerFromConfig converts prediction client settings to a BreakerConfig.
func BreakerFromConfig(cfg config.PredictionConfig) BreakerConfig {
	bc := DefaultBreakerConfig()
	if cfg.BreakerThreshold > 0 {
		bc.FailureThreshold = cfg.BreakerThreshold
	}
	if cfg.BreakerResetSecs > 0 {
		bc.ResetTimeout = time.Duration(cfg.BreakerResetSecs) * time.Second
	}
	return bc
}
