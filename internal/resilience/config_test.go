package resilience

import (
	"testing"
	"time"

	"github.com/sells-group/riskmap/internal/config"
)

func TestRetryFromConfig(t *testing.T) {
	rc := RetryFromConfig(config.PredictionConfig{MaxAttempts: 4, InitialBackoffMs: 100, MaxBackoffMs: 900})
	if rc.MaxAttempts != 4 || rc.InitialBackoff != 100*time.Millisecond || rc.MaxBackoff != 900*time.Millisecond {
		t.Errorf("unexpected retry config: %+v", rc)
	}

	def := RetryFromConfig(config.PredictionConfig{})
	if def.MaxAttempts != DefaultRetryConfig().MaxAttempts {
		t.Errorf("expected default attempts, got %d", def.MaxAttempts)
	}
}

func TestBreakerFromConfig(t *testing.T) {
	bc := BreakerFromConfig(config.PredictionConfig{BreakerThreshold: 2, BreakerResetSecs: 7})
	if bc.FailureThreshold != 2 || bc.ResetTimeout != 7*time.Second {
		t.Errorf("unexpected breaker config: %+v", bc)
	}

	def := BreakerFromConfig(config.PredictionConfig{})
	if def != DefaultBreakerConfig() {
		t.Errorf("expected defaults, got %+v", def)
	}
}
