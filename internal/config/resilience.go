package config

import (
	"time"

	"github.com/whetherapp/whether-backend/internal/retry"
)

// ResilienceConfig holds backoff settings for remote store calls that are safe to repeat.
// Writes and appends are never retried.
type ResilienceConfig struct {
	SheetRead retry.Config
}

var DefaultResilienceConfig = ResilienceConfig{
	SheetRead: retry.Config{
		MaxRetries: 0,
		BaseDelay:  200 * time.Millisecond,
		MaxDelay:   2 * time.Second,
	},
}

// SheetReadRetry returns the read preset with the given retry count.
func SheetReadRetry(maxRetries int) retry.Config {
	cfg := DefaultResilienceConfig.SheetRead
	cfg.MaxRetries = max(maxRetries, 0)
	return cfg
}
