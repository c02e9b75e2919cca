// internal/workers/advisor/submit-turn/config.go
package submitturn

import (
	"time"

	"protein-advisor/internal/common/config"
)

type Config struct {
	// Timeout bounds one whole turn: classification, selection and composition.
	Timeout time.Duration
}

func LoadConfig(wcfg config.WorkerConfig) *Config {
	timeout := config.GetDuration(wcfg.Timeout)
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Config{Timeout: timeout}
}
