package e2e

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
	// E2E_STEP_TIMEOUT bounds every asynchronous wait in the scenario
	StepTimeout time.Duration `envconfig:"E2E_STEP_TIMEOUT" default:"5s"`
	// E2E_SESSION_TIMEOUT keeps the exclusivity window short for tests
	SessionTimeout time.Duration `envconfig:"E2E_SESSION_TIMEOUT" default:"1h"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
