package internal

import (
	"fmt"
	"time"
)

type Config struct {
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`
	BlobRoot       string `env:"BLOB_ROOT,required=true"`
	BlobBaseURL    string `env:"BLOB_BASE_URL,required=true"`
	LogLevel       string `env:"LOG_LEVEL,required=true"`

	SessionTimeout    time.Duration `env:"SESSION_TIMEOUT,required=true"`
	SweepInterval     time.Duration `env:"SWEEP_INTERVAL,required=true"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL,required=true"`
	RestartInterval   time.Duration `env:"RESTART_INTERVAL,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`

	JWTSecret       string   `env:"JWT_SECRET,required=true"`
	CensoredWords   []string `env:"CENSORED_WORDS"`
	CharReplacement string   `env:"CHARACTER_REPLACEMENT,required=true"`

	DebugPort int `env:"DEBUG_PORT"`
}

// CharacterRune validates that the configured replacement is exactly one
// character once decoded.
func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
