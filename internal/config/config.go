package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all process-wide settings. It is loaded once at startup and
// passed by value into constructors; nothing mutates it afterwards.
//
// The word thresholds approximate the completion backend's context window and
// are deliberately tunable: the right values depend on the model in use.
type Config struct {
	Port         int    `env:"PORT"                            envDefault:"8080"`
	OpenAIAPIKey string `env:"OPENAI_API_KEY,required,notEmpty"`
	OpenAIModel  string `env:"OPENAI_MODEL"                    envDefault:"gpt-4o-mini"`

	TargetWords         int           `env:"SUMMARY_TARGET_WORDS"          envDefault:"100"`
	SplitThresholdWords int           `env:"SUMMARY_SPLIT_THRESHOLD_WORDS" envDefault:"3000"`
	HardCapWords        int           `env:"SUMMARY_HARD_CAP_WORDS"        envDefault:"10000"`
	PreTrimWords        int           `env:"SUMMARY_PRE_TRIM_WORDS"        envDefault:"1000"`
	MaxRetries          int           `env:"SUMMARY_MAX_RETRIES"           envDefault:"5"`
	RetryInitialBackoff time.Duration `env:"SUMMARY_RETRY_INITIAL_BACKOFF" envDefault:"500ms"`
	MaxConcurrentCalls  int64         `env:"SUMMARY_MAX_CONCURRENT_CALLS"  envDefault:"8"`
	RateLimitWait       time.Duration `env:"RATE_LIMIT_WAIT"               envDefault:"5s"`

	TranscriptLanguage string        `env:"TRANSCRIPT_LANGUAGE" envDefault:"en"`
	HTTPTimeout        time.Duration `env:"HTTP_TIMEOUT"        envDefault:"30s"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	return cfg, nil
}
