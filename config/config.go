// Package config loads process settings from the environment and the actor
// roster from YAML. A .env file in the working directory is honored when
// present; explicit environment variables win.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/agora-sim/agora/model"
)

// Backend identifiers accepted by AGORA_BACKEND.
const (
	BackendNone      = ""
	BackendMock      = "mock"
	BackendOpenAI    = "openai"
	BackendAnthropic = "anthropic"
)

// Settings are the environment-derived process settings. Zero values fall
// back to the documented defaults; the core runs fully without any backend
// configured.
type Settings struct {
	// Backend selects the generative backend; empty disables generation
	// and the pipeline runs on its deterministic rules.
	Backend string
	APIKey  string
	BaseURL string
	Model   string

	Timeouts model.Timeouts
	Retry    model.RetryPolicy

	// MaxBackendCalls caps generative calls per run. Zero is unlimited.
	MaxBackendCalls int

	// MaintenanceWorkers sizes the session-memory pool.
	MaintenanceWorkers int
	// MaintenanceQueue bounds the maintenance job queue.
	MaintenanceQueue int
	// ScorerConcurrency gates concurrent external scoring calls.
	ScorerConcurrency int64

	LogLevel string
}

// Load reads settings from the environment, after loading a .env file if
// one exists.
func Load() Settings {
	// Missing .env is the normal case, not an error.
	_ = godotenv.Load()

	return Settings{
		Backend: os.Getenv("AGORA_BACKEND"),
		APIKey:  os.Getenv("AGORA_API_KEY"),
		BaseURL: os.Getenv("AGORA_BASE_URL"),
		Model:   os.Getenv("AGORA_MODEL"),
		Timeouts: model.Timeouts{
			Connect:     envDuration("AGORA_CONNECT_TIMEOUT", model.DefaultTimeouts().Connect),
			FirstPacket: envDuration("AGORA_FIRST_PACKET_TIMEOUT", model.DefaultTimeouts().FirstPacket),
			Read:        envDuration("AGORA_READ_TIMEOUT", model.DefaultTimeouts().Read),
			Total:       envDuration("AGORA_TOTAL_TIMEOUT", model.DefaultTimeouts().Total),
		},
		Retry: model.RetryPolicy{
			MaxRetries:  envInt("AGORA_MAX_RETRIES", model.DefaultRetryPolicy().MaxRetries),
			BackoffBase: envDuration("AGORA_BACKOFF_BASE", model.DefaultRetryPolicy().BackoffBase),
		},
		MaxBackendCalls:    envInt("AGORA_MAX_BACKEND_CALLS", 0),
		MaintenanceWorkers: envInt("AGORA_MAINTENANCE_WORKERS", 2),
		MaintenanceQueue:   envInt("AGORA_MAINTENANCE_QUEUE", 64),
		ScorerConcurrency:  int64(envInt("AGORA_SCORER_CONCURRENCY", 2)),
		LogLevel:           os.Getenv("AGORA_LOG_LEVEL"),
	}
}

func envInt(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func envDuration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return v
}
