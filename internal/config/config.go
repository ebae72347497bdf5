package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/tendant/simple-generation-pipeline/internal/dbosruntime"
	"github.com/tendant/simple-generation-pipeline/internal/logging"
)

// Config is the process configuration shared by the worker binaries
type Config struct {
	HTTPAddr string `env:"WORKER_HTTP_ADDR" envDefault:":8080"`

	// EngineURL is the base URL of the inference sidecar
	EngineURL     string        `env:"ENGINE_URL" envDefault:"http://localhost:7860"`
	EngineTimeout time.Duration `env:"ENGINE_TIMEOUT" envDefault:"10m"`

	FetchTimeout       time.Duration `env:"FETCH_TIMEOUT" envDefault:"30s"`
	MaxInputImageBytes int64         `env:"MAX_INPUT_IMAGE_BYTES" envDefault:"3145728"`

	// ContentAPIURL selects a remote simple-content server for content:// inputs
	// and result storage. Empty uses the embedded development service.
	ContentAPIURL string `env:"CONTENT_API_URL"`
	StorageDir    string `env:"STORAGE_DIR" envDefault:"./dev-data"`

	DBOS dbosruntime.Config
	Log  logging.Config
}

// Load reads an optional .env file and then the process environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return Parse()
}

// Parse reads configuration from the process environment only
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	if cfg.MaxInputImageBytes <= 0 {
		return nil, fmt.Errorf("MAX_INPUT_IMAGE_BYTES must be positive, got %d", cfg.MaxInputImageBytes)
	}
	cfg.DBOS.WithDefaults()
	return &cfg, nil
}
