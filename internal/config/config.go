package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	Port        string `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	UploadBaseDir        string        `env:"UPLOAD_BASE_DIR" envDefault:"."`
	UploadPollInterval   time.Duration `env:"UPLOAD_POLL_INTERVAL" envDefault:"5s"`
	UploadBatchSize      int           `env:"UPLOAD_BATCH_SIZE" envDefault:"100"`
	StaleJobThreshold    time.Duration `env:"STALE_JOB_THRESHOLD" envDefault:"30m"`
	AnalysisPollInterval time.Duration `env:"ANALYSIS_POLL_INTERVAL" envDefault:"60s"`
	AnalysisBatchSize    int           `env:"ANALYSIS_BATCH_SIZE" envDefault:"100"`
}

// Load reads configuration from the environment, with an optional .env file
// applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

func (c *Config) Logger() *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
