package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/kalambet/ambridge/internal/secure"
)

type Config struct {
	Storage StorageConfig
	Log     LogConfig
	Secure  SecureConfig
}

type StorageConfig struct {
	DataDir string
	// LegacyFile is the flat key/value file read by the legacy migration.
	// Empty means legacy.json inside DataDir.
	LegacyFile string
}

type LogConfig struct {
	Level string
}

type SecureConfig struct {
	Iterations   int
	OutputLength int
}

func defaults() Config {
	return Config{
		Storage: StorageConfig{DataDir: defaultDataDir()},
		Log:     LogConfig{Level: "info"},
		Secure: SecureConfig{
			Iterations:   secure.DefaultIterations,
			OutputLength: secure.DefaultOutputLength,
		},
	}
}

// LegacyPath resolves the legacy storage file.
func (c Config) LegacyPath() string {
	if c.Storage.LegacyFile != "" {
		return c.Storage.LegacyFile
	}
	return filepath.Join(c.Storage.DataDir, "legacy.json")
}

// SlogLevel maps Log.Level to a slog level. Unknown names map to Info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Validate reports every out-of-range value.
func (c Config) Validate() error {
	var errs []error
	if c.Storage.DataDir == "" {
		errs = append(errs, errors.New("storage.data_dir must not be empty"))
	}
	if c.Secure.Iterations < 1 {
		errs = append(errs, fmt.Errorf("secure.iterations must be at least 1, got %d", c.Secure.Iterations))
	}
	if c.Secure.OutputLength < secure.MinOutputLength || c.Secure.OutputLength > secure.MaxOutputLength {
		errs = append(errs, fmt.Errorf("secure.output_length must be between %d and %d, got %d",
			secure.MinOutputLength, secure.MaxOutputLength, c.Secure.OutputLength))
	}
	return errors.Join(errs...)
}

// Load reads configuration from the JSON file at FilePath, then a .env file in
// the working directory, then AMBRIDGE_* environment variables, each layer
// overriding the previous one.
func Load() (Config, error) {
	return loadWith(newFileBackend(FilePath()), ".env")
}

func loadWith(b ConfigBackend, envFile string) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	// godotenv never overrides variables already set in the environment.
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}
	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
