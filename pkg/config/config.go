// Package config loads dilemmaguide settings from defaults, an optional YAML file,
// a .env file and DILEMMA_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no config file is named explicitly and it exists.
const DefaultPath = "dilemmaguide.yaml"

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "DILEMMA_"

// Config holds all dilemmaguide configuration.
type Config struct {
	// DBPath is the SQLite database that import writes and search reads.
	DBPath string `yaml:"db_path" env:"DB_PATH"`
	// DataPath, when set, is a data export searched directly instead of the database.
	DataPath string `yaml:"data_path" env:"DATA_PATH"`
	// Plain disables colors and borders.
	Plain       bool   `yaml:"plain" env:"PLAIN"`
	FeedbackURL string `yaml:"feedback_url" env:"FEEDBACK_URL"`

	Import  ImportConfig  `yaml:"import" envPrefix:"IMPORT_"`
	Logging LoggingConfig `yaml:"logging" envPrefix:"LOG_"`
}

// ImportConfig tunes the importer.
type ImportConfig struct {
	Workers   int `yaml:"workers" env:"WORKERS"`
	// BatchSize is the number of files committed per transaction.
	BatchSize int `yaml:"batch_size" env:"BATCH_SIZE"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level      string `yaml:"level" env:"LEVEL"`
	Encoding   string `yaml:"encoding" env:"ENCODING"` // json or console
	OutputPath string `yaml:"output_path" env:"OUTPUT_PATH"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DBPath: "dilemmaguide.db",
		Import: ImportConfig{
			Workers:   4,
			BatchSize: 8,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "console",
		},
	}
}

// Load builds the configuration. path may be empty, in which case DefaultPath is
// used if present; a named file that does not exist is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	file, required := path, true
	if file == "" {
		file, required = DefaultPath, false
	}
	if err := loadYAML(file, &cfg); err != nil {
		if required || !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Import.Workers < 1 {
		return fmt.Errorf("import.workers must be at least 1, got %d", c.Import.Workers)
	}
	if c.Import.BatchSize < 1 {
		return fmt.Errorf("import.batch_size must be at least 1, got %d", c.Import.BatchSize)
	}
	switch strings.ToLower(c.Logging.Encoding) {
	case "", "json", "console":
	default:
		return fmt.Errorf("logging.encoding must be json or console, got %q", c.Logging.Encoding)
	}
	return nil
}
