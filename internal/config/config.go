package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	TV       TVConfig       `yaml:"tv"`
	Tasks    TasksConfig    `yaml:"tasks"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Metadata MetadataConfig `yaml:"metadata"`
	Backup   BackupConfig   `yaml:"backup"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port     int    `yaml:"port"`
	BasePath string `yaml:"base_path"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// TVConfig holds TV library path settings. LibraryPath seeds the default
// library on first start; additional roots are managed through the API.
type TVConfig struct {
	LibraryPath string `yaml:"library_path"`
}

// TasksConfig holds background task engine settings.
type TasksConfig struct {
	// MaxConcurrent is the global concurrency ceiling (1-10). The persisted
	// setting, when present, overrides this at startup.
	MaxConcurrent int `yaml:"max_concurrent"`
}

// AnalysisConfig holds media analysis settings.
type AnalysisConfig struct {
	FFprobePath string `yaml:"ffprobe_path"`
}

// MetadataConfig holds metadata sync settings.
type MetadataConfig struct {
	// CallsPerSecond paces outbound provider requests.
	CallsPerSecond float64 `yaml:"calls_per_second"`
}

// BackupConfig holds database snapshot settings. An empty Dir places
// snapshots next to the database file.
type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Dir           string `yaml:"dir"`
	IntervalHours int    `yaml:"interval_hours"`
	Keep          int    `yaml:"keep"`
}

// LoggingConfig holds logging settings. File is optional; when set, logs
// are written to it (with rotation) in addition to stdout.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:     8080,
			BasePath: "/",
		},
		Database: DatabaseConfig{
			Path: "/data/driftwood.db",
		},
		TV: TVConfig{
			LibraryPath: "/tv",
		},
		Tasks: TasksConfig{
			MaxConcurrent: 2,
		},
		Analysis: AnalysisConfig{
			FFprobePath: "ffprobe",
		},
		Metadata: MetadataConfig{
			CallsPerSecond: 2,
		},
		Backup: BackupConfig{
			IntervalHours: 24,
			Keep:          7,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads config from a YAML file (if it exists) and overrides with
// environment variables. Environment variables take precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) loadFromEnv() {
	if v := os.Getenv("DW_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("DW_BASE_PATH"); v != "" {
		c.Server.BasePath = v
	}
	if v := os.Getenv("DW_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("DW_TV_PATH"); v != "" {
		c.TV.LibraryPath = v
	}
	if v := os.Getenv("DW_MAX_CONCURRENT_TASKS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Tasks.MaxConcurrent = n
		}
	}
	if v := os.Getenv("DW_FFPROBE_PATH"); v != "" {
		c.Analysis.FFprobePath = v
	}
	if v := os.Getenv("DW_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("DW_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("DW_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Tasks.MaxConcurrent < 1 || c.Tasks.MaxConcurrent > 10 {
		return fmt.Errorf("tasks.max_concurrent must be between 1 and 10, got %d", c.Tasks.MaxConcurrent)
	}
	if c.Backup.Enabled && c.Backup.IntervalHours < 1 {
		return fmt.Errorf("backup.interval_hours must be at least 1, got %d", c.Backup.IntervalHours)
	}
	if c.Metadata.CallsPerSecond <= 0 {
		return fmt.Errorf("metadata.calls_per_second must be positive, got %v", c.Metadata.CallsPerSecond)
	}
	c.Server.BasePath = strings.TrimRight(c.Server.BasePath, "/")
	return nil
}
