package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	defaultListenAddr      = ":8080"
	defaultDBPath          = "notebook.db"
	defaultExecutor        = ExecutorInProcess
	defaultWorkerPath      = "cellbook-worker"
	defaultPlannerProvider = "openai"
	defaultPlannerModel    = "gpt-4o-mini"
	defaultPlannerTimeout  = 60 * time.Second
	defaultHistoryMax      = 50
	defaultHistoryTTL      = 24 * time.Hour

	// envPrefix prefixes every environment key, e.g. CELLBOOK_DB_PATH.
	envPrefix = "CELLBOOK"

	envConfigFile = "CELLBOOK_CONFIG"
	envLogLevel   = "CELLBOOK_LOG_LEVEL"

	// dotEnvFile is read from the working directory when present.
	dotEnvFile = ".env"
)

// Executor kinds.
const (
	ExecutorInProcess = "inprocess"
	ExecutorWorker    = "worker"
)

// Config holds application configuration.
type Config struct {
	ListenAddr string     `yaml:"listen_addr" split_words:"true"`
	DBPath     string     `yaml:"db_path" split_words:"true"`
	LogLevel   slog.Level `yaml:"-" ignored:"true"`

	// Executor selects where code runs: in this process or in a worker.
	Executor    string        `yaml:"executor" split_words:"true"`
	WorkerPath  string        `yaml:"worker_path" split_words:"true"`
	ExecTimeout time.Duration `yaml:"exec_timeout" split_words:"true"`
	MaxSteps    uint64        `yaml:"max_steps" split_words:"true"`

	Planner PlannerConfig `yaml:"planner" split_words:"true"`

	// RedisURL switches message history to Redis when set.
	RedisURL   string        `yaml:"redis_url" split_words:"true"`
	HistoryMax int           `yaml:"history_max" split_words:"true"`
	HistoryTTL time.Duration `yaml:"history_ttl" split_words:"true"`

	logLevelName string
}

// PlannerConfig selects and configures the code planner.
type PlannerConfig struct {
	Provider   string        `yaml:"provider" split_words:"true"`
	Model      string        `yaml:"model" split_words:"true"`
	APIKey     string        `yaml:"api_key" split_words:"true"`
	BaseURL    string        `yaml:"base_url" split_words:"true"`
	Timeout    time.Duration `yaml:"timeout" split_words:"true"`
	StaticCode string        `yaml:"static_code" split_words:"true"`
}

// fileConfig is the YAML document shape. The log level is a string there.
type fileConfig struct {
	Config   `yaml:",inline"`
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		ListenAddr: defaultListenAddr,
		DBPath:     defaultDBPath,
		LogLevel:   slog.LevelInfo,
		Executor:   defaultExecutor,
		WorkerPath: defaultWorkerPath,
		Planner: PlannerConfig{
			Provider: defaultPlannerProvider,
			Model:    defaultPlannerModel,
			Timeout:  defaultPlannerTimeout,
		},
		HistoryMax: defaultHistoryMax,
		HistoryTTL: defaultHistoryTTL,
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CELLBOOK_CONFIG, then the environment. A .env file in the working
// directory seeds variables that are not already set.
func Load() (Config, error) {
	if err := godotenv.Load(dotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", dotEnvFile, err)
	}

	cfg := Default()

	if path := os.Getenv(envConfigFile); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.logLevelName = v
	}
	if cfg.logLevelName != "" {
		cfg.LogLevel = parseLogLevel(cfg.logLevelName)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadFile overlays the YAML file at path onto cfg.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	fc := fileConfig{Config: *c}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	*c = fc.Config
	if fc.LogLevel != "" {
		c.logLevelName = fc.LogLevel
	}
	return nil
}

// Validate reports settings that cannot work together.
func (c Config) Validate() error {
	if c.ListenAddr == "" || c.DBPath == "" {
		return fmt.Errorf("listen address and database path must not be empty")
	}
	switch c.Executor {
	case ExecutorInProcess, ExecutorWorker:
	default:
		return fmt.Errorf("invalid executor %q: want %q or %q", c.Executor, ExecutorInProcess, ExecutorWorker)
	}
	if c.HistoryMax < 0 {
		return fmt.Errorf("invalid history max %d: must not be negative", c.HistoryMax)
	}
	if c.ExecTimeout < 0 || c.Planner.Timeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	return nil
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
