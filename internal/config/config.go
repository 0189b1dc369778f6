// Package config loads route validation settings.
// Order: defaults -> YAML file -> .env file and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"route-validation-service/internal/domain"
	"route-validation-service/internal/platform/logging"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is read when no explicit path is given and it exists.
const DefaultConfigFile = "routecheck.yaml"

type Config struct {
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`
	Validation ValidationConfig `json:"validation" yaml:"validation"`
	Storage    StorageConfig    `json:"storage" yaml:"storage"`
	Server     ServerConfig     `json:"server" yaml:"server"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
}

// SimulationConfig describes how to launch the simulator for a run.
type SimulationConfig struct {
	// SumoBinary is the simulator executable ("sumo" or "sumo-gui").
	SumoBinary string `json:"sumo_binary" yaml:"sumo_binary"`

	NetFile    string `json:"net_file" yaml:"net_file"`
	RoutesFile string `json:"routes_file" yaml:"routes_file"`

	// ExtraArgs are appended to the simulator command line.
	ExtraArgs []string `json:"extra_args,omitempty" yaml:"extra_args,omitempty"`

	// ConnectAttempts bounds the dial retries while the simulator starts listening.
	ConnectAttempts int `json:"connect_attempts" yaml:"connect_attempts"`

	// DepartTime is the simulation time at which probe vehicles depart.
	DepartTime float64 `json:"depart_time" yaml:"depart_time"`
}

// ValidationConfig holds the stall detection thresholds and the step budget.
type ValidationConfig struct {
	MaxSteps            int     `json:"max_steps" yaml:"max_steps"`
	StallStepThreshold  int     `json:"stall_step_threshold" yaml:"stall_step_threshold"`
	StallSpeedThreshold float64 `json:"stall_speed_threshold" yaml:"stall_speed_threshold"`
}

const (
	StorageSqlite   = "sqlite"
	StoragePostgres = "postgres"
	StorageNone     = "none"
)

type StorageConfig struct {
	// Driver is "sqlite" (default), "postgres", or "none".
	Driver      string `json:"driver" yaml:"driver"`
	DBPath      string `json:"db_path" yaml:"db_path"`
	DatabaseURL string `json:"database_url,omitempty" yaml:"database_url,omitempty"`
}

type ServerConfig struct {
	Port string `json:"port" yaml:"port"`
}

type LoggingConfig struct {
	Level string `json:"level" yaml:"level"`
}

func Default() *Config {
	return &Config{
		Simulation: SimulationConfig{
			SumoBinary:      "sumo",
			NetFile:         "map.net.xml",
			RoutesFile:      "routes.rou.xml",
			ConnectAttempts: 10,
			DepartTime:      0,
		},
		Validation: ValidationConfig{
			MaxSteps:            1000,
			StallStepThreshold:  domain.DefaultStallStepThreshold,
			StallSpeedThreshold: domain.DefaultStallSpeedThreshold,
		},
		Storage: StorageConfig{
			Driver: StorageSqlite,
			DBPath: "data/routecheck.db",
		},
		Server: ServerConfig{
			Port: "8080",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Get returns the environment value for key, or fallback when unset.
func Get(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Load reads .env (if present), the YAML config file, and environment overrides.
// An empty path falls back to ROUTECHECK_CONFIG, then DefaultConfigFile if it exists.
func Load(path string) (*Config, error) {
	// Missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = Get("ROUTECHECK_CONFIG", DefaultConfigFile)
		explicit = os.Getenv("ROUTECHECK_CONFIG") != ""
	}

	if _, err := os.Stat(path); err == nil {
		fileCfg, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		cfg = fileCfg
	} else if explicit {
		return nil, fmt.Errorf("loading config file %q: %w", path, err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.Storage.DatabaseURL = os.ExpandEnv(cfg.Storage.DatabaseURL)

	return cfg, nil
}

// Validate checks that the configuration can drive a run.
func (c *Config) Validate() error {
	var errs []error

	if c.Validation.MaxSteps < 0 {
		errs = append(errs, fmt.Errorf("max_steps must be non-negative, got %d", c.Validation.MaxSteps))
	}
	if c.Validation.StallStepThreshold < 1 {
		errs = append(errs, fmt.Errorf("stall_step_threshold must be at least 1, got %d", c.Validation.StallStepThreshold))
	}
	if c.Validation.StallSpeedThreshold <= 0 {
		errs = append(errs, fmt.Errorf("stall_speed_threshold must be positive, got %g", c.Validation.StallSpeedThreshold))
	}
	if strings.TrimSpace(c.Simulation.SumoBinary) == "" {
		errs = append(errs, errors.New("sumo_binary is required"))
	}
	if c.Simulation.ConnectAttempts < 1 {
		errs = append(errs, fmt.Errorf("connect_attempts must be at least 1, got %d", c.Simulation.ConnectAttempts))
	}

	switch c.Storage.Driver {
	case StorageSqlite:
		if strings.TrimSpace(c.Storage.DBPath) == "" {
			errs = append(errs, errors.New("db_path is required for the sqlite driver"))
		}
	case StoragePostgres:
		if strings.TrimSpace(c.Storage.DatabaseURL) == "" {
			errs = append(errs, errors.New("database_url is required for the postgres driver"))
		}
	case StorageNone:
	default:
		errs = append(errs, fmt.Errorf("invalid storage driver: %s (valid: sqlite, postgres, none)", c.Storage.Driver))
	}

	if !logging.ValidLevel(c.Logging.Level) {
		errs = append(errs, fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level))
	}

	return errors.Join(errs...)
}

// StallPolicy returns the stall detection thresholds as a domain policy.
func (c *Config) StallPolicy() domain.StallPolicy {
	return domain.StallPolicy{
		SpeedThreshold: c.Validation.StallSpeedThreshold,
		StepThreshold:  c.Validation.StallStepThreshold,
	}
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("SUMO_BINARY"); v != "" {
		cfg.Simulation.SumoBinary = v
	}
	if v := os.Getenv("NET_FILE"); v != "" {
		cfg.Simulation.NetFile = v
	}
	if v := os.Getenv("ROUTES_FILE"); v != "" {
		cfg.Simulation.RoutesFile = v
	}

	if err := envInt("MAX_STEPS", &cfg.Validation.MaxSteps); err != nil {
		return err
	}
	if err := envInt("STALL_STEP_THRESHOLD", &cfg.Validation.StallStepThreshold); err != nil {
		return err
	}
	if v := os.Getenv("STALL_SPEED_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("STALL_SPEED_THRESHOLD: %w", err)
		}
		cfg.Validation.StallSpeedThreshold = f
	}

	if v := os.Getenv("STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Storage.DatabaseURL = v
		// A database URL alone selects postgres unless a driver was chosen explicitly.
		if os.Getenv("STORAGE_DRIVER") == "" {
			cfg.Storage.Driver = StoragePostgres
		}
	}

	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return nil
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}
