package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Hermes   HermesConfig   `yaml:"hermes"`
	Weights  WeightsConfig  `yaml:"weights"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port        int      `yaml:"port"`
	MetricsPort int      `yaml:"metrics_port"`
	AdminToken  string   `yaml:"admin_token"`
	RateLimit   int      `yaml:"rate_limit_per_minute"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// DatabaseConfig selects the store: postgres:// URLs use Postgres,
// sqlite:// URLs or *.db paths use SQLite, empty keeps state in memory.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type HermesConfig struct {
	URL string `yaml:"url"`
}

type WeightsConfig struct {
	Sectors   []string `yaml:"sectors"`
	MinWeight float64  `yaml:"min_weight"`
	MaxWeight float64  `yaml:"max_weight"`
}

type SnapshotConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultSectors are the technology sectors tracked by the pulse index.
func DefaultSectors() []string {
	return []string{
		"AdTech",
		"Cloud Infrastructure",
		"Fintech",
		"eCommerce",
		"Consumer Internet",
		"IT Services / Legacy Tech",
		"Hardware / Devices",
		"Cybersecurity",
		"Dev Tools / Analytics",
		"AI Infrastructure",
		"Semiconductors",
		"Vertical SaaS",
		"Enterprise SaaS",
		"SMB SaaS",
	}
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        8700,
			MetricsPort: 8701,
			RateLimit:   120,
			CORSOrigins: []string{"*"},
		},
		Hermes: HermesConfig{
			URL: "nats://localhost:4222",
		},
		Weights: WeightsConfig{
			Sectors:   DefaultSectors(),
			MinWeight: 0,
			MaxWeight: 100,
		},
		Snapshot: SnapshotConfig{
			Enabled: true,
			Cron:    "0 0 * * * *",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// A missing .env is fine; variables may come from the environment.
	_ = godotenv.Load()
	applyEnv(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.Weights.Sectors) == 0 {
		return fmt.Errorf("weights.sectors must not be empty")
	}
	seen := make(map[string]bool, len(c.Weights.Sectors))
	for _, s := range c.Weights.Sectors {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("weights.sectors contains an empty name")
		}
		if seen[s] {
			return fmt.Errorf("duplicate sector %q", s)
		}
		seen[s] = true
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PULSE_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("PULSE_METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MetricsPort = n
		}
	}
	if v := os.Getenv("PULSE_ADMIN_TOKEN"); v != "" {
		cfg.Server.AdminToken = v
	}
	if v := os.Getenv("PULSE_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.RateLimit = n
		}
	}
	if v := os.Getenv("PULSE_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("PULSE_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("PULSE_HERMES_URL"); v != "" {
		cfg.Hermes.URL = v
	}
	if v := os.Getenv("PULSE_SECTORS"); v != "" {
		cfg.Weights.Sectors = splitList(v)
	}
	if v := os.Getenv("PULSE_MIN_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Weights.MinWeight = f
		}
	}
	if v := os.Getenv("PULSE_MAX_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Weights.MaxWeight = f
		}
	}
	if v := os.Getenv("PULSE_SNAPSHOT_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Snapshot.Enabled = b
		}
	}
	if v := os.Getenv("PULSE_SNAPSHOT_CRON"); v != "" {
		cfg.Snapshot.Cron = v
	}
	if v := os.Getenv("PULSE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PULSE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
