package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"seatflow/internal/models"
)

type Config struct {
	Server struct {
		Port      int    `yaml:"port"`
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup BackupConfig `yaml:"backup"`

	Redis struct {
		Enabled    bool   `yaml:"enabled"`
		Address    string `yaml:"address"`
		Password   string `yaml:"password"`
		DB         int    `yaml:"db"`
		TTLSeconds int    `yaml:"ttl_seconds"`
	} `yaml:"redis"`

	AMQP struct {
		Enabled bool   `yaml:"enabled"`
		URL     string `yaml:"url"`
		Queue   string `yaml:"queue"`
	} `yaml:"amqp"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	BookingRules models.BookingRules `yaml:"booking_rules"`

	Sweep struct {
		IntervalSeconds int `yaml:"interval_seconds"`
	} `yaml:"sweep"`

	RateLimit struct {
		PerSecond float64 `yaml:"per_second"`
		Burst     int     `yaml:"burst"`
	} `yaml:"ratelimit"`

	Floors []FloorConfig `yaml:"floors"`
}

// FloorConfig describes one floor of the facility. Seat ids are
// generated as <prefix>-<section>-<nn>.
type FloorConfig struct {
	Prefix   string          `yaml:"prefix"`
	Name     string          `yaml:"name"`
	Sections []SectionConfig `yaml:"sections"`
}

type SectionConfig struct {
	Name  string `yaml:"name"`
	Seats int    `yaml:"seats"`
}

// BackupConfig controls periodic copies of the database file.
type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	StoragePath   string `yaml:"storage_path"`
	IntervalHours int    `yaml:"interval_hours"`
	RetentionDays int    `yaml:"retention_days"`
}

func (b BackupConfig) Interval() time.Duration {
	if b.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(b.IntervalHours) * time.Hour
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if err = cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/seatflow.db"
	}
	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}

	prefixes := make(map[string]bool)
	for i, f := range c.Floors {
		if f.Prefix == "" {
			return fmt.Errorf("floors[%d]: prefix is required", i)
		}
		if prefixes[f.Prefix] {
			return fmt.Errorf("floors[%d]: duplicate prefix '%s'", i, f.Prefix)
		}
		prefixes[f.Prefix] = true

		sections := make(map[string]bool)
		for j, s := range f.Sections {
			if s.Name == "" {
				return fmt.Errorf("floors[%d].sections[%d]: name is required", i, j)
			}
			if sections[s.Name] {
				return fmt.Errorf("floors[%d].sections[%d]: duplicate section '%s'", i, j, s.Name)
			}
			sections[s.Name] = true
			if s.Seats <= 0 {
				return fmt.Errorf("floors[%d].sections[%d]: seats must be positive", i, j)
			}
		}
	}
	return nil
}

// SweepInterval returns the expiry sweep cadence.
func (c *Config) SweepInterval() time.Duration {
	if c.Sweep.IntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Sweep.IntervalSeconds) * time.Second
}

// RedisTTL returns the response cache TTL.
func (c *Config) RedisTTL() time.Duration {
	if c.Redis.TTLSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Redis.TTLSeconds) * time.Second
}

// Seats expands the floor layout into seat records for facility setup.
func (c *Config) Seats() []models.Seat {
	var out []models.Seat
	for _, f := range c.Floors {
		for _, s := range f.Sections {
			for n := 1; n <= s.Seats; n++ {
				out = append(out, models.Seat{
					ID:      fmt.Sprintf("%s-%s-%02d", f.Prefix, s.Name, n),
					Floor:   f.Name,
					Section: s.Name,
					Status:  models.SeatAvailable,
				})
			}
		}
	}
	return out
}
