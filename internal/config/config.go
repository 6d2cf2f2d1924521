package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port         int `yaml:"port"`
		ReadTimeout  int `yaml:"read_timeout_seconds"`
		WriteTimeout int `yaml:"write_timeout_seconds"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Auth struct {
		JWTSecret        string `yaml:"jwt_secret"`
		AccessTTLMinutes int    `yaml:"access_ttl_minutes"`
		RefreshTTLDays   int    `yaml:"refresh_ttl_days"`
		LoginRatePerMin  int    `yaml:"login_rate_per_minute"`
		LoginBurst       int    `yaml:"login_burst"`
	} `yaml:"auth"`

	Reservation struct {
		// FailOpen admits reservations when the store cannot be queried
		// during the conflict check. Off by default.
		FailOpen         bool `yaml:"fail_open"`
		SweepIntervalMin int  `yaml:"sweep_interval_minutes"`
		MaxWindowHours   int  `yaml:"max_window_hours"`
		MaxAdvanceDays   int  `yaml:"max_advance_days"`
	} `yaml:"reservation"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Notify struct {
		TelegramToken  string  `yaml:"telegram_token"`
		AdminChatIDs   []int64 `yaml:"admin_chat_ids"`
		WebhookURL     string  `yaml:"webhook_url"`
		RatePerSecond  float64 `yaml:"rate_per_second"`
		Burst          int     `yaml:"burst"`
	} `yaml:"notify"`

	Audit struct {
		Enabled           bool   `yaml:"enabled"`
		ExportOnStart     bool   `yaml:"export_on_start"`
		DataRetentionDays int    `yaml:"data_retention_days"`
		ExportPath        string `yaml:"export_path"`
	} `yaml:"audit"`

	Sheets struct {
		Enabled         bool   `yaml:"enabled"`
		CredentialsFile string `yaml:"credentials_file"`
		SpreadsheetID   string `yaml:"spreadsheet_id"`
		SheetName       string `yaml:"sheet_name"`
	} `yaml:"sheets"`
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

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/aptdesk.db"
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("auth.jwt_secret is required")
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) AccessTokenTTL() time.Duration {
	if c.Auth.AccessTTLMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.Auth.AccessTTLMinutes) * time.Minute
}

func (c *Config) RefreshTokenTTL() time.Duration {
	if c.Auth.RefreshTTLDays <= 0 {
		return 14 * 24 * time.Hour
	}
	return time.Duration(c.Auth.RefreshTTLDays) * 24 * time.Hour
}

func (c *Config) SweepInterval() time.Duration {
	if c.Reservation.SweepIntervalMin <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(c.Reservation.SweepIntervalMin) * time.Minute
}

func (c *Config) MaxReservationWindow() time.Duration {
	if c.Reservation.MaxWindowHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Reservation.MaxWindowHours) * time.Hour
}

func (c *Config) MaxAdvance() time.Duration {
	if c.Reservation.MaxAdvanceDays <= 0 {
		return 60 * 24 * time.Hour
	}
	return time.Duration(c.Reservation.MaxAdvanceDays) * 24 * time.Hour
}
