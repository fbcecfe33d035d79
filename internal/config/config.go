package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the file Load reads when given an empty path. LIBRARY_CONFIG
// overrides the default config.yaml.
var ConfigPath = defaultConfigPath()

func defaultConfigPath() string {
	if v := strings.TrimSpace(os.Getenv("LIBRARY_CONFIG")); v != "" {
		return v
	}
	return "config.yaml"
}

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port                    string   `yaml:"port"`
	LogLevel                string   `yaml:"logLevel"`
	DatabaseURL             string   `yaml:"databaseURL"`
	DatabaseDriver          string   `yaml:"databaseDriver"`
	RedisAddr               string   `yaml:"redisAddr"`
	RedisPassword           string   `yaml:"redisPassword"`
	TrustedProxyCIDRs       []string `yaml:"trustedProxyCidrs"`
	WriteRateLimitPerMinute int      `yaml:"writeRateLimitPerMinute"`
	ReminderEmail           string   `yaml:"reminderEmail"`
	ReminderCron            string   `yaml:"reminderCron"`
	NotifyRedisStream       string   `yaml:"notifyRedisStream"`
	NotifyWorker            bool     `yaml:"notifyWorker"`
	ShutdownTimeoutSeconds  int      `yaml:"shutdownTimeoutSeconds"`
}

// Load reads config from path (defaults to ConfigPath), then applies
// environment overrides and validates the result.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) error {
	if v := os.Getenv("LIBRARY_PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("LIBRARY_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("LIBRARY_DATABASE_DRIVER"); v != "" {
		cfg.DatabaseDriver = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("LIBRARY_TRUSTED_PROXY_CIDRS"); v != "" {
		cfg.TrustedProxyCIDRs = splitCSV(v)
	}
	if v := os.Getenv("LIBRARY_WRITE_RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: LIBRARY_WRITE_RATE_LIMIT: %w", err)
		}
		cfg.WriteRateLimitPerMinute = n
	}
	if v := os.Getenv("LIBRARY_REMINDER_EMAIL"); v != "" {
		cfg.ReminderEmail = v
	}
	if v := os.Getenv("LIBRARY_REMINDER_CRON"); v != "" {
		cfg.ReminderCron = v
	}
	if v := os.Getenv("LIBRARY_NOTIFY_STREAM"); v != "" {
		cfg.NotifyRedisStream = v
	}
	if v := os.Getenv("LIBRARY_NOTIFY_WORKER"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: LIBRARY_NOTIFY_WORKER: %w", err)
		}
		cfg.NotifyWorker = b
	}
	return nil
}

func applyDefaults(cfg *FileConfig) {
	cfg.DatabaseDriver = strings.ToLower(strings.TrimSpace(cfg.DatabaseDriver))
	if cfg.DatabaseDriver == "" {
		cfg.DatabaseDriver = "postgres"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.ShutdownTimeoutSeconds <= 0 {
		cfg.ShutdownTimeoutSeconds = 10
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml or LIBRARY_PORT)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	switch cfg.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("config: databaseDriver %q is not supported (postgres or sqlite)", cfg.DatabaseDriver)
	}
	if cfg.WriteRateLimitPerMinute < 0 {
		return errors.New("config: writeRateLimitPerMinute must not be negative")
	}
	if cfg.WriteRateLimitPerMinute > 0 && cfg.RedisAddr == "" {
		return errors.New("config: writeRateLimitPerMinute requires redisAddr")
	}
	if cfg.NotifyRedisStream != "" && cfg.RedisAddr == "" {
		return errors.New("config: notifyRedisStream requires redisAddr")
	}
	if cfg.NotifyWorker && cfg.NotifyRedisStream == "" {
		return errors.New("config: notifyWorker requires notifyRedisStream")
	}
	return nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
