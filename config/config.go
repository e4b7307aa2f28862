package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	EnvPrefix     = "SR_"
	ConfigPathEnv = "STUDENTREMINDER_CONFIG"

	MinPollInterval = 10 * time.Second
)

type Config struct {
	Database DatabaseConfig `koanf:"database"`
	Server   ServerConfig   `koanf:"server"`
	Telegram TelegramConfig `koanf:"telegram"`
	Backend  BackendConfig  `koanf:"backend"`
	SMS      SMSConfig      `koanf:"sms"`
	Poller   PollerConfig   `koanf:"poller"`
	Session  SessionConfig  `koanf:"session"`
	CalDAV   CalDAVConfig   `koanf:"caldav"`
	Timezone string         `koanf:"timezone"`
}

type DatabaseConfig struct {
	Path string `koanf:"path"`
}

type ServerConfig struct {
	Port     string `koanf:"port"`
	APIToken string `koanf:"api_token"`
}

type TelegramConfig struct {
	Token  string `koanf:"token"`
	ChatID int64  `koanf:"chat_id"`
}

type BackendConfig struct {
	URL             string        `koanf:"url"`
	RefreshInterval time.Duration `koanf:"refresh_interval"`
}

type SMSConfig struct {
	URL     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"`
}

type PollerConfig struct {
	Interval   time.Duration `koanf:"interval"`
	LeadWindow time.Duration `koanf:"lead_window"`
}

// SessionConfig points at the credential the poller uses. File wins over a
// fixed token.
type SessionConfig struct {
	File  string `koanf:"file"`
	Token string `koanf:"token"`
	Phone string `koanf:"phone"`
}

type CalDAVConfig struct {
	URL      string `koanf:"url"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	Calendar string `koanf:"calendar"`
}

// Load layers defaults, the optional YAML file and SR_* environment
// variables, in that order. SR_POLLER__INTERVAL sets poller.interval.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(NewDefaultProvider(), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath == "" {
		configPath = os.Getenv(ConfigPathEnv)
	}
	if configPath != "" {
		configPath = expandPath(configPath)
		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file: %w", err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Database.Path = expandPath(cfg.Database.Path)
	cfg.Session.File = expandPath(cfg.Session.File)

	return &cfg, nil
}

// Validate checks required fields and clamps the poll interval to its floor.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if c.Telegram.Token != "" && c.Telegram.ChatID == 0 {
		return fmt.Errorf("telegram.chat_id is required when telegram.token is set")
	}
	if c.SMS.URL != "" && c.Session.File == "" && c.Session.Token == "" {
		return fmt.Errorf("session.file or session.token is required when sms.url is set")
	}
	if c.Session.File == "" && c.Session.Token != "" && c.Session.Phone == "" {
		return fmt.Errorf("session.phone is required with session.token")
	}
	if c.CalDAV.URL != "" && (c.CalDAV.Username == "" || c.CalDAV.Password == "") {
		return fmt.Errorf("caldav.username and caldav.password are required when caldav.url is set")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid timezone: %w", err)
	}

	if c.Poller.Interval < MinPollInterval {
		c.Poller.Interval = MinPollInterval
	}
	if c.Poller.LeadWindow <= 0 {
		return fmt.Errorf("poller.lead_window must be positive")
	}
	if c.SMS.Timeout <= 0 {
		return fmt.Errorf("sms.timeout must be positive")
	}
	return nil
}

// Location is the zone due dates are interpreted in. Empty means the host's.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

func expandPath(path string) string {
	if path == "" {
		return path
	}

	if len(path) >= 2 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}

	return path
}
