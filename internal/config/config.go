package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath       = "config.toml"
	DefaultHTTPAddr         = ":8080"
	DefaultAPIBaseURL       = "https://api.chatwork.com/v1"
	DefaultUIBaseURL        = "https://kcw.kddi.ne.jp"
	DefaultTimeoutSeconds   = 10
	DefaultMessageMaxLength = 200
	DefaultSessionPath      = "data/cwui.json"
	DefaultWebhookPath      = "/webhook/github"

	// EnvPrefix prefixes the environment variables that override file values.
	EnvPrefix = "GCBOT_"

	MentionMatchWord      = "word"
	MentionMatchSubstring = "substring"
)

type Config struct {
	Log          LogConfig                `toml:"log" yaml:"log" envPrefix:"LOG_"`
	Server       ServerConfig             `toml:"server" yaml:"server" envPrefix:"SERVER_"`
	Webhook      WebhookConfig            `toml:"webhook" yaml:"webhook" envPrefix:"WEBHOOK_"`
	Chatwork     ChatworkConfig           `toml:"chatwork" yaml:"chatwork" envPrefix:"CHATWORK_"`
	Session      SessionConfig            `toml:"session" yaml:"session" envPrefix:"SESSION_"`
	Directory    DirectoryConfig          `toml:"directory" yaml:"directory"`
	Accounts     map[string]AccountConfig `toml:"accounts" yaml:"accounts" validate:"dive,keys,required,endkeys"`
	Repositories map[string][]string      `toml:"repositories" yaml:"repositories" validate:"min=1,dive,keys,required,endkeys,min=1,dive,numeric"`
}

type LogConfig struct {
	Level  string `toml:"level" yaml:"level" env:"LEVEL" validate:"omitempty,oneof=debug info warn warning error critical"`
	Format string `toml:"format" yaml:"format" env:"FORMAT" validate:"omitempty,oneof=text json"`
}

type ServerConfig struct {
	Addr string `toml:"addr" yaml:"addr" env:"ADDR"`
}

type WebhookConfig struct {
	Path   string `toml:"path" yaml:"path" validate:"startswith=/"`
	Secret string `toml:"secret" yaml:"secret" env:"SECRET"`
}

type ChatworkConfig struct {
	Token            string   `toml:"token" yaml:"token" env:"TOKEN" validate:"required"`
	APIBaseURL       string   `toml:"api_base_url" yaml:"api_base_url" validate:"url"`
	TimeoutSeconds   int      `toml:"timeout_seconds" yaml:"timeout_seconds" validate:"gt=0"`
	MessageMaxLength int      `toml:"message_max_length" yaml:"message_max_length" validate:"gte=16"`
	UI               UIConfig `toml:"ui" yaml:"ui" envPrefix:"UI_"`
}

// UIConfig holds the browser-session credentials used to post chat messages
// as a real account instead of through the token API.
type UIConfig struct {
	Enabled  bool   `toml:"enabled" yaml:"enabled"`
	BaseURL  string `toml:"base_url" yaml:"base_url" validate:"url"`
	Email    string `toml:"email" yaml:"email" env:"EMAIL" validate:"required_if=Enabled true"`
	ID       string `toml:"id" yaml:"id" env:"ID" validate:"required_if=Enabled true"`
	Password string `toml:"password" yaml:"password" env:"PASSWORD" validate:"required_if=Enabled true"`
}

type SessionConfig struct {
	Path string `toml:"path" yaml:"path" env:"PATH" validate:"required"`
	// RefreshSchedule is a cron spec for re-logging the UI session in the
	// background. Empty disables it.
	RefreshSchedule string `toml:"refresh_schedule" yaml:"refresh_schedule" env:"REFRESH_SCHEDULE"`
}

type DirectoryConfig struct {
	MentionMatch string `toml:"mention_match" yaml:"mention_match" validate:"oneof=word substring"`
}

// AccountConfig maps one GitHub login to its Chatwork account and the rooms
// that should hear about events addressed to that person.
type AccountConfig struct {
	ChatworkID string   `toml:"chatwork_id" yaml:"chatwork_id" validate:"required,numeric"`
	Rooms      []string `toml:"rooms" yaml:"rooms" validate:"dive,numeric"`
}

func (c ChatworkConfig) Timeout() int {
	if c.TimeoutSeconds <= 0 {
		return DefaultTimeoutSeconds
	}
	return c.TimeoutSeconds
}

// Logins returns the configured GitHub logins in ascending order.
func (c Config) Logins() []string {
	logins := make([]string, 0, len(c.Accounts))
	for login := range c.Accounts {
		logins = append(logins, login)
	}
	sort.Strings(logins)
	return logins
}

func defaults() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Webhook: WebhookConfig{
			Path: DefaultWebhookPath,
		},
		Chatwork: ChatworkConfig{
			APIBaseURL:       DefaultAPIBaseURL,
			TimeoutSeconds:   DefaultTimeoutSeconds,
			MessageMaxLength: DefaultMessageMaxLength,
			UI: UIConfig{
				BaseURL: DefaultUIBaseURL,
			},
		},
		Session: SessionConfig{
			Path: DefaultSessionPath,
		},
		Directory: DirectoryConfig{
			MentionMatch: MentionMatchWord,
		},
	}
}

// Load reads the config file at path, falling back to DefaultConfigPath.
// Files ending in .yaml or .yml are decoded as YAML, everything else as TOML.
// A missing file yields the defaults, which fail Validate until a token and
// repository map are supplied. GCBOT_* environment variables override secrets
// and paths from either source.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path == "" {
		path = DefaultConfigPath
	}

	if err := decodeFile(path, &cfg); err != nil {
		return cfg, err
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("decode env: %w", err)
	}

	cfg.normalize()
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode yaml: %w", err)
		}
	default:
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return fmt.Errorf("decode toml: %w", err)
		}
	}
	return nil
}

func (c *Config) normalize() {
	c.Chatwork.Token = strings.TrimSpace(c.Chatwork.Token)
	c.Chatwork.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.Chatwork.APIBaseURL), "/")
	c.Chatwork.UI.BaseURL = strings.TrimRight(strings.TrimSpace(c.Chatwork.UI.BaseURL), "/")
	c.Session.RefreshSchedule = strings.TrimSpace(c.Session.RefreshSchedule)
	c.Directory.MentionMatch = strings.ToLower(strings.TrimSpace(c.Directory.MentionMatch))
	if c.Directory.MentionMatch == "" {
		c.Directory.MentionMatch = MentionMatchWord
	}
}

// Validate reports configuration failures that make relaying impossible.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if spec := c.Session.RefreshSchedule; spec != "" {
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("invalid config: session.refresh_schedule %q: %w", spec, err)
		}
	}
	return nil
}
