// Package config loads the bot configuration. Sources by precedence:
// flags, environment (a .env file is loaded first), the octanebot.yaml
// config file, then defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/octanebot/octanebot/internal/octane"
)

const (
	// FileName is the config file searched for, without extension.
	FileName = "octanebot"
	// EnvFile is loaded into the environment before reading the config.
	EnvFile = ".env"
)

// ErrNoCredentials reports that neither credential pair is configured.
var ErrNoCredentials = errors.New("octane cannot run without octane credentials")

// Config is the resolved configuration.
type Config struct {
	Octane      octane.Config
	Credentials octane.Credentials
	Slack       Slack
	Bot         Bot
	Telemetry   Telemetry
	HealthPort  int
	Debug       bool
	File        string // config file read, if any
}

// Telemetry holds the OpenTelemetry exporter settings.
type Telemetry struct {
	Enabled  bool
	Stdout   bool
	Endpoint string
}

// Slack holds the Socket Mode tokens.
type Slack struct {
	BotToken string
	AppToken string
}

// Bot holds settings of the bot itself.
type Bot struct {
	Name        string
	StateFile   string
	InitTimeout time.Duration
}

// LoadDotEnv loads env files into the process environment without
// overriding variables already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{EnvFile}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// New returns a viper instance with every key's default and environment
// binding. When file is empty, octanebot.yaml is searched in the working
// directory and in $HOME/.config/octanebot; not finding it is not an error.
func New(file string) (*viper.Viper, error) {
	v := viper.New()
	for _, k := range Keys {
		if k.Default != nil {
			v.SetDefault(k.Key, k.Default)
		}
		if err := v.BindEnv(append([]string{k.Key}, k.EnvVars...)...); err != nil {
			return nil, fmt.Errorf("bind %s: %w", k.Key, err)
		}
	}

	v.SetConfigType("yaml")
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(FileName)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "octanebot"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return v, nil
}

// FromViper validates every key and builds the configuration.
func FromViper(v *viper.Viper) (*Config, error) {
	for _, k := range Keys {
		if err := ValidateKey(k.Key, v.GetString(k.Key)); err != nil {
			return nil, err
		}
	}
	return &Config{
		Octane: octane.Config{
			Protocol:    v.GetString("octane.protocol"),
			Host:        v.GetString("octane.host"),
			Port:        v.GetInt("octane.port"),
			SharedSpace: v.GetString("octane.sharedspace"),
			Workspace:   v.GetString("octane.workspace"),
			TechPreview: v.GetBool("octane.tech_preview"),
			Timeout:     v.GetDuration("octane.timeout"),
		},
		Credentials: credentials(v),
		Slack: Slack{
			BotToken: v.GetString("slack.bot_token"),
			AppToken: v.GetString("slack.app_token"),
		},
		Bot: Bot{
			Name:        v.GetString("bot.name"),
			StateFile:   v.GetString("bot.state_file"),
			InitTimeout: v.GetDuration("bot.init_timeout"),
		},
		Telemetry: Telemetry{
			Enabled:  v.GetBool("telemetry.enabled"),
			Stdout:   v.GetBool("telemetry.stdout"),
			Endpoint: v.GetString("telemetry.endpoint"),
		},
		HealthPort: v.GetInt("health_port"),
		Debug:      v.GetBool("debug"),
		File:       v.ConfigFileUsed(),
	}, nil
}

// Load reads the configuration from file (or the default search path) and
// the environment.
func Load(file string) (*Config, error) {
	v, err := New(file)
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

func credentials(v *viper.Viper) octane.Credentials {
	return octane.Credentials{
		Username:     v.GetString("octane.username"),
		Password:     v.GetString("octane.password"),
		ClientID:     v.GetString("octane.client_id"),
		ClientSecret: v.GetString("octane.client_secret"),
	}
}

// Validate checks that Octane can be reached and signed in to.
func (c *Config) Validate() error {
	if err := c.Octane.Validate(); err != nil {
		return err
	}
	if err := c.Credentials.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrNoCredentials, err)
	}
	return nil
}

// Setting is the effective value of one key.
type Setting struct {
	Key         string
	Value       string
	Description string
}

// Settings lists the effective value of every key in definition order.
// Secrets that are set are masked.
func Settings(v *viper.Viper) []Setting {
	out := make([]Setting, 0, len(Keys))
	for _, k := range Keys {
		value := v.GetString(k.Key)
		if k.Secret && value != "" {
			value = "********"
		}
		out = append(out, Setting{Key: k.Key, Value: value, Description: k.Description})
	}
	return out
}
