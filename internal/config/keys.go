package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Key describes one configuration key.
type Key struct {
	Key         string   // Full key name (e.g., "octane.host")
	Description string   // Human-readable description
	EnvVars     []string // Environment variables, first set wins
	Secret      bool     // Never printed by "config show"
	Default     any      // Default value (nil = no default)
	Validate    func(string) error
}

// Keys defines every configuration key.
var Keys = []Key{
	// Octane workspace
	{
		Key:         "octane.protocol",
		Description: "Octane server protocol (http or https)",
		EnvVars:     []string{"OCTANE_PROTOCOL", "HUBOT_OCTANE_PROTOCOL"},
		Default:     "https",
		Validate:    validateProtocol,
	},
	{
		Key:         "octane.host",
		Description: "Octane server host name",
		EnvVars:     []string{"OCTANE_HOST", "HUBOT_OCTANE_HOST"},
	},
	{
		Key:         "octane.port",
		Description: "Octane server port (empty = protocol default)",
		EnvVars:     []string{"OCTANE_PORT", "HUBOT_OCTANE_PORT"},
		Validate:    validatePort,
	},
	{
		Key:         "octane.sharedspace",
		Description: "Shared space id",
		EnvVars:     []string{"OCTANE_SHAREDSPACE", "HUBOT_OCTANE_SHAREDSPACE"},
	},
	{
		Key:         "octane.workspace",
		Description: "Workspace id",
		EnvVars:     []string{"OCTANE_WORKSPACE", "HUBOT_OCTANE_WORKSPACE"},
	},
	{
		Key:         "octane.tech_preview",
		Description: "Send the ALM-OCTANE-TECH-PREVIEW header",
		EnvVars:     []string{"OCTANE_TECH_PREVIEW"},
		Default:     true,
		Validate:    validateBool,
	},
	{
		Key:         "octane.timeout",
		Description: "Timeout of one Octane request (e.g., 30s)",
		EnvVars:     []string{"OCTANE_TIMEOUT"},
		Default:     "30s",
		Validate:    validateDuration,
	},
	// Octane credentials
	{
		Key:         "octane.username",
		Description: "Octane user name",
		EnvVars:     []string{"OCTANE_USERNAME", "HUBOT_OCTANE_USERNAME"},
	},
	{
		Key:         "octane.password",
		Description: "Octane password",
		EnvVars:     []string{"OCTANE_PASSWORD", "HUBOT_OCTANE_PASSWORD"},
		Secret:      true,
	},
	{
		Key:         "octane.client_id",
		Description: "Octane API client id",
		EnvVars:     []string{"OCTANE_CLIENT_ID", "HUBOT_OCTANE_CLIENT_ID"},
	},
	{
		Key:         "octane.client_secret",
		Description: "Octane API client secret",
		EnvVars:     []string{"OCTANE_CLIENT_SECRET", "HUBOT_OCTANE_CLIENT_SECRET"},
		Secret:      true,
	},
	// Slack
	{
		Key:         "slack.bot_token",
		Description: "Slack bot token (xoxb-...)",
		EnvVars:     []string{"SLACK_BOT_TOKEN", "HUBOT_SLACK_TOKEN"},
		Secret:      true,
	},
	{
		Key:         "slack.app_token",
		Description: "Slack app-level token for Socket Mode (xapp-...)",
		EnvVars:     []string{"SLACK_APP_TOKEN"},
		Secret:      true,
	},
	// Bot
	{
		Key:         "bot.name",
		Description: "Name users address the bot by",
		EnvVars:     []string{"OCTANEBOT_NAME", "HUBOT_NAME"},
		Default:     "hubot",
	},
	{
		Key:         "bot.state_file",
		Description: "File persisting display settings",
		EnvVars:     []string{"OCTANEBOT_STATE_FILE"},
		Default:     "octanebot_state.yaml",
	},
	{
		Key:         "bot.init_timeout",
		Description: "Time spent retrying each initialization step",
		EnvVars:     []string{"OCTANEBOT_INIT_TIMEOUT"},
		Default:     "2m",
		Validate:    validateDuration,
	},
	{
		Key:         "health_port",
		Description: "Port of the /healthz and /readyz endpoints",
		EnvVars:     []string{"OCTANEBOT_HEALTH_PORT"},
		Default:     8080,
		Validate:    validatePort,
	},
	{
		Key:         "debug",
		Description: "Enable debug logging",
		EnvVars:     []string{"OCTANEBOT_DEBUG"},
		Default:     false,
		Validate:    validateBool,
	},
	{
		Key:         "telemetry.enabled",
		Description: "Trace and count Octane requests with OpenTelemetry",
		EnvVars:     []string{"OCTANEBOT_OTEL_ENABLED"},
		Default:     false,
		Validate:    validateBool,
	},
	{
		Key:         "telemetry.stdout",
		Description: "Print spans and metrics to stdout",
		EnvVars:     []string{"OCTANEBOT_OTEL_STDOUT"},
		Default:     false,
		Validate:    validateBool,
	},
	{
		Key:         "telemetry.endpoint",
		Description: "OTLP/HTTP collector address, e.g. localhost:4318",
		EnvVars:     []string{"OCTANEBOT_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT"},
	},
}

// keyMap is a lookup table built from Keys.
var keyMap map[string]*Key

func init() {
	keyMap = make(map[string]*Key, len(Keys))
	for i := range Keys {
		keyMap[Keys[i].Key] = &Keys[i]
	}
}

// LookupKey returns the Key definition, or nil if key is unknown.
func LookupKey(key string) *Key {
	return keyMap[key]
}

// ValidateKey checks whether key is known and value is valid for it.
func ValidateKey(key, value string) error {
	k := keyMap[key]
	if k == nil {
		known := make([]string, 0, len(Keys))
		for _, k := range Keys {
			known = append(known, k.Key)
		}
		return fmt.Errorf("unknown key %q; valid keys: %s", key, strings.Join(known, ", "))
	}
	if k.Validate != nil && value != "" {
		if err := k.Validate(value); err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
	}
	return nil
}

// Validation helpers

func validatePort(value string) error {
	port, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("must be a number, got %q", value)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("must be between 1 and 65535, got %d", port)
	}
	return nil
}

func validateProtocol(value string) error {
	switch strings.ToLower(value) {
	case "http", "https":
		return nil
	default:
		return fmt.Errorf("must be http or https, got %q", value)
	}
}

func validateBool(value string) error {
	switch strings.ToLower(value) {
	case "true", "false", "1", "0", "t", "f":
		return nil
	default:
		return fmt.Errorf("must be true or false, got %q", value)
	}
}

func validateDuration(value string) error {
	if _, err := time.ParseDuration(value); err != nil {
		return fmt.Errorf("must be a duration such as 30s or 2m, got %q", value)
	}
	return nil
}
