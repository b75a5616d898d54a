// Package config loads fokus.yaml and applies environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/fokus/go/internal/focus"
	"github.com/mcdev12/fokus/go/internal/models"
	"github.com/mcdev12/fokus/go/internal/sharedtimer"
	"github.com/mcdev12/fokus/go/internal/sharedtimer/natskv"
)

// DefaultPath is where binaries look for the config file unless FOKUS_CONFIG
// says otherwise.
const DefaultPath = "fokus.yaml"

type Config struct {
	LogLevel string          `yaml:"log_level"`
	Settings models.Settings `yaml:"settings"`
	Timer    TimerConfig     `yaml:"timer"`
	NATS     NATSConfig      `yaml:"nats"`
	HTTP     HTTPConfig      `yaml:"http"`
}

type TimerConfig struct {
	Key                string        `yaml:"key"`
	ClientID           string        `yaml:"client_id"`
	ProjectionInterval time.Duration `yaml:"projection_interval"`
	EchoWindow         time.Duration `yaml:"echo_window"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	TickInterval       time.Duration `yaml:"tick_interval"` // websocket TimerTick cadence
}

type NATSConfig struct {
	URL    string `yaml:"url"`
	Bucket string `yaml:"bucket"`
	// Disabled runs the shared timer on an in-process store.
	Disabled bool `yaml:"disabled"`
}

type HTTPConfig struct {
	Port           string   `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

func Default() Config {
	timer := sharedtimer.DefaultConfig()
	kv := natskv.DefaultConfig()
	return Config{
		LogLevel: "info",
		Settings: models.DefaultSettings(),
		Timer: TimerConfig{
			Key:                timer.TimerKey,
			ProjectionInterval: timer.ProjectionInterval,
			EchoWindow:         timer.EchoWindow,
			WriteTimeout:       timer.WriteTimeout,
			TickInterval:       time.Second,
		},
		NATS: NATSConfig{
			URL:    kv.URL,
			Bucket: kv.Bucket,
		},
		HTTP: HTTPConfig{
			Port:           "8080",
			AllowedOrigins: []string{"*"},
		},
	}
}

// Load reads path over the defaults, then applies environment overrides. A
// missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()
	if cfg.Timer.ClientID == "" {
		cfg.Timer.ClientID = "fokus-" + uuid.NewString()[:8]
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)
	c.NATS.Bucket = getEnv("FOKUS_TIMER_BUCKET", c.NATS.Bucket)
	c.NATS.Disabled = getEnvAsBool("FOKUS_NATS_DISABLED", c.NATS.Disabled)
	c.HTTP.Port = getEnv("FOKUS_HTTP_PORT", c.HTTP.Port)
	if origins := os.Getenv("FOKUS_CORS_ORIGINS"); origins != "" {
		c.HTTP.AllowedOrigins = splitList(origins)
	}
	c.Timer.Key = getEnv("FOKUS_TIMER_KEY", c.Timer.Key)
	c.Timer.ClientID = getEnv("FOKUS_CLIENT_ID", c.Timer.ClientID)
	c.Settings.TabSwitchPenalty = getEnvAsInt("FOKUS_TAB_SWITCH_PENALTY", c.Settings.TabSwitchPenalty)
	c.Settings.RewardPointsPerMinute = getEnvAsInt("FOKUS_POINTS_PER_MINUTE", c.Settings.RewardPointsPerMinute)
}

// Validate rejects settings the engines cannot run with.
func (c Config) Validate() error {
	s := c.Settings
	switch {
	case s.TabSwitchPenalty < 0:
		return fmt.Errorf("invalid config: tab_switch_penalty must not be negative")
	case s.RewardPointsPerMinute < 0:
		return fmt.Errorf("invalid config: reward_points_per_minute must not be negative")
	case s.DefaultFocusMinutes <= 0 || s.DefaultFocusMinutes > focus.MaxFocusMinutes:
		return fmt.Errorf("invalid config: default_focus_minutes must be between 1 and %d", focus.MaxFocusMinutes)
	case s.PenaltyDebounce < 0:
		return fmt.Errorf("invalid config: penalty_debounce must not be negative")
	case c.Timer.Key == "":
		return fmt.Errorf("invalid config: timer key is required")
	case c.Timer.ProjectionInterval <= 0, c.Timer.EchoWindow <= 0, c.Timer.WriteTimeout <= 0, c.Timer.TickInterval <= 0:
		return fmt.Errorf("invalid config: timer intervals must be positive")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid config: log_level: %w", err)
	}
	return nil
}

// Level returns the configured log level, info if unparseable.
func (c Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

func (c Config) Reconciler() sharedtimer.Config {
	return sharedtimer.Config{
		TimerKey:           c.Timer.Key,
		ClientID:           c.Timer.ClientID,
		ProjectionInterval: c.Timer.ProjectionInterval,
		EchoWindow:         c.Timer.EchoWindow,
		WriteTimeout:       c.Timer.WriteTimeout,
	}
}

func (c Config) NATSKV(clientName string) natskv.Config {
	kv := natskv.DefaultConfig()
	kv.URL = c.NATS.URL
	kv.Bucket = c.NATS.Bucket
	kv.ClientName = clientName
	return kv
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
