// Package config loads settings for the envelope command from a YAML file
// and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file settings
const (
	EnvKeyFile         = "ENVELOPE_KEY_FILE"
	EnvLogLevel        = "LOG_LEVEL"
	EnvMetricsTextfile = "ENVELOPE_METRICS_TEXTFILE"
)

// DefaultKeyFile is used when neither the file nor the environment names one
const DefaultKeyFile = "master-key.json"

// validate is a singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Config holds the envelope command settings
type Config struct {
	// KeyFile is the master key file read by encrypt and decrypt and
	// written by keygen.
	KeyFile string `yaml:"key_file" validate:"required"`

	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// MetricsTextfile, when set, receives a Prometheus text exposition of
	// the run's metrics on exit.
	MetricsTextfile string `yaml:"metrics_textfile" validate:"omitempty,endswith=.prom"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		KeyFile:  DefaultKeyFile,
		LogLevel: "info",
	}
}

// Load reads the YAML file at path, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides settings from the environment
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvKeyFile); v != "" {
		c.KeyFile = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvMetricsTextfile); v != "" {
		c.MetricsTextfile = v
	}
	c.LogLevel = strings.ToLower(c.LogLevel)
}

// Validate checks the configuration against its struct tags
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// formatValidationError converts validator errors to user-friendly messages
func formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	messages := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		switch fe.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s: required field is empty", fe.Field()))
		case "oneof":
			messages = append(messages, fmt.Sprintf("%s: %q must be one of [%s]", fe.Field(), fe.Value(), fe.Param()))
		case "endswith":
			messages = append(messages, fmt.Sprintf("%s: %q must end with %s", fe.Field(), fe.Value(), fe.Param()))
		default:
			messages = append(messages, fmt.Sprintf("%s: failed %s validation", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(messages, "; "))
}
