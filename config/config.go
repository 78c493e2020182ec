package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	DefaultRemoteTimeout   = 30 * time.Second
	DefaultMongoTimeout    = 10 * time.Second
	DefaultMongoCollection = "media"
)

func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterValidation("abspath", ValidateAbsPath)
	validate.RegisterValidation("pathpattern", ValidatePathPattern)
	validate.RegisterValidation("identifier", ValidateIdentifier)

	if err := validate.Struct(c); err != nil {
		return err
	}

	return nil
}

// ApplyDefaults fills in values left unset by the configuration file.
func (c *Config) ApplyDefaults() {
	if c.Media.Remote.Timeout == 0 {
		c.Media.Remote.Timeout = DefaultRemoteTimeout
	}

	if m := c.Index.Mongo; m != nil {
		if m.Timeout == 0 {
			m.Timeout = DefaultMongoTimeout
		}
		if strings.TrimSpace(m.Collection) == "" {
			m.Collection = DefaultMongoCollection
		}
	}
}

// LoadConfig reads a YAML configuration file, overlays PANTRY_* environment
// variables, applies defaults and validates the result.
func LoadConfig(file string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(file)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("pantry")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}
