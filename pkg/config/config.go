package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config holds the process-wide settings shared by every service in the repo.
type Config struct {
	App AppConfig
}

type AppConfig struct {
	Env         string
	Dev         bool
	LogLevel    string
	LogFormat   string
	FailOnError bool
}

// IsDevelopment reports whether publishing side effects must be suppressed.
func (c *Config) IsDevelopment() bool {
	return c.App.Dev
}

func LoadConfig() (*Config, error) {
	return load(viper.New(), ".")
}

func LoadConfigFrom(path string) (*Config, error) {
	return load(viper.New(), path)
}

func load(v *viper.Viper, path string) (*Config, error) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(path)
	v.AddConfigPath("./config")

	v.SetEnvPrefix("BIKECOUNT")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	setDefaults(v)
	if err := bindEnvVariables(v); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "production")
	v.SetDefault("app.dev", false)
	v.SetDefault("app.loglevel", "info")
	v.SetDefault("app.logformat", "json")
	v.SetDefault("app.failonerror", false)
}

func bindEnvVariables(v *viper.Viper) error {
	bindings := map[string]string{
		"app.env":         "APP_ENV",
		"app.dev":         "DEV",
		"app.loglevel":    "LOG_LEVEL",
		"app.logformat":   "LOG_FORMAT",
		"app.failonerror": "FAIL_ON_ERROR",
	}

	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	return nil
}

func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
