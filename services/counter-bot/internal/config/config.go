package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/bikecount/bikecount/services/counter-bot/internal/models"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	ReportWeekly = "weekly"
	ReportYearly = "yearly"
	ReportAll    = "all"

	ChartCumulative = "cumulative"
	ChartDaily      = "daily"

	ChartFormatPNG   = "png"
	ChartFormatASCII = "ascii"
)

type Config struct {
	Report          string               `yaml:"report" envconfig:"REPORT"`
	CountersFile    string               `yaml:"counters_file" envconfig:"COUNTERS_FILE"`
	APITimeout      time.Duration        `yaml:"api_timeout" envconfig:"COUNTER_API_TIMEOUT"`
	ConcurrentFetch bool                 `yaml:"concurrent_fetch" envconfig:"CONCURRENT_FETCH"`
	FlattenPolicy   models.FlattenPolicy `yaml:"flatten_policy" envconfig:"FLATTEN_POLICY"`
	Locale          string               `yaml:"locale" envconfig:"REPORT_LOCALE"`
	Telegram        TelegramConfig       `yaml:"telegram"`
	Chart           ChartConfig          `yaml:"chart"`
	Events          EventsConfig         `yaml:"events"`
	Metrics         MetricsConfig        `yaml:"metrics"`
}

type TelegramConfig struct {
	BotToken  string `yaml:"bot_token" envconfig:"TELEGRAM_BOT_TOKEN"`
	ChatID    int64  `yaml:"chat_id" envconfig:"TELEGRAM_CHAT_ID"`
	MaxLength int    `yaml:"max_length" envconfig:"PUBLISHER_MAX_LENGTH"`
}

type ChartConfig struct {
	Enabled bool   `yaml:"enabled" envconfig:"CHART_ENABLED"`
	Path    string `yaml:"path" envconfig:"CHART_PATH"`
	Mode    string `yaml:"mode" envconfig:"CHART_MODE"`
	Format  string `yaml:"format" envconfig:"CHART_FORMAT"`
}

type EventsConfig struct {
	RabbitMQURL string `yaml:"rabbitmq_url" envconfig:"RABBITMQ_URL"`
	Exchange    string `yaml:"exchange" envconfig:"RABBITMQ_EXCHANGE"`
}

type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url" envconfig:"PUSHGATEWAY_URL"`
	Textfile       string `yaml:"textfile" envconfig:"METRICS_TEXTFILE"`
}

// LoadConfig reads the optional YAML file at path, overlays environment
// variables and fills in defaults. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to open config: %w", err)
			}
		} else {
			defer file.Close()
			decoder := yaml.NewDecoder(file)
			decoder.KnownFields(true)
			if err := decoder.Decode(cfg); err != nil {
				return nil, fmt.Errorf("failed to decode config: %w", err)
			}
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Report == "" {
		cfg.Report = ReportWeekly
	}
	if cfg.APITimeout == 0 {
		cfg.APITimeout = 10 * time.Second
	}
	if cfg.FlattenPolicy == "" {
		cfg.FlattenPolicy = models.FlattenPolicyStrict
	}
	if cfg.Locale == "" {
		cfg.Locale = "en"
	}
	if cfg.Telegram.MaxLength == 0 {
		cfg.Telegram.MaxLength = 1024
	}
	if cfg.Chart.Mode == "" {
		cfg.Chart.Mode = ChartCumulative
	}
	if cfg.Chart.Format == "" {
		cfg.Chart.Format = ChartFormatPNG
	}
	if cfg.Chart.Path == "" {
		if cfg.Chart.Format == ChartFormatASCII {
			cfg.Chart.Path = "yearly_chart.txt"
		} else {
			cfg.Chart.Path = "yearly_chart.png"
		}
	}
	if cfg.Events.Exchange == "" {
		cfg.Events.Exchange = "bikecount.events"
	}
}

// Validate checks the configuration. Telegram credentials are only required
// when posts actually go out.
func (c *Config) Validate(devMode bool) error {
	switch c.Report {
	case ReportWeekly, ReportYearly, ReportAll:
	default:
		return fmt.Errorf("REPORT must be one of weekly, yearly, all (got %q)", c.Report)
	}

	if !c.FlattenPolicy.Valid() {
		return fmt.Errorf("FLATTEN_POLICY must be strict or best_effort (got %q)", c.FlattenPolicy)
	}

	switch c.Chart.Mode {
	case ChartCumulative, ChartDaily:
	default:
		return fmt.Errorf("CHART_MODE must be cumulative or daily (got %q)", c.Chart.Mode)
	}

	switch c.Chart.Format {
	case ChartFormatPNG, ChartFormatASCII:
	default:
		return fmt.Errorf("CHART_FORMAT must be png or ascii (got %q)", c.Chart.Format)
	}

	if c.APITimeout < 0 {
		return fmt.Errorf("COUNTER_API_TIMEOUT must be positive")
	}
	if c.Telegram.MaxLength <= 10 {
		return fmt.Errorf("PUBLISHER_MAX_LENGTH must be greater than 10")
	}

	if !devMode {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
		}
		if c.Telegram.ChatID == 0 {
			return fmt.Errorf("TELEGRAM_CHAT_ID is required")
		}
	}

	return nil
}

// Reports expands the REPORT setting into the reports to run, in order.
func (c *Config) Reports() []string {
	if c.Report == ReportAll {
		return []string{ReportWeekly, ReportYearly}
	}
	return []string{c.Report}
}
