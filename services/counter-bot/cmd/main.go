package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	appconfig "github.com/bikecount/bikecount/pkg/config"
	"github.com/bikecount/bikecount/pkg/logger"
	"github.com/bikecount/bikecount/pkg/messaging"
	"github.com/bikecount/bikecount/services/counter-bot/internal/config"
	"github.com/bikecount/bikecount/services/counter-bot/internal/models"
	"github.com/bikecount/bikecount/services/counter-bot/internal/repository"
	"github.com/bikecount/bikecount/services/counter-bot/internal/service"
	"github.com/bikecount/bikecount/services/counter-bot/internal/utils"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	os.Exit(run())
}

func run() int {
	// .env is optional
	_ = godotenv.Load()

	// Create context
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Load application settings
	appCfg, err := appconfig.LoadConfig()
	if err != nil {
		log.Printf("Failed to load app config: %v", err)
		return 1
	}

	// Initialize logger
	runID := uuid.NewString()
	baseLogger := logger.New(appCfg.App.LogLevel, appCfg.App.LogFormat).WithFields(logger.Fields{
		"service": "counter-bot",
		"run_id":  runID,
	})

	// Load configuration
	cfg, err := config.LoadConfig(appconfig.GetEnv("COUNTER_BOT_CONFIG", "configs/counter_bot.yaml"))
	if err != nil {
		baseLogger.WithError(err).Error("Failed to load config")
		return 1
	}
	devMode := appCfg.IsDevelopment()
	if err := cfg.Validate(devMode); err != nil {
		baseLogger.WithError(err).Error("Invalid config")
		return 1
	}

	// Load counter registry
	counters, err := repository.LoadCounters(cfg.CountersFile)
	if err != nil {
		baseLogger.WithError(err).Error("Failed to load counters")
		return 1
	}

	// Initialize metrics
	metrics := service.NewMetrics(prometheus.NewRegistry())

	// Initialize publisher
	publisher, err := service.NewTelegramPublisher(cfg.Telegram.BotToken, cfg.Telegram.ChatID,
		cfg.Telegram.MaxLength, devMode, baseLogger)
	if err != nil {
		baseLogger.WithError(err).Error("Failed to create publisher")
		return 1
	}

	// Connect to RabbitMQ
	var events *service.ReportEventPublisher
	if cfg.Events.RabbitMQURL != "" && !devMode {
		client, err := messaging.NewClient(cfg.Events.RabbitMQURL, baseLogger)
		if err != nil {
			baseLogger.WithError(err).Warn("Report events disabled")
		} else {
			defer client.Close()
			client.SetMetadata("service", "counter-bot")
			client.SetMetadata("run_id", runID)
			if err := client.SetupTopology(cfg.Events.Exchange); err != nil {
				baseLogger.WithError(err).Warn("Failed to declare events exchange")
			}
			events = service.NewReportEventPublisher(client, cfg.Events.Exchange, devMode, baseLogger, metrics)
		}
	}

	// Initialize chart renderer
	var chart service.ChartRenderer
	if cfg.Chart.Enabled {
		if cfg.Chart.Format == config.ChartFormatASCII {
			chart = service.NewASCIIChartRenderer(cfg.Chart.Path)
		} else {
			chart = service.NewPNGChartRenderer(cfg.Chart.Path)
		}
	}

	// Initialize services
	runner := service.NewRunner(service.RunnerDeps{
		RunID:      runID,
		DevMode:    devMode,
		Counters:   counters,
		Fetcher:    service.NewCounterService(service.NewCounterAPIClient(cfg.APITimeout, baseLogger, metrics), cfg.ConcurrentFetch, baseLogger),
		Aggregator: service.NewAggregator(cfg.FlattenPolicy, baseLogger),
		Formatter:  utils.NewFormatter(cfg.Locale),
		Publisher:  publisher,
		Events:     events,
		Chart:      chart,
		ChartMode:  service.ChartMode(cfg.Chart.Mode),
		Metrics:    metrics,
		Logger:     baseLogger,
	})

	baseLogger.Info("Starting counter bot run",
		logger.F("reports", cfg.Reports()),
		logger.F("dev", devMode),
		logger.F("counters", len(counters)),
	)

	// Run reports
	failed := false
	for _, report := range cfg.Reports() {
		result := runner.Run(ctx, models.ReportKind(report))
		if result.Outcome == models.OutcomeFailed {
			failed = true
		}
	}

	// Export metrics
	if err := metrics.Export(cfg.Metrics.PushgatewayURL, cfg.Metrics.Textfile); err != nil {
		baseLogger.WithError(err).Warn("Failed to export metrics")
	}

	if failed && appCfg.App.FailOnError {
		return 1
	}
	return 0
}
