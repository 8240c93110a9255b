package service

import (
	"github.com/bikecount/bikecount/pkg/logger"
	"github.com/bikecount/bikecount/pkg/messaging"
	"github.com/bikecount/bikecount/services/counter-bot/internal/models"
)

const EventReportPublished = "report.published"

// eventSender is the part of messaging.Client the report events need.
type eventSender interface {
	PublishEvent(exchange, eventType string, data interface{}) error
}

var _ eventSender = (messaging.Client)(nil)

// ReportEventPublisher announces published reports on the message bus.
// A nil sender or development mode turns it into a no-op; send failures are
// logged and counted but never returned, the post is already out by then.
type ReportEventPublisher struct {
	sender   eventSender
	exchange string
	devMode  bool
	logger   logger.Logger
	metrics  *Metrics
}

func NewReportEventPublisher(sender eventSender, exchange string, devMode bool, log logger.Logger, metrics *Metrics) *ReportEventPublisher {
	return &ReportEventPublisher{
		sender:   sender,
		exchange: exchange,
		devMode:  devMode,
		logger:   log,
		metrics:  metrics,
	}
}

func (p *ReportEventPublisher) ReportPublished(event models.ReportPublishedEvent) {
	if p == nil || p.sender == nil {
		return
	}
	if p.devMode {
		p.logger.Debug("Development mode, not publishing report event",
			logger.F("report", event.Report),
		)
		return
	}

	if err := p.sender.PublishEvent(p.exchange, EventReportPublished, event); err != nil {
		p.metrics.RecordEventError()
		p.logger.Warn("Failed to publish report event",
			logger.F("report", event.Report),
			logger.F("error", err.Error()),
		)
		return
	}

	p.logger.Info("Published report event",
		logger.F("report", event.Report),
		logger.F("exchange", p.exchange),
	)
}
