package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/bikecount/bikecount/pkg/logger"
	"github.com/streadway/amqp"
)

// amqpChannel is the subset of *amqp.Channel the publisher needs.
type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type RabbitMQ struct {
	conn     *amqp.Connection
	channel  amqpChannel
	metadata map[string]interface{}
	logger   logger.Logger
}

func NewRabbitMQ(url string, log logger.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	log.Info("Connected to RabbitMQ")

	return &RabbitMQ{
		conn:     conn,
		channel:  ch,
		metadata: make(map[string]interface{}),
		logger:   log,
	}, nil
}

func newRabbitMQWithChannel(ch amqpChannel, log logger.Logger) *RabbitMQ {
	return &RabbitMQ{
		channel:  ch,
		metadata: make(map[string]interface{}),
		logger:   log,
	}
}

// SetMetadata attaches key to the metadata of every event published afterwards.
func (r *RabbitMQ) SetMetadata(key string, value interface{}) {
	r.metadata[key] = value
}

func (r *RabbitMQ) Close() error {
	if err := r.channel.Close(); err != nil {
		return fmt.Errorf("failed to close channel: %w", err)
	}
	if r.conn != nil {
		if err := r.conn.Close(); err != nil {
			return fmt.Errorf("failed to close connection: %w", err)
		}
	}
	return nil
}

func (r *RabbitMQ) DeclareExchange(name, kind string, durable, autoDelete bool) error {
	return r.channel.ExchangeDeclare(
		name,
		kind,
		durable,
		autoDelete,
		false,
		false,
		nil,
	)
}

func (r *RabbitMQ) Publish(exchange, routingKey string, message interface{}) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	return r.channel.Publish(
		exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
}

// PublishEvent wraps data in a Message envelope and routes it by event type.
func (r *RabbitMQ) PublishEvent(exchange, eventType string, data interface{}) error {
	message := NewMessage(eventType, data)
	for k, v := range r.metadata {
		message.Metadata[k] = v
	}
	if err := r.Publish(exchange, eventType, message); err != nil {
		return fmt.Errorf("failed to publish %s: %w", eventType, err)
	}

	r.logger.Debug("Published event",
		logger.F("exchange", exchange),
		logger.F("type", eventType),
		logger.F("message_id", message.ID),
	)
	return nil
}

// SetupTopology declares the durable topic exchange events are published to.
func (r *RabbitMQ) SetupTopology(exchange string) error {
	if err := r.DeclareExchange(exchange, "topic", true, false); err != nil {
		return fmt.Errorf("failed to declare %s exchange: %w", exchange, err)
	}
	return nil
}
