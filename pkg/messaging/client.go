package messaging

import (
	"time"

	"github.com/bikecount/bikecount/pkg/logger"
	"github.com/google/uuid"
)

// Client is the interface for messaging operations used by services
type Client interface {
	SetupTopology(exchange string) error
	PublishEvent(exchange, eventType string, data interface{}) error
	SetMetadata(key string, value interface{})
	Close() error
}

// NewClient dials the broker and returns a publish-only client.
func NewClient(url string, log logger.Logger) (Client, error) {
	return NewRabbitMQ(url, log)
}

type Message struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

func NewMessage(msgType string, data interface{}) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Data:      data,
		Metadata:  make(map[string]interface{}),
	}
}
