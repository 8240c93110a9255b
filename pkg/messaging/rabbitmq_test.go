package messaging

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/bikecount/bikecount/pkg/logger"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// MockAMQPChannel is a mock implementation of amqpChannel
type MockAMQPChannel struct {
	mock.Mock
	PublishedMessages []amqp.Publishing
}

func (m *MockAMQPChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	callArgs := m.Called(name, kind, durable, autoDelete)
	return callArgs.Error(0)
}

func (m *MockAMQPChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	m.PublishedMessages = append(m.PublishedMessages, msg)
	args := m.Called(exchange, key)
	return args.Error(0)
}

func (m *MockAMQPChannel) Close() error {
	args := m.Called()
	return args.Error(0)
}

type RabbitMQTestSuite struct {
	suite.Suite
	channel *MockAMQPChannel
	rabbit  *RabbitMQ
}

func (s *RabbitMQTestSuite) SetupTest() {
	s.channel = new(MockAMQPChannel)
	s.rabbit = newRabbitMQWithChannel(s.channel, logger.NewNop())
}

func TestRabbitMQTestSuite(t *testing.T) {
	suite.Run(t, new(RabbitMQTestSuite))
}

func (s *RabbitMQTestSuite) TestSetupTopology_DeclaresDurableTopicExchange() {
	s.channel.On("ExchangeDeclare", "bikecount.events", "topic", true, false).Return(nil)

	s.NoError(s.rabbit.SetupTopology("bikecount.events"))
	s.channel.AssertExpectations(s.T())
}

func (s *RabbitMQTestSuite) TestSetupTopology_Error() {
	s.channel.On("ExchangeDeclare", "bikecount.events", "topic", true, false).Return(errors.New("denied"))

	err := s.rabbit.SetupTopology("bikecount.events")
	s.Error(err)
	s.Contains(err.Error(), "bikecount.events")
}

func (s *RabbitMQTestSuite) TestPublishEvent_WrapsDataInEnvelope() {
	s.channel.On("Publish", "bikecount.events", "report.published").Return(nil)

	err := s.rabbit.PublishEvent("bikecount.events", "report.published", map[string]int{"total": 105})
	s.Require().NoError(err)
	s.Require().Len(s.channel.PublishedMessages, 1)

	published := s.channel.PublishedMessages[0]
	s.Equal("application/json", published.ContentType)
	s.Equal(amqp.Persistent, published.DeliveryMode)

	var msg Message
	s.Require().NoError(json.Unmarshal(published.Body, &msg))
	s.Equal("report.published", msg.Type)
	s.NotEmpty(msg.ID)
	s.Equal(map[string]interface{}{"total": float64(105)}, msg.Data)
}

func (s *RabbitMQTestSuite) TestPublishEvent_CarriesMetadata() {
	s.channel.On("Publish", "bikecount.events", "report.published").Return(nil)
	s.rabbit.SetMetadata("run_id", "run-1")
	s.rabbit.SetMetadata("service", "counter-bot")

	s.Require().NoError(s.rabbit.PublishEvent("bikecount.events", "report.published", nil))
	s.Require().NoError(s.rabbit.PublishEvent("bikecount.events", "report.published", nil))
	s.Require().Len(s.channel.PublishedMessages, 2)

	for _, published := range s.channel.PublishedMessages {
		var msg Message
		s.Require().NoError(json.Unmarshal(published.Body, &msg))
		s.Equal(map[string]interface{}{"run_id": "run-1", "service": "counter-bot"}, msg.Metadata)
	}
}

func (s *RabbitMQTestSuite) TestPublishEvent_Error() {
	s.channel.On("Publish", "bikecount.events", "report.published").Return(errors.New("channel closed"))

	err := s.rabbit.PublishEvent("bikecount.events", "report.published", nil)
	s.Error(err)
	s.Contains(err.Error(), "channel closed")
}

func (s *RabbitMQTestSuite) TestPublish_UnmarshalableMessage() {
	err := s.rabbit.Publish("bikecount.events", "x", make(chan int))
	s.Error(err)
	s.Empty(s.channel.PublishedMessages)
}

func (s *RabbitMQTestSuite) TestClose_ChannelOnly() {
	s.channel.On("Close").Return(nil)

	s.NoError(s.rabbit.Close())
	s.channel.AssertExpectations(s.T())
}

func TestNewMessage(t *testing.T) {
	msg := NewMessage("report.published", map[string]string{"key": "value"})
	other := NewMessage("report.published", nil)

	require.NotEmpty(t, msg.ID)
	assert.NotEqual(t, msg.ID, other.ID)
	assert.Equal(t, "report.published", msg.Type)
	assert.NotNil(t, msg.Metadata)
	assert.True(t, time.Since(msg.Timestamp) < time.Second)
}
