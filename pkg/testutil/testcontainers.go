package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// ContainerConfig holds configuration for test containers
type ContainerConfig struct {
	RabbitMQVersion string
}

// DefaultContainerConfig returns default container versions
func DefaultContainerConfig() ContainerConfig {
	return ContainerConfig{
		RabbitMQVersion: "3.12-management",
	}
}

// RabbitMQContainer represents a RabbitMQ test container
type RabbitMQContainer struct {
	Container      testcontainers.Container
	URI            string
	Host           string
	AMQPPort       string
	ManagementPort string
}

// StartRabbitMQContainer starts a RabbitMQ container for testing
func StartRabbitMQContainer(ctx context.Context) (*RabbitMQContainer, error) {
	return StartRabbitMQContainerWithConfig(ctx, DefaultContainerConfig())
}

func StartRabbitMQContainerWithConfig(ctx context.Context, config ContainerConfig) (*RabbitMQContainer, error) {
	req := testcontainers.ContainerRequest{
		Image:        fmt.Sprintf("rabbitmq:%s", config.RabbitMQVersion),
		ExposedPorts: []string{"5672/tcp", "15672/tcp"},
		Env: map[string]string{
			"RABBITMQ_DEFAULT_USER": "test",
			"RABBITMQ_DEFAULT_PASS": "test",
		},
		WaitingFor: wait.ForAll(
			wait.ForLog("Server startup complete"),
			wait.ForListeningPort("5672/tcp"),
		).WithDeadline(90 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start RabbitMQ container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get RabbitMQ container host: %w", err)
	}

	amqpPort, err := container.MappedPort(ctx, "5672")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get RabbitMQ AMQP port: %w", err)
	}

	managementPort, err := container.MappedPort(ctx, "15672")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get RabbitMQ management port: %w", err)
	}

	return &RabbitMQContainer{
		Container:      container,
		URI:            fmt.Sprintf("amqp://test:test@%s:%s/", host, amqpPort.Port()),
		Host:           host,
		AMQPPort:       amqpPort.Port(),
		ManagementPort: managementPort.Port(),
	}, nil
}

// Close terminates the RabbitMQ container
func (r *RabbitMQContainer) Close(ctx context.Context) error {
	if r.Container != nil {
		return r.Container.Terminate(ctx)
	}
	return nil
}
