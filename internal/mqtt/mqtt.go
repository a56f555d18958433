// Package mqtt publishes terminal classification jobs to an MQTT broker.
package mqtt

import (
	"context"
	"sync"
	"time"

	"github.com/Demr1on/batmap-app/internal/conf"
	"github.com/Demr1on/batmap-app/internal/logger"
)

// Client defines the interface for MQTT client operations.
type Client interface {
	// Connect attempts to connect to the MQTT broker.
	// It returns an error if the connection fails.
	Connect(ctx context.Context) error

	// Publish sends a message to the specified topic on the MQTT broker.
	// It returns an error if the publish operation fails.
	Publish(ctx context.Context, topic string, payload []byte) error

	// IsConnected returns true if the client is currently connected to the MQTT broker.
	IsConnected() bool

	// Disconnect closes the connection to the MQTT broker.
	Disconnect()
}

// Config holds the configuration for the MQTT client.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string // topic job results are published to
	Retain   bool

	ReconnectDelay    time.Duration // first retry delay, doubled up to MaxReconnectDelay
	MaxReconnectDelay time.Duration
	// Connection timeouts
	ConnectTimeout    time.Duration
	PublishTimeout    time.Duration
	DisconnectTimeout time.Duration
}

var (
	serviceLogger logger.Logger
	initOnce      sync.Once
)

// GetLogger returns the MQTT logger.
func GetLogger() logger.Logger {
	initOnce.Do(func() {
		serviceLogger = logger.Global().Module("mqtt")
	})
	return serviceLogger
}

// DefaultConfig returns a Config with reasonable default values
func DefaultConfig() Config {
	return Config{
		ClientID:          "batmap",
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 5 * time.Minute,
		ConnectTimeout:    30 * time.Second,
		PublishTimeout:    10 * time.Second,
		DisconnectTimeout: 250 * time.Millisecond,
	}
}

// ConfigFromSettings overlays the mqtt section of the application settings
// on DefaultConfig.
func ConfigFromSettings(settings *conf.MQTTSettings) Config {
	cfg := DefaultConfig()
	if settings == nil {
		return cfg
	}
	cfg.Broker = settings.Broker
	cfg.Topic = settings.Topic
	cfg.Username = settings.Username
	cfg.Password = settings.Password
	if settings.ClientID != "" {
		cfg.ClientID = settings.ClientID
	}
	return cfg
}
