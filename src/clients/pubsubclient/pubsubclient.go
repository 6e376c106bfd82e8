package pubsubclient

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/sandrolain/iotsend/src/clients"
	"github.com/sandrolain/iotsend/src/clients/common"
	"github.com/sandrolain/iotsend/src/message"
	"google.golang.org/api/option"
)

type Config struct {
	ProjectID       string        `mapstructure:"projectId" validate:"required"`
	Topic           string        `mapstructure:"topic" default:"iot-messages" validate:"required"`
	CredentialsFile string        `mapstructure:"credentialsFile"` // Path to service account JSON file
	PublishTimeout  time.Duration `mapstructure:"publishTimeout" default:"10s" validate:"gt=0"`
}

// New creates a Google Pub/Sub telemetry client. Without a credentials
// file the client falls back to Application Default Credentials, which
// also covers the emulator via PUBSUB_EMULATOR_HOST.
func New(opts map[string]any) (clients.Client, error) {
	cfg, err := common.ParseConfig[Config](opts)
	if err != nil {
		return nil, err
	}

	if err := validateProjectID(cfg.ProjectID); err != nil {
		return nil, fmt.Errorf("project ID validation failed: %w", err)
	}
	if err := validateTopicName(cfg.Topic); err != nil {
		return nil, fmt.Errorf("topic name validation failed: %w", err)
	}

	l := slog.Default().With("context", "PubSub Client")

	var clientOpts []option.ClientOption
	if cfg.CredentialsFile != "" {
		l.Debug("using credentials file", "file", cfg.CredentialsFile)
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := pubsub.NewClient(context.Background(), cfg.ProjectID, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("error creating PubSub client: %w", err)
	}
	publisher := client.Publisher(cfg.Topic)

	l.Debug("PubSub endpoint ready", "projectID", cfg.ProjectID, "topic", cfg.Topic)

	return &PubSubClient{
		cfg:       cfg,
		slog:      l,
		client:    client,
		publisher: publisher,
	}, nil
}

type PubSubClient struct {
	cfg       *Config
	slog      *slog.Logger
	client    *pubsub.Client
	publisher *pubsub.Publisher
	verbose   bool
}

func (c *PubSubClient) SetVerbose(verbose bool) {
	c.verbose = verbose
}

// Stream publishes one message. Header properties travel as Pub/Sub
// attributes, the payload bytes as the message data. The publish
// result is awaited so a failed delivery surfaces as an error.
func (c *PubSubClient) Stream(headers string, payload io.Reader) error {
	msg, err := message.New(headers, payload)
	if err != nil {
		return fmt.Errorf("error reading payload: %w", err)
	}
	if msg.Truncated() {
		c.slog.Warn("payload exceeds max message size, sending truncated", "max", message.MaxMessageSize)
	}

	attributes := make(map[string]string)
	for _, p := range msg.Properties() {
		attributes[p.Key] = p.Value
	}

	if c.verbose {
		c.slog.Debug("publishing PubSub message", "topic", c.cfg.Topic, "bodysize", msg.Size())
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.PublishTimeout)
	defer cancel()

	result := c.publisher.Publish(ctx, &pubsub.Message{
		Data:       msg.Data(),
		Attributes: attributes,
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("error publishing to PubSub: %w", err)
	}

	if c.verbose {
		c.slog.Debug("PubSub message published", "topic", c.cfg.Topic)
	}
	return nil
}

func (c *PubSubClient) Close() error {
	if c.publisher != nil {
		c.publisher.Stop()
	}
	if c.client != nil {
		if err := c.client.Close(); err != nil {
			return fmt.Errorf("error closing PubSub client: %w", err)
		}
	}
	return nil
}
