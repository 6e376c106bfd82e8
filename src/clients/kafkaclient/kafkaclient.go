package kafkaclient

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/sandrolain/iotsend/src/clients"
	"github.com/sandrolain/iotsend/src/clients/common"
	"github.com/sandrolain/iotsend/src/common/tlsconfig"
	"github.com/sandrolain/iotsend/src/message"
	"github.com/segmentio/kafka-go"
)

// Config defines the configuration for a Kafka telemetry endpoint.
type Config struct {
	// Brokers is the list of Kafka broker addresses.
	// Example: ["localhost:9092", "localhost:9093"]
	Brokers []string `mapstructure:"brokers" validate:"required,min=1"`

	// Topic is the Kafka topic messages are published to.
	// Can be overridden per message by TopicFromProperty.
	// Default: "iot-messages"
	Topic string `mapstructure:"topic" default:"iot-messages" validate:"required"`

	// TopicFromProperty is a header property key. When the message
	// carries that property, its value replaces the configured Topic.
	TopicFromProperty string `mapstructure:"topicFromProperty"`

	// KeyFromProperty is a header property key whose value becomes the
	// Kafka record key. Messages without the property are sent keyless.
	KeyFromProperty string `mapstructure:"keyFromProperty"`

	// CreateTopic ensures the configured topic exists before sending,
	// creating it with Partitions and ReplicationFactor when missing.
	// Default: true
	CreateTopic bool `mapstructure:"createTopic" default:"true"`

	// Partitions is the number of partitions used when creating the topic.
	// Default: 1
	Partitions int `mapstructure:"partitions" default:"1" validate:"gt=0"`

	// ReplicationFactor is the number of replicas used when creating the topic.
	// Default: 1
	ReplicationFactor int `mapstructure:"replicationFactor" default:"1" validate:"gt=0"`

	// WriteTimeout is the maximum time to wait for the write operation.
	// Default: 10 seconds
	WriteTimeout time.Duration `mapstructure:"writeTimeout" default:"10s" validate:"gt=0"`

	// RequiredAcks determines the number of broker acknowledgments required.
	// -1 = all in-sync replicas (safest, slowest)
	//  0 = no acknowledgment (fastest, unsafe)
	//  1 = leader only (balanced)
	// Default: -1 (all replicas)
	RequiredAcks int `mapstructure:"requiredAcks" default:"-1" validate:"min=-1,max=1"`

	// TLS holds TLS/SSL configuration for secure connections.
	TLS *tlsconfig.Config `mapstructure:"tls"`

	// SASL holds SASL authentication configuration.
	SASL *SASLConfig `mapstructure:"sasl"`
}

// New builds a Kafka telemetry client. The writer itself dials lazily;
// when CreateTopic is set the brokers are contacted here so a missing
// or unreachable cluster fails the client creation, not the send.
func New(opts map[string]any) (clients.Client, error) {
	cfg, err := common.ParseConfig[Config](opts)
	if err != nil {
		return nil, fmt.Errorf("invalid Kafka options: %w", err)
	}

	l := slog.Default().With("context", "Kafka Client")

	dialer, err := buildDialer(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.CreateTopic {
		if err := ensureTopic(l, dialer, cfg.Brokers, cfg.Topic, cfg.Partitions, cfg.ReplicationFactor); err != nil {
			return nil, fmt.Errorf("error creating/verifying topic: %w", err)
		}
	}

	// The topic stays off the writer so it can be set per message when
	// TopicFromProperty resolves a different one.
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      cfg.Brokers,
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    1,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: cfg.RequiredAcks,
		Dialer:       dialer,
	})

	useTLS := tlsconfig.IsEnabled(cfg.TLS)
	useSASL := cfg.SASL != nil && cfg.SASL.Enabled
	l.Debug("Kafka endpoint configured",
		"brokers", cfg.Brokers,
		"topic", cfg.Topic,
		"tls", useTLS,
		"sasl", useSASL,
	)

	return &KafkaClient{
		cfg:    cfg,
		slog:   l,
		writer: writer,
	}, nil
}

// buildDialer creates a Kafka dialer with TLS and SASL configuration.
func buildDialer(cfg *Config) (*kafka.Dialer, error) {
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	if tlsconfig.IsEnabled(cfg.TLS) {
		tlsCfg, err := cfg.TLS.BuildClientConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to build TLS config: %w", err)
		}
		dialer.TLS = tlsCfg
	}

	if cfg.SASL != nil && cfg.SASL.Enabled {
		mechanism, err := cfg.SASL.BuildSASLMechanism()
		if err != nil {
			return nil, fmt.Errorf("failed to build SASL mechanism: %w", err)
		}
		dialer.SASLMechanism = mechanism
	}

	return dialer, nil
}

// ensureTopic creates the Kafka topic when it does not exist yet.
func ensureTopic(s *slog.Logger, dialer *kafka.Dialer, brokers []string, topic string, partitions int, replicationFactor int) error {
	s.Debug("ensuring Kafka topic exists", "brokers", brokers, "topic", topic, "partitions", partitions, "replicationFactor", replicationFactor)

	conn, err := dialer.Dial("tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("error connecting to Kafka: %w", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			s.Error("error closing Kafka connection", "err", err)
		}
	}()

	err = conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     partitions,
		ReplicationFactor: replicationFactor,
	})
	if err != nil {
		return fmt.Errorf("error creating Kafka topic: %w", err)
	}
	return nil
}

type KafkaClient struct {
	cfg     *Config
	slog    *slog.Logger
	writer  *kafka.Writer
	verbose bool
}

func (c *KafkaClient) SetVerbose(verbose bool) {
	c.verbose = verbose
}

// Stream publishes one record. Header properties travel as Kafka record
// headers, the payload bytes as the record value. The record key is
// taken from the KeyFromProperty header when configured.
func (c *KafkaClient) Stream(headers string, payload io.Reader) error {
	msg, err := message.New(headers, payload)
	if err != nil {
		return fmt.Errorf("error reading payload: %w", err)
	}
	if msg.Truncated() {
		c.slog.Warn("payload exceeds max message size, sending truncated", "max", message.MaxMessageSize)
	}

	topic := message.ResolveProperty(msg, c.cfg.TopicFromProperty, c.cfg.Topic)

	kmsg := kafka.Message{
		Topic: topic,
		Value: msg.Data(),
	}

	if c.cfg.KeyFromProperty != "" {
		if key := message.ResolveProperty(msg, c.cfg.KeyFromProperty, ""); key != "" {
			kmsg.Key = []byte(key)
		}
	}

	props := msg.Properties()
	if len(props) > 0 {
		kmsg.Headers = make([]kafka.Header, 0, len(props))
		for _, p := range props {
			kmsg.Headers = append(kmsg.Headers, kafka.Header{
				Key:   p.Key,
				Value: []byte(p.Value),
			})
		}
	}

	if c.verbose {
		c.slog.Debug("publishing Kafka message", "topic", topic, "bodysize", msg.Size())
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.WriteTimeout)
	defer cancel()

	if err := c.writer.WriteMessages(ctx, kmsg); err != nil {
		return fmt.Errorf("error publishing to Kafka: %w", err)
	}

	if c.verbose {
		c.slog.Debug("Kafka message published", "topic", topic)
	}
	return nil
}

func (c *KafkaClient) Close() error {
	if c.writer != nil {
		if err := c.writer.Close(); err != nil {
			return fmt.Errorf("error closing Kafka writer: %w", err)
		}
	}
	return nil
}
