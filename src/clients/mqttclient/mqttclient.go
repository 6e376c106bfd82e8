package mqttclient

import (
	"fmt"
	"io"
	"time"

	"log/slog"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sandrolain/iotsend/src/clients"
	"github.com/sandrolain/iotsend/src/clients/common"
	"github.com/sandrolain/iotsend/src/common/tlsconfig"
	"github.com/sandrolain/iotsend/src/message"
)

// Config defines the configuration for an MQTT telemetry endpoint.
type Config struct {
	// Address is the MQTT broker address (host:port).
	// Example: "localhost:1883" for plain TCP, "localhost:8883" for TLS.
	Address string `mapstructure:"address" validate:"required"`

	// Topic is the MQTT topic messages are published to.
	// Can be overridden per message by TopicFromProperty.
	// Default: "iot/messages"
	Topic string `mapstructure:"topic" default:"iot/messages" validate:"required"`

	// TopicFromProperty is a header property key. When the message
	// carries that property, its value replaces the configured Topic.
	TopicFromProperty string `mapstructure:"topicFromProperty"`

	// ClientID is the MQTT client identifier.
	// If empty, a random "iotsend-" prefixed ID is generated.
	ClientID string `mapstructure:"clientId"`

	// QoS is the Quality of Service level for publishing (0, 1, or 2).
	// Default: 1, so a failed broker handoff surfaces as a stream error
	// instead of being silently dropped.
	QoS int `mapstructure:"qos" default:"1" validate:"min=0,max=2"`

	// Retained determines whether the broker retains the message for
	// new subscribers.
	// Default: false
	Retained bool `mapstructure:"retained" default:"false"`

	// Username for MQTT broker authentication.
	// Leave empty if authentication is not required.
	Username string `mapstructure:"username"`

	// Password for MQTT broker authentication.
	// Leave empty if authentication is not required.
	Password string `mapstructure:"password"`

	// TLS holds TLS/SSL configuration for secure connections.
	TLS *tlsconfig.Config `mapstructure:"tls"`

	// KeepAlive is the keep alive interval in seconds.
	// Default: 60 seconds
	KeepAlive int `mapstructure:"keepAlive" default:"60" validate:"min=0"`

	// CleanSession determines whether to start a clean session.
	// Default: true
	CleanSession bool `mapstructure:"cleanSession" default:"true"`

	// ConnectTimeout bounds the initial broker connection attempt.
	// Default: 10s
	ConnectTimeout time.Duration `mapstructure:"connectTimeout" default:"10s"`
}

// New connects to the MQTT broker and returns a telemetry client.
// The connection is attempted once: a one-shot sender must fail fast,
// so the paho reconnect and retry machinery stays off.
func New(opts map[string]any) (clients.Client, error) {
	cfg, err := common.ParseConfig[Config](opts)
	if err != nil {
		return nil, fmt.Errorf("invalid MQTT options: %w", err)
	}

	useTLS := tlsconfig.IsEnabled(cfg.TLS)
	protocol := "tcp"
	if useTLS {
		protocol = "ssl"
	}

	brokerURL := fmt.Sprintf("%s://%s", protocol, cfg.Address)
	copts := mqtt.NewClientOptions().AddBroker(brokerURL)

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "iotsend-" + uuid.NewString()
	}
	copts.SetClientID(clientID)

	if cfg.Username != "" {
		copts.SetUsername(cfg.Username)
		copts.SetPassword(cfg.Password)
	}

	if useTLS {
		tlsCfg, err := cfg.TLS.BuildClientConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to build TLS config: %w", err)
		}
		copts.SetTLSConfig(tlsCfg)
	}

	copts.SetCleanSession(cfg.CleanSession)
	copts.SetKeepAlive(time.Duration(cfg.KeepAlive) * time.Second)
	copts.SetConnectTimeout(cfg.ConnectTimeout)
	copts.SetAutoReconnect(false)
	copts.SetConnectRetry(false)

	client := mqtt.NewClient(copts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	l := slog.Default().With("context", "MQTT Client")

	l.Debug("MQTT endpoint connected",
		"address", cfg.Address,
		"topic", cfg.Topic,
		"qos", cfg.QoS,
		"clientId", clientID,
		"tls", useTLS,
	)

	return &MQTTClient{
		cfg:    cfg,
		slog:   l,
		client: client,
	}, nil
}

type MQTTClient struct {
	cfg     *Config
	slog    *slog.Logger
	client  mqtt.Client
	verbose bool
}

func (c *MQTTClient) SetVerbose(verbose bool) {
	c.verbose = verbose
}

// Stream publishes one message assembled from the header text and the
// payload stream. Block-oriented transport: header lines, a blank line,
// then the payload bytes travel as the MQTT body.
func (c *MQTTClient) Stream(headers string, payload io.Reader) error {
	msg, err := message.New(headers, payload)
	if err != nil {
		return fmt.Errorf("error reading payload: %w", err)
	}
	if msg.Truncated() {
		c.slog.Warn("payload exceeds max message size, sending truncated", "max", message.MaxMessageSize)
	}

	topic := message.ResolveProperty(msg, c.cfg.TopicFromProperty, c.cfg.Topic)

	if c.verbose {
		c.slog.Debug("publishing MQTT message",
			"topic", topic,
			"qos", c.cfg.QoS,
			"retained", c.cfg.Retained,
			"bodysize", msg.Size(),
		)
	}

	token := c.client.Publish(topic, byte(c.cfg.QoS), c.cfg.Retained, msg.Framed())
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("error publishing to MQTT: %w", token.Error())
	}

	if c.verbose {
		c.slog.Debug("MQTT message published", "topic", topic)
	}

	return nil
}

func (c *MQTTClient) Close() error {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(250)
	}
	return nil
}
