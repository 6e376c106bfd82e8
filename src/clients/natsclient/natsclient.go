package natsclient

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	nats "github.com/nats-io/nats.go"
	"github.com/sandrolain/iotsend/src/clients"
	"github.com/sandrolain/iotsend/src/clients/common"
	"github.com/sandrolain/iotsend/src/message"
)

type Config struct {
	Address             string        `mapstructure:"address" validate:"required"`
	Subject             string        `mapstructure:"subject" default:"iot.messages" validate:"required"`
	SubjectFromProperty string        `mapstructure:"subjectFromProperty"`
	Name                string        `mapstructure:"name" default:"iotsend"`
	Timeout             time.Duration `mapstructure:"timeout" default:"5s" validate:"gt=0"`
}

// New connects to the NATS server and returns a telemetry client.
func New(opts map[string]any) (clients.Client, error) {
	cfg, err := common.ParseConfig[Config](opts)
	if err != nil {
		return nil, err
	}

	l := slog.Default().With("context", "NATS Client")

	conn, err := nats.Connect(cfg.Address, nats.Name(cfg.Name), nats.Timeout(cfg.Timeout))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS server: %w", err)
	}
	l.Debug("NATS endpoint connected", "address", cfg.Address, "subject", cfg.Subject)

	return &NATSClient{
		cfg:  cfg,
		slog: l,
		conn: conn,
	}, nil
}

type NATSClient struct {
	cfg     *Config
	slog    *slog.Logger
	conn    *nats.Conn
	verbose bool
}

func (c *NATSClient) SetVerbose(verbose bool) {
	c.verbose = verbose
}

// Stream publishes one message. Header properties travel as NATS
// headers, the payload bytes as the message data. The connection is
// flushed before returning so the write is on the wire when the
// process exits.
func (c *NATSClient) Stream(headers string, payload io.Reader) error {
	msg, err := message.New(headers, payload)
	if err != nil {
		return fmt.Errorf("error reading payload: %w", err)
	}
	if msg.Truncated() {
		c.slog.Warn("payload exceeds max message size, sending truncated", "max", message.MaxMessageSize)
	}

	subject := message.ResolveProperty(msg, c.cfg.SubjectFromProperty, c.cfg.Subject)

	out := nats.NewMsg(subject)
	out.Data = msg.Data()
	for _, p := range msg.Properties() {
		out.Header.Add(p.Key, p.Value)
	}

	if c.verbose {
		c.slog.Debug("publishing NATS message", "subject", subject, "bodysize", msg.Size())
	}

	if err := c.conn.PublishMsg(out); err != nil {
		return fmt.Errorf("error publishing to NATS: %w", err)
	}
	if err := c.conn.FlushTimeout(c.cfg.Timeout); err != nil {
		return fmt.Errorf("error flushing NATS connection: %w", err)
	}

	if c.verbose {
		c.slog.Debug("NATS message published", "subject", subject)
	}
	return nil
}

func (c *NATSClient) Close() error {
	if c.conn != nil && !c.conn.IsClosed() {
		c.conn.Close()
	}
	return nil
}
