package coapclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	coapmessage "github.com/plgd-dev/go-coap/v3/message"
	"github.com/plgd-dev/go-coap/v3/message/pool"
	coaptcp "github.com/plgd-dev/go-coap/v3/tcp"
	coapudp "github.com/plgd-dev/go-coap/v3/udp"

	"github.com/sandrolain/iotsend/src/clients"
	"github.com/sandrolain/iotsend/src/clients/common"
	"github.com/sandrolain/iotsend/src/message"
)

type Protocol string

const (
	ProtocolUDP Protocol = "udp"
	ProtocolTCP Protocol = "tcp"
)

// Config defines the configuration for a CoAP telemetry endpoint.
type Config struct {
	// Protocol selects the CoAP transport: "udp" or "tcp".
	// Default: "udp"
	Protocol Protocol `mapstructure:"protocol" default:"udp" validate:"oneof=udp tcp"`

	// Address is the CoAP server address (host:port).
	Address string `mapstructure:"address" validate:"required"`

	// Path is the resource the message is posted to.
	// Default: "/iot/messages"
	Path string `mapstructure:"path" default:"/iot/messages" validate:"required"`

	// PathFromProperty is a header property key. When the message
	// carries that property, its value replaces the configured Path.
	PathFromProperty string `mapstructure:"pathFromProperty"`

	// Method is the CoAP request method: "POST" or "PUT".
	// Default: "POST"
	Method string `mapstructure:"method" default:"POST" validate:"oneof=POST PUT"`

	// Timeout bounds the dial and the request round trip.
	// Default: 5s
	Timeout time.Duration `mapstructure:"timeout" default:"5s" validate:"gt=0"`
}

// New validates the CoAP endpoint configuration. The server is dialed
// per send, so creation performs no network activity.
func New(opts map[string]any) (clients.Client, error) {
	cfg, err := common.ParseConfig[Config](opts)
	if err != nil {
		return nil, fmt.Errorf("invalid CoAP options: %w", err)
	}

	l := slog.Default().With("context", "CoAP Client")
	l.Debug("CoAP endpoint configured",
		"protocol", cfg.Protocol,
		"address", cfg.Address,
		"path", cfg.Path,
		"method", cfg.Method,
	)

	return &CoAPClient{
		cfg:  cfg,
		slog: l,
	}, nil
}

type CoAPClient struct {
	cfg     *Config
	slog    *slog.Logger
	verbose bool
}

func (c *CoAPClient) SetVerbose(verbose bool) {
	c.verbose = verbose
}

// Stream sends one message as a single CoAP request. Block-oriented
// transport: the framed header block plus payload travels as an
// octet-stream request body. The connection is dialed for this call
// and closed before returning.
func (c *CoAPClient) Stream(headers string, payload io.Reader) error {
	msg, err := message.New(headers, payload)
	if err != nil {
		return fmt.Errorf("error reading payload: %w", err)
	}
	if msg.Truncated() {
		c.slog.Warn("payload exceeds max message size, sending truncated", "max", message.MaxMessageSize)
	}

	path := message.ResolveProperty(msg, c.cfg.PathFromProperty, c.cfg.Path)
	body := bytes.NewReader(msg.Framed())

	if c.verbose {
		c.slog.Debug("sending CoAP message",
			"protocol", c.cfg.Protocol,
			"address", c.cfg.Address,
			"path", path,
			"method", c.cfg.Method,
		)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
	defer cancel()

	var resp *pool.Message
	switch c.cfg.Protocol {
	case ProtocolUDP:
		conn, e := coapudp.Dial(c.cfg.Address)
		if e != nil {
			return fmt.Errorf("failed to dial coap server: %w", e)
		}
		defer func() {
			if err := conn.Close(); err != nil {
				c.slog.Error("error closing coap connection", "err", err)
			}
		}()
		switch c.cfg.Method {
		case "POST":
			resp, err = conn.Post(ctx, path, coapmessage.AppOctets, body)
		case "PUT":
			resp, err = conn.Put(ctx, path, coapmessage.AppOctets, body)
		}
	case ProtocolTCP:
		conn, e := coaptcp.Dial(c.cfg.Address)
		if e != nil {
			return fmt.Errorf("failed to dial coap server: %w", e)
		}
		defer func() {
			if err := conn.Close(); err != nil {
				c.slog.Error("error closing coap connection", "err", err)
			}
		}()
		switch c.cfg.Method {
		case "POST":
			resp, err = conn.Post(ctx, path, coapmessage.AppOctets, body)
		case "PUT":
			resp, err = conn.Put(ctx, path, coapmessage.AppOctets, body)
		}
	}

	if err != nil {
		return fmt.Errorf("error sending coap request: %w", err)
	}

	// Accept 2.xx success codes only
	if resp != nil && resp.Code()/32 != 2 {
		return fmt.Errorf("non-2.xx CoAP code: %v", resp.Code())
	}

	if c.verbose {
		c.slog.Debug("CoAP message sent", "path", path)
	}
	return nil
}

func (c *CoAPClient) Close() error {
	return nil
}
