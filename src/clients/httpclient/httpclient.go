package httpclient

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/sandrolain/iotsend/src/clients"
	"github.com/sandrolain/iotsend/src/clients/common"
	"github.com/sandrolain/iotsend/src/message"
	"github.com/valyala/fasthttp"
)

// Config defines the configuration for an HTTP telemetry endpoint.
type Config struct {
	// URL is the full endpoint URL the message is sent to.
	URL string `mapstructure:"url" validate:"required,url"`

	// Method is the HTTP request method.
	// Default: "POST"
	Method string `mapstructure:"method" default:"POST" validate:"oneof=POST PUT PATCH"`

	// Headers are static request headers sent with every message.
	// Message properties are added on top and win on conflicts.
	Headers map[string]string `mapstructure:"headers"`

	// Timeout bounds the request round trip.
	// Default: 5s
	Timeout time.Duration `mapstructure:"timeout" default:"5s" validate:"gt=0"`
}

// New builds an HTTP telemetry client. fasthttp dials lazily, so
// creation performs no network activity.
func New(opts map[string]any) (clients.Client, error) {
	cfg, err := common.ParseConfig[Config](opts)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP options: %w", err)
	}

	client := &fasthttp.Client{
		ReadTimeout:                   cfg.Timeout,
		WriteTimeout:                  cfg.Timeout,
		NoDefaultUserAgentHeader:      true,
		DisableHeaderNamesNormalizing: true,
		DisablePathNormalizing:        true,
		Dial: (&fasthttp.TCPDialer{
			Concurrency: 4096,
		}).Dial,
	}

	l := slog.Default().With("context", "HTTP Client")
	l.Debug("HTTP endpoint configured", "url", cfg.URL, "method", cfg.Method)

	return &HTTPClient{
		cfg:    cfg,
		slog:   l,
		client: client,
	}, nil
}

type HTTPClient struct {
	cfg     *Config
	slog    *slog.Logger
	client  *fasthttp.Client
	verbose bool
}

func (c *HTTPClient) SetVerbose(verbose bool) {
	c.verbose = verbose
}

// Stream sends one message as a single HTTP request. Header properties
// travel as request headers, the payload bytes as the request body.
// A non-2XX response status is a send failure.
func (c *HTTPClient) Stream(headers string, payload io.Reader) error {
	msg, err := message.New(headers, payload)
	if err != nil {
		return fmt.Errorf("error reading payload: %w", err)
	}
	if msg.Truncated() {
		c.slog.Warn("payload exceeds max message size, sending truncated", "max", message.MaxMessageSize)
	}

	if c.verbose {
		c.slog.Debug("publishing HTTP message",
			"method", c.cfg.Method,
			"url", c.cfg.URL,
			"bodysize", msg.Size(),
		)
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)

	req.Header.SetMethod(c.cfg.Method)
	req.SetRequestURI(c.cfg.URL)
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}
	for _, p := range msg.Properties() {
		req.Header.Set(p.Key, p.Value)
	}
	req.SetBody(msg.Data())

	res := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(res)

	if err := c.client.Do(req, res); err != nil {
		return fmt.Errorf("error sending request: %w", err)
	}

	if res.StatusCode() > 299 || res.StatusCode() < 200 {
		return fmt.Errorf("non-2XX status code: %d", res.StatusCode())
	}

	if c.verbose {
		c.slog.Debug("HTTP message published", "status", res.StatusCode())
	}
	return nil
}

func (c *HTTPClient) Close() error {
	if c.client != nil {
		c.client.CloseIdleConnections()
	}
	return nil
}
