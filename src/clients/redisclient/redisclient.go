package redisclient

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sandrolain/iotsend/src/clients"
	"github.com/sandrolain/iotsend/src/clients/common"
	"github.com/sandrolain/iotsend/src/message"
)

type Config struct {
	Address             string        `mapstructure:"address" validate:"required"`
	Channel             string        `mapstructure:"channel" default:"iot-messages" validate:"required"`
	ChannelFromProperty string        `mapstructure:"channelFromProperty"`
	Username            string        `mapstructure:"username"`
	Password            string        `mapstructure:"password"`
	DB                  int           `mapstructure:"db" validate:"gte=0"`
	Timeout             time.Duration `mapstructure:"timeout" default:"5s" validate:"gt=0"`
}

// New connects to the Redis server and returns a telemetry client. The
// connection is verified with a ping so an unreachable server fails
// here instead of at publish time.
func New(opts map[string]any) (clients.Client, error) {
	cfg, err := common.ParseConfig[Config](opts)
	if err != nil {
		return nil, err
	}

	l := slog.Default().With("context", "Redis Client")

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	l.Debug("Redis endpoint connected", "address", cfg.Address, "channel", cfg.Channel)

	return &RedisClient{
		cfg:    cfg,
		slog:   l,
		client: client,
	}, nil
}

type RedisClient struct {
	cfg     *Config
	slog    *slog.Logger
	client  *redis.Client
	verbose bool
}

func (c *RedisClient) SetVerbose(verbose bool) {
	c.verbose = verbose
}

// Stream publishes one message to a Redis channel. Subscribers get the
// full frame, header block and payload, since PUBLISH carries a single
// opaque value and the properties would be lost otherwise.
func (c *RedisClient) Stream(headers string, payload io.Reader) error {
	msg, err := message.New(headers, payload)
	if err != nil {
		return fmt.Errorf("error reading payload: %w", err)
	}
	if msg.Truncated() {
		c.slog.Warn("payload exceeds max message size, sending truncated", "max", message.MaxMessageSize)
	}

	channel := message.ResolveProperty(msg, c.cfg.ChannelFromProperty, c.cfg.Channel)

	if c.verbose {
		c.slog.Debug("publishing Redis message", "channel", channel, "bodysize", msg.Size())
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
	defer cancel()
	if err := c.client.Publish(ctx, channel, msg.Framed()).Err(); err != nil {
		return fmt.Errorf("error publishing to Redis: %w", err)
	}

	if c.verbose {
		c.slog.Debug("Redis message published", "channel", channel)
	}
	return nil
}

func (c *RedisClient) Close() error {
	if c.client != nil {
		if err := c.client.Close(); err != nil {
			return fmt.Errorf("error closing Redis client: %w", err)
		}
	}
	return nil
}
