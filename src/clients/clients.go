package clients

import (
	"io"
)

// Client is the surface of a telemetry endpoint connector: adjust
// verbosity, stream a single message, release the connection.
type Client interface {
	SetVerbose(verbose bool)
	Stream(headers string, payload io.Reader) error
	Close() error
}

type ClientType string

const (
	ClientTypeMQTT   ClientType = "mqtt"
	ClientTypeNATS   ClientType = "nats"
	ClientTypeKafka  ClientType = "kafka"
	ClientTypeCoAP   ClientType = "coap"
	ClientTypeHTTP   ClientType = "http"
	ClientTypeRedis  ClientType = "redis"
	ClientTypePubSub ClientType = "pubsub"
)

type EndpointConfig struct {
	Type    ClientType     `yaml:"type" json:"type" validate:"required,oneof=mqtt nats kafka coap http redis pubsub"`
	Options map[string]any `yaml:"options" json:"options"`
}

type UnsupportedTypeError struct {
	Type ClientType
}

func (e *UnsupportedTypeError) Error() string {
	return "unsupported endpoint type: " + string(e.Type)
}
