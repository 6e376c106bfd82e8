package config

import (
	"github.com/sandrolain/iotsend/src/clients"
)

type EnvConfig struct {
	ConfigFilePath string `env:"IOTSEND_CONFIG_FILE_PATH" envDefault:"/etc/iotsend/config.yaml" validate:"omitempty,filepath"`
	// Optional: raw configuration content (YAML or JSON). If set, it takes precedence over ConfigFilePath.
	ConfigContent string `env:"IOTSEND_CONFIG_CONTENT" validate:"omitempty"`
	// Optional: explicit config format when using ConfigContent. One of: yaml, yml, json.
	ConfigFormat string `env:"IOTSEND_CONFIG_FORMAT" validate:"omitempty,oneof=yaml yml json"`
}

type Config struct {
	Endpoint clients.EndpointConfig `yaml:"endpoint" json:"endpoint" validate:"required"`
}
