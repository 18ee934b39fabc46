package config

import (
	"fmt"

	"github.com/Netflix/go-env"
)

type Config struct {
	PushChannelURL      string `env:"PUSH_WS_URL,required=true"`
	DeviceCommandURL    string `env:"DEVICE_COMMAND_URL,required=true"`
	DatabaseDSN         string `env:"DATABASE_DSN,required=true"`
	RedisURL            string `env:"REDIS_URL,required=true"`
	RabbitMQURL         string `env:"RABBITMQ_URL"`
	TTSURL              string `env:"TTS_URL"`
	APIPort             int    `env:"API_PORT,default=8080"`
	LogLevel            string `env:"LOG_LEVEL,default=info"`
	DoorRateLimitPerSec int    `env:"DOOR_RATE_LIMIT_PER_SEC,default=3"`
	ReconnectDelaySec   int    `env:"RECONNECT_DELAY_SEC,default=5"`
	ToastTTLSec         int    `env:"TOAST_TTL_SEC,default=6"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
