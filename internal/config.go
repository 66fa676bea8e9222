package internal

import (
	"courier/errors"
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Host       string `env:"HOST,default=localhost" validate:"required"`
	Port       int    `env:"PORT,default=8080" validate:"gt=0,lt=65536"`
	HealthPort int    `env:"HEALTH_PORT,default=8081" validate:"gt=0,lt=65536,nefield=Port"`
	GinMode    string `env:"GIN_MODE,default=release" validate:"oneof=debug release test"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true" validate:"required"`
	LogLevel       string `env:"LOG_LEVEL,default=INFO" validate:"required"`

	JWTSecret string `env:"JWT_SECRET,required=true" validate:"required,min=16"`

	NumberOfShards       int     `env:"NUMBER_OF_SHARDS,default=8" validate:"gt=0"`
	ShardBufferSize      int     `env:"SHARD_BUFFER_SIZE,default=256" validate:"gt=0"`
	ConnectionBufferSize int     `env:"CONNECTION_BUFFER_SIZE,default=256" validate:"gt=0"`
	MaxMessageSize       int     `env:"MAX_MESSAGE_SIZE,default=4096" validate:"gt=0"`
	RateLimitPerSecond   float64 `env:"RATE_LIMIT_PER_SECOND,default=20" validate:"gt=0"`
	RateLimitBurst       int     `env:"RATE_LIMIT_BURST,default=40" validate:"gt=0"`
	ActivityBufferSize   int     `env:"ACTIVITY_BUFFER_SIZE,default=1024" validate:"gt=0"`
	HistoryPageLimit     int     `env:"HISTORY_PAGE_LIMIT,default=100" validate:"gt=0"`
	StoreRetryMax        uint64  `env:"STORE_RETRY_MAX,default=3"`
	AllowedOrigins       string  `env:"ALLOWED_ORIGINS,default=*"`

	NotificationRetention time.Duration `env:"NOTIFICATION_RETENTION,default=720h" validate:"gt=0"`
	SweepInterval         time.Duration `env:"SWEEP_INTERVAL,default=1h" validate:"gt=0"`
	RestartInterval       time.Duration `env:"RESTART_INTERVAL,default=1s" validate:"gt=0"`
	MetricInterval        time.Duration `env:"METRIC_INTERVAL,default=10s" validate:"gt=0"`

	VAPIDPublicKey  string `env:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `env:"VAPID_PRIVATE_KEY" validate:"required_with=VAPIDPublicKey"`
	VAPIDSubscriber string `env:"VAPID_SUBSCRIBER,default=mailto:ops@courier.local"`
}

// LoadConfig reads an optional .env file then the environment.
func LoadConfig(files ...string) (Config, error) {
	_ = godotenv.Load(files...)
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err)
	}
	if err := validator.New().Struct(config); err != nil {
		return Config{}, fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err)
	}
	return config, nil
}

// Origins splits ALLOWED_ORIGINS on commas.
func (c Config) Origins() []string {
	var res []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			res = append(res, o)
		}
	}
	return res
}

// WebPushEnabled is true when both VAPID keys are configured.
func (c Config) WebPushEnabled() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}
