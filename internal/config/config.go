package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	CartBackendMemory   = "memory"
	CartBackendRedis    = "redis"
	CartBackendDynamoDB = "dynamodb"

	minJWTSecretLength = 32
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// DatabaseURL empty means the in-memory event store is used.
	DatabaseURL  string   `envconfig:"DATABASE_URL"`
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"storefront-events"`
	KafkaEnabled bool     `envconfig:"KAFKA_ENABLED" default:"false"`

	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`

	CartBackend       string        `envconfig:"CART_BACKEND" default:"memory"`
	RedisAddr         string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	CartTTL           time.Duration `envconfig:"CART_TTL" default:"720h"`
	DynamoDBCartTable string        `envconfig:"DYNAMODB_CART_TABLE" default:"carts"`
	DynamoDBEndpoint  string        `envconfig:"DYNAMODB_ENDPOINT"`
	AWSRegion         string        `envconfig:"AWS_REGION" default:"eu-west-2"`

	PaymentAPIURL        string        `envconfig:"PAYMENT_API_URL" default:"https://connect.squareupsandbox.com"`
	PaymentAccessToken   string        `envconfig:"PAYMENT_ACCESS_TOKEN"`
	PaymentApplicationID string        `envconfig:"PAYMENT_APPLICATION_ID"`
	PaymentLocationID    string        `envconfig:"PAYMENT_LOCATION_ID"`
	PaymentTimeout       time.Duration `envconfig:"PAYMENT_TIMEOUT" default:"15s"`
	Currency             string        `envconfig:"CURRENCY" default:"GBP"`

	ShippingDomesticCountry  string          `envconfig:"SHIPPING_DOMESTIC_COUNTRY" default:"GB"`
	ShippingDomesticFee      decimal.Decimal `envconfig:"SHIPPING_DOMESTIC_FEE" default:"5"`
	ShippingInternationalFee decimal.Decimal `envconfig:"SHIPPING_INTERNATIONAL_FEE" default:"35"`

	NotifyDuration time.Duration `envconfig:"NOTIFY_DURATION" default:"3s"`

	SMTPHost string `envconfig:"SMTP_HOST" default:"localhost"`
	SMTPPort string `envconfig:"SMTP_PORT" default:"1025"`
	SMTPFrom string `envconfig:"SMTP_FROM" default:"orders@jennyshairandwigs.co.uk"`
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && len(files) > 0 {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if len(c.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("%w: JWT_SECRET must be at least %d characters", ErrInvalidConfig, minJWTSecretLength)
	}
	switch c.CartBackend {
	case CartBackendMemory, CartBackendRedis, CartBackendDynamoDB:
	default:
		return fmt.Errorf("%w: unknown CART_BACKEND %q", ErrInvalidConfig, c.CartBackend)
	}
	if c.ShippingDomesticFee.IsNegative() || c.ShippingInternationalFee.IsNegative() {
		return fmt.Errorf("%w: shipping fees must not be negative", ErrInvalidConfig)
	}
	c.Currency = strings.ToUpper(strings.TrimSpace(c.Currency))
	return nil
}
