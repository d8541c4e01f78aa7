package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"settlement-service/payfast"
	aws_pkg "settlement-service/pkg/aws"
	"settlement-service/services"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Secret names read when AWS_USE_SECRETS=true.
const (
	secretDBCredentials = "settlement/DB_CREDENTIALS"
	secretPayFast       = "settlement/PAYFAST"
	secretJWT           = "settlement/JWT"
)

// Config holds all configuration for the settlement service.
type Config struct {
	Env         string
	ServiceName string
	Port        string

	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string

	JWTSecret      string
	AllowedOrigins []string
	// TrustGatewayHeaders accepts X-User-ID / X-User-Role without a token.
	// Enable only when the service is reachable solely through the api-gateway.
	TrustGatewayHeaders bool

	PayFastMerchantID  string
	PayFastMerchantKey string
	PayFastPassphrase  string
	PayFastReturnURL   string
	PayFastCancelURL   string
	PayFastNotifyURL   string
	PayFastSandbox     bool

	CreationFee     decimal.Decimal
	AmountTolerance decimal.Decimal
	ReleaseDelay    time.Duration
	JobTimeout      time.Duration
	Timezone        string

	WebhookRatePerSecond float64
	WebhookBurst         int

	RedisURL          string
	KafkaBrokers      []string
	KafkaTopic        string
	EventsSNSTopicARN string
	JobQueueURL       string

	AWSRegion         string
	AWSEndpoint       string
	CloudWatchEnabled bool
	LogGroup          string
}

// secretSource is the part of the Secrets Manager client LoadConfig needs.
type secretSource interface {
	GetSecretMap(ctx context.Context, name string) (map[string]string, error)
}

// LoadConfig reads configuration from the environment (and an optional .env
// file) with an optional Secrets Manager override.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg, err := configFromEnv()
	if err != nil {
		return nil, err
	}

	// Override credentials from Secrets Manager when running on AWS
	if os.Getenv("AWS_USE_SECRETS") == "true" {
		awsCfg, err := aws_pkg.LoadAWSConfig(context.Background(), cfg.AWSOptions())
		if err != nil {
			return nil, fmt.Errorf("load aws config for secrets: %w", err)
		}
		applySecrets(context.Background(), cfg, aws_pkg.NewSecretsClient(awsCfg))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func configFromEnv() (*Config, error) {
	cfg := &Config{
		Env:         getEnv("ENV", "development"),
		ServiceName: getEnv("SERVICE_NAME", "settlement-service"),
		Port:        getEnv("PORT", "8093"),

		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone: getEnv("POSTGRES_TIMEZONE", "Asia/Karachi"),

		JWTSecret:      os.Getenv("JWT_SECRET"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "*")),

		PayFastMerchantID:  os.Getenv("PAYFAST_MERCHANT_ID"),
		PayFastMerchantKey: os.Getenv("PAYFAST_MERCHANT_KEY"),
		PayFastPassphrase:  os.Getenv("PAYFAST_PASSPHRASE"),
		PayFastReturnURL:   os.Getenv("PAYFAST_RETURN_URL"),
		PayFastCancelURL:   os.Getenv("PAYFAST_CANCEL_URL"),
		PayFastNotifyURL:   os.Getenv("PAYFAST_NOTIFY_URL"),
		PayFastSandbox:     getEnv("PAYFAST_SANDBOX", "true") == "true",

		TrustGatewayHeaders: os.Getenv("TRUST_GATEWAY_HEADERS") == "true",

		Timezone: getEnv("TIMEZONE", "Asia/Karachi"),

		RedisURL:          os.Getenv("REDIS_URL"),
		KafkaBrokers:      splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:        getEnv("KAFKA_TOPIC", "settlement-events"),
		EventsSNSTopicARN: os.Getenv("EVENTS_SNS_TOPIC_ARN"),
		JobQueueURL:       os.Getenv("JOB_QUEUE_URL"),

		AWSRegion:         getEnv("AWS_REGION", "ap-south-1"),
		AWSEndpoint:       os.Getenv("AWS_ENDPOINT"),
		CloudWatchEnabled: os.Getenv("CLOUDWATCH_ENABLED") == "true",
		LogGroup:          os.Getenv("LOG_GROUP"),
	}

	var err error
	if cfg.CreationFee, err = decimal.NewFromString(getEnv("CREATION_FEE", "2500")); err != nil {
		return nil, fmt.Errorf("invalid CREATION_FEE: %w", err)
	}
	if cfg.AmountTolerance, err = decimal.NewFromString(getEnv("AMOUNT_TOLERANCE", services.DefaultAmountTolerance.String())); err != nil {
		return nil, fmt.Errorf("invalid AMOUNT_TOLERANCE: %w", err)
	}
	if cfg.ReleaseDelay, err = time.ParseDuration(getEnv("RELEASE_DELAY", services.DefaultReleaseDelay.String())); err != nil {
		return nil, fmt.Errorf("invalid RELEASE_DELAY: %w", err)
	}
	if cfg.JobTimeout, err = time.ParseDuration(getEnv("JOB_TIMEOUT", "60s")); err != nil {
		return nil, fmt.Errorf("invalid JOB_TIMEOUT: %w", err)
	}
	if cfg.WebhookRatePerSecond, err = strconv.ParseFloat(getEnv("WEBHOOK_RATE_PER_SECOND", "10"), 64); err != nil {
		return nil, fmt.Errorf("invalid WEBHOOK_RATE_PER_SECOND: %w", err)
	}
	if cfg.WebhookBurst, err = strconv.Atoi(getEnv("WEBHOOK_BURST", "20")); err != nil {
		return nil, fmt.Errorf("invalid WEBHOOK_BURST: %w", err)
	}
	return cfg, nil
}

// applySecrets overrides credentials with any non-empty values found in
// Secrets Manager. Missing secrets leave the environment values in place.
func applySecrets(ctx context.Context, cfg *Config, sm secretSource) {
	if m, err := sm.GetSecretMap(ctx, secretDBCredentials); err == nil {
		override(&cfg.PostgresUser, m, "POSTGRES_USER")
		override(&cfg.PostgresPassword, m, "POSTGRES_PASSWORD")
		override(&cfg.PostgresDB, m, "POSTGRES_DB")
		override(&cfg.PostgresHost, m, "POSTGRES_HOST")
		override(&cfg.PostgresPort, m, "POSTGRES_PORT")
	}
	if m, err := sm.GetSecretMap(ctx, secretPayFast); err == nil {
		override(&cfg.PayFastMerchantID, m, "PAYFAST_MERCHANT_ID")
		override(&cfg.PayFastMerchantKey, m, "PAYFAST_MERCHANT_KEY")
		override(&cfg.PayFastPassphrase, m, "PAYFAST_PASSPHRASE")
	}
	if m, err := sm.GetSecretMap(ctx, secretJWT); err == nil {
		override(&cfg.JWTSecret, m, "JWT_SECRET")
	}
}

func override(dst *string, m map[string]string, key string) {
	if v, ok := m[key]; ok && v != "" {
		*dst = v
	}
}

// Validate checks the fields every entry point needs.
func (c *Config) Validate() error {
	if c.PostgresUser == "" || c.PostgresPassword == "" || c.PostgresDB == "" || c.PostgresHost == "" {
		return fmt.Errorf("database config incomplete")
	}
	if c.AmountTolerance.IsNegative() {
		return fmt.Errorf("AMOUNT_TOLERANCE must not be negative")
	}
	if c.ReleaseDelay < 0 {
		return fmt.Errorf("RELEASE_DELAY must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return nil
}

// PostgresDSN builds the gorm postgres connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.PostgresHost, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresPort, c.PostgresSSLMode, c.PostgresTimeZone)
}

// Merchant returns the PayFast merchant settings for checkout links.
func (c *Config) Merchant() payfast.MerchantConfig {
	return payfast.MerchantConfig{
		MerchantID:  c.PayFastMerchantID,
		MerchantKey: c.PayFastMerchantKey,
		Passphrase:  c.PayFastPassphrase,
		ReturnURL:   c.PayFastReturnURL,
		CancelURL:   c.PayFastCancelURL,
		NotifyURL:   c.PayFastNotifyURL,
		Sandbox:     c.PayFastSandbox,
	}
}

// Location resolves the business timezone used for day boundaries.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

func (c *Config) AWSOptions() aws_pkg.Options {
	return aws_pkg.Options{Region: c.AWSRegion, Endpoint: c.AWSEndpoint}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
