// Package config loads orderflow settings from the environment and an
// optional YAML file. Settings are read once at start and never reloaded.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/spf13/viper"
)

var (
	ErrConfigNotFound   = errors.New("config file not found")
	ErrConfigUnmarshal  = errors.New("failed to unmarshal config")
	ErrConfigValidation = errors.New("config validation failed")
)

// Transports a bus can run on
const (
	TransportMemory      = "memory"
	TransportRabbitMQ    = "rabbitmq"
	TransportKafka       = "kafka"
	TransportEventBridge = "eventbridge"
)

// Config holds every setting the binaries read
type Config struct {
	BusName          string            `mapstructure:"bus_name"`
	Region           string            `mapstructure:"region"`
	Transport        string            `mapstructure:"transport"`
	AMQPURL          string            `mapstructure:"amqp_url"`
	KafkaBrokers     []string          `mapstructure:"kafka_brokers"`
	HTTPAddr         string            `mapstructure:"http_addr"`
	TopicArn         string            `mapstructure:"topic_arn"`
	SchemaRegistry   string            `mapstructure:"schema_registry"`
	StrictSchemas    bool              `mapstructure:"strict_schemas"`
	ValidationStatus int               `mapstructure:"validation_status"`
	Targets          map[string]string `mapstructure:"targets"`
	TargetRoles      map[string]string `mapstructure:"target_roles"`
}

// Validate checks the settings the selected transport needs
func (c *Config) Validate() error {
	if c.BusName == "" {
		return errors.New("bus name is required (EVENTBUS_NAME)")
	}

	transports := []string{TransportMemory, TransportRabbitMQ, TransportKafka, TransportEventBridge}
	if !slices.Contains(transports, c.Transport) {
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
	if c.Transport == TransportRabbitMQ && c.AMQPURL == "" {
		return errors.New("rabbitmq transport requires an AMQP URL (ORDERFLOW_AMQP_URL)")
	}
	if c.Transport == TransportKafka && len(c.KafkaBrokers) == 0 {
		return errors.New("kafka transport requires brokers (ORDERFLOW_KAFKA_BROKERS)")
	}
	if c.ValidationStatus != 400 && c.ValidationStatus != 500 {
		return fmt.Errorf("validation status must be 400 or 500, got %d", c.ValidationStatus)
	}
	return nil
}

// env binds each key to its variable. Bus name and region keep the names
// the Lambda runtime and the AWS SDK use.
var env = map[string]string{
	"bus_name":          "EVENTBUS_NAME",
	"region":            "AWS_REGION",
	"transport":         "ORDERFLOW_TRANSPORT",
	"amqp_url":          "ORDERFLOW_AMQP_URL",
	"kafka_brokers":     "ORDERFLOW_KAFKA_BROKERS",
	"http_addr":         "ORDERFLOW_HTTP_ADDR",
	"topic_arn":         "ORDERFLOW_TOPIC_ARN",
	"schema_registry":   "ORDERFLOW_SCHEMA_REGISTRY",
	"strict_schemas":    "ORDERFLOW_STRICT_SCHEMAS",
	"validation_status": "ORDERFLOW_VALIDATION_STATUS",
}

// Loader reads the configuration
type Loader struct {
	viper *viper.Viper
}

// NewLoader creates a loader. An empty configPath reads the environment only.
func NewLoader(configPath string) *Loader {
	v := viper.New()

	v.SetDefault("transport", TransportMemory)
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("validation_status", 500)
	v.SetDefault("strict_schemas", false)
	v.SetDefault("kafka_brokers", []string{})
	for key, name := range env {
		_ = v.BindEnv(key, name)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	return &Loader{viper: v}
}

// SetDefault replaces the default of a key
func (l *Loader) SetDefault(key string, value interface{}) {
	l.viper.SetDefault(key, value)
}

// Set overrides a key, e.g. from a command-line flag
func (l *Loader) Set(key string, value interface{}) {
	l.viper.Set(key, value)
}

// Load reads the file if one was given, applies the environment and validates
func (l *Loader) Load() (*Config, error) {
	if l.viper.ConfigFileUsed() != "" {
		if err := l.viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.Is(err, fs.ErrNotExist) || errors.As(err, &notFound) {
				return nil, fmt.Errorf("%w: %v", ErrConfigNotFound, err)
			}
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := l.viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigUnmarshal, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigValidation, err)
	}

	return cfg, nil
}

// Load reads the configuration with a fresh loader
func Load(configPath string) (*Config, error) {
	return NewLoader(configPath).Load()
}

// LoadFunction reads the configuration of a Lambda function. Functions
// publish to EventBridge unless told otherwise, and the in-process memory
// bus is refused since its events never leave the invocation.
func LoadFunction(configPath string) (*Config, error) {
	l := NewLoader(configPath)
	l.SetDefault("transport", TransportEventBridge)

	cfg, err := l.Load()
	if err != nil {
		return nil, err
	}
	if cfg.Transport == TransportMemory {
		return nil, fmt.Errorf("%w: the memory transport cannot run in a Lambda function", ErrConfigValidation)
	}
	return cfg, nil
}

// AWS loads the SDK configuration for the configured region
func (c *Config) AWS(ctx context.Context) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if c.Region != "" {
		opts = append(opts, awsconfig.WithRegion(c.Region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}
