package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port        string `yaml:"port"`
	DatabaseURL string `yaml:"databaseURL"`
	LogLevel    string `yaml:"logLevel"`

	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`

	QueueStream            string `yaml:"queueStream"`
	QueueGroup             string `yaml:"queueGroup"`
	QueueConcurrency       int    `yaml:"queueConcurrency"`
	QueueMaxRetries        int    `yaml:"queueMaxRetries"`
	QueueRetryDelaySeconds int    `yaml:"queueRetryDelaySeconds"`

	Provider        string  `yaml:"provider"`
	ProviderBaseURL string  `yaml:"providerBaseURL"`
	ProviderAPIKey  string  `yaml:"providerAPIKey"`
	Model           string  `yaml:"model"`
	PricePerKTokens float64 `yaml:"pricePerKTokens"`
	CacheTTLHours   int     `yaml:"cacheTTLHours"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`

	AMQPURL      string `yaml:"amqpURL"`
	AMQPExchange string `yaml:"amqpExchange"`

	InternalJWTKeyID            string `yaml:"internalJWTKeyID"`
	InternalJWTPublicKeyPath    string `yaml:"internalJWTPublicKeyPath"`
	InternalJWTVerifyPublicKeys string `yaml:"internalJWTVerifyPublicKeys"`

	RateLimitPerMinute int `yaml:"rateLimitPerMinute"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("PROVIDER_API_KEY"); v != "" {
		cfg.ProviderAPIKey = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = v
	}
	if v := os.Getenv("MINIO_USE_SSL"); v == "true" {
		cfg.MinioUseSSL = true
	}
	if v := os.Getenv("AMQP_URL"); v != "" {
		cfg.AMQPURL = v
	}
	if v := os.Getenv("GENERATION_QUEUE_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.QueueConcurrency = n
		}
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if cfg.RedisAddr == "" {
		return errors.New("config: redisAddr is required (set in config.yaml or REDIS_ADDR)")
	}
	if cfg.Model == "" {
		return errors.New("config: model is required (set in config.yaml)")
	}
	if cfg.InternalJWTKeyID == "" {
		return errors.New("config: internalJWTKeyID is required (set in config.yaml)")
	}
	if cfg.InternalJWTPublicKeyPath == "" && cfg.InternalJWTVerifyPublicKeys == "" {
		return errors.New("config: internalJWTPublicKeyPath or internalJWTVerifyPublicKeys is required (set in config.yaml)")
	}
	return nil
}
