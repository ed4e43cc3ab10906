package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything the server needs from the environment so main
// stays lean.
type Config struct {
	Addr          string
	DatabaseURL   string
	RedisURL      string
	JWTSigningKey string

	Chain   ChainConfig
	Pinning PinningConfig
	Kafka   KafkaConfig

	// PreparedTTL bounds how long a prepared registration waits for the
	// owner's signature before it must be prepared again.
	PreparedTTL time.Duration
}

// ChainConfig holds blockchain node and contract settings.
type ChainConfig struct {
	RPCURL             string
	ChainID            int64
	RegistryAddress    string
	MarketplaceAddress string
	// SigningKey is the hex-encoded private key of the single service
	// account all writes are sent from.
	SigningKey string
	// ConfirmTimeout bounds the wait for transaction inclusion; it is
	// distinct from the retry policy because a submitted transaction can
	// stay pending indefinitely.
	ConfirmTimeout time.Duration
	MaxAttempts    int
}

// PinningConfig holds document pinning service credentials.
type PinningConfig struct {
	Endpoint  string
	APIKey    string
	APISecret string
}

// KafkaConfig holds audit stream settings. Empty brokers disable the stream.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Addr:          envOr("LANDLEDGER_ADDR", ":8080"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisURL:      os.Getenv("REDIS_URL"),
		JWTSigningKey: envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		Chain: ChainConfig{
			RPCURL:             envOr("CHAIN_RPC_URL", "http://localhost:8545"),
			ChainID:            envInt64("CHAIN_ID", 1337),
			RegistryAddress:    os.Getenv("REGISTRY_CONTRACT_ADDRESS"),
			MarketplaceAddress: os.Getenv("MARKETPLACE_CONTRACT_ADDRESS"),
			SigningKey:         os.Getenv("SERVICE_PRIVATE_KEY"),
			ConfirmTimeout:     envDuration("CHAIN_CONFIRM_TIMEOUT", 90*time.Second),
			MaxAttempts:        int(envInt64("CHAIN_MAX_ATTEMPTS", 4)),
		},
		Pinning: PinningConfig{
			Endpoint:  envOr("PINNING_ENDPOINT", "https://api.pinata.cloud/pinning/pinFileToIPFS"),
			APIKey:    os.Getenv("PINNING_API_KEY"),
			APISecret: os.Getenv("PINNING_API_SECRET"),
		},
		Kafka: KafkaConfig{
			Brokers: splitNonEmpty(os.Getenv("KAFKA_BROKERS")),
			Topic:   envOr("KAFKA_AUDIT_TOPIC", "landledger.audit"),
		},
		PreparedTTL: envDuration("PREPARED_REGISTRATION_TTL", 30*time.Minute),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
