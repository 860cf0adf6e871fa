package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/MinhTuanPham/Dealer-Payment-Desk/internal/journal"
)

// Config aggregates runtime configuration grouped by concern.
type Config struct {
	ServiceName string
	HTTP        HTTPConfig
	Backend     BackendConfig
	Restate     RestateConfig
	Kafka       KafkaConfig
	Database    journal.DatabaseConfig
}

type HTTPConfig struct {
	Addr string
}

// BackendConfig points at the dealer backend API. The bearer token comes
// from the session environment; an empty token is allowed and simply sends
// requests unauthenticated, leaving rejection to the backend.
type BackendConfig struct {
	BaseURL string
	Token   string
}

type RestateConfig struct {
	ListenAddr string
	RuntimeURL string
}

type KafkaConfig struct {
	Brokers       []string
	PaymentsTopic string
}

// Load reads configuration from environment variables, applying sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		ServiceName: getEnv("SERVICE_NAME", "dealer-payment-desk"),
		HTTP: HTTPConfig{
			Addr: getEnv("HTTP_LISTEN_ADDR", ":3000"),
		},
		Backend: BackendConfig{
			BaseURL: getEnv("DEALER_API_BASE_URL", "http://localhost:8088"),
			Token:   os.Getenv("DEALER_API_TOKEN"),
		},
		Restate: RestateConfig{
			ListenAddr: getEnv("RESTATE_LISTEN_ADDR", ":9081"),
			RuntimeURL: getEnv("RESTATE_RUNTIME_URL", "http://127.0.0.1:8080"),
		},
		Kafka: KafkaConfig{
			Brokers:       splitAndTrim(getEnv("KAFKA_BROKERS", "localhost:9092")),
			PaymentsTopic: getEnv("KAFKA_PAYMENTS_TOPIC", "desk.payments.v1"),
		},
	}

	portStr := getEnv("DESK_DB_PORT", "5432")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Config{}, fmt.Errorf("parse DESK_DB_PORT: %w", err)
	}

	cfg.Database = journal.DatabaseConfig{
		Host:     getEnv("DESK_DB_HOST", "localhost"),
		Port:     port,
		Database: getEnv("DESK_DB_NAME", "paymentdesk"),
		User:     getEnv("DESK_DB_USER", "paymentdeskadmin"),
		Password: getEnv("DESK_DB_PASSWORD", ""),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
