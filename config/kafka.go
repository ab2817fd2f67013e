package config

import (
	"strings"
	"time"
)

// KafkaConfig contains broker connection and delivery settings shared by
// every role. The defaults mirror the contract in the broker plane: bounded
// connect retries, at-least-once consumption with periodic autocommit, and
// acks from all in-sync replicas on produce.
type KafkaConfig struct {
	// BrokerURL is the bootstrap broker address.
	BrokerURL string `env:"KAFKA_BROKER_URL" envDefault:"kafka:9092"`

	// ConnectRetries bounds startup connection attempts.
	ConnectRetries int `env:"KAFKA_CONNECT_RETRIES" envDefault:"5"`

	// ConnectBackoff is the delay between connection attempts.
	ConnectBackoff time.Duration `env:"KAFKA_CONNECT_BACKOFF" envDefault:"5s"`

	// ProducerRetries is the number of in-client produce retries.
	ProducerRetries int `env:"KAFKA_PRODUCER_RETRIES" envDefault:"5"`

	// RetryBackoff is the produce retry backoff.
	RetryBackoff time.Duration `env:"KAFKA_RETRY_BACKOFF_MS" envDefault:"500ms"`

	// RequestTimeout caps a single produce request.
	RequestTimeout time.Duration `env:"KAFKA_REQUEST_TIMEOUT_MS" envDefault:"10s"`

	// FlushTimeout caps the final flush during shutdown.
	FlushTimeout time.Duration `env:"KAFKA_FLUSH_TIMEOUT" envDefault:"5s"`

	// AutoCommitInterval is the consumer offset autocommit cadence.
	AutoCommitInterval time.Duration `env:"KAFKA_AUTO_COMMIT_INTERVAL" envDefault:"5s"`

	// ConsumerStopTimeout caps waiting for the consumer loop to exit on shutdown.
	ConsumerStopTimeout time.Duration `env:"KAFKA_CONSUMER_STOP_TIMEOUT" envDefault:"10s"`
}

// Sanitize applies guardrails to broker configuration values.
func (k *KafkaConfig) Sanitize() {
	k.BrokerURL = strings.TrimSpace(k.BrokerURL)
	if k.BrokerURL == "" {
		k.BrokerURL = "kafka:9092"
	}
	if k.ConnectRetries < 1 {
		k.ConnectRetries = 1
	}
	if k.ConnectBackoff <= 0 {
		k.ConnectBackoff = 5 * time.Second
	}
	if k.ProducerRetries < 0 {
		k.ProducerRetries = 0
	}
	if k.RetryBackoff <= 0 {
		k.RetryBackoff = 500 * time.Millisecond
	}
	if k.RequestTimeout <= 0 {
		k.RequestTimeout = 10 * time.Second
	}
	if k.FlushTimeout <= 0 {
		k.FlushTimeout = 5 * time.Second
	}
	if k.AutoCommitInterval <= 0 {
		k.AutoCommitInterval = 5 * time.Second
	}
	if k.ConsumerStopTimeout <= 0 {
		k.ConsumerStopTimeout = 10 * time.Second
	}
}

// Brokers returns the bootstrap broker list for client construction.
func (k *KafkaConfig) Brokers() []string {
	parts := strings.Split(k.BrokerURL, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if b := strings.TrimSpace(p); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
