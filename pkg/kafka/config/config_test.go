package kafka_config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"localhost:9092"}, cfg.Brokers)
	assert.Equal(t, DefaultProducerRequireAcks, cfg.ProducerRequireAcks)
	assert.Equal(t, DefaultConsumerMaxRetries, cfg.ConsumerMaxRetries)
	assert.True(t, cfg.EnableMiddleware)
}

func TestFromEnv_Brokers(t *testing.T) {
	t.Setenv(EnvKafkaBrokers, " kafka-1:9092, ,kafka-2:9092 ")
	cfg := FromEnv()
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Brokers)
}

func TestValidate(t *testing.T) {
	cfg := FromEnv()
	cfg.ProducerCompression = "brotli"
	cfg.ProducerRequireAcks = 2
	cfg.ConsumerStartOffset = 5
	cfg.ConsumerSessionTimeout = time.Second
	cfg.ConsumerHeartbeatInterval = 2 * time.Second

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ProducerCompression")
	assert.Contains(t, err.Error(), "ProducerRequireAcks")
	assert.Contains(t, err.Error(), "ConsumerStartOffset")
	assert.Contains(t, err.Error(), "ConsumerSessionTimeout")
}
