package kafka_middleware

import (
	"context"
	"time"

	"github.com/lukekoshy/doctor-booking-system/pkg/kafka"
	"github.com/lukekoshy/doctor-booking-system/pkg/metrics"
)

const (
	directionPublish = "publish"
	directionConsume = "consume"
)

// MetricsProducerMiddleware records publish outcomes and latency in Prometheus.
func MetricsProducerMiddleware() kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()
		err := next(ctx, msg)
		metrics.RecordKafkaMessage(directionPublish, msg.Topic, err, time.Since(start).Seconds())
		return err
	}
}

// MetricsConsumerMiddleware records each handler attempt, retries included.
func MetricsConsumerMiddleware() kafka.ConsumerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		start := time.Now()
		err := next(ctx, msg)
		metrics.RecordKafkaMessage(directionConsume, msg.Topic, err, time.Since(start).Seconds())
		return err
	}
}
