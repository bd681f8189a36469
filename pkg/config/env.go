package config

const (
	EnvStorageDriver    = "STORAGE_DRIVER"
	EnvDatabaseURL      = "DATABASE_URL"
	EnvPostgresMaxConns = "POSTGRES_MAX_CONNS"

	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRateLimitRPS   = "RATE_LIMIT_RPS"
	EnvRateLimitBurst = "RATE_LIMIT_BURST"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvReservationGracePeriod = "RESERVATION_GRACE_PERIOD"
	EnvBookingExpirySeconds   = "BOOKING_EXPIRY_SECONDS"
	EnvSweepInterval          = "SWEEP_INTERVAL"
	EnvSweepBatchSize         = "SWEEP_BATCH_SIZE"
	EnvMaxArmedTimers         = "MAX_ARMED_TIMERS"

	EnvRedisAddr     = "REDIS_ADDR"
	EnvRedisPassword = "REDIS_PASSWORD"
	EnvRedisDB       = "REDIS_DB"

	EnvKafkaEnabled          = "KAFKA_ENABLED"
	EnvKafkaEventsTopic      = "KAFKA_EVENTS_TOPIC"
	EnvKafkaPaymentsTopic    = "KAFKA_PAYMENTS_TOPIC"
	EnvKafkaPaymentsDLQTopic = "KAFKA_PAYMENTS_DLQ_TOPIC"
	EnvKafkaConsumerGroup    = "KAFKA_CONSUMER_GROUP"

	EnvXRayEnabled = "XRAY_ENABLED"
)
