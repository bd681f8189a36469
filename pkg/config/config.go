package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/lukekoshy/doctor-booking-system/pkg/client"
	"github.com/lukekoshy/doctor-booking-system/pkg/logger"
)

type Config struct {
	ServiceName string

	StorageDriver    string
	DatabaseURL      string
	PostgresMaxConns int

	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	Port string

	RateLimitRPS   float64
	RateLimitBurst int

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	ReservationGracePeriod time.Duration
	SweepInterval          time.Duration
	SweepBatchSize         int
	MaxArmedTimers         int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaEnabled          bool
	KafkaEventsTopic      string
	KafkaPaymentsTopic    string
	KafkaPaymentsDLQTopic string
	KafkaConsumerGroup    string

	XRayEnabled bool

	Log    *logger.Logger
	Client *client.Client
}

// Load reads the configuration from the environment, validates it and logs it.
// Invalid configuration terminates the process.
func Load(serviceName string) *Config {
	cfg := FromEnv(serviceName)

	err := cfg.Validate()
	if err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

// FromEnv builds a Config from environment variables without validating it.
func FromEnv(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,

		StorageDriver:    getEnvStr(EnvStorageDriver, DefaultStorageDriver),
		DatabaseURL:      getEnvStr(EnvDatabaseURL, DefaultDatabaseURL),
		PostgresMaxConns: getEnvNum(EnvPostgresMaxConns, DefaultPostgresMaxConns),

		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		Port: getEnvStr(EnvPort, DefaultPort),

		RateLimitRPS:   getEnvFloat(EnvRateLimitRPS, DefaultRateLimitRPS),
		RateLimitBurst: getEnvNum(EnvRateLimitBurst, DefaultRateLimitBurst),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		ReservationGracePeriod: loadGracePeriod(),
		SweepInterval:          getEnvDuration(EnvSweepInterval, DefaultSweepInterval),
		SweepBatchSize:         getEnvNum(EnvSweepBatchSize, DefaultSweepBatchSize),
		MaxArmedTimers:         getEnvNum(EnvMaxArmedTimers, DefaultMaxArmedTimers),

		RedisAddr:     getEnvStr(EnvRedisAddr, ""),
		RedisPassword: getEnvStr(EnvRedisPassword, ""),
		RedisDB:       getEnvNum(EnvRedisDB, DefaultRedisDB),

		KafkaEnabled:          getEnvBool(EnvKafkaEnabled, DefaultKafkaEnabled),
		KafkaEventsTopic:      getEnvStr(EnvKafkaEventsTopic, DefaultKafkaEventsTopic),
		KafkaPaymentsTopic:    getEnvStr(EnvKafkaPaymentsTopic, DefaultKafkaPaymentsTopic),
		KafkaPaymentsDLQTopic: getEnvStr(EnvKafkaPaymentsDLQTopic, DefaultKafkaPaymentsDLQTopic),
		KafkaConsumerGroup:    getEnvStr(EnvKafkaConsumerGroup, DefaultKafkaConsumerGroup),

		XRayEnabled: getEnvBool(EnvXRayEnabled, DefaultXRayEnabled),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}
}

// loadGracePeriod prefers RESERVATION_GRACE_PERIOD (a duration) and falls back
// to the legacy BOOKING_EXPIRY_SECONDS integer.
func loadGracePeriod() time.Duration {
	if value := os.Getenv(EnvReservationGracePeriod); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	if seconds := getEnvNum(EnvBookingExpirySeconds, 0); seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return DefaultReservationGracePeriod
}

func (cfg *Config) SetPostgres() {
	cfg.Client.SetPostgres(cfg.Log, cfg.DatabaseURL, int32(cfg.PostgresMaxConns), cfg.MongoConnTimeout)
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

// SetRedis connects to Redis when REDIS_ADDR is set. Without it the
// idempotency store stays in memory.
func (cfg *Config) SetRedis() {
	if cfg.RedisAddr == "" {
		cfg.Log.Info("Redis not configured, using in-memory idempotency store")
		return
	}
	cfg.Client.SetRedis(cfg.Log, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.MongoConnTimeout)
}

// SetStorage connects the backend selected by STORAGE_DRIVER.
func (cfg *Config) SetStorage() {
	switch cfg.StorageDriver {
	case StorageDriverMongo:
		cfg.SetMongo()
	default:
		cfg.SetPostgres()
	}
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	switch cfg.StorageDriver {
	case StorageDriverPostgres:
		if cfg.DatabaseURL == "" {
			errors = append(errors, "DatabaseURL cannot be empty")
		} else if !regexp.MustCompile(`^postgres(ql)?://`).MatchString(cfg.DatabaseURL) {
			errors = append(errors, fmt.Sprintf("DatabaseURL must start with 'postgres://' or 'postgresql://', got: %s", redactURL(cfg.DatabaseURL)))
		}
		if cfg.PostgresMaxConns <= 0 {
			errors = append(errors, fmt.Sprintf("PostgresMaxConns must be positive, got: %d", cfg.PostgresMaxConns))
		}
	case StorageDriverMongo:
		if cfg.MongoURI == "" {
			errors = append(errors, "MongoURI cannot be empty")
		} else if len(cfg.MongoURI) < 10 || !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
			errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactURL(cfg.MongoURI)))
		}
		if cfg.MongoDatabaseName == "" {
			errors = append(errors, "MongoDatabaseName cannot be empty")
		}
	default:
		errors = append(errors, fmt.Sprintf("StorageDriver must be one of [postgres, mongo], got: %s", cfg.StorageDriver))
	}

	if cfg.MongoConnTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
	}
	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.IdempotencyTTL <= 0 {
		errors = append(errors, fmt.Sprintf("IdempotencyTTL must be positive, got: %s", cfg.IdempotencyTTL))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}

	if cfg.RateLimitRPS <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRPS must be positive, got: %g", cfg.RateLimitRPS))
	}
	if cfg.RateLimitBurst <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitBurst must be positive, got: %d", cfg.RateLimitBurst))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}

	if cfg.ReservationGracePeriod <= 0 {
		errors = append(errors, fmt.Sprintf("ReservationGracePeriod must be positive, got: %s", cfg.ReservationGracePeriod))
	}
	if cfg.SweepInterval <= 0 {
		errors = append(errors, fmt.Sprintf("SweepInterval must be positive, got: %s", cfg.SweepInterval))
	}
	if cfg.SweepBatchSize <= 0 {
		errors = append(errors, fmt.Sprintf("SweepBatchSize must be positive, got: %d", cfg.SweepBatchSize))
	}
	if cfg.MaxArmedTimers < 0 {
		errors = append(errors, fmt.Sprintf("MaxArmedTimers cannot be negative, got: %d", cfg.MaxArmedTimers))
	}

	if cfg.RedisDB < 0 {
		errors = append(errors, fmt.Sprintf("RedisDB cannot be negative, got: %d", cfg.RedisDB))
	}

	if cfg.KafkaEnabled {
		if cfg.KafkaEventsTopic == "" {
			errors = append(errors, "KafkaEventsTopic cannot be empty when Kafka is enabled")
		}
		if cfg.KafkaPaymentsTopic == "" {
			errors = append(errors, "KafkaPaymentsTopic cannot be empty when Kafka is enabled")
		}
		if cfg.KafkaConsumerGroup == "" {
			errors = append(errors, "KafkaConsumerGroup cannot be empty when Kafka is enabled")
		}
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"storage_driver", cfg.StorageDriver,
		"database_url", redactURL(cfg.DatabaseURL),
		"postgres_max_conns", cfg.PostgresMaxConns,
		"mongo_uri", redactURL(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"port", cfg.Port,
		"rate_limit_rps", cfg.RateLimitRPS,
		"rate_limit_burst", cfg.RateLimitBurst,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"reservation_grace_period", cfg.ReservationGracePeriod,
		"sweep_interval", cfg.SweepInterval,
		"sweep_batch_size", cfg.SweepBatchSize,
		"max_armed_timers", cfg.MaxArmedTimers,
		"redis_addr", cfg.RedisAddr,
		"redis_password_set", cfg.RedisPassword != "",
		"kafka_enabled", cfg.KafkaEnabled,
		"kafka_events_topic", cfg.KafkaEventsTopic,
		"kafka_payments_topic", cfg.KafkaPaymentsTopic,
		"xray_enabled", cfg.XRayEnabled,
	)
}

func redactURL(uri string) string {
	credentialRegex := regexp.MustCompile(`^([a-z+]+://)[^:/@]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log)
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = DefaultPageSize
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
