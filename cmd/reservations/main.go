package main

import (
	"context"
	"time"

	"github.com/lukekoshy/doctor-booking-system/internal/health"
	mongomigrations "github.com/lukekoshy/doctor-booking-system/internal/migrations/mongo"
	pgmigrations "github.com/lukekoshy/doctor-booking-system/internal/migrations/postgres"
	"github.com/lukekoshy/doctor-booking-system/internal/reclaimer"
	"github.com/lukekoshy/doctor-booking-system/internal/reservations/consumer"
	"github.com/lukekoshy/doctor-booking-system/internal/reservations/events"
	reservationshandler "github.com/lukekoshy/doctor-booking-system/internal/reservations/handler"
	reservationsrepo "github.com/lukekoshy/doctor-booking-system/internal/reservations/repository"
	reservationsservice "github.com/lukekoshy/doctor-booking-system/internal/reservations/service"
	reservationsvalidator "github.com/lukekoshy/doctor-booking-system/internal/reservations/validator"
	slotshandler "github.com/lukekoshy/doctor-booking-system/internal/slots/handler"
	slotsrepo "github.com/lukekoshy/doctor-booking-system/internal/slots/repository"
	slotsservice "github.com/lukekoshy/doctor-booking-system/internal/slots/service"
	slotsvalidator "github.com/lukekoshy/doctor-booking-system/internal/slots/validator"
	"github.com/lukekoshy/doctor-booking-system/pkg/app"
	"github.com/lukekoshy/doctor-booking-system/pkg/clock"
	"github.com/lukekoshy/doctor-booking-system/pkg/config"
	"github.com/lukekoshy/doctor-booking-system/pkg/kafka"
	kafka_config "github.com/lukekoshy/doctor-booking-system/pkg/kafka/config"
	kafka_middleware "github.com/lukekoshy/doctor-booking-system/pkg/kafka/middleware"
)

const (
	ServiceName      = "reservations"
	migrationTimeout = 2 * time.Minute
)

type repositories struct {
	slots        slotsrepo.SlotRepository
	reservations reservationsrepo.ReservationRepository
}

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetStorage()
	cfg.SetRedis()

	repos := initStorage(cfg)
	healthHandler := initHealth(cfg)

	application := app.NewApplication(cfg)
	application.OnShutdown(cfg.GracefulShutdown)

	publisher := initPublisher(cfg, application)

	rec := reclaimer.New(repos.reservations, cfg, reclaimer.WithPublisher(publisher))
	application.AddWorker("reclaimer", func(ctx context.Context) error {
		if _, err := rec.Recover(ctx); err != nil {
			cfg.Log.Error("Reservation recovery failed, relying on the periodic sweep", "error", err)
		}
		return rec.Run(ctx)
	})
	application.OnShutdown(rec.Stop)

	reservationService := reservationsservice.NewReservationService(
		repos.reservations,
		reservationsvalidator.NewReservationValidator(),
		cfg,
		reservationsservice.WithScheduler(rec),
		reservationsservice.WithPublisher(publisher),
	)
	slotService := slotsservice.NewSlotService(
		repos.slots,
		slotsvalidator.NewSlotValidator(cfg.Log),
		cfg,
		clock.NewSystem(),
	)
	cfg.Log.Info("Reservation and slot services initialized", "storage_driver", cfg.StorageDriver)

	initPaymentsConsumer(cfg, application, reservationService)

	application.SetApp(
		healthHandler,
		slotshandler.NewSlotHandler(slotService, cfg.Log),
		reservationshandler.NewReservationHandler(reservationService, cfg.Log),
	)
	application.Run()
}

func initStorage(cfg *config.Config) repositories {
	ctx, cancel := context.WithTimeout(context.Background(), migrationTimeout)
	defer cancel()

	switch cfg.StorageDriver {
	case config.StorageDriverMongo:
		if err := mongomigrations.RunMigration(ctx, cfg.Client.Mongo, cfg.MongoDatabaseName, cfg.Log); err != nil {
			cfg.Log.Fatal("Mongo migration failed", "error", err)
		}
		return repositories{
			slots:        slotsrepo.NewMongoSlotRepository(cfg),
			reservations: reservationsrepo.NewMongoReservationRepository(cfg),
		}
	default:
		if err := pgmigrations.Apply(ctx, cfg.Client.Postgres, cfg.Log); err != nil {
			cfg.Log.Fatal("Postgres migration failed", "error", err)
		}
		return repositories{
			slots:        slotsrepo.NewPostgresSlotRepository(cfg.Client.Postgres),
			reservations: reservationsrepo.NewPostgresReservationRepository(cfg.Client.Postgres),
		}
	}
}

func initHealth(cfg *config.Config) *health.HealthHandler {
	h := health.NewHealthHandler(cfg.Log)
	if cfg.Client.Postgres != nil {
		h.WithCheck("postgres", health.PostgresPinger(cfg.Client.Postgres))
	}
	if cfg.Client.Mongo != nil {
		h.WithCheck("mongo", health.MongoPinger(cfg.Client.Mongo))
	}
	if cfg.Client.Redis != nil {
		h.WithCheck("redis", health.RedisPinger(cfg.Client.Redis))
	}
	return h
}

func loadKafkaConfig(cfg *config.Config) *kafka_config.Config {
	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)
	return kafkaCfg
}

func initPublisher(cfg *config.Config, application *app.Application) events.Publisher {
	if !cfg.KafkaEnabled {
		cfg.Log.Info("Kafka disabled, reservation events are not published")
		return events.NewNoopPublisher()
	}

	kafkaCfg := loadKafkaConfig(cfg)
	producer, err := kafka.NewProducer(kafkaCfg, cfg.Log, cfg.KafkaEventsTopic)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	if kafkaCfg.EnableMiddleware {
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
		producer.Use(kafka_middleware.MetricsProducerMiddleware())
	}
	application.OnShutdown(func() {
		if err := producer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka producer", "error", err)
		}
	})

	cfg.Log.Info("Reservation events published to Kafka", "topic", cfg.KafkaEventsTopic)
	return events.NewKafkaPublisher(producer, ServiceName)
}

func initPaymentsConsumer(cfg *config.Config, application *app.Application, confirmer consumer.Confirmer) {
	if !cfg.KafkaEnabled {
		return
	}

	kafkaCfg := loadKafkaConfig(cfg)
	payments := consumer.NewPaymentHandler(confirmer, cfg.Log)
	c, err := kafka.NewConsumer(
		kafkaCfg,
		cfg.Log,
		cfg.KafkaPaymentsTopic,
		cfg.KafkaConsumerGroup,
		cfg.KafkaPaymentsDLQTopic,
		payments.Handle,
	)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka consumer", "error", err)
	}
	if kafkaCfg.EnableMiddleware {
		c.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
		c.Use(kafka_middleware.MetricsConsumerMiddleware())
	}

	application.AddWorker("payments-consumer", c.Start)
	application.OnShutdown(func() {
		if err := c.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka consumer", "error", err)
		}
	})
}
