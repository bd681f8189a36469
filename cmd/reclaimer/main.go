package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/urfave/cli/v2"

	"github.com/lukekoshy/doctor-booking-system/internal/reclaimer"
	"github.com/lukekoshy/doctor-booking-system/internal/reservations/events"
	reservationsrepo "github.com/lukekoshy/doctor-booking-system/internal/reservations/repository"
	"github.com/lukekoshy/doctor-booking-system/pkg/config"
	"github.com/lukekoshy/doctor-booking-system/pkg/kafka"
	kafka_config "github.com/lukekoshy/doctor-booking-system/pkg/kafka/config"
	kafka_middleware "github.com/lukekoshy/doctor-booking-system/pkg/kafka/middleware"
)

const (
	JobName         = "reclaimer"
	xrayDaemonAddr  = "127.0.0.1:2000"
	eventsCloseWait = 10 * time.Second
)

func main() {
	app := &cli.App{
		Name:  JobName,
		Usage: "expire overdue PENDING reservations once and exit",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Value: 5 * time.Minute,
				Usage: "abort the sweep after this long",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Reclaimer failed: %v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg := config.Load(JobName)
	configureTracing(cfg)

	ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx, timeoutCancel := context.WithTimeout(ctx, c.Duration("timeout"))
	defer timeoutCancel()

	if cfg.XRayEnabled {
		var seg *xray.Segment
		ctx, seg = xray.BeginSegment(ctx, JobName)
		defer seg.Close(nil)
		if err := seg.AddMetadata("storage_driver", cfg.StorageDriver); err != nil {
			cfg.Log.Warn("Failed to add X-Ray metadata", "error", err)
		}
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	publisher, closePublisher := openPublisher(cfg)
	defer closePublisher()

	rec := reclaimer.New(store, cfg, reclaimer.WithPublisher(publisher))
	defer rec.Stop()

	n, err := rec.SweepOnce(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			cfg.Log.Warn("Sweep interrupted", "expired", n)
		}
		return fmt.Errorf("sweep: %w", err)
	}

	cfg.Log.Info("Batch reclaim completed successfully", "expired", n)
	return nil
}

// configureTracing turns the X-Ray SDK off entirely unless tracing is enabled,
// so the store's subsegments become no-ops.
func configureTracing(cfg *config.Config) {
	if !cfg.XRayEnabled {
		os.Setenv("AWS_XRAY_SDK_DISABLED", "true")
		return
	}

	if err := xray.Configure(xray.Config{
		DaemonAddr:     xrayDaemonAddr,
		ServiceVersion: "1.0.0",
	}); err != nil {
		cfg.Log.Warn("Failed to configure X-Ray, using defaults", "error", err)
		if err := xray.Configure(xray.Config{}); err != nil {
			cfg.Log.Fatal("Failed to configure default X-Ray settings", "error", err)
		}
	}
	os.Setenv("AWS_XRAY_CONTEXT_MISSING", "LOG_ERROR")
}

func openStore(ctx context.Context, cfg *config.Config) (reclaimer.Store, func(), error) {
	if cfg.StorageDriver == config.StorageDriverMongo {
		cfg.SetMongo()
		return reservationsrepo.NewMongoReservationRepository(cfg), cfg.GracefulShutdown, nil
	}

	store, err := reclaimer.OpenSQLStore(ctx, cfg.DatabaseURL, cfg.PostgresMaxConns, cfg.XRayEnabled)
	if err != nil {
		return nil, nil, err
	}
	closeStore := func() {
		if err := store.Close(); err != nil {
			cfg.Log.Error("Failed to close database", "error", err)
		}
	}
	return store, closeStore, nil
}

func openPublisher(cfg *config.Config) (events.Publisher, func()) {
	if !cfg.KafkaEnabled {
		return events.NewNoopPublisher(), func() {}
	}

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	producer, err := kafka.NewProducer(kafkaCfg, cfg.Log, cfg.KafkaEventsTopic)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	if kafkaCfg.EnableMiddleware {
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
		producer.Use(kafka_middleware.MetricsProducerMiddleware())
	}

	closeProducer := func() {
		done := make(chan error, 1)
		go func() { done <- producer.Close() }()
		select {
		case err := <-done:
			if err != nil {
				cfg.Log.Error("Failed to close Kafka producer", "error", err)
			}
		case <-time.After(eventsCloseWait):
			cfg.Log.Warn("Timed out flushing Kafka producer")
		}
	}
	return events.NewKafkaPublisher(producer, JobName), closeProducer
}
