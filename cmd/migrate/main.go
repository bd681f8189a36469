package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	mongomigrations "github.com/lukekoshy/doctor-booking-system/internal/migrations/mongo"
	pgmigrations "github.com/lukekoshy/doctor-booking-system/internal/migrations/postgres"
	"github.com/lukekoshy/doctor-booking-system/pkg/config"
)

const JobName = "migrate"

func main() {
	app := &cli.App{
		Name:  JobName,
		Usage: "apply the reservation schema to PostgreSQL or MongoDB",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Value: 120 * time.Second,
				Usage: "abort the migration after this long",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   config.StorageDriverPostgres,
				Usage:  "apply the embedded SQL migrations (DATABASE_URL)",
				Action: migratePostgres,
			},
			{
				Name:   config.StorageDriverMongo,
				Usage:  "create collections, validators and indexes (MONGO_URI, MONGO_DATABASE_NAME)",
				Action: migrateMongo,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context, driver string) (*config.Config, context.Context, context.CancelFunc) {
	cfg := config.FromEnv(JobName)
	cfg.StorageDriver = driver
	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	return cfg, ctx, cancel
}

func migratePostgres(c *cli.Context) error {
	cfg, ctx, cancel := loadConfig(c, config.StorageDriverPostgres)
	defer cancel()

	cfg.SetPostgres()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Postgres migration job")
	if err := pgmigrations.Apply(ctx, cfg.Client.Postgres, cfg.Log); err != nil {
		return err
	}
	cfg.Log.Info("Postgres migration completed successfully")
	return nil
}

func migrateMongo(c *cli.Context) error {
	cfg, ctx, cancel := loadConfig(c, config.StorageDriverMongo)
	defer cancel()

	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Mongo migration job")
	if err := mongomigrations.RunMigration(ctx, cfg.Client.Mongo, cfg.MongoDatabaseName, cfg.Log); err != nil {
		return err
	}
	cfg.Log.Info("Mongo migration completed successfully")
	return nil
}
