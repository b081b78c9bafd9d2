package main

import (
	"os"

	"github.com/m-mizutani/weblogparser/internal"
	"github.com/m-mizutani/weblogparser/pkg/models"
	cli "github.com/urfave/cli/v2"
)

var logger = internal.Logger

const defaultDBPath = "weblog.duckdb"

func newApp() *cli.App {
	var args arguments

	var envVars models.EnvVars
	if err := envVars.BindEnvVars(); err != nil {
		logger.WithError(err).Warn("Failed to load environment variables")
	}
	if envVars.DBPath == "" {
		envVars.DBPath = defaultDBPath
	}
	if envVars.LogLevel == "" {
		envVars.LogLevel = "INFO"
	}

	return &cli.App{
		Name:  "weblogparser",
		Usage: "Import web server access logs and analyze page views",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "db",
				Usage:       "DuckDB database file path (empty for in-memory)",
				Value:       envVars.DBPath,
				Destination: &args.DBPath,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Aliases:     []string{"l"},
				Usage:       "Log level [TRACE|DEBUG|INFO|WARN|ERROR]",
				Value:       envVars.LogLevel,
				Destination: &args.LogLevel,
			},
			&cli.StringFlag{
				Name:        "sentry-dsn",
				Usage:       "Sentry DSN to report errors",
				Value:       envVars.SentryDSN,
				Destination: &args.SentryDSN,
			},
			&cli.StringFlag{
				Name:        "sentry-env",
				Usage:       "Sentry environment",
				Value:       envVars.SentryEnv,
				Destination: &args.SentryEnv,
			},
			&cli.StringFlag{
				Name:        "lock-table",
				Usage:       "DynamoDB table name to lock files among processes",
				Value:       envVars.LockTableName,
				Destination: &args.LockTable,
			},
			&cli.StringFlag{
				Name:        "aws-region",
				Aliases:     []string{"r"},
				Usage:       "AWS region for S3 and DynamoDB",
				Value:       envVars.AwsRegion,
				Destination: &args.AwsRegion,
			},
		},
		Before: func(c *cli.Context) error {
			if err := internal.SetLogLevel(args.LogLevel); err != nil {
				return err
			}
			return internal.InitErrorHandler(args.SentryDSN, args.SentryEnv)
		},
		Commands: []*cli.Command{
			importCommand(&args),
			resetCommand(&args),
			statusCommand(&args),
			statsCommand(&args),
			exportCommand(&args),
			dumpCommand(&args),
			serveCommand(&args),
		},
	}
}

func main() {
	err := newApp().Run(os.Args)
	internal.FlushError()

	if err != nil {
		logger.WithError(err).Error("Abort")
		os.Exit(1)
	}
}
