package main

import (
	"fmt"
	"log/slog"
	"os"

	"leasetoken/internal/config"

	"github.com/urfave/cli/v2"
)

// version mgmt, set at build time with -ldflags
var Version = "dev"

func main() {
	app := &cli.App{
		Name:  "leasetoken",
		Usage: "lease ownership tokens and rental marketplace listings",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "runs the HTTP API",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "memory",
						Usage:   "keep state in process memory instead of Postgres",
						EnvVars: []string{"USE_MEMORY_STORE"},
					},
					&cli.BoolFlag{
						Name:  "migrate",
						Usage: "apply the database schema before serving",
					},
				},
				Action: runServe,
			},
			{
				Name:   "migrate",
				Usage:  "applies the database schema",
				Action: runMigrate,
			},
			{
				Name:  "mint",
				Usage: "stores an active lease and emits the mint event of its token",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "lease-id", Required: true},
					&cli.StringFlag{Name: "lender-id", Required: true},
					&cli.StringFlag{Name: "borrower-id"},
					&cli.StringFlag{Name: "contract", Usage: "leased NFT contract", Required: true},
					&cli.StringFlag{Name: "token-id", Usage: "leased NFT token id", Required: true},
					&cli.StringFlag{Name: "ft-contract"},
					&cli.StringFlag{Name: "price", Value: "0"},
					&cli.Uint64Flag{Name: "start-ts-nano"},
					&cli.Uint64Flag{Name: "end-ts-nano"},
					&cli.StringFlag{Name: "memo"},
				},
				Action: runMint,
			},
			{
				Name:  "version",
				Usage: "prints the version of this binary",
				Action: func(c *cli.Context) error {
					fmt.Printf("Version: %s\n", Version)
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("❌ leasetoken failed", "error", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration and installs the default logger.
// Only serve needs the full configuration validated.
func loadConfig(c *cli.Context, validate bool) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if c.IsSet("memory") {
		cfg.UseMemory = c.Bool("memory")
	}

	setupLogger(cfg.LogLevel)

	if !validate {
		return cfg, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
}
