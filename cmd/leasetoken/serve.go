package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leasetoken/internal/allowlist"
	"leasetoken/internal/api"
	"leasetoken/internal/config"
	"leasetoken/internal/events"
	"leasetoken/internal/models"
	"leasetoken/internal/orchestrator"
	"leasetoken/internal/remote"
	"leasetoken/internal/retry"
	"leasetoken/internal/services"
	"leasetoken/internal/storage"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func runServe(c *cli.Context) error {
	cfg, err := loadConfig(c, true)
	if err != nil {
		return err
	}

	slog.Info("Configuration loaded",
		"marketplace_account_id", cfg.MarketplaceAccountID,
		"memory_store", cfg.UseMemory,
		"allowed_nft_contracts", cfg.AllowedNFTContracts,
		"allowed_ft_contracts", cfg.AllowedFTContracts,
		"log_level", cfg.LogLevel,
	)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	repository, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer repository.Close()

	if pg, ok := repository.(*storage.PostgresRepository); ok && c.Bool("migrate") {
		if err := pg.Migrate(ctx); err != nil {
			return err
		}
	}

	orch := orchestrator.New()
	emitter := events.NewEmitter(events.LogSink{}, events.NewStoreSink(repository))
	client := remote.NewClient(
		remote.NewDirectory(cfg.Endpoints, cfg.EndpointURLTemplate),
		&http.Client{},
	)

	tokens := services.NewTokenService(repository, emitter, orch, client, services.TransferConfig{
		ReceiverCallTimeout: cfg.ReceiverCallTimeout,
		ResolveTimeout:      cfg.ResolveTimeout,
	})
	listings := services.NewListingService(
		repository,
		orch,
		client,
		allowlist.New("nft_contracts", cfg.AllowedNFTContracts...),
		allowlist.New("ft_contracts", cfg.AllowedFTContracts...),
		services.ListingConfig{
			MarketplaceAccountID: cfg.MarketplaceAccountID,
			PayoutCallTimeout:    cfg.PayoutCallTimeout,
			ListingTimeout:       cfg.ListingTimeout,
			MaxLenPayout:         services.MaxLenPayout,
		},
	)

	server := api.NewServer(cfg.APIPort, repository, tokens, listings, api.Options{
		TransferCallWait: cfg.TransferCallWait,
		RateLimit:        cfg.RateLimit,
		RateBurst:        cfg.RateBurst,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.ListenAndServe)
	g.Go(func() error {
		<-gctx.Done()
		slog.Warn("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := server.Shutdown(shutdownCtx)

		// accepted transfers and approvals still get their continuation
		orch.Wait()
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	slog.Info("leasetoken stopped")
	return nil
}

func runMigrate(c *cli.Context) error {
	cfg, err := loadConfig(c, false)
	if err != nil {
		return err
	}

	repository, err := connectPostgres(c.Context, cfg)
	if err != nil {
		return err
	}
	defer repository.Close()

	return repository.Migrate(c.Context)
}

func runMint(c *cli.Context) error {
	cfg, err := loadConfig(c, false)
	if err != nil {
		return err
	}

	repository, err := connectPostgres(c.Context, cfg)
	if err != nil {
		return err
	}
	defer repository.Close()

	emitter := events.NewEmitter(events.LogSink{}, events.NewStoreSink(repository))
	tokens := services.NewTokenService(repository, emitter, orchestrator.New(), nil, services.DefaultTransferConfig())

	var memo *string
	if c.IsSet("memo") {
		m := c.String("memo")
		memo = &m
	}

	view, err := tokens.Mint(c.Context, models.Lease{
		LeaseID:        c.String("lease-id"),
		LenderID:       c.String("lender-id"),
		BorrowerID:     c.String("borrower-id"),
		ContractAddr:   c.String("contract"),
		TokenID:        c.String("token-id"),
		FTContractAddr: c.String("ft-contract"),
		Price:          c.String("price"),
		StartTsNano:    c.Uint64("start-ts-nano"),
		EndTsNano:      c.Uint64("end-ts-nano"),
	}, memo)
	if err != nil {
		return err
	}

	fmt.Printf("Minted %s for %s\n", view.TokenID, view.OwnerID)
	return nil
}

// openRepository picks the storage backend from configuration
func openRepository(ctx context.Context, cfg *config.Config) (storage.Repository, error) {
	if cfg.UseMemory {
		slog.Warn("Using in-memory store, state is lost on exit")
		return storage.NewMemoryRepository(), nil
	}
	return connectPostgres(ctx, cfg)
}

// connectPostgres waits out a database that is still starting
func connectPostgres(ctx context.Context, cfg *config.Config) (*storage.PostgresRepository, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	var repository *storage.PostgresRepository
	strategy := retry.NewStrategy(cfg.Retry)
	err := strategy.Execute(ctx, "connect_database", func(ctx context.Context) error {
		var err error
		repository, err = storage.NewPostgresRepository(ctx, cfg.DatabaseURL)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("Database connected successfully")
	return repository, nil
}
