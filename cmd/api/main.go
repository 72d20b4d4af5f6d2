package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	"github.com/enquira/backend/internal/cache"
	"github.com/enquira/backend/internal/config"
	"github.com/enquira/backend/internal/handlers"
	"github.com/enquira/backend/internal/ledger"
	"github.com/enquira/backend/internal/middleware"
	"github.com/enquira/backend/internal/repository"
	"github.com/enquira/backend/internal/repository/db"
	"github.com/enquira/backend/internal/router"
	"github.com/enquira/backend/internal/services"
	"github.com/enquira/backend/internal/settlement"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.New()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Unable to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("Cannot reach PostgreSQL (connection refused or invalid). Ensure Postgres is running, e.g. make dev-up or docker-compose up -d", "error", err)
		os.Exit(1)
	}
	slog.Info("Connected to PostgreSQL database successfully!")

	// Schema migrations
	if cfg.AutoMigrate {
		if err := db.MigrateUp(cfg.DatabaseURL); err != nil {
			slog.Error("Schema migrate up failed", "error", err)
			os.Exit(1)
		}
		slog.Info("Schema migrations applied")
	}

	// River migrations
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		slog.Error("Failed to create River migrator", "error", err)
		os.Exit(1)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		slog.Error("River migrate up failed. If the error is 'connection refused', start PostgreSQL first (e.g. make dev-up)", "error", err)
		os.Exit(1)
	}
	slog.Info("River migrations applied")

	// Repositories and wallet ledger
	bidRepo := repository.NewBidRepo(pool)
	auctionRepo := repository.NewAuctionRepo(pool)
	accountRepo := repository.NewAccountRepo(pool)
	ledgerSvc := ledger.NewService(ledger.NewRepository(pool))

	// Job insert funcs are set after the River client is created (breaks
	// the init cycle between services and workers).
	var insertMu sync.Mutex
	var chargeFn services.InsertChargeBidTxFunc
	var closeFn services.EnqueueCloseAuctionFunc
	insertChargeBid := func(ctx context.Context, tx pgx.Tx, args settlement.ChargeBidArgs) error {
		insertMu.Lock()
		fn := chargeFn
		insertMu.Unlock()
		if fn == nil {
			panic("river insert not wired")
		}
		return fn(ctx, tx, args)
	}
	enqueueClose := func(ctx context.Context, enquiryID uuid.UUID, at time.Time) error {
		insertMu.Lock()
		fn := closeFn
		insertMu.Unlock()
		if fn == nil {
			panic("river insert not wired")
		}
		return fn(ctx, enquiryID, at)
	}

	settlementSvc := services.NewSettlementService(bidRepo, auctionRepo, insertChargeBid, logger)
	auctionSvc := services.NewAuctionService(auctionRepo, enqueueClose, logger)
	bidSvc := services.NewBidService(bidRepo, auctionRepo, ledgerSvc, logger)

	var snapshots cache.SnapshotCache
	if cfg.RedisAddr != "" {
		snapshots = cache.NewRedisSnapshotCache(cfg.RedisAddr, cfg.LeaderboardCacheTTL)
		slog.Info("Leaderboard snapshot cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.LeaderboardCacheTTL)
	}
	leaderboardSvc := services.NewLeaderboardService(bidRepo, auctionRepo, snapshots, logger)

	// River workers
	workers := river.NewWorkers()
	river.AddWorker(workers, settlement.NewChargeBidWorker(ledgerSvc, bidRepo, logger))
	river.AddWorker(workers, settlement.NewCloseAuctionWorker(settlementSvc))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
		},
		Workers: workers,
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}

	insertMu.Lock()
	chargeFn = func(ctx context.Context, tx pgx.Tx, args settlement.ChargeBidArgs) error {
		_, err := riverClient.InsertTx(ctx, tx, args, nil)
		return err
	}
	closeFn = func(ctx context.Context, enquiryID uuid.UUID, at time.Time) error {
		_, err := riverClient.Insert(ctx, settlement.CloseAuctionArgs{EnquiryID: enquiryID}, &river.InsertOpts{
			ScheduledAt: at,
		})
		return err
	}
	insertMu.Unlock()

	// Handlers and routes
	bidHandler := &handlers.BidHandler{Bids: bidSvc, Leaderboard: leaderboardSvc, Store: bidRepo, Logger: logger}
	enquiryHandler := &handlers.EnquiryHandler{Auctions: auctionSvc, Settler: settlementSvc, Logger: logger}
	walletHandler := &handlers.WalletHandler{Ledger: ledgerSvc, Accounts: accountRepo, Logger: logger}

	mux := router.New(bidHandler, enquiryHandler, walletHandler, router.Middleware{
		Identity:         middleware.Identity(accountRepo),
		OptionalIdentity: middleware.OptionalIdentity(accountRepo),
		BidLimit:         middleware.BidLimit(pool),
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Account-ID"},
		AllowCredentials: true,
	}).Handler(mux)

	// Start River client (processes closure and charge jobs)
	riverCtx, stopRiver := context.WithCancel(ctx)
	defer stopRiver()
	go func() {
		if err := riverClient.Start(riverCtx); err != nil && riverCtx.Err() == nil {
			slog.Error("River client stopped", "error", err)
		}
	}()

	slog.Info("Starting HTTP server", "addr", cfg.ServerAddress)
	if err := http.ListenAndServe(cfg.ServerAddress, corsHandler); err != nil {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}
