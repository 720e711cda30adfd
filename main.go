package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"nftmarket/internal/config"
	"nftmarket/internal/database/db_client"
	"nftmarket/internal/database/migrations"
	"nftmarket/internal/domain/model"
	"nftmarket/internal/events"
	"nftmarket/internal/http/http_server"
	"nftmarket/internal/redis/eventpub"
	"nftmarket/internal/redis/redis_client"
	"nftmarket/internal/services/auction"
	"nftmarket/internal/services/listing"
	"nftmarket/internal/services/marketplace"
	"nftmarket/internal/sweeper"
	"nftmarket/internal/syncdb"
	"nftmarket/internal/syncevents"
	"nftmarket/internal/ws"
)

var (
	Log, _ = zap.NewDevelopment()
)

func main() {
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	var err error
	var cfg *config.Config
	var redisClient *redis.Client

	// 1. Load configuration
	cfg, err = config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	if cfg.LogMode == "production" {
		if prod, err := zap.NewProduction(); err == nil {
			Log = prod
			zap.ReplaceGlobals(Log)
		}
	}
	Log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Core: emitter, listing store, auction engine, marketplace facade
	emitter := events.NewEmitter()
	store := listing.NewStore(emitter, listing.WithMinPrice(cfg.MinListingPrice))
	engine := auction.NewEngine(emitter, model.SystemClock)
	market := marketplace.New(emitter, store, engine, marketplace.FixedRoyalty(cfg.DefaultRoyaltyBps), model.SystemClock)

	hub := ws.NewHub()

	// 4. Redis: event publishing + websocket fan-out across instances
	if cfg.RedisEnabled {
		redisClient, err = redis_client.NewRedisClient(ctx, cfg.RedisHost, int(cfg.RedisPort))
		if err != nil {
			Log.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer redisClient.Close()
		Log.Debug("Redis client created successfully")

		pub := eventpub.New(redisClient, cfg.EventBufferSize)
		emitter.Subscribe(pub)
		go pub.Run(ctx)
	} else {
		fanout := ws.NewLocalFanout(hub, cfg.EventBufferSize)
		emitter.Subscribe(fanout)
		go fanout.Run(ctx)
	}

	// 5. Postgres: schema, event log, periodic snapshot
	if cfg.PostgresEnabled {
		pgDb, err := db_client.Open(ctx, cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDb)
		if err != nil {
			Log.Fatal("pg-open", zap.Error(err))
		}
		defer pgDb.Close()

		if err := migrations.Apply(ctx, pgDb); err != nil {
			Log.Fatal("pg-migrate", zap.Error(err))
		}
		if redisClient != nil {
			syncevents.Run(ctx, redisClient, pgDb)
		}
		syncdb.Run(ctx, pgDb, store, engine, cfg.SnapshotInterval)
	}

	// 6. Background: settle due auctions, expire stale listings
	go sweeper.Run(ctx, market, cfg.SweepInterval)

	// 7. HTTP + WS server
	wsSrv := ws.NewWsServer(hub, redisClient, market)
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, wsSrv, market)
	if err := httpServer.Start(); err != nil {
		Log.Fatal("Failed to start HTTP server", zap.Error(err))
	}
	Log.Info("shutdown complete")
}
