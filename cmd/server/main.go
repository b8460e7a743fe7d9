package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"civ-server/internal/ai"
	"civ-server/internal/building"
	"civ-server/internal/city"
	"civ-server/internal/civ"
	"civ-server/internal/diplomacy"
	"civ-server/internal/game"
	"civ-server/internal/hexmap"
	"civ-server/internal/llm"
	"civ-server/internal/middleware"
	"civ-server/internal/server"
	"civ-server/internal/shared/config"
	"civ-server/internal/shared/database"
	"civ-server/internal/shared/logger"
	"civ-server/internal/shared/redis"
	"civ-server/internal/tech"
	"civ-server/internal/turn"
	"civ-server/internal/unit"

	goredis "github.com/redis/go-redis/v9"
)

func main() {
	if err := config.Init(); err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	cfg := config.GlobalConfig

	logger.Init()
	appLogger := slog.With("component", "main")
	appLogger.Info("Starting server", "environment", cfg.Server.Environment)

	db, err := database.Connect()
	if err != nil {
		appLogger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		appLogger.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	redisClient, err := redis.Connect()
	if err != nil {
		appLogger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	var rawRedis *goredis.Client
	if redisClient != nil {
		rawRedis = redisClient.Client
	}

	// Repositories
	gameRepo := game.NewRepository(db, slog.Default())
	snapshotRepo := game.NewSnapshotRepository(db, slog.Default())
	civRepo := civ.NewRepository(db, slog.Default())
	cityRepo := city.NewRepository(db, slog.Default())
	mapRepo := hexmap.NewRepository(db, slog.Default())
	techRepo := tech.NewRepository(db, slog.Default())
	buildingRepo := building.NewRepository(db, slog.Default())
	unitRepo := unit.NewRepository(db, slog.Default())

	// Domain services
	techService := tech.NewService(techRepo, civRepo, cfg.Game.ResearchQueueLimit, slog.Default())
	buildingService := building.NewService(buildingRepo, cityRepo, slog.Default())
	unitService := unit.NewService(unitRepo, cityRepo, slog.Default())
	mapService := hexmap.NewService(mapRepo, slog.Default())

	// AI decision engine: LLM provider when configured, deterministic
	// fallback always available.
	llmClient := llm.NewClient(cfg.AI)
	var llmProvider ai.Provider
	if llmClient.Enabled() {
		llmProvider = ai.NewLLMProvider(llmClient)
	}
	engine := ai.NewEngine(
		llmProvider,
		ai.NewRandomProvider(time.Now().UnixNano()),
		civRepo, cityRepo, techService, buildingService, unitService,
		slog.Default(),
	)

	// Diplomacy: redis-backed sessions when available.
	var diplomacyStore diplomacy.Store
	if rawRedis != nil {
		diplomacyStore = diplomacy.NewRedisStore(rawRedis)
	} else {
		diplomacyStore = diplomacy.NewMemoryStore()
	}
	var responder diplomacy.Responder
	if llmClient.Enabled() {
		responder = llmClient
	}
	diplomacyService := diplomacy.NewService(
		diplomacyStore, civRepo, responder,
		cfg.Game.DiplomacyBudget, cfg.Game.DiplomacyResumeGrant, cfg.Game.DiplomacyCooldown,
		slog.Default(),
	)

	// Turn orchestrator
	locker := turn.NewLocker(rawRedis, cfg.Game.TurnLockTTL, slog.Default())
	ledger := turn.NewLedger(mapRepo, buildingRepo, cityRepo, civRepo, slog.Default())
	reconciler := turn.NewReconciler(cityRepo, unitRepo, slog.Default())
	turnService := turn.NewService(
		db, locker, ledger, reconciler,
		gameRepo, snapshotRepo, civRepo, cityRepo, mapRepo,
		techService, buildingService, unitService, engine, diplomacyService,
		slog.Default(),
	)

	gameService := game.NewService(gameRepo, snapshotRepo, turnService, slog.Default())

	routes := server.NewRoutes(db, gameService, turnService, techService, buildingService, unitService, mapService, diplomacyService, slog.Default())
	mux := routes.Setup()

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		Enabled:           cfg.RateLimit.Enabled,
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		BurstSize:         cfg.RateLimit.BurstSize,
		TrustProxy:        cfg.Server.Environment == "production",
	})
	corsMiddleware := middleware.NewCORS()

	handler := corsMiddleware.Middleware(rateLimiter.Middleware(mux))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		appLogger.Info("Server listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	appLogger.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server shutdown failed", "error", err)
		os.Exit(1)
	}
	appLogger.Info("Server stopped")
}
