package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/mmocache/api/rest"
	"github.com/kasuganosora/mmocache/api/rpc"
	"github.com/kasuganosora/mmocache/api/sse"
	apows "github.com/kasuganosora/mmocache/api/ws"
	"github.com/kasuganosora/mmocache/audit"
	"github.com/kasuganosora/mmocache/cache"
	"github.com/kasuganosora/mmocache/codec"
	"github.com/kasuganosora/mmocache/config"
	dbadapter "github.com/kasuganosora/mmocache/db"
	"github.com/kasuganosora/mmocache/entity"
	"github.com/kasuganosora/mmocache/facade"
	"github.com/kasuganosora/mmocache/game/building"
	"github.com/kasuganosora/mmocache/game/guild"
	"github.com/kasuganosora/mmocache/game/item"
	"github.com/kasuganosora/mmocache/game/player"
	"github.com/kasuganosora/mmocache/game/storage"
	mw "github.com/kasuganosora/mmocache/middleware"
	"github.com/kasuganosora/mmocache/model"
	"github.com/kasuganosora/mmocache/plugin/hook"
	"github.com/kasuganosora/mmocache/scheduler"
	"github.com/kasuganosora/mmocache/store"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	var (
		cfg *config.Config
		err error
	)
	if len(os.Args) > 1 {
		cfg, err = config.Load(os.Args[1])
	} else {
		cfg, err = config.Default()
	}
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Cache / PubSub ----
	c, err := cache.NewCache(cfg.Cache)
	if err != nil {
		logger.Fatal("cache", zap.Error(err))
	}
	pubsub, err := cache.NewPubSub(cfg.Cache)
	if err != nil {
		logger.Fatal("pubsub", zap.Error(err))
	}
	if !cfg.Cache.Shared() {
		logger.Warn("cache.redis_addr is not set; storage updates and live buildings stay in this process")
	}

	// ---- Scheduler ----
	sched := scheduler.New(ctx, logger)
	defer sched.Stop()

	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	whitelist, err := mw.IPWhitelist(cfg.Server.AllowedIPs)
	if err != nil {
		logger.Fatal("ip whitelist", zap.Error(err))
	}
	r.Use(whitelist)
	r.GET("/health", func(ctx *gin.Context) {
		pingCtx, cancel := context.WithTimeout(ctx.Request.Context(), time.Second)
		defer cancel()
		if err := c.Ping(pingCtx); err != nil {
			ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "cache unreachable", "mode": cfg.Server.Mode})
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"status": "ok", "mode": cfg.Server.Mode})
	})

	switch cfg.Server.Mode {
	case config.ModeGateway:
		err = setupGateway(ctx, cfg, r, c, pubsub, sched, logger)
	default:
		err = setupCache(ctx, cfg, r, c, pubsub, sched, logger)
	}
	if err != nil {
		logger.Fatal("setup", zap.String("mode", cfg.Server.Mode), zap.Error(err))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Server listening", zap.String("addr", srv.Addr), zap.String("mode", cfg.Server.Mode))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server", zap.Error(err))
	}
}

// setupCache wires the caching facade and its rpc endpoint.
func setupCache(
	ctx context.Context,
	cfg *config.Config,
	r *gin.Engine,
	c cache.Cache,
	pubsub cache.PubSub,
	sched *scheduler.Scheduler,
	logger *zap.Logger,
) error {
	if cfg.Security.ServiceSecret == "" {
		logger.Warn("security.service_secret is not set; rpc calls are not authenticated")
	}

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		return fmt.Errorf("db migrate: %w", err)
	}
	logger.Info("DB initialized", zap.String("mode", cfg.Database.Mode))

	// ---- Audit ----
	auditSvc := audit.New(db, audit.Config(cfg.Audit), logger)
	go func() {
		<-ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := auditSvc.Stop(stopCtx); err != nil {
			logger.Warn("audit flush incomplete", zap.Error(err))
		}
	}()

	policy, err := facade.ParseBalancePolicy(cfg.Economy.BalancePolicy)
	if err != nil {
		return err
	}
	chCodec, err := codec.New[*entity.Character](cfg.Codec.Character)
	if err != nil {
		return err
	}

	svc, err := facade.New(facade.Options{
		Store:   store.NewGormStore(db),
		Catalog: item.NewStaticCatalog(cfg.Items...),
		Capacity: facade.StaticCapacity{
			Player:    cfg.Storage.Player,
			Guild:     cfg.Storage.Guild,
			Buildings: building.NewSharedRegistry(c, cfg.Storage.Buildings, logger),
		},
		Inventory:     cfg.Inventory,
		GuildRules:    guild.NewTableRules(cfg.Guild.Config),
		GuildRoles:    cfg.Guild.Roles,
		BalancePolicy: policy,
		Publisher:     pubsub,
		Channel:       cfg.Storage.Channel,
		Auditor:       auditSvc,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	sched.AddTicker("cache_stats", cfg.Scheduler.StatsInterval, scheduler.ReportStats(svc, logger))

	api := r.Group("/",
		mw.ServiceAuth(cfg.Security, c),
		mw.RateLimit(ctx, rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))
	limited := codec.Limit[*entity.Character]{Inner: chCodec, MaxDecode: cfg.Codec.MaxPayload}
	rpc.NewServer(svc, limited, logger).Register(api)
	api.GET("/events/storage", sse.NewHandler(pubsub, cfg.Storage.Channel, logger).ServeSSE)

	rest.NewCacheAdmin(svc, c, cfg.Security.ServiceTTL, sched, logger).
		WithAudit(auditSvc).
		Register(r.Group("/", rest.AdminAuth(cfg.Server.AdminKey)))
	return nil
}

// setupGateway wires the player WebSocket endpoint of a game server to a
// remote cache service.
func setupGateway(
	ctx context.Context,
	cfg *config.Config,
	r *gin.Engine,
	c cache.Cache,
	pubsub cache.PubSub,
	sched *scheduler.Scheduler,
	logger *zap.Logger,
) error {
	chCodec, err := codec.New[*entity.Character](cfg.Codec.Character)
	if err != nil {
		return err
	}
	client, err := rpc.NewClient(rpc.ClientConfig{
		BaseURL: cfg.Gateway.CacheURL,
		Service: cfg.Gateway.ServiceName,
		Secret:  cfg.Security.ServiceSecret,
		TTL:     cfg.Security.ServiceTTL,
		Codec:   chCodec,
	})
	if err != nil {
		return err
	}

	sm := player.NewSessionManager(logger)
	go func() {
		<-ctx.Done()
		sm.CloseAllSessions()
	}()
	online := guild.NewOnline()
	tracker, err := storage.New(storage.Config{
		Client:    client,
		Notifier:  sm,
		Guilds:    online,
		Buildings: building.NewSharedRegistry(c, cfg.Storage.Buildings, logger),
		Player:    cfg.Storage.Player,
		Guild:     cfg.Storage.Guild,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	go func() {
		if err := tracker.Listen(ctx, pubsub, cfg.Storage.Channel); err != nil {
			logger.Error("storage update listener stopped", zap.Error(err))
		}
	}()

	sched.AddTicker("sessions", cfg.Scheduler.StatsInterval, scheduler.ReportSessions(sm, logger))

	hooks := hook.NewCenter()
	hooks.Register(hook.OnPlayerLogin, 100, "log", func(_ context.Context, _ string, data interface{}) (interface{}, error) {
		ev := data.(hook.PlayerEvent)
		logger.Info("player connected",
			zap.Int64("conn_id", ev.ConnID),
			zap.String("account_id", ev.AccountID),
			zap.String("character_id", ev.CharacterID))
		return data, nil
	})

	h := apows.NewHandler(client, sm, tracker, online, cfg.Gateway.AllowedOrigins, logger)
	h.SetHooks(hooks)
	h.SetPacketLimit(cfg.Gateway.StorageRPS, cfg.Gateway.StorageBurst)
	r.GET("/ws", mw.RateLimit(ctx, rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst), h.ServeWS)

	rest.NewGatewayAdmin(sm, sched, logger).
		Register(r.Group("/", rest.AdminAuth(cfg.Server.AdminKey)))
	return nil
}
