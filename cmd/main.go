package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"HoldemTable/config"
	"HoldemTable/internal/api"
	"HoldemTable/internal/auth"
	"HoldemTable/internal/game/engine"
	"HoldemTable/internal/game/manager"
	"HoldemTable/internal/game/timeout"
	"HoldemTable/internal/matchmaker"
	"HoldemTable/internal/middleware"
	"HoldemTable/internal/storage"
	"HoldemTable/internal/utils"
	"HoldemTable/internal/websocket"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("config", "err", err)
	}
	logger := utils.NewLogger(cfg.Log.Level, os.Stderr)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", "err", err)
	}
	logger.Info("bye")
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := quartz.NewReal()

	//-------------------------------------------------------
	// 1. 存储
	//-------------------------------------------------------
	store, cards, rdb, closeStores, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStores()

	//-------------------------------------------------------
	// 2. 引擎 + 推送
	//-------------------------------------------------------
	eng := engine.New(store, cards, clock, logger.WithPrefix("engine"), engine.Options{
		SmallBlind:    cfg.Game.SmallBlind,
		BigBlind:      cfg.Game.BigBlind,
		StartingChips: cfg.Game.StartingChips,
		MaxSeats:      cfg.Game.MaxSeats,
		TurnTimeLimit: cfg.Game.TurnTimeLimit,
		NextHandDelay: cfg.Game.NextHandDelay,
	})
	defer eng.Close()

	hub := websocket.NewHub(logger.WithPrefix("hub"))
	gameMgr := manager.NewGameManager(eng, store, hub, clock, logger.WithPrefix("manager"))
	defer gameMgr.Close()
	hub.OnIncoming = gameMgr.HandlePlayerMessage

	// 重启后把已有桌子重新挂上推送
	ids, err := store.ListTables(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := gameMgr.OpenTable(ctx, id); err != nil {
			logger.Warn("reopen table", "table", id, "err", err)
		}
	}

	// 快速匹配：有 Redis 时队列放 Redis，多实例共享
	matchRepo := matchmaker.NewMemoryRepo()
	if rdb != nil {
		matchRepo = matchmaker.NewRedisRepo(rdb)
	}
	matchSvc := matchmaker.NewService(matchRepo, eng, gameMgr, hub, clock, cfg.Match.QueueTTL, logger.WithPrefix("match"))

	sweeper := timeout.NewSweeper(store, eng, clock, cfg.Game.SweepInterval, logger.WithPrefix("sweeper"))

	//-------------------------------------------------------
	// 3. 鉴权
	//-------------------------------------------------------
	jwt, err := auth.NewJWTProvider(cfg.JWT.Secret, cfg.JWT.TTL, clock)
	if err != nil {
		return err
	}
	authHandler := auth.NewHandler(auth.NewNonceStore(5*time.Minute, clock), jwt, logger.WithPrefix("auth"))

	//-------------------------------------------------------
	// 4. Gin + CORS
	//-------------------------------------------------------
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization"},
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authGroup := r.Group("/auth")
	{
		authGroup.GET("/nonce", authHandler.Nonce)
		authGroup.POST("/nonce", authHandler.Nonce)
		authGroup.POST("/login", authHandler.Login)
	}

	secured := r.Group("/", middleware.JwtAuthMiddleware(jwt))
	{
		secured.GET("/ws", websocket.ServeWS(hub))
		api.NewHandler(eng, gameMgr, logger.WithPrefix("api")).Register(secured)

		mh := matchmaker.NewHandler(matchSvc)
		secured.POST("/match/join", mh.Join)
		secured.POST("/match/cancel", mh.Cancel)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	//-------------------------------------------------------
	// 5. 启动
	//-------------------------------------------------------
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return sweeper.Run(gctx) })
	g.Go(func() error {
		logger.Info("server running", "addr", cfg.Server.Port, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// openStores builds the table store and the private card store named by the
// config, plus the redis client when one was needed. The returned func
// closes whatever was opened.
func openStores(ctx context.Context, cfg *config.Config, logger *log.Logger) (storage.Store, storage.CardStore, *redis.Client, func(), error) {
	var rdb *redis.Client
	if cfg.Store.Driver == "redis" || cfg.Store.CardsDriver == "redis" {
		var err error
		rdb, err = storage.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, nil, nil, nil, err
		}
	}

	var store storage.Store
	switch cfg.Store.Driver {
	case "redis":
		store = storage.NewRedisStore(rdb, logger.WithPrefix("redis"))
	case "postgres":
		pg, err := storage.NewPostgresStore(ctx, cfg.Database.DSN, logger.WithPrefix("postgres"))
		if err != nil {
			if rdb != nil {
				_ = rdb.Close()
			}
			return nil, nil, nil, nil, err
		}
		store = pg
	default:
		store = storage.NewMemoryStore(logger.WithPrefix("memory"))
	}

	var cards storage.CardStore = storage.NewMemoryCardStore()
	if cfg.Store.CardsDriver == "redis" {
		cards = storage.NewRedisCardStore(rdb, cfg.Store.CardTTL)
	}

	closeAll := func() {
		if err := store.Close(); err != nil {
			logger.Warn("close store", "err", err)
		}
		// RedisStore owns the client; otherwise it was opened for cards only
		if rdb != nil && cfg.Store.Driver != "redis" {
			_ = rdb.Close()
		}
	}
	logger.Info("storage ready", "store", cfg.Store.Driver, "cards", cfg.Store.CardsDriver)
	return store, cards, rdb, closeAll, nil
}
