package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Kosench/shortlink/internal/cache"
	"github.com/Kosench/shortlink/internal/clicks"
	"github.com/Kosench/shortlink/internal/config"
	"github.com/Kosench/shortlink/internal/database"
	"github.com/Kosench/shortlink/internal/handler"
	"github.com/Kosench/shortlink/internal/middleware"
	"github.com/Kosench/shortlink/internal/repository"
	"github.com/Kosench/shortlink/internal/resolver"
	"github.com/Kosench/shortlink/internal/service"
	"github.com/Kosench/shortlink/internal/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const serviceVersion = "1.0.0"

// store - выбранное хранилище вместе с метаданными для /info
type store struct {
	repo    repository.LinkRepository
	driver  string
	version func(ctx context.Context) (string, error)
	close   func() error
}

func openStore(cfg *config.Config) (*store, error) {
	switch strings.ToLower(cfg.Database.Driver) {
	case "postgres":
		db, err := database.Connect(cfg.GetPostgresDSN(), database.PoolConfig{
			MaxOpenConns: cfg.Database.MaxOpenConns,
			MaxIdleConns: cfg.Database.MaxIdleConns,
		})
		if err != nil {
			return nil, err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := database.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}

		return &store{
			repo:   repository.NewPostgresLinkRepository(db, cfg.Database.QueryTimeout),
			driver: "pgx",
			version: func(ctx context.Context) (string, error) {
				return database.GetVersion(ctx, db)
			},
			close: db.Close,
		}, nil

	case "sqlite":
		db, err := database.OpenSQLite(cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		return &store{
			repo:   repository.NewSQLiteLinkRepository(db, cfg.Database.QueryTimeout),
			driver: "sqlite",
			close:  func() error { return database.CloseSQLite(db) },
		}, nil

	default:
		log.Println("⚠️  Using in-memory store, links are lost on restart")
		return &store{
			repo:   repository.NewMemoryLinkRepository(),
			driver: "memory",
			close:  func() error { return nil },
		}, nil
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		log.Fatal("Failed to open store: ", err)
	}
	defer func() {
		if err := st.close(); err != nil {
			log.Printf("Failed to close store: %v", err)
		}
	}()
	log.Printf("Successfully connected to %s store", st.driver)

	// Подключаемся к Redis
	var redisClient *cache.RedisClient
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedisClient(cache.RedisConfig{
			Addr:         cfg.GetRedisAddress(),
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   cfg.Redis.MaxRetries,
			CacheTTL:     cfg.Redis.CacheTTL,
			Namespace:    cfg.Redis.Namespace,
		})
		if err != nil {
			// Продолжаем без кэша
			log.Printf("⚠️  Failed to connect to Redis (running without cache): %v", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			log.Println("✅ Successfully connected to Redis")
		}
	}

	// Декоратор кэша есть всегда; без Redis он работает поверх NullCache
	var linkCache cache.Cache = cache.NewNullCache()
	var cacheChecker handler.CacheChecker
	var rateLimit gin.HandlerFunc
	keys := cache.NewKeyBuilder(cfg.Redis.Namespace)
	if redisClient != nil {
		linkCache = redisClient
		keys = redisClient.GetKeyBuilder()
		rateLimit = middleware.RedisRateLimit(redisClient, keys, cfg.App.RateLimit, cfg.App.RateWindow)
		cacheChecker = redisClient
	} else {
		rateLimit = middleware.InMemoryRateLimit(cfg.App.RateLimit, cfg.App.RateWindow)
	}

	repo := repository.NewCachedLinkRepository(st.repo, linkCache, keys)

	// Учет кликов
	var recorder resolver.ClickRecorder
	var clickStats handler.ClickStats
	var pool *clicks.Pool
	if cfg.AwaitClicks() {
		recorder = clicks.NewSyncRecorder(repo, cfg.App.ClickTimeout)
	} else {
		pool = clicks.NewPool(repo, clicks.PoolConfig{
			Workers:   cfg.App.ClickWorkers,
			QueueSize: cfg.App.ClickQueueSize,
			Timeout:   cfg.App.ClickTimeout,
		})
		if err := pool.Start(); err != nil {
			log.Fatal("Failed to start click pool: ", err)
		}
		recorder = pool
		clickStats = pool
	}

	generator, err := utils.NewGenerator(cfg.App.ShortCodeLength)
	if err != nil {
		log.Fatal("Failed to create code generator: ", err)
	}

	linkService := service.NewLinkService(repo, generator, cfg.App.MaxRetries)
	redirects := resolver.New(repo.Targets(), recorder)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := handler.NewRouter(handler.RouterConfig{
		Links:    handler.NewLinkHandler(linkService),
		Redirect: handler.NewRedirectHandler(redirects),
		Health: handler.NewHealthHandler(repo, cacheChecker, clickStats, handler.ServiceInfo{
			Service:         "shortlink",
			Version:         serviceVersion,
			Driver:          st.driver,
			ClickTracking:   cfg.App.ClickTracking,
			DatabaseVersion: st.version,
		}),
		Middleware: []gin.HandlerFunc{
			cors.New(cors.Config{
				AllowOrigins:     cfg.GetAllowedOrigins(),
				AllowMethods:     []string{"GET", "HEAD", "POST", "DELETE", "OPTIONS"},
				AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
				ExposeHeaders:    []string{"Content-Length"},
				AllowCredentials: false,
				MaxAge:           12 * time.Hour,
			}),
			rateLimit,
		},
	})

	// HTTP Server
	srv := &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Printf("🚀 Server starting on %s", cfg.GetServerAddress())
		log.Printf("📝 API endpoints: POST/GET /api/links, GET/DELETE /api/links/{code}")
		log.Printf("🔗 Redirect endpoint: GET /{code} (clicks: %s)", cfg.App.ClickTracking)
		if redisClient != nil {
			log.Printf("⚡ Cache enabled (Redis)")
		}

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Сначала перестаем принимать запросы, потом дописываем клики
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	if pool != nil {
		if err := pool.Shutdown(ctx); err != nil {
			log.Printf("Click queue not fully drained: %v", err)
		}
	}

	log.Println("✅ Server gracefully stopped")
}
