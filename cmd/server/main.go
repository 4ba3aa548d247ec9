package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"stellariq/internal/bot"
	"stellariq/internal/cache"
	"stellariq/internal/config"
	"stellariq/internal/db"
	"stellariq/internal/handler"
	"stellariq/internal/job"
	"stellariq/internal/provider"
	"stellariq/internal/ratelimit"
	"stellariq/internal/repository"
	"stellariq/internal/service"
	"stellariq/pkg/tracing"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "stellariq/docs"
)

var (
	loadEnvFunc            = godotenv.Load
	loadConfigFunc         = config.Load
	initPostgresFunc       = db.InitPostgres
	connectRedisFunc       = cache.Connect
	initTracerFunc         = tracing.InitTracer
	newFavoriteRepoFunc    = repository.NewFavoriteRepository
	newLimiterFunc         = ratelimit.New
	newProviderFunc        = provider.NewAlphaVantage
	newMarketServiceFunc   = service.NewMarketDataService
	newAnalysisServiceFunc = service.NewAnalysisService
	newMonitorFunc         = job.NewMarketMonitor
	startMonitorFunc       = func(m *job.MarketMonitor, ctx context.Context) { go m.Start(ctx) }
	startTelegramBotFunc   = bot.StartTelegramBot
	newHandlerFunc         = handler.New
	newRouterFunc          = gin.Default
	setupSignalNotify      = ossignal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           StellarIQ API
// @version         1.0
// @description     Market data acquisition and technical analysis service.

// @host      localhost:8080
// @BasePath  /
func main() {
	loadEnvFunc()

	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := initPostgresFunc(ctx, cfg.DatabaseURL)
	if pool != nil {
		defer pool.Close()
	}

	redisClient, err := connectRedisFunc(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	store := cache.New(redisClient)

	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	var favoriteRepo *repository.FavoriteRepository
	if pool != nil {
		if err := repository.EnsureSchema(ctx, pool); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
		favoriteRepo = newFavoriteRepoFunc(pool, tracer)
	}

	limiter := newLimiterFunc(cfg.RateLimitPerMinute)
	avClient := newProviderFunc(cfg.AlphaVantageAPIKey, limiter, tracer)
	marketService := newMarketServiceFunc(tracer, avClient, store, service.TTLConfig{
		Quote:  cfg.QuoteTTL,
		Series: cfg.SeriesTTL,
		Search: cfg.SearchTTL,
	})

	var favoritesLister service.FavoritesLister
	if favoriteRepo != nil {
		favoritesLister = favoriteRepo
	}
	analysisService := newAnalysisServiceFunc(tracer, marketService, favoritesLister, cfg.Thresholds, cfg.MaxConcurrency)

	alerts := startTelegramBotFunc(cfg.TelegramBotToken, marketService, analysisService)

	if favoriteRepo != nil {
		var notifier job.Notifier
		if alerts != nil {
			notifier = alerts
		}
		monitor := newMonitorFunc(tracer, favoriteRepo, analysisService, notifier,
			time.Duration(cfg.MonitorPollSecs)*time.Second)
		startMonitorFunc(monitor, ctx)
	}

	var favorites handler.Favorites
	if favoriteRepo != nil {
		favorites = favoriteRepo
	}
	h := newHandlerFunc(tracer, marketService, analysisService, favorites)

	r := newRouterFunc()
	r.Use(otelgin.Middleware("stellariq"))
	r.Use(cors.Default())

	h.RegisterRoutes(r)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: r,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
