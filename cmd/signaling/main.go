package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/carelink-health/signaling/config"
	"github.com/carelink-health/signaling/internal/handlers"
	"github.com/carelink-health/signaling/internal/middleware"
	"github.com/carelink-health/signaling/internal/presence"
	"github.com/carelink-health/signaling/internal/ratelimit"
	redisclient "github.com/carelink-health/signaling/internal/redis"
	"github.com/carelink-health/signaling/internal/rooms"
	"github.com/carelink-health/signaling/internal/signaling"
)

func main() {
	cfg := config.Load()

	var log *zap.Logger
	var err error
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
		log, err = zap.NewProduction()
	} else {
		log, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	registry := presence.NewRegistry()
	relay := signaling.NewRelay()

	// The room directory and rate limiter need Redis; the call core does not.
	var directory *rooms.Directory
	var limiter *ratelimit.Limiter
	if cfg.Redis.Enabled() {
		client, err := redisclient.Dial(cfg.Redis)
		if err != nil {
			log.Fatal("redis connection failed", zap.Error(err))
		}
		defer client.Close()
		directory = rooms.NewDirectory(client)
		limiter = ratelimit.NewLimiter(client, "signaling:rl:")
		log.Info("redis connected", zap.String("addr", cfg.Redis.Addr()))
	} else {
		log.Info("redis not configured, room directory and rate limiting disabled")
	}

	h := handlers.New(registry, relay, directory, log,
		cfg.PresenceTTL, cfg.KeepaliveInterval, cfg.SignalBufferAge)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(handlers.OriginFilter(cfg.AllowedOrigins))
	h.Register(router,
		middleware.Auth(cfg.AuthSecret),
		ratelimit.Middleware(limiter, cfg.RateLimit, cfg.RateLimitWindow, log))

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("starting call signaling server", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown incomplete", zap.Error(err))
	}
}
