// Package main runs the quiz HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-learn/quiz-backend/config"
	"github.com/aura-learn/quiz-backend/internal/attempts"
	"github.com/aura-learn/quiz-backend/internal/auth"
	"github.com/aura-learn/quiz-backend/internal/events"
	"github.com/aura-learn/quiz-backend/internal/memstore"
	"github.com/aura-learn/quiz-backend/internal/quizzes"
	"github.com/aura-learn/quiz-backend/internal/results"
	"github.com/aura-learn/quiz-backend/internal/roster"
	"github.com/aura-learn/quiz-backend/pkg/database"
	"github.com/aura-learn/quiz-backend/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()

	var (
		quizStore    quizzes.Store
		attemptStore attempts.Store
		resultStore  results.Store
		rp           roster.Provider
	)
	switch cfg.Database.Driver {
	case "memory":
		store := memstore.New()
		open := roster.NewStatic()
		open.Open = true
		quizStore, attemptStore, resultStore, rp = store, store, store, open
		logger.Warn("using in-memory store; data is lost on restart and every roster check passes")
	default:
		pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, logger)
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		defer pool.Close()

		if err := database.Migrate(ctx, pool, logger); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
		quizStore = quizzes.NewRepository(pool)
		attemptStore = attempts.NewRepository(pool)
		resultStore = results.NewRepository(pool)
		rp = roster.NewRepository(pool)
	}

	// Lifecycle events (optional)
	var publisher events.Publisher = events.Nop{}
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Warn("redis unavailable, events disabled", zap.Error(err))
		} else {
			defer rdb.Close()
			publisher = events.NewRedisPublisher(rdb.Client, logger)
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	svc := services{
		quizzes: quizzes.NewService(quizStore, rp, logger),
		attempts: attempts.NewService(attemptStore, rp, logger,
			attempts.WithPublisher(publisher),
			attempts.WithPolicy(attempts.Policy{
				EnforceTimeLimit: cfg.Quiz.EnforceTimeLimit,
				Grace:            cfg.Quiz.TimeLimitGrace,
			}),
		),
		results: results.NewService(resultStore, rp, logger),
	}

	gin.SetMode(gin.ReleaseMode)
	router := newRouter(logger, jwtService, cfg.Server.CORSAllowedOrigins, svc)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("driver", cfg.Database.Driver))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
