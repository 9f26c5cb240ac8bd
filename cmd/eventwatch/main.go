// Package main follows the attempt events of one or more quizzes and logs them.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-learn/quiz-backend/config"
	"github.com/aura-learn/quiz-backend/internal/events"
	"github.com/aura-learn/quiz-backend/pkg/redis"
)

type idList []int64

func (l *idList) String() string {
	parts := make([]string, 0, len(*l))
	for _, id := range *l {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return strings.Join(parts, ",")
}

func (l *idList) Set(v string) error {
	id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return err
	}
	*l = append(*l, id)
	return nil
}

func main() {
	var quizIDs idList
	flag.Var(&quizIDs, "quiz", "quiz id to watch (repeatable)")
	flag.Parse()

	logger := newLogger()
	defer logger.Sync()

	if len(quizIDs) == 0 {
		logger.Fatal("at least one -quiz is required")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if cfg.Redis.Addr == "" {
		logger.Fatal("REDIS_ADDR is not set")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	sub := events.NewRedisPublisher(rdb.Client, logger)
	for _, id := range quizIDs {
		err := sub.Subscribe(ctx, id, func(e events.Event) {
			fields := []zap.Field{
				zap.String("event", e.Type),
				zap.Int64("quiz_id", e.QuizID),
				zap.Int64("attempt_id", e.AttemptID),
				zap.Int64("student_id", e.StudentID),
				zap.Time("at", e.At),
			}
			if e.Score != nil {
				fields = append(fields, zap.Float64("score", *e.Score))
			}
			logger.Info("quiz event", fields...)
		})
		if err != nil {
			logger.Fatal("subscribe", zap.Int64("quiz_id", id), zap.Error(err))
		}
	}
	logger.Info("watching quiz events", zap.String("quizzes", quizIDs.String()))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	logger.Info("watcher stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
