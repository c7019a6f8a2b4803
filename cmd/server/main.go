package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/hospmaint/os-manager/internal/config"
	"github.com/hospmaint/os-manager/internal/database"
	"github.com/hospmaint/os-manager/internal/event"
	"github.com/hospmaint/os-manager/internal/handler"
	"github.com/hospmaint/os-manager/internal/legacy"
	"github.com/hospmaint/os-manager/internal/repository"
	"github.com/hospmaint/os-manager/internal/router"
	"github.com/hospmaint/os-manager/internal/service"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	var log *zap.Logger
	var err error
	if cfg.Env == "prod" {
		log, err = zap.NewProduction()
	} else {
		log, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal("database connect failed", zap.Error(err))
	}
	defer db.Close()

	if err := database.Migrate(db, log); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}
	if err := database.Seed(context.Background(), db, cfg.BcryptCost, log); err != nil {
		log.Fatal("seeding failed", zap.Error(err))
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unavailable, cache and rate limiting disabled")
	}

	var bus service.Broadcaster
	if cfg.AMQPURL != "" {
		pub := event.NewPublisher(cfg.AMQPURL, log)
		defer pub.Close()
		bus = pub

		consumeCtx, stopConsumer := context.WithCancel(context.Background())
		defer stopConsumer()
		go event.StartEventLog(consumeCtx, cfg.AMQPURL, log)
	} else {
		log.Warn("AMQP_URL not set, event broadcasting disabled")
		bus = event.NopBus{}
	}

	orderRepo := repository.NewOrderRepo(db)
	commentRepo := repository.NewCommentRepo(db)
	userRepo := repository.NewUserRepo(db)

	orderSvc := service.NewOrderService(orderRepo, bus, log)
	commentSvc := service.NewCommentService(commentRepo, orderRepo, bus, log)

	src := legacy.NewAccessSource(cfg.ShoficinaPath, cfg.ShoficinaPass)
	defer src.Close()
	reconciler := legacy.NewReconciler(src, orderRepo, bus, log, cfg.ShoficinaInterval)
	reconciler.Start()
	defer reconciler.Stop()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())

	router.Register(e, cfg, rdb,
		handler.NewAuthHandler(cfg, userRepo),
		handler.NewOrderHandler(orderSvc, commentSvc),
		handler.NewUserHandler(cfg, userRepo),
	)

	go func() {
		log.Info("listening", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Warn("shutdown incomplete", zap.Error(err))
	}
}
