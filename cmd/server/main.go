package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload" // load .env into the environment
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/church-events/internal/config"
	"github.com/iliyamo/church-events/internal/database"
	"github.com/iliyamo/church-events/internal/handler"
	"github.com/iliyamo/church-events/internal/logger"
	"github.com/iliyamo/church-events/internal/middleware"
	"github.com/iliyamo/church-events/internal/queue"
	"github.com/iliyamo/church-events/internal/repository"
	"github.com/iliyamo/church-events/internal/router"
	"github.com/iliyamo/church-events/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.Init(cfg.Env)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg.DB)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	events := repository.NewEventRepo(db)
	regs := repository.NewRegistrationRepo(db)

	if err := service.EnsureAdmin(ctx, users, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword, cfg.Auth.BcryptCost); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}

	var pub service.Publisher = service.NopPublisher{}
	if cfg.Broker.Enabled {
		pub = service.NewAMQPPublisher(cfg.Broker.URL, cfg.Broker.Queue)
		if cfg.Broker.RunConsumer {
			consumer := queue.NewConsumer(cfg.Broker.URL, cfg.Broker.Queue, cfg.Broker.LogDir)
			go func() {
				if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Error("consumer stopped", zap.Error(err))
				}
			}()
		}
	}

	regSvc := service.NewRegistrationService(events, regs, pub)
	eventSvc := service.NewEventService(events, regSvc.Projector)

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb != nil {
		defer rdb.Close()
	} else if cfg.Redis.Enabled {
		log.Warn("redis unreachable; cache and rate limit disabled", zap.String("addr", cfg.Redis.Address()))
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			log.Info("request", fields...)
			return nil
		},
	}))

	eh := handler.NewEventHandler(eventSvc)
	rh := handler.NewRegistrationHandler(regSvc)
	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg.Auth, users, tokens), cfg.Auth.JWTSecret)
	router.RegisterPublic(e, eh, rh,
		middleware.NewRedisCache(cfg.Cache, rdb),
		middleware.NewTokenBucket(cfg.RateLimit, rdb),
	)
	router.RegisterAdmin(e, eh, rh, cfg.Auth.JWTSecret)

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("db", cfg.DB.Driver))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
