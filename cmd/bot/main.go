package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/escalopa/quran-recite-feedback/internal/adapter/telegram"
	"github.com/escalopa/quran-recite-feedback/internal/app"
	"github.com/escalopa/quran-recite-feedback/internal/config"
	"github.com/escalopa/quran-recite-feedback/internal/logging"
	"github.com/escalopa/quran-recite-feedback/internal/observe"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	explicit := configPath != ""
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath, explicit)
	if err != nil {
		return err
	}
	if err := cfg.ValidateBot(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	logger.Info("configuration loaded")

	// Create context with cancellation on shutdown signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Telegram API and the per-chat voice devices
	api, err := telegram.NewAPI(cfg.Telegram.Token, logger)
	if err != nil {
		return err
	}
	chats := telegram.NewChats(api, logger)

	a, err := app.New(ctx, cfg, logger, app.Options{
		ServiceName: "quran-recite-bot",
		Devices:     chats.Devices,
	})
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			logger.Warn("close", zap.Error(err))
		}
	}()

	if err := a.Service.LoadSurahs(ctx); err != nil {
		logger.Warn("starting without surah list", zap.Error(err))
	}

	bot := telegram.NewBot(api, a.Service, chats, a.I18n, logger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		logger.Info("starting bot")
		return bot.Start(ctx)
	})
	g.Go(func() error {
		a.Service.ExpireIdle(ctx)
		return nil
	})
	if cfg.Observe.Addr != "" {
		g.Go(func() error {
			return observe.Serve(ctx, cfg.Observe.Addr, observe.NewRouter(a.Provider.Registry, a.Checkers()...), logger)
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down, stopping bot")
		return bot.Stop()
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("bot error", zap.Error(err))
		return err
	}

	logger.Info("bot stopped")
	return nil
}
