package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"adreact/internal/config"
	"adreact/internal/daemon"
	"adreact/internal/jobqueue"
	"adreact/internal/logging"
	"adreact/internal/notifications"
	"adreact/internal/queue"
	"adreact/internal/reactions"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Optional .env for local development; the config file wins.
	_ = godotenv.Load()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return
	}

	reactionStore := reactions.NewStore(store.DB())
	processor := reactions.NewProcessor(reactionStore, logger)
	notifier := notifications.NewService(cfg)

	jobs := jobqueue.NewService(cfg, store, logger, notifier)
	jobs.RegisterHandler(queue.TypeReaction, processor.HandleJob)

	d, err := daemon.New(cfg, store, reactionStore, processor, jobs, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		store.Close()
		return
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("adreactd shutting down")
}
