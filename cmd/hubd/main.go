package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/sharedesk/contenthub/internal/config"
	"github.com/sharedesk/contenthub/internal/logger"
	"github.com/sharedesk/contenthub/internal/service"
	"github.com/sharedesk/contenthub/internal/store"
)

func main() {
	cfg := config.Load()

	log := logger.NewLogger()
	if cfg.LogFile != "" {
		log = logger.NewRotatingLogger(cfg.LogFile)
	}
	logger.SetLevel(log, cfg.LogLevel)

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatal(err)
	}

	svc, err := service.NewService(service.Config{
		SocketPath: cfg.SocketPath,
		Logger:     log,
		Peers:      store.NewPeerStore(db),
		Transfers:  store.NewTransferStore(db),
	})
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		_ = svc.Shutdown()
	}()

	if err := svc.Start(ctx); err != nil && ctx.Err() == nil {
		log.Fatal(err)
	}
}
