package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pushkit-labs/pushover-relay/internal/config"
	"github.com/pushkit-labs/pushover-relay/internal/pushover"
	"github.com/pushkit-labs/pushover-relay/internal/server"
	"github.com/pushkit-labs/pushover-relay/internal/service"
	"github.com/pushkit-labs/pushover-relay/internal/storage/bolt"
	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if cfg.Pushover.AppToken == "" {
		log.Fatal().Msg("pushover.app_token is required")
	}

	// One pooled transport shared by every per-recipient client.
	httpClient := &http.Client{Timeout: cfg.Pushover.RequestTimeout}
	newClient := func(userKey string) (service.Notifier, error) {
		return pushover.New(userKey, cfg.Pushover.AppToken,
			pushover.WithBaseURL(cfg.Pushover.APIBaseURL),
			pushover.WithHTTPClient(httpClient),
		)
	}

	var probe service.UserValidator
	if cfg.Pushover.UserKey != "" {
		control, err := pushover.New(cfg.Pushover.UserKey, cfg.Pushover.AppToken,
			pushover.WithBaseURL(cfg.Pushover.APIBaseURL),
			pushover.WithHTTPClient(httpClient),
		)
		if err != nil {
			log.Fatal().Err(err).Msg("init pushover client")
		}
		probe = control
	}

	store, err := bolt.New(cfg.Storage.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer store.Close()

	authSvc, err := service.NewAuthService(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init auth service")
	}
	recipientSvc := service.NewRecipientService(store, probe)
	pushSvc := service.NewPushService(store, newClient, log.With().Str("comp", "push").Logger())

	srv := server.New(cfg, recipientSvc, pushSvc, authSvc, probe, log)

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	// graceful shutdown
	waitForSignal()
	log.Info().Msg("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.WriteTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}

func waitForSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}
