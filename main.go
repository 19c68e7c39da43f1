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

	"RSVPBot/config"
	"RSVPBot/handler"
	"RSVPBot/logger"
	"RSVPBot/repo"
	"RSVPBot/wizard"

	"github.com/go-telegram/bot"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const serviceName = "rsvp-bot"

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}
	l := logger.CreateLogger(serviceName, cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sink, err := InitializeSink(ctx, cfg)
	if err != nil {
		l.Fatal().Err(err).Msg("Error initializing submission sink.")
	}

	h := handler.NewRSVPBotHandler(l, sink)
	opts := []bot.Option{
		bot.WithDefaultHandler(h.Handler),
	}

	b, err := bot.New(cfg.BotToken, opts...)
	if err != nil {
		l.Fatal().Err(err).Msg("Error creating bot.")
	}

	if cfg.WebAddr != "" {
		api := handler.NewWebAPI(l, sink)
		go api.Janitor(ctx, time.Minute)
		srv := &http.Server{
			Addr:         cfg.WebAddr,
			Handler:      handler.NewWebServer(l, api, cfg.WebAllowedOrigins, cfg.WebRateLimit),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go serveWeb(ctx, l, srv)
	}

	l.Info().Str("sink", cfg.SinkKind).Msg("Bot started.")
	b.Start(ctx)
	l.Info().Msg("Bot stopped.")
}

// InitializeSink builds the submission sink selected by the config
func InitializeSink(ctx context.Context, cfg config.Config) (wizard.Sink, error) {
	switch cfg.SinkKind {
	case config.SinkKindFirebase:
		fc, err := repo.NewFirebaseConnector(ctx, cfg.FirebaseServiceAccountKeyPath, cfg.FirebaseDatabaseURL, cfg.FirebaseSubmissionsPath)
		if err != nil {
			return nil, fmt.Errorf("error creating Firebase connector: %w", err)
		}
		return fc, nil
	case config.SinkKindHTTP:
		return repo.NewHTTPSink(cfg.SinkURL, cfg.SinkTimeout), nil
	default:
		return nil, fmt.Errorf("unsupported sink kind %q", cfg.SinkKind)
	}
}

func serveWeb(ctx context.Context, l zerolog.Logger, srv *http.Server) {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			l.Error().Err(err).Msg("Web server shutdown failed.")
		}
	}()

	l.Info().Str("addr", srv.Addr).Msg("Web API listening.")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Error().Err(err).Msg("Web server stopped unexpectedly.")
	}
}
