package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/levenlabs/go-lflag"

	"github.com/raterudder/solarsavings/pkg/log"
	"github.com/raterudder/solarsavings/pkg/quote"
	"github.com/raterudder/solarsavings/pkg/server"
	"github.com/raterudder/solarsavings/pkg/storage"
)

func main() {
	// local development keeps api keys in .env, deployments use the environment
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(err)
	}

	// init packages
	c := quote.Configured()
	s := storage.Configured()

	// init server
	srv := server.Configured(c, s)

	// parse flags
	lflag.Configure()

	// lflag automatically sets llog's level, but we need to set the slog level
	level, err := log.ConfigureFromLLog()
	if err != nil {
		panic(err)
	}
	slog.Debug("logger configured", slog.String("level", level.String()))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// If initialization inside lflag.Do failed, we wouldn't be here (panic).
	defer func() {
		if err := s.Close(); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", slog.Any("error", err))
		}
	}()

	// Run will block until context is canceled or error happens
	if err := srv.Run(ctx); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "server failed", slog.Any("error", err))
		os.Exit(1)
	}
	log.Ctx(ctx).InfoContext(ctx, "server exited cleanly")
}
