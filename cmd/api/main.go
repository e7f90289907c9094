package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"closet/internal/bootstrap"
	"closet/internal/http/handlers"
	httpapi "closet/internal/http/httpapi"
	"closet/internal/infra"
)

func main() {
	infra.LoadEnvFiles()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise pipeline")
	}
	defer rt.Close()

	app := &handlers.App{
		Config:   cfg,
		Logger:   logger,
		Pipeline: rt.Service,
		Store:    rt.Store,
	}
	server := infra.NewHTTPServer(cfg, httpapi.NewRouter(app))

	logger.Info().Str("addr", server.Addr()).Str("storage", rt.Store.BasePath()).Msg("API listening")
	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("http server failed")
	}
	logger.Info().Msg("server stopped")
}
