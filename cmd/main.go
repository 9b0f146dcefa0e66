package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"rtlmate/internal/api"
	"rtlmate/internal/artifact"
	"rtlmate/internal/client"
	"rtlmate/internal/config"
	fileutil "rtlmate/internal/file"
	"rtlmate/internal/monitor"
	"rtlmate/internal/upload"
)

func main() {
	_ = godotenv.Load()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load("config.yml")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if base := os.Getenv("RTLMATE_BASE_URL"); base != "" {
		cfg.BaseURL = base
	}

	if err := fileutil.EnsureDir(cfg.DataDir); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("ensure data dir")
	}

	store := upload.NewFileStore(cfg.DataDir)
	builder := upload.NewTreeBuilder(store)
	resolver := artifact.NewResolver(filepath.Join(cfg.DataDir, "artifacts"))
	backend := client.New(cfg.BaseURL)
	mon := monitor.New(backend, monitor.Options{
		StatusInterval: cfg.StatusInterval(),
		LogsInterval:   cfg.LogsInterval(),
	})

	router := setupRouter()
	apiHandler := api.NewAPI(builder, store, resolver, backend, mon, cfg.DataDir)
	apiHandler.RegisterRoutes(router)

	const (
		readHeaderTimeout = 5 * time.Second
		shutdownTimeout   = 10 * time.Second
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Port).Str("backend", cfg.BaseURL).Msg("rtlmate listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdownSignal()
	gracefulShutdown(srv, mon, resolver, shutdownTimeout)
}

func setupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(api.ZerologLogger())
	return r
}

func waitForShutdownSignal() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutdown signal received")
}

func gracefulShutdown(srv *http.Server, mon *monitor.Monitor, resolver *artifact.Resolver, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	mon.Stop()
	resolver.RevokeAll()

	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("http server shutdown warning")
	}
	log.Info().Msg("server exited cleanly")
}
