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

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/medassist/internal/adapters/http"
	"github.com/dkeye/medassist/internal/app"
	"github.com/dkeye/medassist/internal/app/orch"
	"github.com/dkeye/medassist/internal/config"
	"github.com/dkeye/medassist/internal/llm"
	"github.com/dkeye/medassist/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	zerolog.SetGlobalLevel(cfg.Level())
	cfg.OnChange(func(next *config.Config) {
		zerolog.SetGlobalLevel(next.Level())
		log.Info().Str("level", next.Level().String()).Msg("log level updated")
	})

	db, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}

	o := orch.New(app.NewRegistry(), app.NewRoomManager(), app.SimplePolicy{})
	o.Store = db
	o.PersistTimeout = cfg.PersistTimeout

	var worker *llm.Worker
	if cfg.OpenAI.APIKey != "" {
		client := llm.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.ChatModel, cfg.OpenAI.SummaryModel)
		worker = llm.NewWorker(client, cfg.OpenAI.Workers, cfg.OpenAI.Queue, cfg.OpenAI.Timeout)
		worker.Start(context.Background())
		o.Assistant = worker
	} else {
		log.Warn().Msg("openai.api_key not set, AI hints and summaries disabled")
	}

	r := router.SetupRouter(ctx, cfg, o)
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("MedAssist signaling server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server error")
	}

	o.Wait()
	if worker != nil {
		worker.Close()
	}
	if err := db.Close(); err != nil {
		log.Error().Err(err).Msg("close store")
	}
	log.Info().Msg("Server exited gracefully")
}
