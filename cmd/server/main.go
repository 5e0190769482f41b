// Local development server. Production deploys the api package as a
// serverless function instead.
package main

import (
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	handler "taskboard-backend/api"
	"taskboard-backend/pkg/config"
	"taskboard-backend/pkg/database"
)

func main() {
	cfg := config.GetCached()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	router, err := handler.NewRouter(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build router")
	}

	// Long-running process: reclaim idle store connections.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			database.CleanupIdleConnections()
		}
	}()

	addr := ":" + cfg.Port
	log.Info().Str("addr", addr).Str("env", cfg.Environment).Msg("taskboard backend listening")

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
