// Binary server runs the ledger HTTP API.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	_ "github.com/lib/pq"

	"github.com/mockbank/ledgersvc/cmd/httpserver"
	"github.com/mockbank/ledgersvc/internal/middleware"
	"github.com/mockbank/ledgersvc/pkg/configpkg"
	"github.com/mockbank/ledgersvc/pkg/dbpkg"
	"github.com/mockbank/ledgersvc/pkg/kvpkg"
	"github.com/mockbank/ledgersvc/pkg/passpkg"
)

const shutdownTimeout = 5 * time.Second

func main() {
	config, err := configpkg.Load("./configs")
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}

	logger := middleware.GetLogger(config)

	conn, err := dbpkg.Setup(config.DBDriver, config.DBSource)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot connect to db")
	}

	if err := dbpkg.ExecFile(conn, "./configs/schema.sql"); err != nil {
		logger.Fatal().Err(err).Msg("cannot apply db schema")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kv := kvpkg.NewRedis(config.RedisAddress)
	if err := kv.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("cannot connect to redis")
	}

	if config.Environement == "development" {
		if err := seed(ctx, conn, logger); err != nil {
			logger.Fatal().Err(err).Msg("cannot seed dev data")
		}
	}

	server, err := httpserver.New(conn, kv, logger, config)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot create server")
	}

	// Workers outlive the signal context: a served signal stops request
	// intake, while Shutdown below drains every accepted async transfer.
	server.Workers.Start(config.AsyncWorkers)

	srv := &http.Server{
		Addr:    config.ServerAddress,
		Handler: server,
	}

	go func() {
		logger.Info().Str("address", config.ServerAddress).Msg("server listening")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("cannot start server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}

	server.Workers.Shutdown()
}

// seed inserts the demo user and accounts used for local development.
// Inserts are idempotent so restarts leave existing data untouched.
func seed(ctx context.Context, conn *sql.DB, logger zerolog.Logger) error {
	hashed, err := passpkg.Hash("studentpass")
	if err != nil {
		return err
	}

	_, err = conn.ExecContext(ctx, `
		INSERT INTO users (username, hashed_password)
		VALUES ($1, $2)
		ON CONFLICT (username) DO NOTHING`,
		"student", hashed)
	if err != nil {
		return err
	}

	accounts := []struct {
		id      string
		balance string
	}{
		{"ACC1001", "1000.00"},
		{"ACC2001", "250.00"},
	}

	for _, a := range accounts {
		_, err = conn.ExecContext(ctx, `
			INSERT INTO accounts (id, owner, status)
			VALUES ($1, $2, 'active')
			ON CONFLICT (id) DO NOTHING`,
			a.id, "student")
		if err != nil {
			return err
		}

		_, err = conn.ExecContext(ctx, `
			INSERT INTO account_balances (account_id, balance)
			VALUES ($1, $2)
			ON CONFLICT (account_id) DO NOTHING`,
			a.id, a.balance)
		if err != nil {
			return err
		}
	}

	logger.Info().Msg("seeded development user and accounts")

	return nil
}
