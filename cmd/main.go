// Package main runs the ledger server: the TCP client protocol, the HTTP API and
// the periodic interest task over one in-memory bank.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/go-petr/pet-ledger/cmd/httpserver"
	"github.com/go-petr/pet-ledger/cmd/tcpserver"
	"github.com/go-petr/pet-ledger/internal/accountrepo"
	"github.com/go-petr/pet-ledger/internal/bankservice"
	"github.com/go-petr/pet-ledger/internal/interesttask"
	"github.com/go-petr/pet-ledger/internal/ledgerrepo"
	"github.com/go-petr/pet-ledger/internal/listener"
	"github.com/go-petr/pet-ledger/internal/middleware"
	"github.com/go-petr/pet-ledger/internal/sessiondelivery"
	"github.com/go-petr/pet-ledger/internal/sessionservice"
	"github.com/go-petr/pet-ledger/internal/snapshotrepo"
	"github.com/go-petr/pet-ledger/internal/snapshotservice"
	"github.com/go-petr/pet-ledger/internal/taskpool"
	"github.com/go-petr/pet-ledger/pkg/configpkg"
	"github.com/go-petr/pet-ledger/pkg/dbpkg"
)

const shutdownTimeout = 10 * time.Second

func main() {
	config, err := configpkg.Load("./configs")
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}

	logger := middleware.CreateLogger(config)
	ctx := logger.WithContext(context.Background())

	accounts := accountrepo.NewRepoMem()
	ledger := ledgerrepo.NewRepoMem()
	bank := bankservice.New(accounts, ledger, listener.NewRegistry(logger))

	repo, err := newSnapshotRepo(ctx, config)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot set up snapshot storage")
	}

	snapshots := snapshotservice.New(repo, accounts, ledger)
	if _, err := snapshots.Load(ctx); err != nil {
		logger.Fatal().Err(err).Msg("cannot load snapshot")
	}

	pool, err := taskpool.New(config.WorkerPoolSize, logger)
	if err != nil {
		logger.Fatal().Err(err).Int("size", config.WorkerPoolSize).Msg("cannot create worker pool")
	}

	interest, err := interesttask.New(bank, config.InterestRate, config.InterestPeriod, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot create interest task")
	}

	sessions := sessionservice.New()
	tcp := tcpserver.New(pool, sessiondelivery.NewHandler(bank, sessions), logger)

	server, err := httpserver.New(httpserver.Deps{
		Bank:     bank,
		Sessions: sessions,
		Interest: interest,
	}, logger, config)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot create server")
	}

	// Canceling sessionCtx disconnects every TCP client.
	sessionCtx, cancelSessions := context.WithCancel(ctx)
	defer cancelSessions()

	errc := make(chan error, 2)

	go func() {
		errc <- tcp.ListenAndServe(sessionCtx, config.TCPAddress)
	}()

	go func() {
		logger.Info().Str("address", config.ServerAddress).Msg("HTTP API listening")
		errc <- server.ListenAndServe()
	}()

	interest.Start(ctx)

	logger.Info().Msg("LEDGER SERVER HAS STARTED")

	stop, cancelStop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancelStop()

	select {
	case <-stop.Done():
		logger.Info().Msg("shutdown requested")
	case err := <-errc:
		if err != nil {
			logger.Error().Err(err).Msg("server failed")
		}
	}

	shutdown(ctx, logger, interest, tcp, server, cancelSessions, pool, snapshots)
}

func newSnapshotRepo(ctx context.Context, config configpkg.Config) (snapshotservice.Repo, error) {
	switch config.SnapshotDriver {
	case "file":
		return snapshotrepo.NewRepoFile(config.AccountsFile, config.LedgerFile), nil
	case "postgres":
		db, err := dbpkg.Setup(config.DBDriver, config.DBSource)
		if err != nil {
			return nil, err
		}

		repo := snapshotrepo.NewRepoPGS(db)
		if err := repo.Migrate(ctx); err != nil {
			return nil, err
		}

		return repo, nil
	}

	return nil, errors.New("unknown snapshot driver " + config.SnapshotDriver)
}

// shutdown stops producers before saving so the snapshot sees a quiet bank.
func shutdown(
	ctx context.Context,
	logger zerolog.Logger,
	interest *interesttask.Task,
	tcp *tcpserver.Server,
	server *httpserver.Server,
	cancelSessions context.CancelFunc,
	pool *taskpool.Pool,
	snapshots *snapshotservice.Service,
) {
	interest.Stop()
	<-interest.Done()

	if err := tcp.Close(); err != nil {
		logger.Error().Err(err).Msg("closing tcp listener")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(timeoutCtx); err != nil {
		logger.Error().Err(err).Msg("shutting down http server")
	}

	cancelSessions()
	pool.Shutdown()
	pool.Wait()

	if err := snapshots.Save(ctx); err != nil {
		logger.Error().Err(err).Msg("saving snapshot")
		return
	}

	logger.Info().Msg("LEDGER SERVER HAS STOPPED")
}
