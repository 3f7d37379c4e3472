package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/saasgate/tenant-gateway/handoff"
	"github.com/saasgate/tenant-gateway/impersonation"
	"github.com/saasgate/tenant-gateway/internal/config"
	"github.com/saasgate/tenant-gateway/server"
	sessionjwt "github.com/saasgate/tenant-gateway/token/jwt"
	"github.com/saasgate/tenant-gateway/token/keys"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatal().Err(err).Msg("error running gateway")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("gateway stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	if err := config.Validate(c); err != nil {
		return fmt.Errorf("config.Validate: %w", err)
	}

	logger := newLogger(c)
	displayAppname(c.GetAppName())

	ctx := context.Background()
	srv, err := buildServer(ctx, c, logger)
	if err != nil {
		return err
	}

	httpServer := &http.Server{Addr: c.GetPort(), Handler: srv}
	go listenAndServe(httpServer, logger)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

func buildServer(ctx context.Context, c config.Config, logger zerolog.Logger) (*server.Server, error) {
	signer, err := loadSigner(c, logger)
	if err != nil {
		return nil, err
	}

	codec := sessionjwt.NewCodec(signer)
	minter := handoff.NewMinter(signer, c.GetHandoffTokenTTL())

	consumed, err := newConsumedRepo(ctx, c, logger)
	if err != nil {
		return nil, err
	}

	records, err := newRecordRepo(ctx, c, logger)
	if err != nil {
		return nil, err
	}

	manager := impersonation.NewManager(records, minter, c.GetMinSessionMinutes(), c.GetMaxSessionMinutes(), logger)
	broker := handoff.NewBroker(minter, codec, consumed, manager, c.GetCookieName(), logger)

	// The protected application is a placeholder here; deployments put
	// the gateway in front of the real app via reverse proxy or embed.
	app := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return server.New(c, codec, broker, manager, app, logger)
}

// loadSigner loads the configured RS256 key pair, or generates an
// ephemeral one for development when none is configured.
func loadSigner(c config.SigningConfig, logger zerolog.Logger) (keys.Signer, error) {
	if pemData := c.GetSigningPrivateKeyPEM(); pemData != "" {
		keyPair, err := keys.LoadKeyPairFromPEM(c.GetSigningKeyID(), pemData)
		if err != nil {
			return nil, fmt.Errorf("keys.LoadKeyPairFromPEM: %w", err)
		}
		return keys.NewKeyPairSigner(keyPair), nil
	}

	logger.Warn().Msg("no signing key configured, generating an ephemeral dev key")
	keyPair, err := keys.GenerateRSAKeyPair(c.GetSigningKeyID(), 2048)
	if err != nil {
		return nil, fmt.Errorf("keys.GenerateRSAKeyPair: %w", err)
	}
	return keys.NewKeyPairSigner(keyPair), nil
}

// newConsumedRepo picks the handoff consumed-token store. Redis gives
// the atomic claim across replicas; the in-memory store only holds for a
// single replica.
func newConsumedRepo(ctx context.Context, c config.EnvConfig, logger zerolog.Logger) (handoff.ConsumedRepo, error) {
	addr := c.GetRedisAddr()
	if addr == "" {
		logger.Warn().Msg("REDIS_ADDR not set, handoff single-use is only enforced within this replica")
		return handoff.NewInMemoryConsumedRepo(), nil
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return handoff.NewRedisConsumedRepo(client), nil
}

func newRecordRepo(ctx context.Context, c config.EnvConfig, logger zerolog.Logger) (impersonation.Repo, error) {
	dsn := c.GetDatabaseURL()
	if dsn == "" {
		logger.Warn().Msg("DATABASE_URL not set, impersonation audit records are in-memory only")
		return impersonation.NewInMemoryRepo(), nil
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	repo := impersonation.NewPostgresRepo(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

func newLogger(c config.EnvConfig) zerolog.Logger {
	if c.GetEnv() == "DEV" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func listenAndServe(httpServer *http.Server, logger zerolog.Logger) {
	logger.Info().Str("addr", httpServer.Addr).Msg("gateway listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("server.ListenAndServe")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(httpServer *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
