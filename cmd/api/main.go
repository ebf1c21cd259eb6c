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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/prefsb/demandas/internal/auth"
	"github.com/prefsb/demandas/internal/config"
	"github.com/prefsb/demandas/internal/db"
	"github.com/prefsb/demandas/internal/demanda"
	"github.com/prefsb/demandas/internal/feed"
	internalhttp "github.com/prefsb/demandas/internal/http"
	"github.com/prefsb/demandas/internal/identity"
	"github.com/prefsb/demandas/internal/storage"
	"github.com/prefsb/demandas/internal/usuario"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("api encerrada com erro")
	}
}

func run() error {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	ctx := context.Background()

	if cfg.DBMigrate {
		if err := db.Migrate(cfg.DBDSN); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	pool, err := db.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer pool.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis parse: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	provider, err := newProvider(ctx, cfg, pool, redisClient)
	if err != nil {
		return fmt.Errorf("identity: %w", err)
	}

	uploader, err := newUploader(ctx, cfg)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	usuarioRepo := usuario.NewRepository(pool)
	usuarioService := usuario.NewService(usuarioRepo, provider)

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessTTL)
	resolver := identity.NewResolver(cfg.AdminEmails, usuarioRepo)
	identityService := identity.NewService(provider, resolver, jwtManager, redisClient, cfg.JWTRefreshTTL)

	broker := feed.NewBroker(redisClient)
	demandaService := demanda.NewService(demanda.NewRepository(pool, broker), usuarioService, uploader, cfg.Location)

	handler, err := internalhttp.NewRouter(cfg, pool, redisClient, internalhttp.Deps{
		Identity:  identityService,
		Passkeys:  identity.NewPasskeyRepository(pool),
		Registrar: usuarioService,
		Modules: []internalhttp.RouteRegistrar{
			demanda.NewHandler(demandaService, broker),
			usuario.NewHandler(usuarioService),
		},
	})
	if err != nil {
		return fmt.Errorf("router: %w", err)
	}

	// Sem WriteTimeout: o stream SSE de demandas mantém a resposta aberta.
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("API ouvindo em :%d", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("encerrando...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newProvider(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, redisClient *redis.Client) (identity.Provider, error) {
	if cfg.Identity.Provider == "firebase" {
		provider, err := identity.NewFirebaseProvider(ctx, cfg.Identity.FirebaseCredentialsPath, cfg.Identity.FirebaseAPIKey)
		if err != nil {
			return nil, err
		}
		return provider, nil
	}

	var notifier identity.ResetNotifier = identity.LogNotifier{LinkBase: cfg.Identity.ResetLinkBase}
	if cfg.Identity.ResetWebhookURL != "" {
		notifier = identity.NewWebhookNotifier(cfg.Identity.ResetWebhookURL, cfg.Identity.ResetLinkBase)
	}
	limiter := identity.NewAttemptLimiter(redisClient, cfg.Identity.LoginMaxAttempts, cfg.Identity.LoginLockWindow)
	return identity.NewLocalProvider(identity.NewCredentialRepository(pool), redisClient, limiter, notifier, cfg.Identity.PasswordResetTTL), nil
}

func newUploader(ctx context.Context, cfg *config.Config) (storage.Uploader, error) {
	switch cfg.Storage.Provider {
	case "", "noop":
		return storage.NoopUploader{}, nil
	case "s3", "r2", "minio":
		uploader, err := storage.NewS3Uploader(ctx, storage.S3Config{
			Endpoint:     cfg.Storage.S3Endpoint,
			Region:       cfg.Storage.S3Region,
			Bucket:       cfg.Storage.S3Bucket,
			AccessKey:    cfg.Storage.S3AccessKey,
			SecretKey:    cfg.Storage.S3SecretKey,
			PublicDomain: cfg.Storage.S3PublicURL,
			UsePathStyle: cfg.Storage.S3PathStyle,
			PresignTTL:   cfg.Storage.PresignTTL,
		})
		if err != nil {
			return nil, err
		}
		return uploader, nil
	default:
		return nil, fmt.Errorf("provedor %s não suportado", cfg.Storage.Provider)
	}
}
