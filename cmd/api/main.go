package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"server/internal/adapter/repo"
	"server/internal/http/handlers"
	httpapi "server/internal/http/httpapi"
	"server/internal/infra"
	"server/internal/infra/credentials"
	"server/internal/infra/geoip"
	"server/internal/middleware"
	"server/internal/orchestrator"
	video "server/internal/providers/video"
	"server/internal/tier"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: db connection failed")
	}
	defer pool.Close()

	registry := buildRegistry(ctx, cfg, pool, logger)
	policy := tier.NewPolicy(tier.DefaultConfig())
	selector := orchestrator.NewSelector(orchestrator.DefaultSelectorConfig())
	jobs := repo.NewVideoJobRepository(pool)
	service := orchestrator.NewService(jobs, policy, selector, registry, logger)

	var countryLookup middleware.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("api: geoip unavailable")
	} else if resolver != nil {
		countryLookup = resolver.CountryCode
	}

	app := handlers.NewApp(service, logger)
	router := httpapi.NewRouter(app, httpapi.Options{
		JWTSecret:       cfg.JWTSecret,
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		CountryLookup:   countryLookup,
		Logger:          logger,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("api: listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("api: http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: failed to shutdown server")
	}
	logger.Info().Msg("api: stopped")
}

// buildRegistry wires the provider adapters. Keys come from the environment
// first, falling back to the DB-backed credential store so admins can rotate
// them without a redeploy.
func buildRegistry(ctx context.Context, cfg *infra.Config, pool *pgxpool.Pool, logger infra.Logger) *video.Registry {
	credStore := credentials.NewStore(pool)
	httpClient := &http.Client{Timeout: cfg.ProviderCallTimeout}

	piapiKey := resolveKey(ctx, cfg.PiAPIKey, credentials.ProviderPiAPI, credStore, logger)
	replicateToken := resolveKey(ctx, cfg.ReplicateAPIToken, credentials.ProviderReplicate, credStore, logger)
	minimaxKey := resolveKey(ctx, cfg.MinimaxAPIKey, credentials.ProviderMinimax, credStore, logger)

	return video.NewRegistry(
		video.NewPiAPIAdapter(video.PiAPIOptions{
			APIKey:     piapiKey,
			BaseURL:    cfg.PiAPIBaseURL,
			Variant:    "wan-1.3b",
			HTTPClient: httpClient,
		}),
		video.NewPiAPIAdapter(video.PiAPIOptions{
			APIKey:     piapiKey,
			BaseURL:    cfg.PiAPIBaseURL,
			Variant:    "wan-14b",
			HTTPClient: httpClient,
		}),
		video.NewReplicateAdapter(video.ReplicateOptions{
			APIToken:     replicateToken,
			BaseURL:      cfg.ReplicateBaseURL,
			ModelVersion: cfg.ReplicateModelVersion,
			HTTPClient:   httpClient,
		}),
		video.NewMinimaxAdapter(video.MinimaxOptions{
			APIKey:     minimaxKey,
			BaseURL:    cfg.MinimaxBaseURL,
			HTTPClient: httpClient,
		}),
	)
}

func resolveKey(ctx context.Context, envValue, provider string, store *credentials.Store, logger infra.Logger) string {
	if key := strings.TrimSpace(envValue); key != "" {
		return key
	}
	key, err := store.Token(ctx, provider)
	if err != nil {
		logger.Warn().Err(err).Str("provider", provider).Msg("api: failed to load provider key from store")
		return ""
	}
	if key == "" {
		logger.Warn().Str("provider", provider).Msg("api: provider key not configured")
	}
	return key
}
