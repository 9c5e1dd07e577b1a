package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"server/internal/adapter/repo"
	"server/internal/infra"
	"server/internal/infra/credentials"
	"server/internal/orchestrator"
	video "server/internal/providers/video"
	"server/internal/storage"
	"server/internal/tier"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "poller")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("poller: db connection failed")
	}
	defer pool.Close()

	registry := buildRegistry(ctx, cfg, pool, logger)
	policy := tier.NewPolicy(tier.DefaultConfig())
	jobs := repo.NewVideoJobRepository(pool)

	poller := orchestrator.NewPoller(jobs, registry, policy, logger, orchestrator.PollerOptions{
		Interval:         cfg.PollInterval,
		Concurrency:      cfg.PollConcurrency,
		CallTimeout:      cfg.ProviderCallTimeout,
		PollBudget:       cfg.PollBudget,
		TransportRetries: cfg.PollTransportRetries,
		BatchSize:        cfg.PollBatchSize,
	})

	if storagePath := strings.TrimSpace(cfg.StoragePath); storagePath != "" {
		if !filepath.IsAbs(storagePath) {
			if abs, err := filepath.Abs(storagePath); err == nil {
				storagePath = abs
			}
		}
		fileStore, err := storage.NewFileStore(storagePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("poller: failed to configure storage")
		}
		poller = poller.WithMirror(fileStore)
	}

	if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("poller: stopped with error")
	}
	logger.Info().Msg("poller: stopped")
}

// buildRegistry wires the provider adapters, with DB-backed key fallback as
// in cmd/api.
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
		logger.Warn().Err(err).Str("provider", provider).Msg("poller: failed to load provider key from store")
		return ""
	}
	if key == "" {
		logger.Warn().Str("provider", provider).Msg("poller: provider key not configured")
	}
	return key
}
