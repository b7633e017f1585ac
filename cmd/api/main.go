package main

import (
	"context"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/caabsu/outlight-img2img/internal/adapter/repo"
	"github.com/caabsu/outlight-img2img/internal/events"
	"github.com/caabsu/outlight-img2img/internal/http/handlers"
	"github.com/caabsu/outlight-img2img/internal/http/httpapi"
	"github.com/caabsu/outlight-img2img/internal/infra"
	"github.com/caabsu/outlight-img2img/internal/infra/credentials"
	"github.com/caabsu/outlight-img2img/internal/infra/geoip"
	"github.com/caabsu/outlight-img2img/internal/providers"
	"github.com/caabsu/outlight-img2img/internal/providers/ark"
	"github.com/caabsu/outlight-img2img/internal/providers/dashscope"
	"github.com/caabsu/outlight-img2img/internal/providers/poll"
	"github.com/caabsu/outlight-img2img/internal/providers/synthetic"
	"github.com/caabsu/outlight-img2img/internal/runs"
	"github.com/caabsu/outlight-img2img/internal/storage"
	"github.com/caabsu/outlight-img2img/internal/usage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	sqlRunner := infra.NewSQLRunner(dbpool, logger)
	products := repo.NewProductRepository(sqlRunner)
	promptSets := repo.NewPromptSetRepository(sqlRunner)
	stats := repo.NewStatsRepository(sqlRunner)

	providerReg := buildProviders(ctx, cfg, logger, sqlRunner)

	var fileStore *storage.FileStore
	if cfg.PersistArtifacts {
		fileStore, err = storage.NewFileStore(cfg.StoragePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare artifact storage")
		}
	}

	hub := events.NewHub()
	regOpts := runs.Options{
		DefaultWorkers: cfg.RunWorkers,
		Providers:      providerReg,
		PublicBaseURL:  cfg.PublicBaseURL,
		Recorder:       usage.NewRecorder(stats, logger),
		Logger:         logger,
		Notify:         hub.Publish,
		OnDelete: func(runID string) {
			hub.CloseTopic(runID)
			if fileStore == nil {
				return
			}
			if err := fileStore.RemoveAll("runs/" + runID); err != nil {
				logger.Warn().Err(err).Str("run_id", runID).Msg("failed to remove run artifacts")
			}
		},
	}
	if fileStore != nil {
		regOpts.Store = fileStore
	}
	registry := runs.NewRegistry(regOpts)

	app := &handlers.App{
		Runs:       registry,
		Products:   products,
		PromptSets: promptSets,
		Stats:      stats,
		Hub:        hub,
		Providers:  providerReg,
		Logger:     logger,
	}

	geo, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.GeoIPDBPath).Msg("geoip database unavailable")
	}
	defer func() { _ = geo.Close() }()

	routerOpts := httpapi.Options{
		Logger:          logger,
		AllowedOrigins:  cfg.CORSOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		Country:         geo.CountryCode,
	}
	if fileStore != nil {
		routerOpts.StaticDir = fileStore.BasePath()
	}
	router := httpapi.NewRouter(app, routerOpts)
	server := infra.NewHTTPServer(cfg, router)

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Str("port", cfg.Port).
		Str("default_provider", providerReg.Default()).
		Bool("persist_artifacts", fileStore != nil).
		Msg("api listening")
	if err := server.Run(runCtx, 10*time.Second); err != nil {
		logger.Error().Err(err).Msg("http server failed")
	}

	registry.Close()
	hub.Close()
	logger.Info().Msg("server stopped")
}

// buildProviders assembles the provider registry from configured credentials.
// API keys come from the environment first, then from the integration token
// store. The synthetic provider is always registered so the pipeline works
// without any credentials.
func buildProviders(ctx context.Context, cfg *infra.Config, logger infra.Logger, sql infra.SQLExecutor) *providers.Registry {
	creds := credentials.NewStore(sql)
	clients := map[string]providers.Client{}

	if key := resolveKey(ctx, cfg.DashScopeAPIKey, creds, credentials.ProviderDashScope, logger); key != "" {
		client, err := dashscope.NewClient(dashscope.Options{
			APIKey:         key,
			BaseURL:        cfg.DashScopeBaseURL,
			Model:          cfg.DashScopeModel,
			Logger:         &logger,
			RequestTimeout: cfg.ProviderTimeout,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("dashscope client unavailable")
		} else {
			clients[credentials.ProviderDashScope] = client
		}
	}

	if key := resolveKey(ctx, cfg.ArkAPIKey, creds, credentials.ProviderArk, logger); key != "" {
		client, err := ark.NewClient(ark.Options{
			APIKey:         key,
			BaseURL:        cfg.ArkBaseURL,
			Model:          cfg.ArkModel,
			Logger:         &logger,
			Poller:         poll.New(cfg.PollInterval, cfg.PollDeadline),
			RequestTimeout: cfg.ProviderTimeout,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("ark client unavailable")
		} else {
			clients[credentials.ProviderArk] = client
		}
	}

	clients["synthetic"] = synthetic.NewClient(synthetic.Options{})

	defaultName := cfg.DefaultProvider
	if _, ok := clients[defaultName]; !ok {
		logger.Warn().Str("provider", defaultName).Msg("default provider unavailable, falling back to synthetic")
		defaultName = "synthetic"
	}
	reg := providers.NewRegistry(defaultName, logger)
	for name, client := range clients {
		reg.Register(name, client)
	}
	return reg
}

func resolveKey(ctx context.Context, envKey string, creds *credentials.Store, provider string, logger infra.Logger) string {
	if key := strings.TrimSpace(envKey); key != "" {
		return key
	}
	key, err := creds.Token(ctx, provider)
	if err != nil {
		logger.Warn().Err(err).Str("provider", provider).Msg("failed to read stored api key")
		return ""
	}
	return key
}
