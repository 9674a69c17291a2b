package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/felipepmaragno/velvet-protocol/internal/api"
	"github.com/felipepmaragno/velvet-protocol/internal/auth"
	"github.com/felipepmaragno/velvet-protocol/internal/cache"
	"github.com/felipepmaragno/velvet-protocol/internal/circuitbreaker"
	"github.com/felipepmaragno/velvet-protocol/internal/config"
	"github.com/felipepmaragno/velvet-protocol/internal/gateway"
	"github.com/felipepmaragno/velvet-protocol/internal/logging"
	"github.com/felipepmaragno/velvet-protocol/internal/metrics"
	"github.com/felipepmaragno/velvet-protocol/internal/notifications"
	"github.com/felipepmaragno/velvet-protocol/internal/prompt"
	"github.com/felipepmaragno/velvet-protocol/internal/ratelimit"
	"github.com/felipepmaragno/velvet-protocol/internal/secrets"
	"github.com/felipepmaragno/velvet-protocol/internal/session"
	"github.com/felipepmaragno/velvet-protocol/internal/telemetry"
	"github.com/felipepmaragno/velvet-protocol/internal/vertex"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logging.Setup(cfg.LogLevel, cfg.LogConsole)
	log.Info().Str("addr", cfg.Addr).Str("version", version).Msg("starting velvet")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "velvet",
		Version:     version,
		Endpoint:    cfg.OTLPEndpoint,
		SampleRatio: cfg.TraceSampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}

	metrics.InitInstanceMetrics(version)

	var secretStore secrets.Store
	if cfg.GoogleCredentialsSecret != "" {
		secretStore, err = secrets.NewAWSSecretsManager(ctx, cfg.AWSRegion)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create secrets manager client")
		}
	}

	credsJSON, err := secrets.ResolveCredentials(ctx, secretStore, cfg.GoogleCredentialsJSON, cfg.GoogleCredentialsSecret)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to resolve vertex credentials")
	}

	provider := vertex.NewClientProvider(vertex.Config{
		ProjectID:       cfg.GoogleCloudProjectID,
		Location:        cfg.GoogleCloudLocation,
		CredentialsJSON: credsJSON,
	})
	if !provider.Configured() {
		log.Warn().Msg("GOOGLE_CLOUD_PROJECT_ID not set, generation requests will fail with a configuration error")
	}

	var notifier notifications.Notifier
	if cfg.SNSTopicARN != "" {
		notifier, err = notifications.NewSNSNotifier(ctx, cfg.AWSRegion, cfg.SNSTopicARN)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create sns notifier")
		}
		log.Info().Str("topic", cfg.SNSTopicARN).Msg("using sns notifier")
	} else {
		notifier = notifications.NewInMemoryNotifier()
	}

	checkers := []api.HealthChecker{
		api.NewConfiguredChecker("vertex", provider.Configured),
	}

	var limiter ratelimit.Limiter
	if cfg.RedisURL != "" {
		redisLimiter, err := ratelimit.NewRedisLimiter(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisLimiter.Close()
		limiter = redisLimiter
		checkers = append(checkers, api.NewPingChecker("redis", redisLimiter))
		log.Info().Msg("using redis rate limiter")
	} else {
		limiter = ratelimit.NewInMemoryLimiter()
		log.Info().Msg("using in-memory rate limiter")
	}

	var analysisCache cache.Cache
	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedisCache(cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to redis for cache, using in-memory")
			memCache := cache.NewInMemoryCache()
			defer memCache.Close()
			analysisCache = memCache
		} else {
			defer redisCache.Close()
			analysisCache = redisCache
			log.Info().Msg("using redis analysis cache")
		}
	} else {
		memCache := cache.NewInMemoryCache()
		defer memCache.Close()
		analysisCache = memCache
		log.Info().Msg("using in-memory analysis cache")
	}

	breakerCfg := circuitbreaker.DefaultConfig()
	breakerCfg.Notifier = notifier
	analysisBreaker := circuitbreaker.New("analysis", breakerCfg)

	engine := prompt.NewEngine(provider, prompt.Options{
		Model:    cfg.AnalysisModel,
		Cache:    analysisCache,
		CacheTTL: cfg.AnalysisCacheTTL,
		Breaker:  analysisBreaker,
	})

	gw := gateway.New(provider, gateway.Options{
		ImageModel: cfg.ImageModel,
		VideoModel: cfg.VideoModel,
		Retry:      gateway.DefaultRetryPolicy(),
		Notifier:   notifier,
	})

	admin, err := adminGate(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure admin unlock")
	}
	if !admin.Enabled() {
		log.Info().Msg("admin unlock disabled, set ADMIN_PASSWORD or ADMIN_PASSWORD_HASH to enable it")
	}

	sessions := session.NewStore(engine, gw, session.Config{
		InitialCredits: cfg.InitialCredits,
		TTL:            cfg.SessionTTL,
	})
	go sessions.Run(log.Logger.WithContext(ctx), time.Minute)

	handler := api.NewHandler(api.HandlerConfig{
		Analyzer:    engine,
		Generator:   gw,
		Sessions:    sessions,
		Admin:       admin,
		RateLimiter: limiter,
		ClientRPM:   cfg.ClientRateLimitRPM,
		Checkers:    checkers,
		Breakers:    []*circuitbreaker.Breaker{analysisBreaker},
		Version:     version,

		TrustForwardedFor: cfg.TrustForwardedFor,
	})

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      otelhttp.NewHandler(handler, "velvet"),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("tracer shutdown failed")
	}

	log.Info().Msg("server stopped")
}

// adminGate prefers a precomputed bcrypt hash over a plaintext password.
func adminGate(cfg *config.Config) (*auth.AdminGate, error) {
	switch {
	case cfg.AdminPasswordHash != "":
		return auth.NewAdminGate(cfg.AdminPasswordHash), nil
	case cfg.AdminPassword != "":
		return auth.NewAdminGateFromPassword(cfg.AdminPassword)
	default:
		return auth.NewAdminGate(""), nil
	}
}
