package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sternrassler/helix-channel-crawler/internal/config"
	"github.com/Sternrassler/helix-channel-crawler/internal/crawl"
	"github.com/Sternrassler/helix-channel-crawler/internal/enrich"
	"github.com/Sternrassler/helix-channel-crawler/internal/keywords"
	"github.com/Sternrassler/helix-channel-crawler/internal/sink"
	"github.com/Sternrassler/helix-channel-crawler/pkg/client"
	"github.com/Sternrassler/helix-channel-crawler/pkg/logging"
	"github.com/Sternrassler/helix-channel-crawler/pkg/metrics"
	"github.com/Sternrassler/helix-channel-crawler/pkg/ratelimit"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type options struct {
	configPath string
	envFile    string

	keywordsFile  string
	outputFile    string
	maxPerKeyword int
	concurrency   int
}

func newCrawlCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Run one discovery pass and export the results",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.keywordsFile, "keywords", "", "keywords file (overrides keywordsFile)")
	cmd.Flags().StringVar(&opts.outputFile, "output", "", "output JSON file (overrides outputFile)")
	cmd.Flags().IntVar(&opts.maxPerKeyword, "max-per-keyword", 0, "channels per keyword (overrides maxChannelsPerKeyword)")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "channels enriched in parallel (overrides enrichConcurrency)")
	return cmd
}

// loadConfig reads the settings and applies flag overrides.
func loadConfig(opts *options) (config.Config, error) {
	if opts.envFile != "" {
		config.LoadDotEnv(opts.envFile)
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return config.Config{}, err
	}

	if opts.keywordsFile != "" {
		cfg.KeywordsFile = opts.keywordsFile
	}
	if opts.outputFile != "" {
		cfg.OutputFile = opts.outputFile
	}
	if opts.maxPerKeyword > 0 {
		cfg.MaxChannelsPerKeyword = opts.maxPerKeyword
	}
	if opts.concurrency > 0 {
		cfg.EnrichConcurrency = opts.concurrency
	}
	return cfg, cfg.Validate()
}

func runCrawl(cmd *cobra.Command, opts *options) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(opts)
	if errors.Is(err, config.ErrMissingCredentials) {
		return fmt.Errorf("%w: set clientId/accessToken in %s or TWITCH_CLIENT_ID/TWITCH_ACCESS_TOKEN",
			err, config.DefaultSettingsPath)
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	runID := uuid.NewString()
	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: cmd.ErrOrStderr(),
	}).With().Str("run_id", runID).Logger()

	logger.Info().
		Str("config", cfg.Path).
		Str("base_url", cfg.BaseURL).
		Msg("Starting crawl")

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = connectRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")
	}

	helix, err := newHelixClient(cfg, redisClient, logger)
	if err != nil {
		return fmt.Errorf("create helix client: %w", err)
	}

	kws, err := keywords.Load(cfg.KeywordsFile, logger)
	if err != nil {
		return fmt.Errorf("load keywords: %w", err)
	}

	crawler := crawl.New(helix, enrich.New(helix, logger), crawl.Config{
		MaxPerKeyword: cfg.MaxChannelsPerKeyword,
		Concurrency:   cfg.EnrichConcurrency,
	}, logger)

	records := crawler.Run(ctx, kws)
	defer pushMetrics(cfg.Metrics, runID, logger)

	if len(records) == 0 {
		logger.Warn().Msg("No results collected; nothing to export")
		return nil
	}

	sinks := []sink.Sink{sink.NewJSONFile(cfg.OutputFile, logger)}
	if redisClient != nil {
		sinks = append(sinks, sink.NewRedisSink(redisClient, cfg.Redis.KeyPrefix, runID, cfg.Redis.TTL, logger))
	}
	if err := sink.Multi(sinks...).Write(ctx, records); err != nil {
		return fmt.Errorf("export records: %w", err)
	}

	logger.Info().
		Int("records", len(records)).
		Str("output", cfg.OutputFile).
		Msg("Exported records")
	return nil
}

func connectRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		redisClient.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}
	return redisClient, nil
}

func newHelixClient(cfg config.Config, redisClient *redis.Client, logger zerolog.Logger) (*client.Client, error) {
	var store ratelimit.Store
	if cfg.Redis.ShareRateLimit && redisClient != nil {
		store = ratelimit.NewRedisStore(redisClient, cfg.ClientID)
	}

	return client.New(client.Config{
		BaseURL:           cfg.BaseURL,
		ClientID:          cfg.ClientID,
		AccessToken:       cfg.AccessToken,
		UserAgent:         "helix-channel-crawler/" + Version,
		Timeout:           cfg.Timeout(),
		MaxAttempts:       cfg.MaxRetries,
		InitialBackoff:    cfg.InitialBackoff,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Tracker:           ratelimit.NewTracker(store, logger),
		Logger:            logger,
	})
}

// pushMetrics is best effort; a failed push never fails the run.
func pushMetrics(cfg config.MetricsConfig, runID string, logger zerolog.Logger) {
	if cfg.PushgatewayURL == "" {
		return
	}
	if err := metrics.Push(context.Background(), cfg.PushgatewayURL, cfg.Job, map[string]string{"run_id": runID}); err != nil {
		logger.Warn().Err(err).Str("url", cfg.PushgatewayURL).Msg("Failed to push metrics")
		return
	}
	logger.Debug().Str("url", cfg.PushgatewayURL).Msg("Pushed metrics")
}
