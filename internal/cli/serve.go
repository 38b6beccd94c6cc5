package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/crateintel/internal/config"
	"github.com/matzehuels/crateintel/internal/server"
	"github.com/matzehuels/crateintel/pkg/auth"
	"github.com/matzehuels/crateintel/pkg/cache"
	"github.com/matzehuels/crateintel/pkg/docsource"
	"github.com/matzehuels/crateintel/pkg/intel"
	"github.com/matzehuels/crateintel/pkg/narrative"
	"github.com/matzehuels/crateintel/pkg/store"
	"github.com/matzehuels/crateintel/pkg/upstream/crates"
	"github.com/matzehuels/crateintel/pkg/upstream/docsrs"
	"github.com/matzehuels/crateintel/pkg/usage"
)

// newServeCmd creates the serve command, which runs the HTTP API.
func newServeCmd() *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the crate intelligence HTTP API",
		Long: `Run the crate intelligence HTTP API.

Configuration is read from a TOML file when --config is given; every
section falls back to built-in defaults (in-memory store, file-backed
upstream cache, no LLM synthesis). With the in-memory key store an
ephemeral enterprise API key is issued at startup and printed, since
there is no other way to authenticate against a fresh process.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			backend, err := newCacheBackend(cmd, cfg.Cache)
			if err != nil {
				return fmt.Errorf("init cache: %w", err)
			}

			registry := crates.NewClient(backend, cfg.Cache.TTL.Duration)
			if cfg.Upstream.RegistryURL != "" {
				registry.SetBaseURL(cfg.Upstream.RegistryURL)
			}

			var docsOpts []docsrs.Option
			if cfg.Upstream.DocsURL != "" {
				docsOpts = append(docsOpts, docsrs.WithBaseURL(cfg.Upstream.DocsURL))
			}
			if cfg.Upstream.FetchDelay.Duration > 0 {
				docsOpts = append(docsOpts, docsrs.WithFetchDelay(cfg.Upstream.FetchDelay.Duration))
			}
			var source docsource.Source = docsrs.New(backend, registry, cfg.Cache.TTL.Duration, docsOpts...)

			provider, err := narrative.NewProvider(narrative.ProviderConfig{
				BaseURL: cfg.Narrative.BaseURL,
				APIKey:  cfg.Narrative.APIKey,
				Model:   cfg.Narrative.Model,
				Timeout: cfg.Narrative.Timeout.Duration,
			})
			if err != nil {
				if !errors.Is(err, narrative.ErrUnconfigured) {
					return fmt.Errorf("init narrative provider: %w", err)
				}
				logger.Debug("No narrative service configured, using template narratives")
				provider = nil
			}
			synth := narrative.NewSynthesizer(provider)

			st, err := newStore(cmd, cfg.Store)
			if err != nil {
				return fmt.Errorf("init store: %w", err)
			}
			defer st.Close()

			keys, err := newKeyStore(cmd, st)
			if err != nil {
				return fmt.Errorf("init key store: %w", err)
			}

			limiter, err := newLimiter(cmd, cfg.RateLimit)
			if err != nil {
				return fmt.Errorf("init rate limiter: %w", err)
			}
			defer limiter.Close()

			authSvc := auth.NewService(keys, limiter)
			recorder := usage.NewRecorder(keys, 0, logger)
			defer recorder.Close()

			if _, ok := keys.(*auth.MemoryKeyStore); ok {
				key, err := authSvc.IssueKey(ctx, "dev", auth.TierEnterprise, 0)
				if err != nil {
					return fmt.Errorf("issue dev key: %w", err)
				}
				printWarning("In-memory key store: issued ephemeral development key")
				printKeyValue("API key", StyleNumber.Render(key.Key))
				printNewline()
			}

			orch := intel.NewOrchestrator(registry, source, synth, logger)
			svc := intel.NewService(st, orch, logger)

			srv := server.New(cfg, server.Deps{
				Intel:    svc,
				Auth:     authSvc,
				Usage:    recorder,
				Store:    st,
				Registry: registry,
				Source:   source,
				Logger:   logger,
			})

			logger.Info("Starting API server", "addr", cfg.Server.Addr)
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to TOML config file")

	return cmd
}

// newCacheBackend builds the upstream-response cache from config.
func newCacheBackend(cmd *cobra.Command, cfg config.CacheConfig) (cache.Cache, error) {
	switch cfg.Backend {
	case "none":
		return cache.NewNullCache(), nil
	case "memory":
		return cache.NewMemoryCache(), nil
	case "redis":
		return cache.NewRedisCache(cmd.Context(), cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	case "file", "":
		dir := cfg.Dir
		if dir == "" {
			var err error
			dir, err = cacheDir()
			if err != nil {
				return cache.NewNullCache(), nil
			}
		}
		return cache.NewFileCache(dir)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// newStore builds record persistence from config.
func newStore(cmd *cobra.Command, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Backend {
	case "mongo":
		return store.NewMongo(cmd.Context(), store.MongoConfig{
			URI:        cfg.MongoURI,
			Database:   cfg.MongoDatabase,
			Collection: cfg.MongoCollection,
		})
	case "memory", "":
		return store.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// newKeyStore builds API key persistence. A mongo-backed record store
// shares its connection; anything else falls back to an in-memory store.
func newKeyStore(cmd *cobra.Command, st store.Store) (auth.KeyStore, error) {
	if m, ok := st.(*store.Mongo); ok {
		return auth.NewMongoKeyStore(cmd.Context(), m.Database(), keyCollection)
	}
	return auth.NewMemoryKeyStore(), nil
}

// newLimiter builds the rate-limit window store from config.
func newLimiter(cmd *cobra.Command, cfg config.RateLimitConfig) (auth.Limiter, error) {
	switch cfg.Backend {
	case "redis":
		return auth.NewRedisLimiter(cmd.Context(), cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	case "memory", "":
		return auth.NewMemoryLimiter(), nil
	default:
		return nil, fmt.Errorf("unknown rate limit backend %q", cfg.Backend)
	}
}
