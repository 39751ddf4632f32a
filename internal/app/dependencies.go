// Package app assembles the cart service and its HTTP surface from configuration.
package app

import (
	"context"
	"fmt"

	validator "github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"

	"github.com/noah-isme/toko-cart/internal/auth"
	"github.com/noah-isme/toko-cart/internal/cart"
	"github.com/noah-isme/toko-cart/internal/catalog"
	"github.com/noah-isme/toko-cart/internal/config"
	"github.com/noah-isme/toko-cart/internal/health"
	"github.com/noah-isme/toko-cart/internal/obs"
	"github.com/noah-isme/toko-cart/internal/ratelimit"
	"github.com/noah-isme/toko-cart/internal/store/memory"
	"github.com/noah-isme/toko-cart/internal/store/postgres"
)

// Dependencies enumerates the services shared by the HTTP layer.
type Dependencies struct {
	Config    *config.Config
	Logger    zerolog.Logger
	DB        *pgxpool.Pool
	Redis     *redis.Client
	Store     cart.Store
	Products  cart.ProductLookup
	Cart      *cart.Service
	Verifier  *auth.Verifier
	Limiter   *limiter.Limiter
	Validator *validator.Validate
	Probes    []health.Probe

	closers []func()
}

// Build connects to the configured backends and wires the cart service.
// Callers must Close the result.
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:    cfg,
		Logger:    logger,
		Validator: validator.New(validator.WithRequiredStructEnabled()),
	}
	if err := deps.wire(ctx); err != nil {
		deps.Close()
		return nil, err
	}
	return deps, nil
}

func (d *Dependencies) wire(ctx context.Context) error {
	cfg, logger := d.Config, d.Logger

	var seed func(context.Context, cart.Product) error
	switch cfg.StoreDriver {
	case config.StoreMemory:
		st := memory.New()
		d.Store, d.Products = st, st
		seed = func(_ context.Context, p cart.Product) error { st.PutProduct(p); return nil }
	default:
		pool, err := connectPostgres(ctx, cfg)
		if err != nil {
			return err
		}
		d.DB = pool
		d.closers = append(d.closers, pool.Close)
		st := postgres.New(pool)
		d.Store, d.Products = st, st
		seed = st.UpsertProduct
		d.Probes = append(d.Probes, health.Probe{Name: "db", Check: st.Ping})
	}

	if cfg.RedisURL != "" {
		rdb, err := connectRedis(ctx, cfg, logger)
		if err != nil {
			return err
		}
		d.Redis = rdb
		d.closers = append(d.closers, func() {
			if err := rdb.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		})
		d.Products = &catalog.CachedLookup{
			Next:   d.Products,
			Cache:  catalog.NewCache(rdb, cfg.ProductCacheTTL),
			Logger: &d.Logger,
		}
		d.Probes = append(d.Probes, health.Probe{
			Name:     "redis",
			Optional: true,
			Check:    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
	}

	if cfg.SeedProductsFile != "" {
		products, err := LoadProducts(cfg.SeedProductsFile)
		if err != nil {
			return err
		}
		if err := SeedCatalog(ctx, products, seed, d.Products); err != nil {
			return err
		}
		logger.Info().Int("count", len(products)).Msg("catalog seeded")
	}

	limitStore, err := ratelimit.NewStore(d.Redis)
	if err != nil {
		return fmt.Errorf("rate limit store: %w", err)
	}
	if d.Limiter, err = ratelimit.NewLimiter(limitStore, cfg.WriteRate); err != nil {
		return fmt.Errorf("CART_WRITE_RATE: %w", err)
	}

	verifierCtx, cancel := context.WithCancel(context.Background())
	d.closers = append(d.closers, cancel)
	d.Verifier, err = auth.NewVerifier(verifierCtx, auth.Config{
		Secret:   cfg.JWTSecret,
		JWKSURL:  cfg.JWKSURL,
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
	})
	if err != nil {
		return err
	}

	d.Cart = &cart.Service{
		Store:    d.Store,
		Products: d.Products,
		Defaults: cart.Defaults{TaxRate: cfg.TaxRate, ShippingFee: cfg.ShippingFee, MaxLineAmount: cfg.MaxLineAmount},
		Logger:   &d.Logger,
	}
	return nil
}

// Close releases every backend in reverse acquisition order.
func (d *Dependencies) Close() {
	if d == nil {
		return
	}
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}

func connectPostgres(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if cfg.DBAutoMigrate {
		if err := postgres.Migrate(cfg.DatabaseURL); err != nil {
			return nil, err
		}
	}
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "toko-cart"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func connectRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(rdb); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if cfg.MetricsEnabled {
		if err := redisotel.InstrumentMetrics(rdb); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}
