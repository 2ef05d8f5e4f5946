package booth

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/dunamismax/boothflow/internal/config"
	"github.com/dunamismax/boothflow/internal/delivery"
	"github.com/dunamismax/boothflow/internal/storage"
	"github.com/dunamismax/boothflow/internal/store"
)

// Open builds a Service from the process configuration: the ledger named in
// the booth settings, the optional object storage mirror and Redis-backed
// publish flags. The returned func closes what Open opened.
func Open(ctx context.Context, cfg config.Config, rdb redis.UniversalClient, logger *log.Logger, registry prometheus.Registerer) (*Service, func() error, error) {
	opts := Options{
		Logger:     logger,
		Registerer: registry,
		Flags:      delivery.NewMemoryFlags(),
	}
	if rdb != nil {
		opts.Flags = delivery.NewRedisFlags(rdb, "", 0)
	}

	closeFn := func() error { return nil }
	if cfg.Booth.Database.Enabled {
		ledger, err := store.OpenLedger(ctx, cfg.Booth.Database, cfg.Database.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open ledger: %w", err)
		}
		opts.Ledger = ledger
		closeFn = ledger.Close
	}

	if cfg.Storage.Enabled {
		mirror, err := storage.NewClient(storage.Config{
			Endpoint: cfg.Storage.Endpoint,
			Access:   cfg.Storage.AccessKey,
			Secret:   cfg.Storage.SecretKey,
			Bucket:   cfg.Storage.Bucket,
			UseSSL:   cfg.Storage.UseSSL,
			Prefix:   cfg.Storage.Prefix,
		})
		if err != nil {
			_ = closeFn()
			return nil, nil, fmt.Errorf("create storage client: %w", err)
		}
		if err := mirror.EnsureBucket(ctx); err != nil {
			_ = closeFn()
			return nil, nil, fmt.Errorf("ensure bucket %s: %w", mirror.Bucket(), err)
		}
		opts.Mirror = mirror
	}

	return NewService(cfg.Booth, opts), closeFn, nil
}
