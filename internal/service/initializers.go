package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/ari/api/schemas"
	"github.com/xkilldash9x/ari/internal/assessment"
	"github.com/xkilldash9x/ari/internal/config"
	"github.com/xkilldash9x/ari/internal/store"
)

// JanitorInterval is how often expired keys are purged from SQL backends.
const JanitorInterval = 10 * time.Minute

// ExpirySweeper is implemented by stores that keep expired rows until purged.
type ExpirySweeper interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// OpenStore opens the key-value backend selected by cfg.Driver.
func OpenStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (schemas.KeyValueStore, error) {
	switch cfg.Driver {
	case "memory":
		logger.Warn("Using the in-memory store. Sessions and records are lost on restart.")
		return store.NewMemory(), nil
	case "postgres":
		if cfg.URL == "" {
			return nil, fmt.Errorf("database URL is not configured (hint: check ARI_DATABASE_URL)")
		}
		pg, err := store.Connect(ctx, cfg.URL, logger)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		logger.Info("Connected to PostgreSQL store")
		return pg, nil
	case "sqlite":
		db, err := store.OpenSQLite(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("Opened SQLite store", zap.String("path", cfg.SQLitePath))
		return db, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// NewPolicy translates the assessment configuration into engine policy.
func NewPolicy(cfg config.AssessmentConfig) assessment.Policy {
	return assessment.Policy{
		ShufflePhase1:             cfg.ShufflePhase1,
		UnknownKeys:               assessment.UnknownKeyPolicy(cfg.UnknownKeys),
		Phase2OptionCount:         cfg.Phase2OptionCount,
		DomainResultsInterstitial: cfg.DomainResultsInterstitial,
	}
}

// StartJanitor purges expired keys every interval until ctx is cancelled.
func StartJanitor(ctx context.Context, wg *sync.WaitGroup, sweeper ExpirySweeper, interval time.Duration, logger *zap.Logger) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Debug("Starting expiry janitor", zap.Duration("interval", interval))

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
				n, err := sweeper.DeleteExpired(sweepCtx)
				cancel()
				if err != nil {
					logger.Warn("Expiry sweep failed", zap.Error(err))
					continue
				}
				if n > 0 {
					logger.Info("Purged expired keys", zap.Int64("count", n))
				}
			}
		}
	}()
}
