package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ari/internal/admin"
	"github.com/xkilldash9x/ari/internal/assessment"
	"github.com/xkilldash9x/ari/internal/bank"
	"github.com/xkilldash9x/ari/internal/blob"
	"github.com/xkilldash9x/ari/internal/config"
	"github.com/xkilldash9x/ari/internal/download"
	"github.com/xkilldash9x/ari/internal/mailer"
	"github.com/xkilldash9x/ari/internal/observability"
	"github.com/xkilldash9x/ari/internal/report"
)

// ComponentFactory builds the components the serve command runs.
type ComponentFactory interface {
	Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*Components, error)
}

type concreteFactory struct{}

// NewComponentFactory creates the production factory.
func NewComponentFactory() ComponentFactory {
	return &concreteFactory{}
}

// Create wires config, store, question bank, engine and the report,
// download and admin services.
func (f *concreteFactory) Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*Components, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	components := &Components{Config: cfg, logger: logger}

	var initializationErr error
	defer func() {
		if initializationErr != nil {
			logger.Warn("Initialization failed, shutting down partially created components", zap.Error(initializationErr))
			components.Shutdown()
		}
	}()

	// 1. Store
	kv, err := OpenStore(ctx, cfg.Store(), logger)
	if err != nil {
		initializationErr = err
		return nil, initializationErr
	}
	components.Store = kv

	// 2. Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	components.Registry = reg
	components.Metrics = observability.NewMetrics(reg)

	// 3. Question bank and engine
	acfg := cfg.Assessment()
	components.Bank = bank.NewProvider(kv, acfg.BankKey(), acfg.BankCacheTTL, logger)
	components.Engine = assessment.NewEngine(kv, components.Bank, NewPolicy(acfg), acfg.SessionTTL, logger,
		assessment.WithMetrics(components.Metrics))

	// 4. Blob storage and email
	components.Blobs, err = blob.New(cfg.Blob(), logger)
	if err != nil {
		initializationErr = fmt.Errorf("failed to initialize blob storage: %w", err)
		return nil, initializationErr
	}
	components.Mailer, err = mailer.New(cfg.Email(), logger)
	if err != nil {
		initializationErr = fmt.Errorf("failed to initialize email sender: %w", err)
		return nil, initializationErr
	}

	// 5. Download, report and admin services
	components.Downloads, err = download.NewService(cfg.Download(), kv, components.Blobs, components.Bank, logger,
		download.WithMetrics(components.Metrics))
	if err != nil {
		initializationErr = fmt.Errorf("failed to initialize download service: %w", err)
		return nil, initializationErr
	}
	components.Reports = report.NewService(components.Engine, components.Bank, components.Downloads, components.Mailer, kv,
		report.Options{
			From:          cfg.Email().From,
			Subject:       cfg.Report().Subject,
			PublicBaseURL: cfg.Server().PublicBaseURL,
			LinkLifetime:  cfg.Download().TTL,
		}, components.Metrics, logger)
	components.Admin = admin.NewService(kv, logger)

	// 6. Background expiry sweep for SQL backends.
	if sweeper, ok := kv.(ExpirySweeper); ok {
		janitorCtx, cancel := context.WithCancel(context.Background())
		components.stopJanitor = cancel
		components.janitorWG = &sync.WaitGroup{}
		StartJanitor(janitorCtx, components.janitorWG, sweeper, JanitorInterval, logger)
	}

	logger.Info("Components initialized",
		zap.String("store", cfg.Store().Driver),
		zap.String("blob", cfg.Blob().Driver),
		zap.String("email", cfg.Email().Provider),
		zap.String("question_bank_key", acfg.BankKey()))
	return components, nil
}
