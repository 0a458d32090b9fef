package service

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ari/api/schemas"
	"github.com/xkilldash9x/ari/internal/admin"
	"github.com/xkilldash9x/ari/internal/assessment"
	"github.com/xkilldash9x/ari/internal/bank"
	"github.com/xkilldash9x/ari/internal/config"
	"github.com/xkilldash9x/ari/internal/download"
	"github.com/xkilldash9x/ari/internal/observability"
	"github.com/xkilldash9x/ari/internal/report"
	"github.com/xkilldash9x/ari/internal/server"
)

// Components holds the initialized services behind the HTTP API and
// centralizes their lifecycle.
type Components struct {
	Config    config.Interface
	Store     schemas.KeyValueStore
	Bank      *bank.Provider
	Engine    *assessment.Engine
	Blobs     schemas.BlobStore
	Mailer    schemas.EmailSender
	Downloads *download.Service
	Reports   *report.Service
	Admin     *admin.Service
	Metrics   *observability.Metrics
	Registry  *prometheus.Registry

	logger *zap.Logger

	stopJanitor context.CancelFunc
	janitorWG   *sync.WaitGroup
}

// Server builds the HTTP server over the components.
func (c *Components) Server() *server.Server {
	return server.New(c.Config.Server(), c.Config.Report().RateLimitPerMinute, server.Deps{
		Assessments: c.Engine,
		Reports:     c.Reports,
		Downloads:   c.Downloads,
		Admin:       c.Admin,
		AdminKey:    c.Config.Admin().APIKey,
		Metrics:     c.Metrics,
		Gatherer:    c.Registry,
	}, c.logger)
}

// Shutdown stops background work and closes the store. It is safe on a
// partially built Components.
func (c *Components) Shutdown() {
	logger := c.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Debug("Beginning components shutdown sequence")

	if c.stopJanitor != nil {
		c.stopJanitor()
	}
	if c.janitorWG != nil {
		c.janitorWG.Wait()
		logger.Debug("Expiry janitor stopped")
	}
	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			logger.Warn("Error closing store", zap.Error(err))
		} else {
			logger.Debug("Store closed")
		}
	}
	logger.Info("All components shut down")
}
