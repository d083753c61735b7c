// File: cmd/components.go
package cmd

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/iocscope/api/schemas"
	"github.com/xkilldash9x/iocscope/internal/history"
	"github.com/xkilldash9x/iocscope/internal/intel"
	"github.com/xkilldash9x/iocscope/internal/memcache"
	"github.com/xkilldash9x/iocscope/internal/quota"
	"github.com/xkilldash9x/iocscope/internal/vtapi"
)

// components holds the initialized services for one command invocation. This
// is the composition root: every collaborator is constructed here explicitly
// and injected, never reached through package-level singletons.
type components struct {
	Service *intel.Service
	Store   *history.Store
	log     *zap.Logger
}

// initializeComponents wires the scan service from the resolved config.
// A history store that fails to open degrades to disabled persistence;
// history is a convenience layer, not a correctness-critical path.
func initializeComponents(logger *zap.Logger) (*components, error) {
	cfg := appCfg
	if cfg == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}

	client := vtapi.NewClient(cfg.API.BaseURL, cfg.API.Key, cfg.API.Timeout, logger)
	cache := memcache.New[schemas.AnalysisResult](cfg.Cache.TTL)
	tracker := quota.New(cfg.Quota.Budget, cfg.Quota.Window)

	store, err := history.Open(cfg.History.Path, logger)
	if err != nil {
		logger.Warn("Scan history unavailable", zap.String("path", cfg.History.Path), zap.Error(err))
		store = nil
	}

	// A nil *history.Store must not become a non-nil interface.
	var historyStore schemas.HistoryStore
	if store != nil {
		historyStore = store
	}

	svc, err := intel.New(client, cache, historyStore, tracker, logger, intel.Options{
		GUIBaseURL:   cfg.API.GUIBaseURL,
		HistoryLimit: cfg.History.Limit,
		BatchDelay:   cfg.Scan.BatchDelay,
	})
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, fmt.Errorf("failed to initialize scan service: %w", err)
	}

	return &components{Service: svc, Store: store, log: logger}, nil
}

// Shutdown waits for pending history writes and releases the store.
func (c *components) Shutdown() {
	c.Service.Flush()
	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			c.log.Warn("Failed to close history store", zap.Error(err))
		}
	}
}
