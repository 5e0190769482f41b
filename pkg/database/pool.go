package database

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// storePool keeps a single warm Store across serverless invocations.
type storePool struct {
	instance Store
	config   StoreConfig
	mu       sync.RWMutex
	lastUsed time.Time
}

var (
	globalPool *storePool
	poolMutex  sync.Mutex
)

// GetStore returns the shared Store, creating or recreating it when the
// configuration changed, the connection went stale, or health checks
// fail.
func GetStore(cfg StoreConfig) (Store, error) {
	poolMutex.Lock()
	defer poolMutex.Unlock()

	if globalPool == nil || shouldRecreate(globalPool, cfg) {
		if globalPool != nil && globalPool.instance != nil {
			globalPool.instance.Close()
		}

		instance, err := NewStore(cfg)
		if err != nil {
			return nil, err
		}
		log.Debug().Msg("created new store connection")
		globalPool = &storePool{
			instance: instance,
			config:   cfg,
			lastUsed: time.Now(),
		}
	} else {
		globalPool.mu.Lock()
		globalPool.lastUsed = time.Now()
		globalPool.mu.Unlock()
	}

	return globalPool.instance, nil
}

// shouldRecreate decides whether the pooled connection must be rebuilt.
func shouldRecreate(pool *storePool, newCfg StoreConfig) bool {
	if pool == nil || pool.instance == nil {
		return true
	}

	if pool.config != newCfg {
		log.Debug().Msg("store configuration changed, recreating connection")
		return true
	}

	// Connections older than 30 minutes are rebuilt.
	pool.mu.RLock()
	expired := time.Since(pool.lastUsed) > 30*time.Minute
	pool.mu.RUnlock()
	if expired {
		return true
	}

	if err := pool.instance.HealthCheck(); err != nil {
		log.Warn().Err(err).Msg("store health check failed, recreating connection")
		return true
	}

	return false
}

// CleanupIdleConnections closes the pooled connection after ten idle
// minutes. Safe to call periodically from a background goroutine.
func CleanupIdleConnections() {
	poolMutex.Lock()
	defer poolMutex.Unlock()

	if globalPool == nil {
		return
	}

	globalPool.mu.RLock()
	idle := time.Since(globalPool.lastUsed) > 10*time.Minute
	globalPool.mu.RUnlock()

	if idle {
		if globalPool.instance != nil {
			globalPool.instance.Close()
		}
		globalPool = nil
	}
}
