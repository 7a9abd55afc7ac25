package recommend

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Janitor periodically purges expired cache entries independent of lookup
// traffic. Each sweep holds the cache lock only for the duration of one
// InvalidateExpired call.
type Janitor struct {
	cache    *ResultCache
	interval time.Duration
	logger   *zap.Logger

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewJanitor creates a janitor sweeping the cache on the given interval.
func NewJanitor(cache *ResultCache, interval time.Duration, logger *zap.Logger) *Janitor {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Janitor{
		cache:    cache,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the background sweep loop. Call Stop to end it.
func (j *Janitor) Start() {
	go func() {
		defer close(j.doneCh)

		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				removed := j.cache.InvalidateExpired()
				if removed > 0 {
					j.logger.Debug("janitor sweep removed expired entries", zap.Int("removed", removed))
				}
			case <-j.stopCh:
				return
			}
		}
	}()
}

// Stop ends the sweep loop and waits for it to exit. Safe to call twice.
func (j *Janitor) Stop() {
	j.stopOnce.Do(func() {
		close(j.stopCh)
	})
	<-j.doneCh
}
