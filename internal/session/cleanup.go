package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgellow/oauth-bench/internal/log"
)

// CleanupManager periodically evicts abandoned login attempts
type CleanupManager struct {
	registry Registry
	interval time.Duration
	stopChan chan struct{}
	doneChan chan struct{}
	started  atomic.Bool
	stopOnce sync.Once
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(registry Registry, interval time.Duration) *CleanupManager {
	return &CleanupManager{
		registry: registry,
		interval: interval,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start begins the cleanup loop in a goroutine
func (cm *CleanupManager) Start(ctx context.Context) {
	log.LogInfoWithFields("cleanup", "Starting state cleanup manager", map[string]any{
		"interval": cm.interval.String(),
	})

	cm.started.Store(true)
	go cm.run(ctx)
}

// Stop runs a final sweep, stops the loop and waits for it to exit.
// It is a no-op if Start was never called and safe to call twice.
func (cm *CleanupManager) Stop() {
	if !cm.started.Load() {
		return
	}
	cm.stopOnce.Do(func() {
		close(cm.stopChan)
		<-cm.doneChan
		log.LogInfo("State cleanup manager stopped")
	})
}

func (cm *CleanupManager) run(ctx context.Context) {
	defer close(cm.doneChan)

	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cm.cleanup(ctx)
		case <-cm.stopChan:
			cm.cleanup(ctx)
			return
		case <-ctx.Done():
			return
		}
	}
}

func (cm *CleanupManager) cleanup(ctx context.Context) {
	count, err := cm.registry.CleanupExpired(ctx)
	if err != nil {
		log.LogErrorWithFields("cleanup", "Failed to cleanup expired states", map[string]any{
			"error": err.Error(),
		})
		return
	}

	if count > 0 {
		log.LogInfoWithFields("cleanup", "Cleaned up expired states", map[string]any{
			"count": count,
		})
	}
}
