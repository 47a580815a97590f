package http

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aretw0/concierge/internal/logging"
	"github.com/aretw0/concierge/pkg/domain"
)

// StreamManager fans checkpoint diffs out to the SSE subscribers of each run.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan *domain.StateDiff]struct{} // RunID -> Set of Channels
	logger      *slog.Logger
}

// NewStreamManager creates an empty manager.
func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan *domain.StateDiff]struct{}),
		logger:      logging.NewNop(),
	}
}

// Hooks returns the lifecycle hooks that publish checkpoints. Install them on
// the engine served by the handler.
func (sm *StreamManager) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnCheckpoint: func(ctx context.Context, e *domain.CheckpointEvent) {
			if e.Diff != nil {
				sm.Broadcast(e.RunID, e.Diff)
			}
		},
	}
}

// Subscribe registers a listener for runID. The returned func unsubscribes.
func (sm *StreamManager) Subscribe(runID string) (<-chan *domain.StateDiff, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan *domain.StateDiff, 10)
	if _, ok := sm.subscribers[runID]; !ok {
		sm.subscribers[runID] = make(map[chan *domain.StateDiff]struct{})
	}
	sm.subscribers[runID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[runID]; ok {
			if _, ok := subs[ch]; !ok {
				return
			}
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, runID)
			}
		}
	}
}

// Broadcast delivers a diff to every subscriber of runID without blocking.
func (sm *StreamManager) Broadcast(runID string, diff *domain.StateDiff) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[runID] {
		select {
		case ch <- diff:
		default:
			// Drop message if channel is full (slow client)
			sm.logger.Warn("SSE: Client buffer full, dropping message", "run_id", runID)
		}
	}
}

// Subscribers reports how many listeners runID has.
func (sm *StreamManager) Subscribers(runID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[runID])
}
