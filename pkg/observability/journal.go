package observability

import (
	"context"
	"sync"

	"github.com/aretw0/concierge/pkg/domain"
)

// DefaultJournalSize is the number of events kept per run.
const DefaultJournalSize = 256

// Entry is one journaled lifecycle event.
type Entry struct {
	domain.EventBase
	Node       string `json:"node,omitempty"`
	Capability string `json:"capability,omitempty"`
	IsError    bool   `json:"is_error,omitempty"`
	Outcome    string `json:"outcome,omitempty"`
}

// Journal keeps the most recent events of each run in memory.
// Safe for concurrent use.
type Journal struct {
	mu    sync.RWMutex
	size  int
	runs  map[string][]Entry
	order []string
	limit int
}

// NewJournal creates a journal keeping size events for at most maxRuns runs.
// Non-positive values fall back to defaults.
func NewJournal(size, maxRuns int) *Journal {
	if size <= 0 {
		size = DefaultJournalSize
	}
	if maxRuns <= 0 {
		maxRuns = 1024
	}
	return &Journal{size: size, runs: make(map[string][]Entry), limit: maxRuns}
}

// Hooks returns lifecycle hooks writing into the journal.
func (j *Journal) Hooks() domain.LifecycleHooks {
	node := func(_ context.Context, e *domain.NodeEvent) {
		j.add(Entry{EventBase: e.EventBase, Node: e.Node})
	}
	effect := func(_ context.Context, e *domain.EffectEvent) {
		j.add(Entry{EventBase: e.EventBase, Node: e.Node, Capability: e.Capability, IsError: e.IsError})
	}
	return domain.LifecycleHooks{
		OnNodeEnter:    node,
		OnNodeLeave:    node,
		OnPause:        node,
		OnEffectCall:   effect,
		OnEffectReturn: effect,
		OnRunEnd: func(_ context.Context, e *domain.RunEvent) {
			j.add(Entry{EventBase: e.EventBase, Outcome: e.Outcome.String()})
		},
	}
}

func (j *Journal) add(e Entry) {
	j.mu.Lock()
	defer j.mu.Unlock()

	events, ok := j.runs[e.RunID]
	if !ok {
		if len(j.order) >= j.limit {
			oldest := j.order[0]
			j.order = j.order[1:]
			delete(j.runs, oldest)
		}
		j.order = append(j.order, e.RunID)
	}
	events = append(events, e)
	if len(events) > j.size {
		events = events[len(events)-j.size:]
	}
	j.runs[e.RunID] = events
}

// Events returns a copy of the journaled events of a run, oldest first.
func (j *Journal) Events(runID string) []Entry {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return append([]Entry(nil), j.runs[runID]...)
}

// Forget drops the events of a run.
func (j *Journal) Forget(runID string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, ok := j.runs[runID]; !ok {
		return
	}
	delete(j.runs, runID)
	for i, id := range j.order {
		if id == runID {
			j.order = append(j.order[:i], j.order[i+1:]...)
			break
		}
	}
}
