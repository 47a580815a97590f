package testutils

import (
	"context"
	"sync"

	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/ports"
)

// Response is one scripted effect reply.
type Response struct {
	Result domain.EffectResult
	Err    error
}

// FakeEffects serves capabilities from scripted responses and records requests.
// A capability with an exhausted script repeats its last response.
type FakeEffects struct {
	mu        sync.Mutex
	responses map[string][]Response
	requests  []domain.Request
}

// NewFakeEffects creates an empty fake.
func NewFakeEffects() *FakeEffects {
	return &FakeEffects{responses: make(map[string][]Response)}
}

// Reply queues results for a capability.
func (f *FakeEffects) Reply(capability string, results ...domain.EffectResult) *FakeEffects {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range results {
		f.responses[capability] = append(f.responses[capability], Response{Result: r})
	}
	return f
}

// Fail queues a Go error for a capability.
func (f *FakeEffects) Fail(capability string, err error) *FakeEffects {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[capability] = append(f.responses[capability], Response{Err: err})
	return f
}

// Lookup implements runtime.EffectResolver.
func (f *FakeEffects) Lookup(capability string) (ports.Effect, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.responses[capability]; !ok {
		return nil, false
	}
	return ports.EffectFunc(func(ctx context.Context, req domain.Request) (domain.EffectResult, error) {
		return f.next(req)
	}), true
}

func (f *FakeEffects) next(req domain.Request) (domain.EffectResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)

	queue := f.responses[req.Capability]
	resp := queue[0]
	if len(queue) > 1 {
		f.responses[req.Capability] = queue[1:]
	}
	return resp.Result, resp.Err
}

// Requests returns every request served so far.
func (f *FakeEffects) Requests() []domain.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Request(nil), f.requests...)
}
