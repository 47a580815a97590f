package agents_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/concierge/internal/agents"
	"github.com/aretw0/concierge/internal/runtime"
	"github.com/aretw0/concierge/internal/testutils"
	"github.com/aretw0/concierge/pkg/adapters/memory"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/registry"
)

func TestGraph_Structure(t *testing.T) {
	g, err := agents.Graph()
	require.NoError(t, err)

	assert.Equal(t, agents.ContextPrimary, g.Root)
	assert.Equal(t, map[string]string{
		agents.ContextPrimary:      agents.NodePrimary,
		agents.ContextEvents:       agents.NodeEvents,
		agents.ContextRegistration: agents.NodeRegistration,
	}, g.Homes)

	web, ok := g.Node(agents.NodeWebRegister)
	require.True(t, ok)
	assert.True(t, web.Gated)

	reg, _ := g.Node(agents.NodeRegistration)
	assert.False(t, reg.Parallel, "the registration supervisor feeds a gated node")

	primary, _ := g.Node(agents.NodePrimary)
	assert.False(t, primary.Parallel, "the primary assistant reaches several successors")
	primary.Parallel = true
	assert.ErrorContains(t, g.Validate(), "allows parallel requests but reaches both")
	primary.Parallel = false
	c, ok := primary.Capability(agents.CapToRegistration)
	require.True(t, ok)
	assert.Equal(t, domain.KindDelegate, c.Kind)
	assert.Equal(t, []any{"url"}, c.Parameters["required"])

	events, _ := g.Node(agents.NodeEvents)
	assert.True(t, events.Parallel, "every events tool runs on one effect node")
	for _, name := range []string{agents.CapCompleteEvents, agents.CapEscalateEvents} {
		c, ok := events.Capability(name)
		require.True(t, ok, name)
		assert.True(t, c.IsExit())
		assert.Equal(t, agents.NodeBackToPrimary, events.Edges[name])
	}
}

type fakeIndex struct{ calls []string }

func (f *fakeIndex) Search(ctx context.Context, req domain.Request) (domain.EffectResult, error) {
	f.calls = append(f.calls, "search")
	return domain.EffectResult{
		Payload: "[]",
		Observations: []domain.Observation{
			{Key: "https://example.com/e/1", Source: domain.SourceSearch, Found: domain.Bool(true), Registered: domain.Bool(false)},
		},
	}, nil
}

func (f *fakeIndex) Details(ctx context.Context, req domain.Request) (domain.EffectResult, error) {
	f.calls = append(f.calls, "details")
	return domain.EffectResult{Payload: "{}"}, nil
}

func TestRegister_BindsServices(t *testing.T) {
	g, err := agents.Graph()
	require.NoError(t, err)

	reg := registry.NewRegistry()
	assert.Len(t, agents.Unbound(g, reg), 5)

	idx := &fakeIndex{}
	agents.Register(reg, agents.Services{Events: idx})
	assert.Equal(t, []string{agents.CapEventDetails, agents.CapSearchEvents}, reg.Names())
	assert.ElementsMatch(t, []string{
		agents.CapReadCalendar, agents.CapCreateCalendarEvent, agents.CapRegister,
	}, agents.Unbound(g, reg))

	_, err = reg.Invoke(context.Background(), domain.Request{Capability: agents.CapEventDetails})
	require.NoError(t, err)
	assert.Equal(t, []string{"details"}, idx.calls)
}

// TestGraph_EventsDelegation runs a search through the events assistant and
// back, checking that the prompts render against the run state.
func TestGraph_EventsDelegation(t *testing.T) {
	g, err := agents.Graph()
	require.NoError(t, err)

	reg := registry.NewRegistry()
	agents.Register(reg, agents.Services{Events: &fakeIndex{}})

	decider := testutils.NewScriptedDecider().
		On(agents.NodePrimary,
			testutils.Call("c1", agents.CapToEvents, map[string]any{"request": "jazz next week", "location": "New York"}),
			testutils.Say("I found a jazz concert."),
		).
		On(agents.NodeEvents,
			testutils.Call("c2", agents.CapSearchEvents, map[string]any{"query": "jazz"}),
			testutils.Call("c3", agents.CapCompleteEvents, map[string]any{"reason": "Found one event."}),
		)

	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	eng, err := runtime.NewEngine(g, decider, reg, memory.NewStore(), runtime.WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	state := eng.NewRun("run-1", "find me jazz", map[string]string{"name": "Ada"})
	final, err := eng.Run(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCompleted, final.Status)
	assert.Equal(t, "I found a jazz concert.", final.FinalText)
	require.Contains(t, final.Entities, "https://example.com/e/1")

	primaryCalls := decider.CallsFor(agents.NodePrimary)
	require.Len(t, primaryCalls, 2)
	assert.Contains(t, primaryCalls[0].Instructions, `Current user info: {"name":"Ada"}`)
	assert.Contains(t, primaryCalls[0].Instructions, "Current time: 2025-03-14T09:00:00Z.")
	assert.NotContains(t, primaryCalls[0].Instructions, "Known events")
	assert.Contains(t, primaryCalls[1].Instructions, "Known events")

	eventsCalls := decider.CallsFor(agents.NodeEvents)
	require.NotEmpty(t, eventsCalls)
	var handoff string
	for _, m := range eventsCalls[0].History {
		if m.Synthetic && m.ToolCallID == "c1" {
			handoff = m.Content
		}
	}
	assert.Contains(t, handoff, "Request: jazz next week.")
	assert.Contains(t, handoff, "Location: New York.")
	assert.NotContains(t, handoff, "Event:")
	assert.Equal(t, 0, decider.Remaining())
}
