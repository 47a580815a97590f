package concierge_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/concierge"
	"github.com/aretw0/concierge/internal/testutils"
	"github.com/aretw0/concierge/pkg/adapters/memory"
	"github.com/aretw0/concierge/pkg/adapters/profile"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/ports"
)

const eventURL = "https://example.com/events/42"

func newEngine(t *testing.T, decider ports.Decider, effects *testutils.FakeEffects, opts ...concierge.Option) (*concierge.Engine, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	ids := 0
	base := []concierge.Option{
		concierge.WithClock(func() time.Time { return time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC) }),
		concierge.WithIDGenerator(func() string { ids++; return fmt.Sprintf("run-%d", ids) }),
		concierge.WithProfileSource(profile.Static{"name": "Ada"}),
	}
	eng, err := concierge.New(testutils.Graph(), decider, effects, store, append(base, opts...)...)
	require.NoError(t, err)
	return eng, store
}

func registrationDecider() *testutils.ScriptedDecider {
	return testutils.NewScriptedDecider().
		On("primary",
			testutils.Call("c1", "to_registration", map[string]any{"url": eventURL}),
			testutils.Say("You are registered."),
		).
		On("registration",
			testutils.Call("c2", "register_for_event", map[string]any{"url": eventURL}),
			testutils.Call("c3", "complete_registration", map[string]any{"reason": "Done."}),
		)
}

func registrationEffects() *testutils.FakeEffects {
	return testutils.NewFakeEffects().Reply("register_for_event", domain.EffectResult{
		Payload: "COMPLETED",
		Observations: []domain.Observation{
			{Key: eventURL, Source: domain.SourceSearch, Found: domain.Bool(true), Registered: domain.Bool(false)},
			{Key: eventURL, Source: domain.SourceRegistration, Registered: domain.Bool(true)},
		},
	})
}

func TestEngine_StartCompletes(t *testing.T) {
	decider := testutils.NewScriptedDecider().On("primary", testutils.Say("Hello Ada."))
	eng, _ := newEngine(t, decider, testutils.NewFakeEffects())

	out, err := eng.Start(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, domain.Outcome{RunID: "run-1", Kind: domain.OutcomeCompleted, Text: "Hello Ada."}, out)

	calls := decider.CallsFor("primary")
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Instructions, "User: Ada.")

	state, err := eng.Inspect(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", state.UserContext["name"])
	assert.Equal(t, domain.StatusCompleted, state.Status)
}

func TestEngine_PauseResume(t *testing.T) {
	eng, _ := newEngine(t, registrationDecider(), registrationEffects())
	ctx := context.Background()

	out, err := eng.Start(ctx, "register me")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomePending, out.Kind)
	assert.Equal(t, "web_register", out.Node)
	require.NotNil(t, out.Request)
	assert.Equal(t, eventURL, out.Request.Args["url"])

	out, err = eng.Resume(ctx, out.RunID, domain.Approval{Approved: true})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCompleted, out.Kind)
	assert.Equal(t, "You are registered.", out.Text)

	state, err := eng.Inspect(ctx, out.RunID)
	require.NoError(t, err)
	require.Contains(t, state.Entities, eventURL)
	assert.True(t, *state.Entities[eventURL].Registered)

	_, err = eng.Resume(ctx, out.RunID, domain.Approval{Approved: true})
	assert.ErrorIs(t, err, domain.ErrRunFinished)
}

func TestEngine_Deny(t *testing.T) {
	decider := testutils.NewScriptedDecider().
		On("primary",
			testutils.Call("c1", "to_registration", map[string]any{"url": eventURL}),
			testutils.Say("Registration cancelled."),
		).
		On("registration",
			testutils.Call("c2", "register_for_event", map[string]any{"url": eventURL}),
			testutils.Call("c3", "cancel_registration", map[string]any{"reason": "User declined."}),
		)
	effects := registrationEffects()
	eng, _ := newEngine(t, decider, effects)
	ctx := context.Background()

	out, err := eng.Start(ctx, "register me")
	require.NoError(t, err)
	require.Equal(t, domain.OutcomePending, out.Kind)

	out, err = eng.Resume(ctx, out.RunID, domain.Approval{Reason: "not this one"})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCompleted, out.Kind)
	assert.Empty(t, effects.Requests(), "denied effect never runs")

	calls := decider.CallsFor("registration")
	require.Len(t, calls, 2)
	last := calls[1].History[len(calls[1].History)-1]
	assert.Equal(t, "c2", last.ToolCallID)
	assert.Contains(t, last.Content, "'not this one'")
}

func TestEngine_Continue(t *testing.T) {
	decider := testutils.NewScriptedDecider().On("primary", testutils.Say("First."), testutils.Say("Second."))
	eng, _ := newEngine(t, decider, testutils.NewFakeEffects())
	ctx := context.Background()

	out, err := eng.Start(ctx, "one")
	require.NoError(t, err)

	out, err = eng.Continue(ctx, out.RunID, "two")
	require.NoError(t, err)
	assert.Equal(t, "Second.", out.Text)

	transcript, err := eng.Transcript(ctx, out.RunID)
	require.NoError(t, err)
	var contents []string
	for _, m := range transcript {
		contents = append(contents, m.Content)
	}
	assert.Equal(t, []string{"one", "First.", "two", "Second."}, contents)
}

func TestEngine_StartWithIDExisting(t *testing.T) {
	decider := testutils.NewScriptedDecider().On("primary", testutils.Say("ok"))
	eng, _ := newEngine(t, decider, testutils.NewFakeEffects())
	ctx := context.Background()

	_, err := eng.StartWithID(ctx, "fixed", "hi")
	require.NoError(t, err)
	_, err = eng.StartWithID(ctx, "fixed", "hi again")
	assert.ErrorIs(t, err, domain.ErrRunExists)

	_, err = eng.StartWithID(ctx, "", "hi")
	assert.Error(t, err)
}

type failingProfile struct{}

func (failingProfile) Profile(context.Context) (map[string]string, error) {
	return nil, errors.New("profile backend down")
}

func TestEngine_ProfileFailure(t *testing.T) {
	eng, store := newEngine(t, testutils.NewScriptedDecider(), testutils.NewFakeEffects(),
		concierge.WithProfileSource(failingProfile{}))

	_, err := eng.Start(context.Background(), "hi")
	assert.ErrorContains(t, err, "profile backend down")

	ids, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids, "nothing is persisted")
}

func TestEngine_ListDelete(t *testing.T) {
	decider := testutils.NewScriptedDecider().On("primary", testutils.Say("a"), testutils.Say("b"))
	eng, _ := newEngine(t, decider, testutils.NewFakeEffects())
	ctx := context.Background()

	_, err := eng.Start(ctx, "x")
	require.NoError(t, err)
	_, err = eng.Start(ctx, "y")
	require.NoError(t, err)

	ids, err := eng.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-1", "run-2"}, ids)

	require.NoError(t, eng.Delete(ctx, "run-1"))
	_, err = eng.Inspect(ctx, "run-1")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)

	_, err = eng.Resume(ctx, "run-1", domain.Approval{Approved: true})
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}

func TestEngine_HooksMerge(t *testing.T) {
	var first, second []string
	decider := testutils.NewScriptedDecider().On("primary", testutils.Say("done"))
	eng, _ := newEngine(t, decider, testutils.NewFakeEffects(),
		concierge.WithLifecycleHooks(domain.LifecycleHooks{
			OnRunEnd: func(_ context.Context, e *domain.RunEvent) { first = append(first, e.Outcome.String()) },
		}),
		concierge.WithLifecycleHooks(domain.LifecycleHooks{
			OnRunEnd: func(_ context.Context, e *domain.RunEvent) { second = append(second, e.RunID) },
		}),
	)

	_, err := eng.Start(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, []string{`completed("done")`}, first)
	assert.Equal(t, []string{"run-1"}, second)
}

func TestEngine_GatesDisabled(t *testing.T) {
	eng, _ := newEngine(t, registrationDecider(), registrationEffects(), concierge.WithGates(false))

	out, err := eng.Start(context.Background(), "register me")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCompleted, out.Kind)
}
