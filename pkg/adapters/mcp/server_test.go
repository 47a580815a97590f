package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/concierge"
	"github.com/aretw0/concierge/internal/testutils"
	"github.com/aretw0/concierge/pkg/adapters/memory"
	"github.com/aretw0/concierge/pkg/domain"
)

const eventURL = "https://example.com/events/42"

func newServer(t *testing.T, decider *testutils.ScriptedDecider) *Server {
	t.Helper()
	effects := testutils.NewFakeEffects().Reply("register_for_event", domain.EffectResult{Payload: "COMPLETED"})
	eng, err := concierge.New(testutils.Graph(), decider, effects, memory.NewStore())
	require.NoError(t, err)
	return NewServer(eng, "test")
}

func TestServer_RunTools(t *testing.T) {
	decider := testutils.NewScriptedDecider().
		On("primary",
			testutils.Call("c1", "to_registration", map[string]any{"url": eventURL}),
			testutils.Say("Registration was cancelled."),
			testutils.Say("Anytime."),
		).
		On("registration",
			testutils.Call("c2", "register_for_event", map[string]any{"url": eventURL}),
			testutils.Call("c3", "cancel_registration", map[string]any{"reason": "User declined."}),
		)
	s := newServer(t, decider)
	ctx := context.Background()
	req := mcp.CallToolRequest{}

	out, err := s.handleStart(ctx, req, StartArgs{RunID: "r1", Request: " register me "})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomePending, out.Kind)

	summary, err := s.handleInspect(ctx, req, RunArgs{RunID: "r1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"primary", "registration"}, summary.Context)
	assert.Equal(t, "web_register", summary.Outcome.Node)

	out, err = s.handleResume(ctx, req, ResumeArgs{RunID: "r1", Reason: "not\x1b today"})
	require.NoError(t, err)
	assert.Equal(t, "Registration was cancelled.", out.Text)

	calls := decider.CallsFor("registration")
	require.Len(t, calls, 2)
	history := calls[1].History
	assert.Contains(t, history[len(history)-1].Content, "not today")

	out, err = s.handleContinue(ctx, req, ContinueArgs{RunID: "r1", Message: "thanks"})
	require.NoError(t, err)
	assert.Equal(t, "Anytime.", out.Text)
}

func TestServer_Validation(t *testing.T) {
	s := newServer(t, testutils.NewScriptedDecider())
	ctx := context.Background()

	_, err := s.handleStart(ctx, mcp.CallToolRequest{}, StartArgs{Request: "  "})
	assert.Error(t, err)

	_, err = s.handleContinue(ctx, mcp.CallToolRequest{}, ContinueArgs{RunID: "r1"})
	assert.Error(t, err)

	_, err = s.handleInspect(ctx, mcp.CallToolRequest{}, RunArgs{RunID: "missing"})
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}

func TestServer_ListsTools(t *testing.T) {
	s := newServer(t, testutils.NewScriptedDecider())

	resp := s.MCPServer().HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	for _, name := range []string{"start_run", "resume_run", "continue_run", "inspect_run", "list_runs"} {
		assert.Contains(t, string(data), `"`+name+`"`)
	}
}
