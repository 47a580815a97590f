package runner

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/concierge/pkg/domain"
)

var errEOF = io.EOF

func TestRunner_Run_Completes(t *testing.T) {
	d := &fakeDriver{outcomes: []domain.Outcome{completed("Found 2 events")}}
	h := &recordingHandler{}
	r := NewRunner(WithInputHandler(h))

	out, err := r.Run(context.Background(), d, "  find go meetups\x07 ")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCompleted, out.Kind)
	assert.Equal(t, []string{"find go meetups"}, d.starts)
	require.Len(t, h.outputs, 1)
	assert.Equal(t, "Found 2 events", h.outputs[0].Text)
}

func TestRunner_Run_RejectsOversizedRequest(t *testing.T) {
	t.Setenv(RequestLimit.Env, "4")
	d := &fakeDriver{}
	r := NewRunner(WithInputHandler(&recordingHandler{}))

	_, err := r.Run(context.Background(), d, "too long")
	require.Error(t, err)
	assert.Empty(t, d.starts)
}

func TestRunner_Drive_ApprovesGate(t *testing.T) {
	d := &fakeDriver{outcomes: []domain.Outcome{pending("web_register"), completed("Registered")}}
	h := &recordingHandler{approvals: []domain.Approval{{Approved: true}}}
	r := NewRunner(WithInputHandler(h))

	out, err := r.Run(context.Background(), d, "register me")
	require.NoError(t, err)
	assert.Equal(t, "Registered", out.Text)
	assert.Equal(t, []domain.Approval{{Approved: true}}, d.approvals)
	assert.Len(t, h.outputs, 2)
	assert.Empty(t, h.system)
}

func TestRunner_Drive_DenialIsSanitized(t *testing.T) {
	d := &fakeDriver{outcomes: []domain.Outcome{pending("web_register"), completed("Cancelled")}}
	h := &recordingHandler{approvals: []domain.Approval{{Reason: "not\x00 today"}}}
	r := NewRunner(WithInputHandler(h))

	_, err := r.Run(context.Background(), d, "register me")
	require.NoError(t, err)
	require.Len(t, d.approvals, 1)
	assert.False(t, d.approvals[0].Approved)
	assert.Equal(t, "not today", d.approvals[0].Reason)
	assert.Equal(t, []string{"Request denied."}, h.system)
}

func TestRunner_Drive_Policy(t *testing.T) {
	d := &fakeDriver{outcomes: []domain.Outcome{pending("web_register"), completed("ok")}}
	h := &recordingHandler{}
	r := NewRunner(WithInputHandler(h), WithApprovalPolicy(AutoDeny("batch mode")))

	_, err := r.Run(context.Background(), d, "register me")
	require.NoError(t, err)
	assert.Equal(t, []domain.Approval{{Reason: "batch mode"}}, d.approvals)
}

func TestRunner_Drive_StopsOnFailure(t *testing.T) {
	d := &fakeDriver{outcomes: []domain.Outcome{{RunID: "r1", Kind: domain.OutcomeFailed, Reason: "boom"}}}
	r := NewRunner(WithInputHandler(&recordingHandler{}), WithConversation(true))

	out, err := r.Run(context.Background(), d, "hi")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeFailed, out.Kind)
}

func TestRunner_Drive_Conversation(t *testing.T) {
	d := &fakeDriver{outcomes: []domain.Outcome{completed("first"), completed("second")}}
	h := &recordingHandler{inputs: []string{"", "and tomorrow?"}}
	r := NewRunner(WithInputHandler(h), WithConversation(true))

	out, err := r.Run(context.Background(), d, "events today?")
	require.NoError(t, err)
	assert.Equal(t, "second", out.Text)
	assert.Equal(t, []string{"and tomorrow?"}, d.messages)
	assert.Len(t, h.outputs, 2)
}

func TestRunner_Drive_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewRunner(WithInputHandler(&recordingHandler{}))

	_, err := r.Drive(ctx, &fakeDriver{}, pending("web_register"))
	assert.ErrorIs(t, err, context.Canceled)
}
