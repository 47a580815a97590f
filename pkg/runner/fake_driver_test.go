package runner

import (
	"context"
	"fmt"

	"github.com/aretw0/concierge/pkg/domain"
)

// fakeDriver replays scripted outcomes and records the calls it received.
type fakeDriver struct {
	outcomes  []domain.Outcome
	starts    []string
	approvals []domain.Approval
	messages  []string
}

func (f *fakeDriver) next() (domain.Outcome, error) {
	if len(f.outcomes) == 0 {
		return domain.Outcome{}, fmt.Errorf("fake driver exhausted")
	}
	out := f.outcomes[0]
	f.outcomes = f.outcomes[1:]
	return out, nil
}

func (f *fakeDriver) Start(ctx context.Context, request string) (domain.Outcome, error) {
	f.starts = append(f.starts, request)
	return f.next()
}

func (f *fakeDriver) Resume(ctx context.Context, runID string, approval domain.Approval) (domain.Outcome, error) {
	f.approvals = append(f.approvals, approval)
	return f.next()
}

func (f *fakeDriver) Continue(ctx context.Context, runID, message string) (domain.Outcome, error) {
	f.messages = append(f.messages, message)
	return f.next()
}

// recordingHandler captures outputs and answers inputs from a queue.
type recordingHandler struct {
	outputs   []domain.Outcome
	system    []string
	inputs    []string
	approvals []domain.Approval
}

func (h *recordingHandler) Output(ctx context.Context, out domain.Outcome) error {
	h.outputs = append(h.outputs, out)
	return nil
}

func (h *recordingHandler) Input(ctx context.Context) (string, error) {
	if len(h.inputs) == 0 {
		return "", errEOF
	}
	in := h.inputs[0]
	h.inputs = h.inputs[1:]
	return in, nil
}

func (h *recordingHandler) Approve(ctx context.Context, out domain.Outcome) (domain.Approval, error) {
	if len(h.approvals) == 0 {
		return domain.Approval{}, fmt.Errorf("unexpected approval for %s", out.Node)
	}
	a := h.approvals[0]
	h.approvals = h.approvals[1:]
	return a, nil
}

func (h *recordingHandler) SystemOutput(ctx context.Context, msg string) error {
	h.system = append(h.system, msg)
	return nil
}

func completed(text string) domain.Outcome {
	return domain.Outcome{RunID: "r1", Kind: domain.OutcomeCompleted, Text: text}
}

func pending(node string) domain.Outcome {
	return domain.Outcome{
		RunID:   "r1",
		Kind:    domain.OutcomePending,
		Node:    node,
		Request: &domain.Request{ID: "c1", Capability: "register_for_event", Args: map[string]any{"url": "https://example.com"}},
	}
}
