// Package testutils provides deterministic stand-ins for the language model and
// external services used across the engine tests.
package testutils

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/concierge/pkg/domain"
)

// ScriptedDecider replays canned outputs per decision node, in order.
type ScriptedDecider struct {
	mu     sync.Mutex
	script map[string][]domain.DecisionOutput
	calls  []domain.DecisionInput
}

// NewScriptedDecider creates an empty script.
func NewScriptedDecider() *ScriptedDecider {
	return &ScriptedDecider{script: make(map[string][]domain.DecisionOutput)}
}

// On queues outputs for a node.
func (d *ScriptedDecider) On(node string, outs ...domain.DecisionOutput) *ScriptedDecider {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.script[node] = append(d.script[node], outs...)
	return d
}

// Decide pops the next output scripted for input.Node.
func (d *ScriptedDecider) Decide(ctx context.Context, input domain.DecisionInput) (domain.DecisionOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, input)

	queue := d.script[input.Node]
	if len(queue) == 0 {
		return domain.DecisionOutput{}, fmt.Errorf("no scripted output left for node %q", input.Node)
	}
	out := queue[0]
	d.script[input.Node] = queue[1:]
	return out, nil
}

// Calls returns every input received so far.
func (d *ScriptedDecider) Calls() []domain.DecisionInput {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.DecisionInput(nil), d.calls...)
}

// CallsFor returns the inputs received by one node.
func (d *ScriptedDecider) CallsFor(node string) []domain.DecisionInput {
	var out []domain.DecisionInput
	for _, c := range d.Calls() {
		if c.Node == node {
			out = append(out, c)
		}
	}
	return out
}

// Remaining reports how many scripted outputs were not consumed.
func (d *ScriptedDecider) Remaining() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, q := range d.script {
		n += len(q)
	}
	return n
}

// Say is a final text output.
func Say(text string) domain.DecisionOutput {
	return domain.DecisionOutput{Text: text}
}

// Call is an output with one request.
func Call(id, capability string, args map[string]any) domain.DecisionOutput {
	return domain.DecisionOutput{Requests: []domain.Request{{ID: id, Capability: capability, Args: args}}}
}

// Empty is an output with neither text nor requests.
func Empty() domain.DecisionOutput {
	return domain.DecisionOutput{}
}
