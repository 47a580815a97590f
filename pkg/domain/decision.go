package domain

import "strings"

// DecisionInput is everything a decision node hands to the language model.
type DecisionInput struct {
	RunID string `json:"run_id"`
	Node  string `json:"node"`

	// Instructions is the rendered system prompt of the node.
	Instructions string `json:"instructions"`

	// History is filtered to the frames visible from the active context.
	History      []Message    `json:"history"`
	Capabilities []Capability `json:"capabilities"`
	Parallel     bool         `json:"parallel"`

	// Directive is an extra instruction appended for this call only (re-prompts).
	Directive string `json:"directive,omitempty"`
}

// DecisionOutput is either a final text or a set of structured requests.
type DecisionOutput struct {
	Text     string    `json:"text,omitempty"`
	Requests []Request `json:"requests,omitempty"`
}

// Empty reports whether the model produced nothing usable.
func (o DecisionOutput) Empty() bool {
	return len(o.Requests) == 0 && strings.TrimSpace(o.Text) == ""
}

// EffectResult is what an effect returns for one request.
// A non-empty Err is a recoverable failure the decision node can correct.
type EffectResult struct {
	Payload      any           `json:"payload,omitempty"`
	Err          string        `json:"error,omitempty"`
	Observations []Observation `json:"observations,omitempty"`
}

// Failed builds a recoverable failure result.
func Failed(cause string) EffectResult {
	return EffectResult{Err: cause}
}
