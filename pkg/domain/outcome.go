package domain

import "fmt"

// OutcomeKind is the exit state reported to the caller of a run operation.
type OutcomeKind string

const (
	OutcomeCompleted OutcomeKind = "completed"
	OutcomePending   OutcomeKind = "pending"
	OutcomeFailed    OutcomeKind = "failed"
)

// Outcome is the result of Start, Resume or Continue.
type Outcome struct {
	RunID string      `json:"run_id"`
	Kind  OutcomeKind `json:"kind"`

	// Text is the final answer (completed).
	Text string `json:"text,omitempty"`
	// Node is the gated node awaiting approval (pending).
	Node string `json:"node,omitempty"`
	// Request is the request the gated node would serve (pending).
	Request *Request `json:"request,omitempty"`
	// Reason is the cause of the failure (failed).
	Reason string `json:"reason,omitempty"`
}

func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeCompleted:
		return fmt.Sprintf("completed(%q)", o.Text)
	case OutcomePending:
		return fmt.Sprintf("pending(%s)", o.Node)
	case OutcomeFailed:
		return fmt.Sprintf("failed(%s)", o.Reason)
	}
	return string(o.Kind)
}

// OutcomeOf derives the outcome from a checkpointed state.
func OutcomeOf(s *TaskState) Outcome {
	o := Outcome{RunID: s.RunID}
	switch s.Status {
	case StatusCompleted:
		o.Kind = OutcomeCompleted
		o.Text = s.FinalText
	case StatusPending:
		o.Kind = OutcomePending
		o.Node = s.PendingNode
		if len(s.Requests) > 0 {
			r := s.Requests[0]
			o.Request = &r
		}
	case StatusFailed:
		o.Kind = OutcomeFailed
		o.Reason = s.FailureReason
	default:
		o.Kind = OutcomeKind(s.Status)
	}
	return o
}

// Approval is the caller's answer to a pending gate.
type Approval struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason,omitempty"`
}

// Approve lets the gated node run.
func Approve() Approval { return Approval{Approved: true} }

// Deny rejects the gated request; reason is shown to the requesting decision node.
func Deny(reason string) Approval { return Approval{Reason: reason} }
