package domain

import "time"

// ExecutionStatus defines the current mode of a run.
type ExecutionStatus string

const (
	StatusActive    ExecutionStatus = "active"    // Normal operation
	StatusPending   ExecutionStatus = "pending"   // Halted before a gated node, waiting for approval
	StatusCompleted ExecutionStatus = "completed" // END reached at top level
	StatusFailed    ExecutionStatus = "failed"    // Unrecoverable error
)

// ContextFrame is one level of the delegation stack.
// ID is unique within a run so messages of a closed frame never leak into a later
// frame with the same name.
type ContextFrame struct {
	Name string `json:"name"`
	ID   int    `json:"id"`
}

// Failure records the last failed effect call, used to detect repeated failures.
type Failure struct {
	Capability string `json:"capability"`
	Cause      string `json:"cause"`
}

// TaskState is the single record threaded through a run.
// It is exclusively owned by the engine; nodes receive views of it.
type TaskState struct {
	RunID string `json:"run_id"`

	// History is append-only. Use Append.
	History []Message `json:"history"`

	// UserContext is the profile fetched once at run start.
	UserContext map[string]string `json:"user_context"`

	// Entities maps an entity key (event URL) to its status.
	Entities map[string]*EntityStatus `json:"entity_status"`

	// ActiveContext is the delegation stack, top of stack last.
	ActiveContext []ContextFrame `json:"active_context"`
	FrameSeq      int            `json:"frame_seq"`

	// NextNode is the node the engine will execute next.
	NextNode string          `json:"next_node"`
	Status   ExecutionStatus `json:"status"`

	// PendingNode is the gated node awaiting approval (Status == StatusPending).
	PendingNode string `json:"pending_node,omitempty"`

	// LastDecision is the decision node that issued Requests.
	LastDecision string    `json:"last_decision,omitempty"`
	Requests     []Request `json:"requests,omitempty"`

	LastFailure   *Failure `json:"last_failure,omitempty"`
	FinalText     string   `json:"final_text,omitempty"`
	FailureReason string   `json:"failure_reason,omitempty"`

	// Steps counts node executions over the lifetime of the run.
	Steps int `json:"steps"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewTaskState creates a clean state with the root context pushed.
func NewTaskState(runID, rootContext string, profile map[string]string) *TaskState {
	s := &TaskState{
		RunID:       runID,
		History:     []Message{},
		UserContext: make(map[string]string, len(profile)),
		Entities:    make(map[string]*EntityStatus),
		Status:      StatusActive,
		CreatedAt:   time.Now().UTC(),
	}
	for k, v := range profile {
		s.UserContext[k] = v
	}
	s.Push(rootContext)
	return s
}

// Append adds a message to the history, assigning its sequence number.
// Messages without an explicit frame are attached to the top of the context stack.
func (s *TaskState) Append(msg Message) Message {
	msg.Seq = len(s.History) + 1
	if msg.Frame == 0 {
		if top, ok := s.Top(); ok {
			msg.Frame = top.ID
		}
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	msg = msg.Clone()
	s.History = append(s.History, msg)
	return msg
}

// Push opens a new delegation frame.
func (s *TaskState) Push(name string) ContextFrame {
	s.FrameSeq++
	f := ContextFrame{Name: name, ID: s.FrameSeq}
	s.ActiveContext = append(s.ActiveContext, f)
	return f
}

// Pop closes the top frame.
func (s *TaskState) Pop() (ContextFrame, bool) {
	if len(s.ActiveContext) == 0 {
		return ContextFrame{}, false
	}
	f := s.ActiveContext[len(s.ActiveContext)-1]
	s.ActiveContext = s.ActiveContext[:len(s.ActiveContext)-1]
	return f, true
}

// Top returns the authoritative frame.
func (s *TaskState) Top() (ContextFrame, bool) {
	if len(s.ActiveContext) == 0 {
		return ContextFrame{}, false
	}
	return s.ActiveContext[len(s.ActiveContext)-1], true
}

// Parent returns the frame below the top one.
func (s *TaskState) Parent() (ContextFrame, bool) {
	if len(s.ActiveContext) < 2 {
		return ContextFrame{}, false
	}
	return s.ActiveContext[len(s.ActiveContext)-2], true
}

// Terminal reports whether the run has finished (successfully or not).
func (s *TaskState) Terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}

// Clone returns a deep copy of the state.
func (s *TaskState) Clone() *TaskState {
	c := *s
	c.History = make([]Message, len(s.History))
	for i, m := range s.History {
		c.History[i] = m.Clone()
	}
	c.UserContext = make(map[string]string, len(s.UserContext))
	for k, v := range s.UserContext {
		c.UserContext[k] = v
	}
	c.Entities = make(map[string]*EntityStatus, len(s.Entities))
	for k, v := range s.Entities {
		c.Entities[k] = v.clone()
	}
	c.ActiveContext = append([]ContextFrame(nil), s.ActiveContext...)
	if s.Requests != nil {
		c.Requests = make([]Request, len(s.Requests))
		for i, r := range s.Requests {
			c.Requests[i] = r
			c.Requests[i].Args = cloneMap(r.Args)
		}
	}
	if s.LastFailure != nil {
		f := *s.LastFailure
		c.LastFailure = &f
	}
	return &c
}

// ReopenRoot restores the root frame after a completed run so a follow-up turn
// shares the original top-level conversation.
func (s *TaskState) ReopenRoot(rootContext string) {
	s.ActiveContext = []ContextFrame{{Name: rootContext, ID: 1}}
}
