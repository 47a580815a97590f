package domain

import "time"

// Role identifies the author of a history message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleSystem    Role = "system"
)

// Request is a structured next-step request produced by a decision node.
type Request struct {
	// ID correlates the request with the tool message answering it.
	ID         string         `json:"id" mapstructure:"id"`
	Capability string         `json:"capability" mapstructure:"capability"`
	Args       map[string]any `json:"args,omitempty" mapstructure:"args"`

	// Retry asks the engine to re-invoke the effect once if it fails.
	Retry bool `json:"retry,omitempty" mapstructure:"retry"`
}

// Message is one entry of the run history.
// Messages are immutable once appended.
type Message struct {
	Seq        int       `json:"seq"`
	Role       Role      `json:"role"`
	Content    string    `json:"content,omitempty"`
	ToolCallID string    `json:"tool_call_id,omitempty"`
	Requests   []Request `json:"requests,omitempty"`

	// Frame is the delegation frame the message belongs to (see ContextFrame.ID).
	Frame int `json:"frame"`

	// Synthetic marks messages injected by the engine rather than produced by a node or the user.
	Synthetic bool      `json:"synthetic,omitempty"`
	IsError   bool      `json:"is_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	c := m
	if m.Requests != nil {
		c.Requests = make([]Request, len(m.Requests))
		for i, r := range m.Requests {
			c.Requests[i] = r
			c.Requests[i].Args = cloneMap(r.Args)
		}
	}
	return c
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
