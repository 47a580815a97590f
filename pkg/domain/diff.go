package domain

import (
	"reflect"
)

// StateDiff represents the changes between two checkpoints of a run.
// It is designed to be serialized to JSON for partial updates on the client.
type StateDiff struct {
	// RunID is always present to identify the target.
	RunID string `json:"run_id"`

	NextNode *string          `json:"next_node,omitempty"`
	Status   *ExecutionStatus `json:"status,omitempty"`

	// Appended contains the messages added since the previous checkpoint.
	Appended []Message `json:"appended,omitempty"`

	// Entities contains only added or changed entity statuses.
	Entities map[string]*EntityStatus `json:"entities,omitempty"`

	// ActiveContext is set when the delegation stack changed.
	ActiveContext []ContextFrame `json:"active_context,omitempty"`
}

// Diff calculates the difference between oldState and newState.
// If oldState is nil, it returns a diff representing the entire newState (initial load).
// It returns nil when nothing changed.
func Diff(oldState, newState *TaskState) *StateDiff {
	if newState == nil {
		return nil
	}

	diff := &StateDiff{RunID: newState.RunID}

	if oldState == nil || oldState.NextNode != newState.NextNode {
		next := newState.NextNode
		diff.NextNode = &next
	}
	if oldState == nil || oldState.Status != newState.Status {
		status := newState.Status
		diff.Status = &status
	}

	diff.Appended = diffHistory(oldState, newState)
	diff.Entities = diffEntities(oldState, newState)

	if oldState == nil || !reflect.DeepEqual(oldState.ActiveContext, newState.ActiveContext) {
		diff.ActiveContext = append([]ContextFrame{}, newState.ActiveContext...)
	}

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

// diffHistory relies on the append-only rule of History.
func diffHistory(old, new *TaskState) []Message {
	start := 0
	if old != nil {
		start = len(old.History)
	}
	if len(new.History) <= start {
		return nil
	}
	out := make([]Message, 0, len(new.History)-start)
	for _, m := range new.History[start:] {
		out = append(out, m.Clone())
	}
	return out
}

func diffEntities(old, new *TaskState) map[string]*EntityStatus {
	delta := make(map[string]*EntityStatus)
	for k, v := range new.Entities {
		if old != nil {
			if prev, ok := old.Entities[k]; ok && reflect.DeepEqual(prev, v) {
				continue
			}
		}
		delta[k] = v.clone()
	}
	if len(delta) == 0 {
		return nil
	}
	return delta
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *StateDiff) IsEmpty() bool {
	return d.NextNode == nil &&
		d.Status == nil &&
		len(d.Appended) == 0 &&
		len(d.Entities) == 0 &&
		d.ActiveContext == nil
}
