package runtime

import "github.com/aretw0/concierge/pkg/domain"

// Visible returns the messages a node running on top of the current stack may see:
// those belonging to any open frame. Messages of closed sub-frames stay in the
// transcript but are hidden; their outcome reaches the parent via the exit message.
func Visible(state *domain.TaskState) []domain.Message {
	open := make(map[int]bool, len(state.ActiveContext))
	for _, f := range state.ActiveContext {
		open[f.ID] = true
	}

	out := make([]domain.Message, 0, len(state.History))
	for _, m := range state.History {
		if open[m.Frame] {
			out = append(out, m.Clone())
		}
	}
	return out
}
