package runtime_test

import (
	"testing"

	"github.com/aretw0/concierge/internal/runtime"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVisible(t *testing.T) {
	s := domain.NewTaskState("run-1", "primary", nil)
	s.Append(domain.Message{Role: domain.RoleUser, Content: "hi"})
	s.Push("registration")
	s.Append(domain.Message{Role: domain.RoleAssistant, Content: "inside"})

	got := runtime.Visible(s)
	require.Len(t, got, 2)

	s.Pop()
	s.Push("registration")
	s.Append(domain.Message{Role: domain.RoleAssistant, Content: "second visit"})

	got = runtime.Visible(s)
	require.Len(t, got, 2)
	assert.Equal(t, "hi", got[0].Content)
	assert.Equal(t, "second visit", got[1].Content)
	assert.Equal(t, 3, got[1].Frame)
}

func TestVisible_ReturnsCopies(t *testing.T) {
	s := domain.NewTaskState("run-1", "primary", nil)
	s.Append(domain.Message{
		Role:     domain.RoleAssistant,
		Requests: []domain.Request{{ID: "c1", Capability: "search_events", Args: map[string]any{"q": "go"}}},
	})

	got := runtime.Visible(s)
	got[0].Requests[0].Args["q"] = "rust"
	got[0].Content = "changed"

	assert.Equal(t, "go", s.History[0].Requests[0].Args["q"])
	assert.Empty(t, s.History[0].Content)
}
