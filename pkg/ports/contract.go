package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/concierge/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStateStoreContract runs a suite of tests to verify that a StateStore implementation
// adheres to the defined interface contract.
func RunStateStoreContract(t *testing.T, store StateStore) {
	ctx := context.Background()
	runID := "contract-test-run-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		state := domain.NewTaskState(runID, "primary", map[string]string{"name": "Ada"})
		state.NextNode = "events"
		state.Push("events")
		state.Append(domain.Message{Role: domain.RoleUser, Content: "find an event next week"})
		state.Append(domain.Message{
			Role:     domain.RoleAssistant,
			Requests: []domain.Request{{ID: "call-1", Capability: "search_events", Args: map[string]any{"query": "go"}}},
		})
		_, err := state.Apply(domain.Observation{
			Key:        "https://events.example/1",
			Source:     domain.SourceSearch,
			Found:      domain.Bool(true),
			Registered: domain.Bool(false),
			Details:    map[string]any{"title": "GopherCon"},
		})
		require.NoError(t, err)

		err = store.Save(ctx, runID, state)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, runID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, state.NextNode, loaded.NextNode)
		assert.Equal(t, state.ActiveContext, loaded.ActiveContext)
		assert.Equal(t, state.FrameSeq, loaded.FrameSeq)
		assert.Equal(t, "Ada", loaded.UserContext["name"])
		require.Len(t, loaded.History, 2)
		assert.Equal(t, "find an event next week", loaded.History[0].Content)
		assert.Equal(t, "search_events", loaded.History[1].Requests[0].Capability)

		ent := loaded.Entities["https://events.example/1"]
		require.NotNil(t, ent)
		assert.True(t, ent.Found)
		require.NotNil(t, ent.Registered)
		assert.False(t, *ent.Registered)
		assert.Nil(t, ent.Scheduled, "unknown must survive a round trip")
		assert.Equal(t, "GopherCon", ent.Details["title"])
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+runID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, runID, domain.NewTaskState(runID, "primary", nil))
		require.NoError(t, err)

		err = store.Delete(ctx, runID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, runID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound, "Load after Delete should return ErrRunNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := runID + "-1"
		id2 := runID + "-2"
		_ = store.Save(ctx, id1, domain.NewTaskState(id1, "primary", nil))
		_ = store.Save(ctx, id2, domain.NewTaskState(id2, "primary", nil))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		runs, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, runs, id1)
		assert.Contains(t, runs, id2)
	})
}
