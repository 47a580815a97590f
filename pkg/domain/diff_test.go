package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiff(t *testing.T) {
	t.Run("Initial Load (Old is Nil)", func(t *testing.T) {
		s := NewTaskState("run-1", "primary", nil)
		s.NextNode = "primary"
		s.Append(Message{Role: RoleUser, Content: "hi"})

		d := Diff(nil, s)
		require.NotNil(t, d)
		assert.Equal(t, "run-1", d.RunID)
		require.NotNil(t, d.NextNode)
		assert.Equal(t, "primary", *d.NextNode)
		assert.Len(t, d.Appended, 1)
		assert.Equal(t, []ContextFrame{{Name: "primary", ID: 1}}, d.ActiveContext)
	})

	t.Run("No Changes", func(t *testing.T) {
		s := NewTaskState("run-1", "primary", nil)
		assert.Nil(t, Diff(s, s.Clone()))
	})

	t.Run("Appended Messages and Entities", func(t *testing.T) {
		old := NewTaskState("run-1", "primary", nil)
		old.Append(Message{Role: RoleUser, Content: "find events"})
		_, err := old.Apply(Observation{Key: "https://a", Source: SourceSearch, Found: Bool(true)})
		require.NoError(t, err)

		next := old.Clone()
		next.Append(Message{Role: RoleAssistant, Content: "done"})
		_, err = next.Apply(Observation{Key: "https://b", Source: SourceSearch, Found: Bool(true)})
		require.NoError(t, err)

		d := Diff(old, next)
		require.NotNil(t, d)
		assert.Nil(t, d.NextNode)
		assert.Nil(t, d.ActiveContext)
		require.Len(t, d.Appended, 1)
		assert.Equal(t, 2, d.Appended[0].Seq)
		assert.Contains(t, d.Entities, "https://b")
		assert.NotContains(t, d.Entities, "https://a")
	})

	t.Run("Context Pop", func(t *testing.T) {
		old := NewTaskState("run-1", "primary", nil)
		old.Push("events")
		next := old.Clone()
		next.Pop()

		d := Diff(old, next)
		require.NotNil(t, d)
		assert.Equal(t, []ContextFrame{{Name: "primary", ID: 1}}, d.ActiveContext)
	})
}
