package middleware_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/concierge/pkg/adapters/memory"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/persistence/middleware"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	underlying := memory.NewStore()
	mw, err := middleware.NewPIIMiddleware([]string{"(?i)email", "(?i)phone"})
	require.NoError(t, err)
	store := mw(underlying)
	ctx := context.Background()

	state := domain.NewTaskState("run", "primary", map[string]string{
		"name":  "Ada",
		"email": "ada@example.com",
		"Phone": "555-0100",
	})
	state.Append(domain.Message{
		Role: domain.RoleAssistant,
		Requests: []domain.Request{{
			ID:         "call_1",
			Capability: "web_register",
			Args:       map[string]any{"request": "use ada@example.com", "form": map[string]any{"phone": "555-0100"}},
		}},
	})
	state.Append(domain.Message{Role: domain.RoleTool, ToolCallID: "call_1", Content: "registered ada@example.com"})

	require.NoError(t, store.Save(ctx, "run", state))

	stored, err := underlying.Load(ctx, "run")
	require.NoError(t, err)
	assert.Equal(t, "Ada", stored.UserContext["name"])
	assert.Equal(t, middleware.Mask, stored.UserContext["email"])
	assert.Equal(t, middleware.Mask, stored.UserContext["Phone"])
	assert.Equal(t, "registered ***", stored.History[1].Content)
	args := stored.History[0].Requests[0].Args
	assert.Equal(t, "use ***", args["request"])
	assert.Equal(t, "***", args["form"].(map[string]any)["phone"])

	// The caller's state is untouched.
	assert.Equal(t, "ada@example.com", state.UserContext["email"])
	assert.Equal(t, "registered ada@example.com", state.History[1].Content)
	assert.Equal(t, "555-0100", state.History[0].Requests[0].Args["form"].(map[string]any)["phone"])
}

func TestPIIMiddleware_InvalidPattern(t *testing.T) {
	_, err := middleware.NewPIIMiddleware([]string{"("})
	assert.Error(t, err)
}

func TestChain_PIIThenEncryption(t *testing.T) {
	underlying := memory.NewStore()
	pii, err := middleware.NewPIIMiddleware([]string{"email"})
	require.NoError(t, err)
	enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)

	store := middleware.Chain(underlying, pii, enc)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "run", newRun("run")))

	stored, err := underlying.Load(ctx, "run")
	require.NoError(t, err)
	assert.Contains(t, stored.UserContext, "__encrypted__")

	loaded, err := store.Load(ctx, "run")
	require.NoError(t, err)
	assert.Equal(t, middleware.Mask, loaded.UserContext["email"])
}
