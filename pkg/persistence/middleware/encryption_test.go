package middleware_test

import (
	"context"
	"crypto/rand"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/concierge/pkg/adapters/memory"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/persistence/middleware"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, 32)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func newRun(id string) *domain.TaskState {
	s := domain.NewTaskState(id, "primary", map[string]string{"email": "ada@example.com"})
	s.Append(domain.Message{Role: domain.RoleUser, Content: "find me a jazz concert"})
	return s
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := memory.NewStore()
	mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)
	secure := mw(underlying)

	ctx := context.Background()
	original := newRun("run-1")
	require.NoError(t, secure.Save(ctx, "run-1", original))

	// The underlying store only sees the envelope.
	stored, err := underlying.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.Empty(t, stored.History)
	assert.NotContains(t, stored.UserContext, "email")
	assert.Contains(t, stored.UserContext, "__encrypted__")
	assert.Equal(t, "run-1", stored.RunID)
	assert.Equal(t, domain.StatusActive, stored.Status)

	loaded, err := secure.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", loaded.UserContext["email"])
	require.Len(t, loaded.History, 1)
	assert.Equal(t, "find me a jazz concert", loaded.History[0].Content)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.NewStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)
	ctx := context.Background()

	mwOld, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})
	require.NoError(t, err)
	require.NoError(t, mwOld(underlying).Save(ctx, "rotation", newRun("rotation")))

	mwNew, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})
	require.NoError(t, err)
	rotated := mwNew(underlying)

	loaded, err := rotated.Load(ctx, "rotation")
	require.NoError(t, err, "fallback key should decrypt")
	assert.Equal(t, "ada@example.com", loaded.UserContext["email"])

	// Re-saving upgrades to the new key, so the old one alone no longer works.
	require.NoError(t, rotated.Save(ctx, "rotation", loaded))
	_, err = mwOld(underlying).Load(ctx, "rotation")
	assert.Error(t, err)
}

func TestEncryptionMiddleware_WrongKey(t *testing.T) {
	underlying := memory.NewStore()
	ctx := context.Background()

	mw1, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)
	require.NoError(t, mw1(underlying).Save(ctx, "run", newRun("run")))

	mw2, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)
	_, err = mw2(underlying).Load(ctx, "run")
	assert.Error(t, err)
}

func TestEncryptionMiddleware_RejectsPlainState(t *testing.T) {
	underlying := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, underlying.Save(ctx, "plain", newRun("plain")))

	mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)
	_, err = mw(underlying).Load(ctx, "plain")
	assert.ErrorIs(t, err, middleware.ErrNotEncrypted)
}

func TestEncryptionMiddleware_KeySize(t *testing.T) {
	_, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short")})
	assert.Error(t, err)
}

func TestEncryptionMiddleware_Passthrough(t *testing.T) {
	underlying := memory.NewStore()
	mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)
	secure := mw(underlying)
	ctx := context.Background()

	require.NoError(t, secure.Save(ctx, "a", newRun("a")))
	require.NoError(t, secure.Save(ctx, "b", newRun("b")))

	ids, err := secure.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	require.NoError(t, secure.Delete(ctx, "a"))
	_, err = secure.Load(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}
