package profile_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/concierge/pkg/adapters/profile"
	"github.com/aretw0/concierge/pkg/ports"
)

var (
	_ ports.ProfileSource = profile.Static{}
	_ ports.ProfileSource = (*profile.File)(nil)
	_ ports.ProfileSource = profile.Env{}
	_ ports.ProfileSource = profile.Merged{}
)

func TestParse_Flattens(t *testing.T) {
	p, err := profile.Parse([]byte(`
name: Ada Lovelace
email: ada@example.com
age: 36
address:
  city: London
  zip: N1
languages: [en, fr]
nickname:
`))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"name":         "Ada Lovelace",
		"email":        "ada@example.com",
		"age":          "36",
		"address.city": "London",
		"address.zip":  "N1",
		"languages":    "en, fr",
	}, p)
	assert.Equal(t, []string{"address.city", "address.zip", "age", "email", "languages", "name"}, profile.Keys(p))
}

func TestParse_Invalid(t *testing.T) {
	_, err := profile.Parse([]byte("- just\n- a list"))
	assert.Error(t, err)
}

func TestFile_Profile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: Ada\n"), 0o644))

	src := profile.NewFile(path)
	p, err := src.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Ada", p["name"])

	require.NoError(t, os.WriteFile(path, []byte("name: Grace\n"), 0o644))
	p, err = src.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Grace", p["name"])

	_, err = profile.NewFile(filepath.Join(t.TempDir(), "missing.yaml")).Profile(context.Background())
	assert.Error(t, err)
}

func TestEnvAndMerged(t *testing.T) {
	t.Setenv("TEST_PROFILE_NAME", "Grace")
	t.Setenv("TEST_PROFILE_PHONE", "555-0100")

	static := profile.Static{"name": "Ada", "email": "ada@example.com"}
	merged := profile.Merged{static, profile.Env{Prefix: "TEST_PROFILE_"}}

	p, err := merged.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Grace", p["name"])
	assert.Equal(t, "ada@example.com", p["email"])
	assert.Equal(t, "555-0100", p["phone"])

	// Static sources hand out copies.
	p["email"] = "changed"
	assert.Equal(t, "ada@example.com", static["email"])
}
