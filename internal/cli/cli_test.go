package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/concierge/internal/agents"
	"github.com/aretw0/concierge/internal/config"
	"github.com/aretw0/concierge/internal/testutils"
	"github.com/aretw0/concierge/pkg/domain"
)

type fakeRegistrar struct{ urls []string }

func (f *fakeRegistrar) Register(ctx context.Context, req domain.Request) (domain.EffectResult, error) {
	url, _ := req.Args["url"].(string)
	f.urls = append(f.urls, url)
	return domain.EffectResult{Payload: "Registration confirmed for " + url}, nil
}

// setup isolates the working directory and writes a file-backed config.
func setup(t *testing.T) string {
	dir := t.TempDir()
	t.Chdir(dir)
	cfg := "log_level: error\nstore:\n  driver: file\n  path: " + filepath.Join(dir, "runs") + "\nprofile:\n  values:\n    name: Ada\n"
	path := filepath.Join(dir, "concierge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

func buildOpts(d *testutils.ScriptedDecider, reg *fakeRegistrar) []BuildOption {
	return []BuildOption{
		WithDecider(d),
		WithServices(agents.Services{Registrar: reg}),
		WithLogWriter(io.Discard),
	}
}

func TestExecute_Completes(t *testing.T) {
	path := setup(t)
	d := testutils.NewScriptedDecider().On(agents.NodePrimary, testutils.Say("Hello Ada"))
	out := &bytes.Buffer{}

	err := Execute(RunOptions{
		ConfigPath:   path,
		RunID:        "r1",
		Request:      "hi",
		In:           strings.NewReader(""),
		Out:          out,
		BuildOptions: buildOpts(d, &fakeRegistrar{}),
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Hello Ada")

	sessions := SessionOptions{ConfigPath: path, Out: &bytes.Buffer{}, BuildOptions: buildOpts(d, &fakeRegistrar{})}
	require.NoError(t, ListRuns(context.Background(), sessions))
	assert.Contains(t, sessions.Out.(*bytes.Buffer).String(), `- r1 completed("Hello Ada")`)

	inspect := sessions
	inspect.Out = &bytes.Buffer{}
	require.NoError(t, InspectRun(context.Background(), inspect, "r1"))
	assert.Contains(t, inspect.Out.(*bytes.Buffer).String(), `"run_id": "r1"`)

	rm := sessions
	rm.Out = &bytes.Buffer{}
	require.NoError(t, RemoveRuns(context.Background(), rm, []string{"r1"}))
	assert.Contains(t, rm.Out.(*bytes.Buffer).String(), "Removed run 'r1'")
	assert.Error(t, InspectRun(context.Background(), rm, "r1"))
}

func TestExecute_ReadsRequestFromInput(t *testing.T) {
	path := setup(t)
	d := testutils.NewScriptedDecider().On(agents.NodePrimary, testutils.Say("Sure"))
	out := &bytes.Buffer{}

	err := Execute(RunOptions{
		ConfigPath:   path,
		In:           strings.NewReader("what is on today?\n"),
		Out:          out,
		BuildOptions: buildOpts(d, &fakeRegistrar{}),
	})
	require.NoError(t, err)

	calls := d.CallsFor(agents.NodePrimary)
	require.Len(t, calls, 1)
	last := calls[0].History[len(calls[0].History)-1]
	assert.Equal(t, "what is on today?", last.Content)
}

func TestExecute_FailedRunIsAnError(t *testing.T) {
	path := setup(t)
	d := testutils.NewScriptedDecider() // nothing scripted: the decision fails

	err := Execute(RunOptions{
		ConfigPath:   path,
		RunID:        "r1",
		Request:      "hi",
		JSON:         true,
		In:           strings.NewReader(""),
		Out:          io.Discard,
		BuildOptions: buildOpts(d, &fakeRegistrar{}),
	})
	assert.ErrorContains(t, err, "run r1 failed")
}

func TestResume_ApproveAndContinue(t *testing.T) {
	path := setup(t)
	reg := &fakeRegistrar{}
	d := testutils.NewScriptedDecider().
		On(agents.NodePrimary,
			testutils.Call("c1", agents.CapToRegistration, map[string]any{"url": "https://example.com/e/1"}),
			testutils.Say("You are registered."),
			testutils.Say("It starts at 7pm."),
		).
		On(agents.NodeRegistration,
			testutils.Call("c2", agents.CapRegister, map[string]any{"url": "https://example.com/e/1"}),
			testutils.Call("c3", agents.CapCompleteRegistration, map[string]any{"reason": "done"}),
		)

	// JSON mode with no input: the gate stays pending.
	out := &bytes.Buffer{}
	err := Execute(RunOptions{
		ConfigPath:   path,
		RunID:        "r1",
		Request:      "register me",
		JSON:         true,
		In:           strings.NewReader(""),
		Out:          out,
		BuildOptions: buildOpts(d, reg),
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), `"kind":"pending"`)
	assert.Empty(t, reg.urls)

	out.Reset()
	err = Resume(RunOptions{
		ConfigPath:   path,
		RunID:        "r1",
		Approve:      true,
		In:           strings.NewReader(""),
		Out:          out,
		BuildOptions: buildOpts(d, reg),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/e/1"}, reg.urls)
	assert.Contains(t, out.String(), "You are registered.")

	out.Reset()
	err = Continue(RunOptions{
		ConfigPath:   path,
		RunID:        "r1",
		Request:      "when does it start?",
		In:           strings.NewReader(""),
		Out:          out,
		BuildOptions: buildOpts(d, reg),
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "It starts at 7pm.")
	assert.Equal(t, 0, d.Remaining())
}

func TestResume_ConflictingFlags(t *testing.T) {
	err := Resume(RunOptions{RunID: "r1", Approve: true, Deny: "no"})
	assert.Error(t, err)
}

func TestPrintGraph(t *testing.T) {
	out := &bytes.Buffer{}
	require.NoError(t, PrintGraph(context.Background(), SessionOptions{Out: out}, ""))
	assert.Contains(t, out.String(), "web_register[[\"web_register <br/> 🔒 approval\"]]")
}

func TestBuild_Wiring(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Driver = "memory"
	cfg.Security.PIIPatterns = []string{"email"}
	cfg.Security.EncryptionKey = "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY="

	stack, err := Build(cfg, WithRegisterer(prometheus.NewRegistry()), WithLogWriter(io.Discard))
	require.NoError(t, err)
	defer stack.Close()

	assert.NotNil(t, stack.Engine)
	assert.NotNil(t, stack.Metrics)
	assert.NotNil(t, stack.Journal)
}

func TestBuild_InvalidPIIPattern(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Driver = "memory"
	cfg.Security.PIIPatterns = []string{"("}

	_, err := Build(cfg, WithLogWriter(io.Discard))
	assert.Error(t, err)
}
