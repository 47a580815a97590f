package browser_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aretw0/concierge/pkg/adapters/browser"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePage struct {
	visited []string
	clicks  []int
	fills   map[int]string
	closed  bool
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	p.visited = append(p.visited, url)
	return nil
}

func (p *fakePage) Snapshot(context.Context) (browser.Snapshot, error) {
	return browser.Snapshot{
		URL:   p.visited[len(p.visited)-1],
		Title: "Event",
		Elements: []browser.Element{
			{ID: 0, Tag: "input", Type: "email", Label: "Email", Required: true},
			{ID: 1, Tag: "button", Label: "Register"},
		},
	}, nil
}

func (p *fakePage) Click(_ context.Context, id int) error {
	if id > 1 {
		return fmt.Errorf("no element with id %d", id)
	}
	p.clicks = append(p.clicks, id)
	return nil
}

func (p *fakePage) Fill(_ context.Context, id int, text string) error {
	if p.fills == nil {
		p.fills = map[int]string{}
	}
	p.fills[id] = text
	return nil
}

func (p *fakePage) Scroll(context.Context, string) error { return nil }

func (p *fakePage) Close() error {
	p.closed = true
	return nil
}

type fakeBrowser struct {
	page *fakePage
	err  error
}

func (b *fakeBrowser) NewPage(context.Context) (browser.Page, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.page, nil
}

type scriptedPlanner struct {
	actions []browser.Action
	tasks   []string
	seen    [][]browser.Step
}

func (p *scriptedPlanner) Next(_ context.Context, task string, steps []browser.Step, _ browser.Snapshot) (browser.Action, error) {
	p.tasks = append(p.tasks, task)
	p.seen = append(p.seen, append([]browser.Step(nil), steps...))
	if len(p.actions) == 0 {
		return browser.Action{Kind: browser.ActionScroll, Text: "down"}, nil
	}
	a := p.actions[0]
	p.actions = p.actions[1:]
	return a, nil
}

type staticProfile map[string]string

func (s staticProfile) Profile(context.Context) (map[string]string, error) { return s, nil }

func registerReq(url string) domain.Request {
	return domain.Request{ID: "r1", Capability: "register_for_event", Args: map[string]any{"url": url}}
}

func TestRegister_Completed(t *testing.T) {
	page := &fakePage{}
	planner := &scriptedPlanner{actions: []browser.Action{
		{Kind: browser.ActionFill, Target: 0, Text: "ada@example.com"},
		{Kind: browser.ActionClick, Target: 1},
		{Kind: browser.ActionComplete, Reason: "Confirmation shown"},
	}}
	r := browser.NewRegistrar(&fakeBrowser{page: page}, planner, staticProfile{"email": "ada@example.com"})

	res, err := r.Register(context.Background(), registerReq("https://lu.ma/a"))
	require.NoError(t, err)
	assert.Equal(t, browser.Completed, res.Payload)
	require.Len(t, res.Observations, 1)
	assert.Equal(t, domain.SourceRegistration, res.Observations[0].Source)
	assert.True(t, *res.Observations[0].Registered)

	assert.Equal(t, []string{"https://lu.ma/a"}, page.visited)
	assert.Equal(t, "ada@example.com", page.fills[0])
	assert.Equal(t, []int{1}, page.clicks)
	assert.True(t, page.closed)

	assert.Contains(t, planner.tasks[0], "URL: https://lu.ma/a.")
	assert.Contains(t, planner.tasks[0], `"email":"ada@example.com"`)
	require.Len(t, planner.seen, 3)
	assert.Len(t, planner.seen[2], 2)
}

func TestRegister_ErrorPhrase(t *testing.T) {
	planner := &scriptedPlanner{actions: []browser.Action{
		{Kind: browser.ActionError, Reason: "user is not logged in"},
	}}
	r := browser.NewRegistrar(&fakeBrowser{page: &fakePage{}}, planner, nil)

	res, err := r.Register(context.Background(), registerReq("https://lu.ma/a"))
	require.NoError(t, err)
	assert.Equal(t, "ERROR: user is not logged in", res.Payload)
	assert.False(t, *res.Observations[0].Registered)
}

func TestRegister_TurnLimit(t *testing.T) {
	planner := &scriptedPlanner{}
	r := browser.NewRegistrar(&fakeBrowser{page: &fakePage{}}, planner, nil, browser.WithMaxTurns(4))

	res, err := r.Register(context.Background(), registerReq("https://lu.ma/a"))
	require.NoError(t, err)
	assert.Equal(t, "ERROR: gave up after 4 turns", res.Payload)
	assert.Len(t, planner.tasks, 4)
	assert.False(t, *res.Observations[0].Registered)
}

func TestRegister_DefaultTurnLimit(t *testing.T) {
	planner := &scriptedPlanner{}
	r := browser.NewRegistrar(&fakeBrowser{page: &fakePage{}}, planner, nil)

	_, err := r.Register(context.Background(), registerReq("https://lu.ma/a"))
	require.NoError(t, err)
	assert.Len(t, planner.tasks, browser.DefaultMaxTurns)
}

func TestRegister_ActionFailuresAreFedBack(t *testing.T) {
	planner := &scriptedPlanner{actions: []browser.Action{
		{Kind: browser.ActionClick, Target: 7},
		{Kind: browser.ActionComplete},
	}}
	r := browser.NewRegistrar(&fakeBrowser{page: &fakePage{}}, planner, nil)

	_, err := r.Register(context.Background(), registerReq("https://lu.ma/a"))
	require.NoError(t, err)
	require.Len(t, planner.seen[1], 1)
	assert.Contains(t, planner.seen[1][0].Result, "failed: no element with id 7")
}

func TestRegister_InvalidArgs(t *testing.T) {
	r := browser.NewRegistrar(&fakeBrowser{page: &fakePage{}}, &scriptedPlanner{}, nil)

	res, err := r.Register(context.Background(), domain.Request{Args: map[string]any{"url": "lu.ma"}})
	require.NoError(t, err)
	assert.Contains(t, res.Err, "must be a valid URL")
}

func TestRegister_BrowserUnavailable(t *testing.T) {
	r := browser.NewRegistrar(&fakeBrowser{err: errors.New("connection refused")}, &scriptedPlanner{}, nil)

	_, err := r.Register(context.Background(), registerReq("https://lu.ma/a"))
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
}

func TestTask(t *testing.T) {
	task := browser.Task("https://lu.ma/a", "bring a friend", nil)
	assert.Contains(t, task, "Request: bring a friend")
	assert.Contains(t, task, "User info: {}")
	assert.Contains(t, task, "mandatory checkboxes")
}
