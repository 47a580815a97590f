// Package browser implements the register_for_event effect: a bounded
// sub-agent that drives a real browser to sign the user up for an event.
//
// The sub-agent loop alternates between a page snapshot and a planner decision
// until the planner declares the task COMPLETED or ERROR, or the turn budget
// runs out. The engine sees the whole loop as one blocking effect call.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/concierge/internal/logging"
	"github.com/aretw0/concierge/pkg/args"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/ports"
)

const (
	// DefaultMaxTurns bounds the number of planner decisions per registration.
	DefaultMaxTurns = 15

	// Completed is the termination phrase of a successful registration.
	Completed = "COMPLETED"
	// Failed prefixes the termination phrase of a failed registration.
	Failed = "ERROR"
)

// Element is an interactive element of the current page.
type Element struct {
	ID       int    `json:"id"`
	Tag      string `json:"tag"`
	Type     string `json:"type,omitempty"`
	Label    string `json:"label,omitempty"`
	Required bool   `json:"required,omitempty"`
	Checked  bool   `json:"checked,omitempty"`
}

// Snapshot is what the planner sees of the page.
type Snapshot struct {
	URL      string    `json:"url"`
	Title    string    `json:"title"`
	Text     string    `json:"text,omitempty"`
	Elements []Element `json:"elements"`
}

// Page is the browser surface the sub-agent drives.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Snapshot(ctx context.Context) (Snapshot, error)
	Click(ctx context.Context, id int) error
	Fill(ctx context.Context, id int, text string) error
	Scroll(ctx context.Context, direction string) error
	Close() error
}

// Browser opens pages.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
}

// ActionKind enumerates what the planner may ask for.
type ActionKind string

const (
	ActionClick    ActionKind = "click"
	ActionFill     ActionKind = "fill"
	ActionScroll   ActionKind = "scroll"
	ActionNavigate ActionKind = "navigate"
	ActionComplete ActionKind = "complete"
	ActionError    ActionKind = "error"
)

// Action is one planner decision.
type Action struct {
	Kind   ActionKind `json:"kind"`
	Target int        `json:"target,omitempty"`
	Text   string     `json:"text,omitempty"`
	Reason string     `json:"reason,omitempty"`
}

// Step records an action and what happened.
type Step struct {
	Action Action `json:"action"`
	Result string `json:"result"`
}

// Planner chooses the next action.
type Planner interface {
	Next(ctx context.Context, task string, steps []Step, snap Snapshot) (Action, error)
}

// RegisterArgs are the arguments of register_for_event.
type RegisterArgs struct {
	URL     string `json:"url" validate:"required,url" jsonschema:"description=The URL of the event page."`
	Request string `json:"request,omitempty" jsonschema:"description=Additional information about the registration request."`
}

// Registrar serves register_for_event.
type Registrar struct {
	browser  Browser
	planner  Planner
	profile  ports.ProfileSource
	maxTurns int
	logger   *slog.Logger
}

// Option configures the Registrar.
type Option func(*Registrar)

// WithMaxTurns overrides DefaultMaxTurns.
func WithMaxTurns(n int) Option {
	return func(r *Registrar) {
		if n > 0 {
			r.maxTurns = n
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registrar) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistrar wires the sub-agent.
func NewRegistrar(browser Browser, planner Planner, profile ports.ProfileSource, opts ...Option) *Registrar {
	r := &Registrar{
		browser:  browser,
		planner:  planner,
		profile:  profile,
		maxTurns: DefaultMaxTurns,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register runs the sub-agent for one event page.
func (r *Registrar) Register(ctx context.Context, req domain.Request) (domain.EffectResult, error) {
	var in RegisterArgs
	if err := args.Decode(req.Args, &in); err != nil {
		return domain.Failed(err.Error()), nil
	}

	var profile map[string]string
	if r.profile != nil {
		p, err := r.profile.Profile(ctx)
		if err != nil {
			return domain.EffectResult{}, fmt.Errorf("failed to load user profile: %w", err)
		}
		profile = p
	}

	page, err := r.browser.NewPage(ctx)
	if err != nil {
		return domain.EffectResult{}, fmt.Errorf("%w: browser: %v", domain.ErrServiceUnavailable, err)
	}
	defer page.Close()

	if err := page.Navigate(ctx, in.URL); err != nil {
		return domain.Failed(fmt.Sprintf("could not open %s: %v", in.URL, err)), nil
	}

	final, err := r.loop(ctx, page, Task(in.URL, in.Request, profile))
	if err != nil {
		return domain.EffectResult{}, err
	}

	registered := final == Completed
	r.logger.Info("registration finished", "url", in.URL, "registered", registered, "final", final)
	return domain.EffectResult{
		Payload: final,
		Observations: []domain.Observation{
			{Key: in.URL, Source: domain.SourceRegistration, Registered: domain.Bool(registered)},
		},
	}, nil
}

func (r *Registrar) loop(ctx context.Context, page Page, task string) (string, error) {
	var steps []Step
	for turn := 1; turn <= r.maxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		snap, err := page.Snapshot(ctx)
		if err != nil {
			return "", fmt.Errorf("%w: browser snapshot: %v", domain.ErrServiceUnavailable, err)
		}
		action, err := r.planner.Next(ctx, task, steps, snap)
		if err != nil {
			return "", fmt.Errorf("registration planner: %w", err)
		}
		r.logger.Debug("registration step", "turn", turn, "action", action.Kind, "target", action.Target)

		switch action.Kind {
		case ActionComplete:
			return Completed, nil
		case ActionError:
			return Failed + ": " + action.Reason, nil
		}

		result := "ok"
		if err := perform(ctx, page, action); err != nil {
			result = "failed: " + err.Error()
		}
		steps = append(steps, Step{Action: action, Result: result})
	}
	return fmt.Sprintf("%s: gave up after %d turns", Failed, r.maxTurns), nil
}

var errUnknownAction = errors.New("unknown action")

func perform(ctx context.Context, page Page, a Action) error {
	switch a.Kind {
	case ActionClick:
		return page.Click(ctx, a.Target)
	case ActionFill:
		return page.Fill(ctx, a.Target, a.Text)
	case ActionScroll:
		return page.Scroll(ctx, a.Text)
	case ActionNavigate:
		return page.Navigate(ctx, a.Text)
	}
	return fmt.Errorf("%w %q", errUnknownAction, a.Kind)
}

// Task renders the sub-agent instructions for one registration.
func Task(url, request string, profile map[string]string) string {
	var b strings.Builder
	b.WriteString("Register the user for the event at the specified URL:")
	if request != "" {
		fmt.Fprintf(&b, "\nRequest: %s", request)
	}
	fmt.Fprintf(&b, "\nURL: %s.", url)
	fmt.Fprintf(&b, "\nUser info: %s", profileJSON(profile))
	b.WriteString("\n\nInstructions:")
	b.WriteString("\nThe user can already be registered for the event, if so finish by calling the 'complete' tool.")
	b.WriteString("\nAssume the user is logged in to the website. If they are not, stop by calling the 'error' tool.")
	b.WriteString("\nIf you see a form to fill out along with the registration button, fill out the form with the user info and then click the button.")
	b.WriteString("\nIf you see mandatory checkboxes (marked with an asterisk), click on them to complete the registration form.")
	return b.String()
}

func profileJSON(profile map[string]string) string {
	if len(profile) == 0 {
		return "{}"
	}
	b, _ := json.Marshal(profile)
	return string(b)
}
