package middleware

import (
	"context"
	"regexp"
	"strings"

	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/ports"
)

// Mask replaces masked values in persisted state.
const Mask = "***"

type piiMiddleware struct {
	next     ports.StateStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks user profile fields whose
// key matches one of the patterns. The masked values are also scrubbed from the
// persisted transcript. Masking is one-way: loaded states only carry the mask.
func NewPIIMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		patterns[i] = re
	}
	return func(next ports.StateStore) ports.StateStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *piiMiddleware) Save(ctx context.Context, runID string, state *domain.TaskState) error {
	// 1. Work on a copy; the engine keeps using the original.
	cloned := state.Clone()

	// 2. Mask profile fields, remembering the secrets.
	var secrets []string
	for k, v := range cloned.UserContext {
		if v == "" || v == Mask || !m.sensitive(k) {
			continue
		}
		secrets = append(secrets, v)
		cloned.UserContext[k] = Mask
	}

	// 3. Scrub them from messages and request arguments.
	if len(secrets) > 0 {
		r := replacer(secrets)
		for i := range cloned.History {
			msg := &cloned.History[i]
			msg.Content = r.Replace(msg.Content)
			for j := range msg.Requests {
				msg.Requests[j].Args = scrubArgs(msg.Requests[j].Args, r)
			}
		}
		for i := range cloned.Requests {
			cloned.Requests[i].Args = scrubArgs(cloned.Requests[i].Args, r)
		}
		cloned.FinalText = r.Replace(cloned.FinalText)
	}

	return m.next.Save(ctx, runID, cloned)
}

func (m *piiMiddleware) sensitive(key string) bool {
	for _, p := range m.patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}

func replacer(secrets []string) *strings.Replacer {
	pairs := make([]string, 0, len(secrets)*2)
	for _, s := range secrets {
		pairs = append(pairs, s, Mask)
	}
	return strings.NewReplacer(pairs...)
}

// scrubArgs returns a scrubbed copy; nested maps are shared with the caller's state.
func scrubArgs(args map[string]any, r *strings.Replacer) map[string]any {
	if args == nil {
		return nil
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		switch val := v.(type) {
		case string:
			out[k] = r.Replace(val)
		case map[string]any:
			out[k] = scrubArgs(val, r)
		default:
			out[k] = v
		}
	}
	return out
}

func (m *piiMiddleware) Load(ctx context.Context, runID string) (*domain.TaskState, error) {
	return m.next.Load(ctx, runID)
}

func (m *piiMiddleware) Delete(ctx context.Context, runID string) error {
	return m.next.Delete(ctx, runID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}
