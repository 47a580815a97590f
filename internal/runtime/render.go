package runtime

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/aretw0/concierge/pkg/domain"
)

// promptData is what node instructions and hand-off templates are rendered against.
type promptData struct {
	Time     string
	Node     string
	Context  string
	UserInfo map[string]string
	Entities map[string]*domain.EntityStatus
	Args     map[string]any
}

var templateFuncs = template.FuncMap{
	"json": func(v any) (string, error) {
		b, err := json.Marshal(v)
		return string(b), err
	},
	"indent": func(v any) (string, error) {
		b, err := json.MarshalIndent(v, "", "  ")
		return string(b), err
	},
	"upper": strings.ToUpper,
}

// templates holds the parsed instructions and hand-off templates of a graph.
type templates map[string]*template.Template

func parseTemplates(g *domain.Graph) (templates, error) {
	out := make(templates)
	for _, name := range g.Names() {
		n := g.Nodes[name]
		var src string
		switch n.Kind {
		case domain.NodeDecision:
			src = n.Instructions
		case domain.NodeEntry:
			src = n.Handoff
			if src == "" {
				src = defaultHandoff
			}
		default:
			continue
		}
		t, err := template.New(name).Funcs(templateFuncs).Option("missingkey=zero").Parse(src)
		if err != nil {
			return nil, fmt.Errorf("node '%s': failed to parse template: %w", name, err)
		}
		out[name] = t
	}
	return out, nil
}

func (t templates) render(node string, data promptData) (string, error) {
	tmpl, ok := t[node]
	if !ok {
		return "", nil
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("node '%s': rendering failed: %w", node, err)
	}
	return buf.String(), nil
}

func (e *Engine) promptData(node *domain.Node, state *domain.TaskState, args map[string]any) promptData {
	ctxName := ""
	if top, ok := state.Top(); ok {
		ctxName = top.Name
	}
	return promptData{
		Time:     e.now().Format(time.RFC3339),
		Node:     node.Name,
		Context:  ctxName,
		UserInfo: state.UserContext,
		Entities: state.Entities,
		Args:     args,
	}
}

// payloadText turns an effect payload into tool message content.
func payloadText(payload any) (string, error) {
	switch v := payload.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode effect payload: %w", err)
	}
	return string(b), nil
}

// errorText is the content of a failed effect result.
func errorText(cause string) string {
	return fmt.Sprintf("Error: %s\n please fix your mistakes.", cause)
}

// denialText is the synthetic tool result injected when the user denies a gated request.
func denialText(reason string) string {
	return fmt.Sprintf("API call denied by user. Reasoning: '%s'. Continue assisting, accounting for the user's input.", reason)
}

// RepromptDirective is sent once to a decision node that produced an empty output.
const RepromptDirective = "Respond with a real output."

const defaultHandoff = `The assistant is now acting as the {{.Context}} assistant. ` +
	`Review the conversation above; the user's request is not satisfied yet. ` +
	`Use your tools to make progress and signal completion or escalation when you are done. ` +
	`Do not mention the hand-off to the user.{{if .Args}} Delegated task: {{json .Args}}{{end}}`

func exitText(parent, child string, kind domain.CapabilityKind, reason string) string {
	verb := "finished"
	switch kind {
	case domain.KindComplete:
		verb = "completed"
	case domain.KindEscalate:
		verb = "was escalated"
	}
	text := fmt.Sprintf("Resuming dialog with the %s assistant. The %s task %s.", parent, child, verb)
	if reason != "" {
		text += " " + reason
	}
	return text
}
