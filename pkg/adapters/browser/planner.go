package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// ChatClient is the subset of *openai.Client the planner needs.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

const plannerSystem = `You are a web surfer agent operating a real browser on behalf of a user.
Each turn you receive the current page: its URL, title, visible text and a numbered list of interactive elements.
Choose exactly one tool per turn. Refer to elements by their numeric id.

Guidelines:
- When filling out a form with a dropdown menu, click it first to expand the valid options, and handle one field at a time.
- Avoid typing into fields before trying to click a dropdown.
- Scroll when the element you need is not listed.

Termination:
- When the request is satisfied, call 'complete' with your reasoning.
- When it cannot be satisfied, call 'error' with the reason.`

func object(props map[string]any, required ...string) map[string]any {
	return map[string]any{"type": "object", "properties": props, "required": required}
}

var (
	idProp     = map[string]any{"type": "integer", "description": "Element id from the page listing."}
	reasonProp = map[string]any{"type": "string", "description": "Short reasoning."}

	plannerTools = []openai.Tool{
		tool("click", "Click an element.", object(map[string]any{"id": idProp}, "id")),
		tool("fill", "Type text into an input.", object(map[string]any{
			"id":   idProp,
			"text": map[string]any{"type": "string"},
		}, "id", "text")),
		tool("scroll", "Scroll the page.", object(map[string]any{
			"direction": map[string]any{"type": "string", "enum": []string{"up", "down", "top", "bottom"}},
		}, "direction")),
		tool("navigate", "Open a URL in the current tab.", object(map[string]any{
			"url": map[string]any{"type": "string"},
		}, "url")),
		tool("complete", "The request is satisfied.", object(map[string]any{"reason": reasonProp}, "reason")),
		tool("error", "The request cannot be satisfied.", object(map[string]any{"reason": reasonProp}, "reason")),
	}
)

func tool(name, description string, params map[string]any) openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        name,
			Description: description,
			Parameters:  params,
		},
	}
}

// LLMPlanner asks a chat model for the next browser action.
type LLMPlanner struct {
	client ChatClient
	model  string
}

// NewLLMPlanner creates a planner.
func NewLLMPlanner(client ChatClient, model string) *LLMPlanner {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &LLMPlanner{client: client, model: model}
}

// Next implements Planner.
func (p *LLMPlanner) Next(ctx context.Context, task string, steps []Step, snap Snapshot) (Action, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: plannerSystem},
		{Role: openai.ChatMessageRoleUser, Content: task},
	}
	for _, s := range steps {
		raw, _ := json.Marshal(s.Action)
		messages = append(messages,
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: string(raw)},
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: "Result: " + s.Result},
		)
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: describePage(snap),
	})

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:             p.model,
		Messages:          messages,
		Tools:             plannerTools,
		ToolChoice:        "required",
		ParallelToolCalls: false,
	})
	if err != nil {
		return Action{}, fmt.Errorf("planner completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Action{}, fmt.Errorf("planner returned no choices")
	}
	return parseAction(resp.Choices[0].Message)
}

func describePage(snap Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current page: [%s](%s)\n", snap.Title, snap.URL)
	if snap.Text != "" {
		fmt.Fprintf(&b, "Visible text: %s\n", snap.Text)
	}
	b.WriteString("Interactive elements:\n")
	for _, e := range snap.Elements {
		fmt.Fprintf(&b, "[%d] <%s", e.ID, e.Tag)
		if e.Type != "" {
			fmt.Fprintf(&b, " type=%s", e.Type)
		}
		b.WriteString(">")
		if e.Label != "" {
			fmt.Fprintf(&b, " %s", e.Label)
		}
		if e.Required {
			b.WriteString(" (required)")
		}
		if e.Checked {
			b.WriteString(" (checked)")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// parseAction maps the model reply to an action. A reply without a tool call is
// accepted when it mentions a termination phrase.
func parseAction(msg openai.ChatCompletionMessage) (Action, error) {
	if len(msg.ToolCalls) == 0 {
		switch {
		case strings.Contains(msg.Content, Completed):
			return Action{Kind: ActionComplete, Reason: msg.Content}, nil
		case strings.Contains(msg.Content, Failed):
			return Action{Kind: ActionError, Reason: msg.Content}, nil
		}
		return Action{}, fmt.Errorf("planner replied without an action: %q", msg.Content)
	}

	call := msg.ToolCalls[0].Function
	var in struct {
		ID        int    `json:"id"`
		Text      string `json:"text"`
		Direction string `json:"direction"`
		URL       string `json:"url"`
		Reason    string `json:"reason"`
	}
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &in); err != nil {
			return Action{}, fmt.Errorf("planner produced invalid arguments for %s: %w", call.Name, err)
		}
	}

	switch ActionKind(call.Name) {
	case ActionClick:
		return Action{Kind: ActionClick, Target: in.ID}, nil
	case ActionFill:
		return Action{Kind: ActionFill, Target: in.ID, Text: in.Text}, nil
	case ActionScroll:
		return Action{Kind: ActionScroll, Text: in.Direction}, nil
	case ActionNavigate:
		return Action{Kind: ActionNavigate, Text: in.URL}, nil
	case ActionComplete:
		return Action{Kind: ActionComplete, Reason: in.Reason}, nil
	case ActionError:
		return Action{Kind: ActionError, Reason: in.Reason}, nil
	}
	return Action{}, fmt.Errorf("planner chose unknown tool %q", call.Name)
}
