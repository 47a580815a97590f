// Package openai implements ports.Decider on top of an OpenAI-compatible chat
// completion API.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/aretw0/concierge/internal/logging"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/ports"
	"github.com/sashabaranov/go-openai"
)

var _ ports.Decider = (*Decider)(nil)

// DefaultModel is used when no model is configured.
const DefaultModel = openai.GPT4oMini

// ChatClient is the subset of *openai.Client the decider needs.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Decider turns decision inputs into chat completion requests.
type Decider struct {
	client      ChatClient
	model       string
	temperature float32
	logger      *slog.Logger
}

// Config holds the connection settings of the decider.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Option configures the Decider.
type Option func(*Decider)

// WithClient replaces the HTTP client, mostly for tests.
func WithClient(c ChatClient) Option {
	return func(d *Decider) {
		d.client = c
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) Option {
	return func(d *Decider) {
		d.temperature = t
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Decider) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New creates a decider for the given configuration.
func New(cfg Config, opts ...Option) *Decider {
	d := &Decider{
		model:  cfg.Model,
		logger: logging.NewNop(),
	}
	if d.model == "" {
		d.model = DefaultModel
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.client == nil {
		d.client = NewClient(cfg)
	}
	return d
}

// NewClient builds a go-openai client honoring a custom base URL (OpenRouter,
// local gateways).
func NewClient(cfg Config) *openai.Client {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(config)
}

// Decide sends the visible history to the model and maps the reply back.
func (d *Decider) Decide(ctx context.Context, input domain.DecisionInput) (domain.DecisionOutput, error) {
	req := openai.ChatCompletionRequest{
		Model:       d.model,
		Messages:    convertMessages(input),
		Temperature: d.temperature,
	}
	if tools := convertTools(input.Capabilities); len(tools) > 0 {
		req.Tools = tools
		req.ToolChoice = "auto"
		req.ParallelToolCalls = input.Parallel
	}

	d.logger.Debug("requesting decision",
		"run_id", input.RunID,
		"node", input.Node,
		"model", d.model,
		"messages", len(req.Messages),
		"tools", len(req.Tools))

	resp, err := d.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return domain.DecisionOutput{}, classify(err)
	}
	if len(resp.Choices) == 0 {
		return domain.DecisionOutput{}, nil
	}
	return d.convertResponse(input, resp.Choices[0].Message), nil
}

func convertMessages(input domain.DecisionInput) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(input.History)+2)
	if input.Instructions != "" {
		out = append(out, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: input.Instructions,
		})
	}

	for _, m := range input.History {
		msg := openai.ChatCompletionMessage{Content: m.Content}
		switch m.Role {
		case domain.RoleUser:
			msg.Role = openai.ChatMessageRoleUser
		case domain.RoleAssistant:
			msg.Role = openai.ChatMessageRoleAssistant
			for _, r := range m.Requests {
				args, _ := json.Marshal(r.Args)
				if r.Args == nil {
					args = []byte("{}")
				}
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   r.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      r.Capability,
						Arguments: string(args),
					},
				})
			}
		case domain.RoleTool:
			msg.Role = openai.ChatMessageRoleTool
			msg.ToolCallID = m.ToolCallID
		default:
			msg.Role = openai.ChatMessageRoleSystem
		}
		out = append(out, msg)
	}

	if input.Directive != "" {
		out = append(out, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: input.Directive,
		})
	}
	return out
}

var emptyObject = map[string]any{"type": "object", "properties": map[string]any{}}

func convertTools(caps []domain.Capability) []openai.Tool {
	out := make([]openai.Tool, 0, len(caps))
	for _, c := range caps {
		params := c.Parameters
		if params == nil {
			params = emptyObject
		}
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        c.Name,
				Description: c.Description,
				Parameters:  params,
			},
		})
	}
	return out
}

func (d *Decider) convertResponse(input domain.DecisionInput, msg openai.ChatCompletionMessage) domain.DecisionOutput {
	out := domain.DecisionOutput{Text: msg.Content}
	for _, tc := range msg.ToolCalls {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				// Effects reject the request and the model sees why.
				d.logger.Warn("model produced invalid tool arguments",
					"run_id", input.RunID, "node", input.Node, "tool", tc.Function.Name, "err", err)
				args = map[string]any{"_raw": tc.Function.Arguments}
			}
		}
		out.Requests = append(out.Requests, domain.Request{
			ID:         tc.ID,
			Capability: tc.Function.Name,
			Args:       args,
		})
	}
	return out
}

// classify marks authentication and connectivity errors as service unavailable.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: model authentication failed: %v", domain.ErrServiceUnavailable, err)
		}
		return fmt.Errorf("chat completion failed: %w", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: model endpoint unreachable: %v", domain.ErrServiceUnavailable, err)
	}
	return fmt.Errorf("chat completion failed: %w", err)
}
