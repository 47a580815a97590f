package browser

import (
	"context"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChat struct {
	got  openai.ChatCompletionRequest
	resp openai.ChatCompletionMessage
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.got = req
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{Message: f.resp}}}, nil
}

func toolCall(name, args string) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{ToolCalls: []openai.ToolCall{
		{ID: "t1", Type: openai.ToolTypeFunction, Function: openai.FunctionCall{Name: name, Arguments: args}},
	}}
}

func TestLLMPlanner_Next(t *testing.T) {
	chat := &fakeChat{resp: toolCall("fill", `{"id":3,"text":"Ada"}`)}
	p := NewLLMPlanner(chat, "m")

	action, err := p.Next(context.Background(), "register", []Step{
		{Action: Action{Kind: ActionClick, Target: 1}, Result: "ok"},
	}, Snapshot{
		URL:      "https://lu.ma/a",
		Title:    "AI Night",
		Elements: []Element{{ID: 3, Tag: "input", Type: "text", Label: "Name", Required: true}},
	})
	require.NoError(t, err)
	assert.Equal(t, Action{Kind: ActionFill, Target: 3, Text: "Ada"}, action)

	msgs := chat.got.Messages
	require.Len(t, msgs, 5)
	assert.Equal(t, "register", msgs[1].Content)
	assert.Equal(t, "Result: ok", msgs[3].Content)
	assert.Contains(t, msgs[4].Content, "[3] <input type=text> Name (required)")
	assert.Len(t, chat.got.Tools, 6)
}

func TestParseAction(t *testing.T) {
	tests := []struct {
		name string
		msg  openai.ChatCompletionMessage
		want Action
	}{
		{"click", toolCall("click", `{"id":2}`), Action{Kind: ActionClick, Target: 2}},
		{"scroll", toolCall("scroll", `{"direction":"down"}`), Action{Kind: ActionScroll, Text: "down"}},
		{"navigate", toolCall("navigate", `{"url":"https://x.example"}`), Action{Kind: ActionNavigate, Text: "https://x.example"}},
		{"complete", toolCall("complete", `{"reason":"done"}`), Action{Kind: ActionComplete, Reason: "done"}},
		{"error", toolCall("error", `{"reason":"login"}`), Action{Kind: ActionError, Reason: "login"}},
		{"plain completed", openai.ChatCompletionMessage{Content: "COMPLETED"}, Action{Kind: ActionComplete, Reason: "COMPLETED"}},
		{"plain error", openai.ChatCompletionMessage{Content: "ERROR: captcha"}, Action{Kind: ActionError, Reason: "ERROR: captcha"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAction(tt.msg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := parseAction(openai.ChatCompletionMessage{Content: "hmm"})
	assert.Error(t, err)
	_, err = parseAction(toolCall("dance", `{}`))
	assert.Error(t, err)
}
