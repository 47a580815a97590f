package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecisionOutput_Empty(t *testing.T) {
	tests := []struct {
		name string
		out  DecisionOutput
		want bool
	}{
		{"zero value", DecisionOutput{}, true},
		{"ascii whitespace", DecisionOutput{Text: " \t\r\n"}, true},
		{"unicode whitespace", DecisionOutput{Text: "\u00a0\u3000\v\f"}, true},
		{"text", DecisionOutput{Text: " ok "}, false},
		{"request without text", DecisionOutput{Requests: []Request{{Capability: "search_events"}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.out.Empty())
		})
	}
}
