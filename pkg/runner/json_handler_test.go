package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/concierge/pkg/domain"
)

func TestJSONHandler_Output(t *testing.T) {
	buf := &bytes.Buffer{}
	h := NewJSONHandler(strings.NewReader(""), buf)

	require.NoError(t, h.Output(context.Background(), pending("web_register")))
	require.NoError(t, h.SystemOutput(context.Background(), "Request denied."))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var out domain.Outcome
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &out))
	assert.Equal(t, domain.OutcomePending, out.Kind)
	assert.Equal(t, "web_register", out.Node)
	assert.Equal(t, "register_for_event", out.Request.Capability)
	assert.JSONEq(t, `{"system":"Request denied."}`, lines[1])
}

func TestJSONHandler_Input(t *testing.T) {
	h := NewJSONHandler(strings.NewReader("\"quoted\"\nraw text"), nil)

	in, err := h.Input(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "quoted", in)

	in, err = h.Input(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "raw text", in)
}

func TestJSONHandler_Approve(t *testing.T) {
	h := NewJSONHandler(strings.NewReader("{\"approved\":false,\"reason\":\"later\"}\nnope\n"), nil)

	a, err := h.Approve(context.Background(), pending("web_register"))
	require.NoError(t, err)
	assert.Equal(t, domain.Approval{Reason: "later"}, a)

	_, err = h.Approve(context.Background(), pending("web_register"))
	assert.Error(t, err)
}
