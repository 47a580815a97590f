package args_test

import (
	"testing"
	"time"

	"github.com/aretw0/concierge/pkg/args"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eventArgs struct {
	Title string    `json:"title" validate:"required"`
	URL   string    `json:"url" validate:"required,url"`
	Start time.Time `json:"start" validate:"required"`
	End   time.Time `json:"end" validate:"required,gtfield=Start"`
	Size  int       `json:"size,omitempty" validate:"omitempty,min=1,max=50"`
}

func TestDecode(t *testing.T) {
	var in eventArgs
	err := args.Decode(map[string]any{
		"title": "GopherCon",
		"url":   "https://events.example/gophercon",
		"start": "2025-06-01T09:00:00Z",
		"end":   "2025-06-01T17:00:00Z",
		"size":  "5",
	}, &in)
	require.NoError(t, err)

	assert.Equal(t, "GopherCon", in.Title)
	assert.Equal(t, 5, in.Size)
	assert.Equal(t, time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC), in.Start.UTC())
	assert.Equal(t, 8*time.Hour, in.End.Sub(in.Start))
}

func TestDecode_ValidationErrors(t *testing.T) {
	var in eventArgs
	err := args.Decode(map[string]any{
		"url":   "not a url",
		"start": "2025-06-01T17:00:00Z",
		"end":   "2025-06-01T09:00:00Z",
	}, &in)
	require.Error(t, err)

	errs := args.ValidationErrors(err)
	require.Len(t, errs, 3)

	keys := map[string]string{}
	for _, e := range errs {
		var ve *args.ValidationError
		require.ErrorAs(t, e, &ve)
		keys[ve.Key] = ve.Reason
	}
	assert.Equal(t, "is required", keys["title"])
	assert.Equal(t, "must be a valid URL", keys["url"])
	assert.Equal(t, "must be after Start", keys["end"])
	assert.Contains(t, err.Error(), "3 invalid arguments")
}

func TestDecode_BadTimestamp(t *testing.T) {
	var in eventArgs
	err := args.Decode(map[string]any{
		"title": "x",
		"url":   "https://e.example",
		"start": "tomorrow",
		"end":   "2025-06-01T09:00:00Z",
	}, &in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tomorrow")
}

func TestDecode_NilArgs(t *testing.T) {
	var in struct {
		Query string `json:"query,omitempty"`
	}
	require.NoError(t, args.Decode(nil, &in))
	assert.Empty(t, in.Query)
}

func TestSchema(t *testing.T) {
	s := args.Schema(&eventArgs{})

	assert.Equal(t, "object", s["type"])
	props, ok := s["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "title")
	assert.Contains(t, props, "start")

	required, ok := s["required"].([]any)
	require.True(t, ok)
	assert.ElementsMatch(t, []any{"title", "url", "start", "end"}, required)
	assert.NotContains(t, s, "$schema")
}
