package tui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf)

	// Not a terminal: no escape sequences.
	assert.NotContains(t, buf.String(), "\x1b[")
	assert.Equal(t, 7, strings.Count(buf.String(), "\n"))
}

func TestNewRenderer(t *testing.T) {
	out, err := NewRenderer()("**Go meetup** on Thursday")
	require.NoError(t, err)
	assert.Contains(t, out, "Go meetup")
	assert.NotContains(t, out, "**")
}
