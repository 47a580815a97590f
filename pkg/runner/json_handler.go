package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/concierge/pkg/domain"
)

// JSONHandler implements the IOHandler interface for structured JSON-Lines communication.
// Every outcome is written as one line; approvals are read as
// {"approved":bool,"reason":string} lines and messages as JSON strings or raw text.
type JSONHandler struct {
	Reader  *bufio.Reader
	Writer  io.Writer
	Encoder *json.Encoder
}

// systemMessage is the line written by SystemOutput.
type systemMessage struct {
	System string `json:"system"`
}

// NewJSONHandler creates a handler for JSON IO.
func NewJSONHandler(r io.Reader, w io.Writer) *JSONHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &JSONHandler{
		Reader:  bufio.NewReader(r),
		Writer:  w,
		Encoder: json.NewEncoder(w),
	}
}

func (h *JSONHandler) Output(ctx context.Context, out domain.Outcome) error {
	return h.Encoder.Encode(out)
}

func (h *JSONHandler) readLine() (string, error) {
	text, err := h.Reader.ReadString('\n')
	if err != nil && (err != io.EOF || text == "") {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (h *JSONHandler) Input(ctx context.Context) (string, error) {
	text, err := h.readLine()
	if err != nil {
		return "", err
	}

	// Try to unquote if it's a JSON string
	var val string
	if err := json.Unmarshal([]byte(text), &val); err == nil {
		text = val
	}
	return SanitizeRequest(text)
}

func (h *JSONHandler) Approve(ctx context.Context, out domain.Outcome) (domain.Approval, error) {
	text, err := h.readLine()
	if err != nil {
		return domain.Approval{}, err
	}
	var approval domain.Approval
	if err := json.Unmarshal([]byte(text), &approval); err != nil {
		return domain.Approval{}, fmt.Errorf("failed to decode approval: %w", err)
	}
	return approval, nil
}

func (h *JSONHandler) SystemOutput(ctx context.Context, msg string) error {
	return h.Encoder.Encode(systemMessage{System: msg})
}
