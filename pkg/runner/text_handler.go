package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/muesli/termenv"

	"github.com/aretw0/concierge/pkg/domain"
)

// ContentRenderer transforms final answers before they are printed (e.g. markdown to ANSI).
type ContentRenderer func(string) (string, error)

// TextHandler implements the standard text-based interface.
type TextHandler struct {
	Reader   *bufio.Reader
	Writer   io.Writer
	Renderer ContentRenderer

	term      *termenv.Output
	inputChan chan inputResult
	startOnce sync.Once
}

type inputResult struct {
	text string
	err  error
}

// TextHandlerOption defines configuration for TextHandler.
type TextHandlerOption func(*TextHandler)

// WithTextHandlerRenderer configures the content renderer.
func WithTextHandlerRenderer(renderer ContentRenderer) TextHandlerOption {
	return func(h *TextHandler) {
		h.Renderer = renderer
	}
}

// NewTextHandler creates a handler for standard text IO.
func NewTextHandler(r io.Reader, w io.Writer, opts ...TextHandlerOption) *TextHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	h := &TextHandler{
		Reader: bufio.NewReader(r),
		Writer: w,
		term:   termenv.NewOutput(w),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *TextHandler) initPump() {
	h.startOnce.Do(func() {
		h.inputChan = make(chan inputResult)
		go h.pump()
	})
}

// pump reads lines in the background so Input can honour cancellation.
func (h *TextHandler) pump() {
	for {
		text, err := h.Reader.ReadString('\n')
		if text != "" {
			h.inputChan <- inputResult{text: text}
		}
		if err != nil {
			if err != io.EOF {
				h.inputChan <- inputResult{err: err}
			}
			close(h.inputChan)
			return
		}
	}
}

func (h *TextHandler) Output(ctx context.Context, out domain.Outcome) error {
	switch out.Kind {
	case domain.OutcomeCompleted:
		text := out.Text
		if h.Renderer != nil {
			if rendered, err := h.Renderer(text); err == nil {
				text = rendered
			}
		}
		_, err := fmt.Fprintln(h.Writer, strings.TrimSpace(text))
		return err
	case domain.OutcomePending:
		return h.SystemOutput(ctx, "Approval required: "+describeRequest(out))
	case domain.OutcomeFailed:
		return h.SystemOutput(ctx, "Run failed: "+out.Reason)
	}
	return nil
}

func (h *TextHandler) Input(ctx context.Context) (string, error) {
	// Ensure the pump is running
	h.initPump()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
			fmt.Fprint(h.Writer, "> ")
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case res, ok := <-h.inputChan:
			if !ok {
				return "", io.EOF
			}
			if res.err != nil {
				return "", res.err
			}

			clean, err := SanitizeRequest(res.text)
			if err != nil {
				fmt.Fprintf(h.Writer, "Error: %v. Please try again.\n", err)
				continue
			}
			return clean, nil
		}
	}
}

// Approve reads "y" to approve; any other answer denies with the answer as reason.
func (h *TextHandler) Approve(ctx context.Context, out domain.Outcome) (domain.Approval, error) {
	if err := h.SystemOutput(ctx, "Type 'y' to continue; otherwise, explain your requested change."); err != nil {
		return domain.Approval{}, err
	}
	answer, err := h.Input(ctx)
	if err != nil {
		return domain.Approval{}, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return domain.Approval{Approved: true}, nil
	}
	return domain.Approval{Reason: answer}, nil
}

func (h *TextHandler) SystemOutput(ctx context.Context, msg string) error {
	_, err := fmt.Fprintf(h.Writer, "%s\n", h.term.String("[System] "+msg).Faint())
	return err
}

func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return "no arguments"
	}
	b, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("%v", args)
	}
	return string(b)
}
