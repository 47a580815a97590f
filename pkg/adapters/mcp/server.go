// Package mcp exposes the concierge run API as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aretw0/concierge/internal/logging"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/runner"
)

// GraphURI is the resource exposing the graph definition.
const GraphURI = "concierge://graph"

// Engine is the run API exposed as tools. *concierge.Engine implements it.
type Engine interface {
	Start(ctx context.Context, request string) (domain.Outcome, error)
	StartWithID(ctx context.Context, runID, request string) (domain.Outcome, error)
	Resume(ctx context.Context, runID string, approval domain.Approval) (domain.Outcome, error)
	Continue(ctx context.Context, runID, message string) (domain.Outcome, error)
	Inspect(ctx context.Context, runID string) (*domain.TaskState, error)
	List(ctx context.Context) ([]string, error)
	Graph() *domain.Graph
}

// StartArgs are the arguments of start_run.
type StartArgs struct {
	Request string `json:"request"`
	RunID   string `json:"run_id,omitempty"`
}

// ResumeArgs are the arguments of resume_run.
type ResumeArgs struct {
	RunID    string `json:"run_id"`
	Approved bool   `json:"approved"`
	Reason   string `json:"reason,omitempty"`
}

// ContinueArgs are the arguments of continue_run.
type ContinueArgs struct {
	RunID   string `json:"run_id"`
	Message string `json:"message"`
}

// RunArgs identify a run.
type RunArgs struct {
	RunID string `json:"run_id"`
}

// RunSummary is the structured result of inspect_run.
type RunSummary struct {
	Outcome  domain.Outcome                  `json:"outcome" jsonschema_description:"Where the run stands"`
	Context  []string                        `json:"context" jsonschema_description:"Active delegation stack, root first"`
	Entities map[string]*domain.EntityStatus `json:"entities,omitempty" jsonschema_description:"Known events by URL"`
	Steps    int                             `json:"steps" jsonschema_description:"Node executions so far"`
}

// Server wraps the concierge and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, version string, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		mcpServer: server.NewMCPServer("concierge-mcp", strings.TrimSpace(version)),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		// Create a timeout context for the graceful shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("Shutdown signal received, shutting down server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With, Baggage, Sentry-Trace")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("start_run",
		mcp.WithDescription("Start a concierge run for an event planning request. The result is completed (with the answer), pending (a registration awaits approval) or failed."),
		mcp.WithString("request", mcp.Required(), mcp.Description("What the user wants, in natural language")),
		mcp.WithString("run_id", mcp.Description("Identifier for the run (generated when omitted)")),
		mcp.WithOutputSchema[domain.Outcome](),
	), mcp.NewStructuredToolHandler(s.handleStart))

	s.mcpServer.AddTool(mcp.NewTool("resume_run",
		mcp.WithDescription("Answer the approval gate of a pending run."),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("The pending run")),
		mcp.WithBoolean("approved", mcp.Required(), mcp.Description("Whether the gated action may run")),
		mcp.WithString("reason", mcp.Description("Why the action was denied, shown to the assistant")),
		mcp.WithOutputSchema[domain.Outcome](),
	), mcp.NewStructuredToolHandler(s.handleResume))

	s.mcpServer.AddTool(mcp.NewTool("continue_run",
		mcp.WithDescription("Send a follow-up message to a completed run."),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("The completed run")),
		mcp.WithString("message", mcp.Required(), mcp.Description("The follow-up message")),
		mcp.WithOutputSchema[domain.Outcome](),
	), mcp.NewStructuredToolHandler(s.handleContinue))

	s.mcpServer.AddTool(mcp.NewTool("inspect_run",
		mcp.WithDescription("Summarize where a run stands: outcome, delegation stack and known events."),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("The run to inspect")),
		mcp.WithOutputSchema[RunSummary](),
	), mcp.NewStructuredToolHandler(s.handleInspect))

	s.mcpServer.AddTool(mcp.NewTool("list_runs",
		mcp.WithDescription("List the identifiers of the stored runs."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ids, err := s.engine.List(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
		}
		jsonBytes, _ := json.Marshal(ids)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})
}

func (s *Server) handleStart(ctx context.Context, request mcp.CallToolRequest, args StartArgs) (domain.Outcome, error) {
	text, err := runner.SanitizeRequest(args.Request)
	if err != nil {
		s.logger.Warn("MCP start_run: input rejected", "error", err, "size", len(args.Request))
		return domain.Outcome{}, fmt.Errorf("input rejected: %w", err)
	}
	if text == "" {
		return domain.Outcome{}, errors.New("request is required")
	}
	if args.RunID != "" {
		return s.engine.StartWithID(ctx, args.RunID, text)
	}
	return s.engine.Start(ctx, text)
}

func (s *Server) handleResume(ctx context.Context, request mcp.CallToolRequest, args ResumeArgs) (domain.Outcome, error) {
	approval := domain.Approval{Approved: args.Approved}
	if !args.Approved {
		reason, err := runner.SanitizeReason(args.Reason)
		if err != nil {
			return domain.Outcome{}, fmt.Errorf("reason rejected: %w", err)
		}
		approval.Reason = reason
	}
	return s.engine.Resume(ctx, args.RunID, approval)
}

func (s *Server) handleContinue(ctx context.Context, request mcp.CallToolRequest, args ContinueArgs) (domain.Outcome, error) {
	message, err := runner.SanitizeRequest(args.Message)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("message rejected: %w", err)
	}
	if message == "" {
		return domain.Outcome{}, errors.New("message is required")
	}
	return s.engine.Continue(ctx, args.RunID, message)
}

func (s *Server) handleInspect(ctx context.Context, request mcp.CallToolRequest, args RunArgs) (RunSummary, error) {
	state, err := s.engine.Inspect(ctx, args.RunID)
	if err != nil {
		return RunSummary{}, err
	}
	summary := RunSummary{
		Outcome:  domain.OutcomeOf(state),
		Entities: state.Entities,
		Steps:    state.Steps,
	}
	for _, f := range state.ActiveContext {
		summary.Context = append(summary.Context, f.Name)
	}
	return summary, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(GraphURI, "Concierge Graph Definition",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(s.engine.Graph())
		if err != nil {
			return nil, fmt.Errorf("failed to encode graph: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      GraphURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
