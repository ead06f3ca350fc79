package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/charter/pkg/domain"
	"github.com/aretw0/charter/pkg/governance"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// FrameworkURI addresses the framework document resource.
const FrameworkURI = "charter://framework"

// Interpreter is the part of charter.Interpreter the MCP tools query.
type Interpreter interface {
	Model() *governance.Model
	RolesOf(ctx context.Context, participantID string) []domain.Role
	Authorize(ctx context.Context, participantID, action string) domain.Decision
	AuthorizeAs(ctx context.Context, participantID string, role domain.Role, action string) domain.Decision
	Action(name string) (domain.Action, error)
	PresentationDefinition(action string, role domain.Role) (string, error)
}

// RolesResult is the payload of the roles_of tool.
type RolesResult struct {
	Participant string        `json:"participant"`
	Roles       []domain.Role `json:"roles"`
}

// ActionResult is the payload of the resolve_action tool.
type ActionResult struct {
	Action                 domain.Action `json:"action"`
	Role                   domain.Role   `json:"role,omitempty"`
	PresentationDefinition string        `json:"presentation_definition,omitempty"`
}

// FlowSummary is one entry of the describe_flows tool.
type FlowSummary struct {
	Name       string             `json:"name"`
	Role       domain.Role        `json:"role"`
	Initial    bool               `json:"initial,omitempty"`
	Actions    []string           `json:"actions"`
	Conditions []domain.Condition `json:"conditions,omitempty"`
	Next       domain.Transitions `json:"next"`
	Reachable  []string           `json:"reachable,omitempty"`
}

// Server exposes governance queries as MCP tools. It never runs protocol actions.
type Server struct {
	interp    Interpreter
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// NewServer creates an MCP server named after the framework.
func NewServer(interp Interpreter, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{
		interp:    interp,
		mcpServer: server.NewMCPServer("charter-mcp", version),
		logger:    logger,
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves on stdin/stdout until the input closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves over SSE on addr until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())
	httpServer := &http.Server{Addr: addr, Handler: mux}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("roles_of",
		mcp.WithDescription("List the roles a participant holds in the governance framework."),
		mcp.WithString("participant", mcp.Required(), mcp.Description("Participant DID or name")),
	), s.handleRolesOf)

	s.mcpServer.AddTool(mcp.NewTool("authorize",
		mcp.WithDescription("Decide whether a participant may perform an action, with the rule-by-rule explanation."),
		mcp.WithString("participant", mcp.Required(), mcp.Description("Participant DID or name")),
		mcp.WithString("action", mcp.Required(), mcp.Description("Action name")),
		mcp.WithString("role", mcp.Description("Evaluate only this acting role (optional)")),
	), s.handleAuthorize)

	s.mcpServer.AddTool(mcp.NewTool("resolve_action",
		mcp.WithDescription("Return the protocol details of an action and the presentation definition for a role."),
		mcp.WithString("action", mcp.Required(), mcp.Description("Action name")),
		mcp.WithString("role", mcp.Description("Acting role, to select a per-role presentation definition (optional)")),
	), s.handleResolveAction)

	s.mcpServer.AddTool(mcp.NewTool("describe_flows",
		mcp.WithDescription("Describe the flow states of the framework: owner role, actions, conditions and transitions."),
	), s.handleDescribeFlows)
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(FrameworkURI, "Governance framework",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, err := json.Marshal(s.interp.Model().Framework())
		if err != nil {
			return nil, fmt.Errorf("failed to encode framework: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      FrameworkURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}

func (s *Server) handleRolesOf(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	participant, err := request.RequireString("participant")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(RolesResult{Participant: participant, Roles: s.interp.RolesOf(ctx, participant)})
}

func (s *Server) handleAuthorize(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	participant, err := request.RequireString("participant")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	action, err := request.RequireString("action")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var d domain.Decision
	if role := request.GetString("role", ""); role != "" {
		d = s.interp.AuthorizeAs(ctx, participant, domain.Role(role), action)
	} else {
		d = s.interp.Authorize(ctx, participant, action)
	}
	s.logger.Debug("MCP authorize", "decision", d.Explain())
	return jsonResult(d)
}

func (s *Server) handleResolveAction(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("action")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	a, err := s.interp.Action(name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res := ActionResult{Action: a, Role: domain.Role(request.GetString("role", ""))}
	if res.Role != "" {
		ref, err := s.interp.PresentationDefinition(name, res.Role)
		if err != nil {
			var amb *domain.AmbiguousPresentationDefinitionError
			if errors.As(err, &amb) {
				return mcp.NewToolResultError(amb.Error()), nil
			}
			return nil, err
		}
		res.PresentationDefinition = ref
	}
	return jsonResult(res)
}

func (s *Server) handleDescribeFlows(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	model := s.interp.Model()
	flows := model.Flows()
	out := make([]FlowSummary, 0, len(flows))
	for _, f := range flows {
		summary := FlowSummary{
			Name:       f.Name,
			Role:       f.Role,
			Initial:    f.Initial,
			Conditions: f.Conditions,
			Next:       f.Next,
		}
		for _, leaf := range f.Actions.Leaves() {
			summary.Actions = append(summary.Actions, leaf.Action)
		}
		if f.Initial {
			summary.Reachable = model.Reachable(f.Name)
		}
		out = append(out, summary)
	}
	return jsonResult(out)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
