package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"pomflow/backend/internal/logging"
	"pomflow/backend/internal/pipeline"
	"pomflow/backend/internal/services"
)

// Server exposes the pipeline and its actions as MCP tools.
type Server struct {
	mcpServer *server.MCPServer
	evaluator *pipeline.Evaluator
	workflow  *services.WorkflowService
	logger    *logging.Logger
	onCommit  pipeline.CommitFunc

	// WaitTimeout bounds execute_test calls with wait=true.
	WaitTimeout  time.Duration
	PollInterval time.Duration
}

// NewServer creates a new Server. onCommit, when not nil, observes every
// state returned by pipeline_status.
func NewServer(evaluator *pipeline.Evaluator, workflow *services.WorkflowService, logger *logging.Logger, onCommit pipeline.CommitFunc) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"pomflow",
			"1.0.0",
			server.WithToolCapabilities(true),
		),
		evaluator:    evaluator,
		workflow:     workflow,
		logger:       logger.With("component", "mcp"),
		onCommit:     onCommit,
		WaitTimeout:  2 * time.Minute,
		PollInterval: 2 * time.Second,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_projects",
			mcp.WithDescription("List every project known to the backend"),
		),
		s.handleListProjects,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"pipeline_status",
			mcp.WithDescription("Evaluate the five-stage pipeline of a project"),
			mcp.WithString("project_id", mcp.Required(), mcp.Description("The ID of the project")),
			mcp.WithString("section", mcp.Description("The viewed dashboard section"),
				mcp.Enum("", "elements", "pom", "tests", "executions")),
		),
		s.handlePipelineStatus,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"scan_project",
			mcp.WithDescription("Scan the project source for UI elements"),
			mcp.WithString("project_id", mcp.Required(), mcp.Description("The ID of the project")),
		),
		s.handleScan,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"generate_pom",
			mcp.WithDescription("Generate a page object model from the scanned elements"),
			mcp.WithString("project_id", mcp.Required(), mcp.Description("The ID of the project")),
		),
		s.handleGeneratePom,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"generate_tests",
			mcp.WithDescription("Generate test cases against a POM"),
			mcp.WithString("project_id", mcp.Required(), mcp.Description("The ID of the project")),
			mcp.WithString("pom_id", mcp.Description("The POM to use; defaults to the most recent one")),
		),
		s.handleGenerateTests,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"execute_test",
			mcp.WithDescription("Run a generated test case"),
			mcp.WithString("project_id", mcp.Required(), mcp.Description("The ID of the project")),
			mcp.WithString("test_id", mcp.Required(), mcp.Description("The ID of the test case")),
			mcp.WithBoolean("wait", mcp.Description("Wait for the execution record before returning")),
		),
		s.handleExecuteTest,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_test_code",
			mcp.WithDescription("Return the generated script of a test case"),
			mcp.WithString("test_id", mcp.Required(), mcp.Description("The ID of the test case")),
		),
		s.handleGetTestCode,
	)
}

// pipelineStatus is the pipeline_status result.
type pipelineStatus struct {
	State pipeline.State      `json:"state"`
	View  []pipeline.NodeView `json:"view"`
}

func (s *Server) handleListProjects(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := s.workflow.Backend().ListProjects(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list projects: %v", err)), nil
	}
	return jsonResult(projects)
}

func (s *Server) handlePipelineStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, err := request.RequireString("project_id")
	if err != nil || projectID == "" {
		return mcp.NewToolResultError("Missing required parameter: project_id"), nil
	}
	section := request.GetString("section", pipeline.SectionOverview)

	var opts []pipeline.TrackerOption
	if s.onCommit != nil {
		opts = append(opts, pipeline.WithCommitHook(s.onCommit))
	}
	state, err := pipeline.NewTracker(s.evaluator, s.logger, opts...).Trigger(ctx, projectID, section)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to evaluate pipeline: %v", err)), nil
	}

	return jsonResult(pipelineStatus{State: state, View: pipeline.View(state)})
}

func (s *Server) handleScan(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, err := request.RequireString("project_id")
	if err != nil || projectID == "" {
		return mcp.NewToolResultError("Missing required parameter: project_id"), nil
	}
	return actionResult(s.workflow.Scan(ctx, projectID))
}

func (s *Server) handleGeneratePom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, err := request.RequireString("project_id")
	if err != nil || projectID == "" {
		return mcp.NewToolResultError("Missing required parameter: project_id"), nil
	}
	return actionResult(s.workflow.GeneratePom(ctx, projectID))
}

func (s *Server) handleGenerateTests(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, err := request.RequireString("project_id")
	if err != nil || projectID == "" {
		return mcp.NewToolResultError("Missing required parameter: project_id"), nil
	}
	return actionResult(s.workflow.GenerateTests(ctx, projectID, request.GetString("pom_id", "")))
}

func (s *Server) handleExecuteTest(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, err := request.RequireString("project_id")
	if err != nil || projectID == "" {
		return mcp.NewToolResultError("Missing required parameter: project_id"), nil
	}
	testID, err := request.RequireString("test_id")
	if err != nil || testID == "" {
		return mcp.NewToolResultError("Missing required parameter: test_id"), nil
	}

	if !request.GetBool("wait", false) {
		return actionResult(s.workflow.ExecuteTest(ctx, projectID, testID))
	}

	before, err := s.workflow.Backend().ListExecutions(ctx, projectID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to read executions: %v", err)), nil
	}
	if _, err := s.workflow.ExecuteTest(ctx, projectID, testID); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.WaitTimeout)
	defer cancel()
	execution, err := s.workflow.WaitForExecution(waitCtx, projectID, len(before), s.PollInterval)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to wait for execution: %v", err)), nil
	}
	return jsonResult(execution)
}

func (s *Server) handleGetTestCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	testID, err := request.RequireString("test_id")
	if err != nil || testID == "" {
		return mcp.NewToolResultError("Missing required parameter: test_id"), nil
	}
	code, err := s.workflow.Backend().GetTestCode(ctx, testID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get test code: %v", err)), nil
	}
	return mcp.NewToolResultText(code.Code), nil
}

func actionResult(resp any, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(resp)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tool result: %w", err)
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// MountHTTPHandlers serves the MCP server over SSE under /mcp.
func MountHTTPHandlers(e *echo.Echo, mcpServer *server.MCPServer, middleware ...echo.MiddlewareFunc) {
	sseServer := server.NewSSEServer(mcpServer, server.WithStaticBasePath("/mcp"))
	g := e.Group("/mcp", middleware...)

	// Direct POST for tool calls
	g.POST("", echo.WrapHandler(sseServer))
	g.Match([]string{http.MethodGet, http.MethodHead}, "", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusMethodNotAllowed, "Method not allowed")
	})

	// SSE endpoints
	g.GET("/sse", echo.WrapHandler(sseServer))
	g.POST("/message", echo.WrapHandler(sseServer))
}
