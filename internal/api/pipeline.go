package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"pomflow/backend/internal/logging"
	"pomflow/backend/internal/pipeline"
	"pomflow/backend/internal/repository"
)

// Server holds the dependencies for the pipeline endpoints.
type Server struct {
	Evaluator    *pipeline.Evaluator
	Snapshots    repository.SnapshotStore
	Logger       *logging.Logger
	HistoryLimit int
	// PollInterval re-evaluates a watched pipeline while no navigation
	// arrives. Zero disables polling.
	PollInterval time.Duration

	record   pipeline.CommitFunc
	upgrader websocket.Upgrader
}

// NewServer creates a new Server.
func NewServer(evaluator *pipeline.Evaluator, snapshots repository.SnapshotStore, logger *logging.Logger) *Server {
	return &Server{
		Evaluator:    evaluator,
		Snapshots:    snapshots,
		Logger:       logger,
		HistoryLimit: 20,
		record:       repository.Recorder(snapshots, logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the pipeline endpoints on g.
func (s *Server) RegisterRoutes(g *echo.Group) {
	g.GET("/projects/:projectId", s.GetPipeline)
	g.GET("/projects/:projectId/history", s.ListHistory)
	g.GET("/ws", s.WatchPipeline)
}

// PipelineResponse is the evaluated state together with its render-ready view.
type PipelineResponse struct {
	State pipeline.State      `json:"state"`
	View  []pipeline.NodeView `json:"view"`
}

func newPipelineResponse(state pipeline.State) PipelineResponse {
	return PipelineResponse{State: state, View: pipeline.View(state)}
}

// GetPipeline evaluates the pipeline of a project for the viewed section
// (GET /pipeline/projects/:projectId?section=)
func (s *Server) GetPipeline(c echo.Context) error {
	ctx := c.Request().Context()
	projectID := c.Param("projectId")
	if projectID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "project id is required")
	}

	tracker := pipeline.NewTracker(s.Evaluator, s.Logger, pipeline.WithCommitHook(s.record))
	state, err := tracker.Trigger(ctx, projectID, c.QueryParam("section"))
	if err != nil {
		// Only a canceled request gets here.
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}

	return c.JSON(http.StatusOK, newPipelineResponse(state))
}

// ListHistory returns the committed snapshots of a project, newest first
// (GET /pipeline/projects/:projectId/history?limit=)
func (s *Server) ListHistory(c echo.Context) error {
	ctx := c.Request().Context()

	limit := s.HistoryLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = n
	}

	snapshots, err := s.Snapshots.ListByProject(ctx, c.Param("projectId"), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load history: "+err.Error())
	}

	return c.JSON(http.StatusOK, snapshots)
}
