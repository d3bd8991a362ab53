package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pomflow/backend/internal/logging"
	"pomflow/backend/pkg/models"
)

// Action names a user-triggered pipeline step.
type Action string

const (
	ActionScan          Action = "scan"
	ActionGeneratePom   Action = "generate_pom"
	ActionGenerateTests Action = "generate_tests"
	ActionExecute       Action = "execute"
)

// ActionError reports a trigger the backend rejected or could not be reached
// for. It never changes pipeline state; the next evaluation observes whatever
// the backend actually recorded.
type ActionError struct {
	Action    Action
	ProjectID string
	Err       error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s failed for project %s: %v", e.Action, e.ProjectID, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// ErrWaitTimeout is returned when an awaited execution never shows up.
var ErrWaitTimeout = errors.New("timed out waiting for execution")

// WorkflowService runs the user-facing actions of the pipeline.
type WorkflowService struct {
	backend BackendClient
	logger  *logging.Logger
}

// NewWorkflowService creates a new WorkflowService.
func NewWorkflowService(backend BackendClient, logger *logging.Logger) *WorkflowService {
	return &WorkflowService{
		backend: backend,
		logger:  logger.With("component", "workflow"),
	}
}

// Backend exposes the underlying client for read-only callers.
func (s *WorkflowService) Backend() BackendClient {
	return s.backend
}

// Scan triggers element scanning.
func (s *WorkflowService) Scan(ctx context.Context, projectID string) (*models.ActionResponse, error) {
	resp, err := s.backend.TriggerScan(ctx, projectID)
	return s.finish(ActionScan, projectID, resp, err)
}

// GeneratePom triggers POM generation from the current elements.
func (s *WorkflowService) GeneratePom(ctx context.Context, projectID string) (*models.ActionResponse, error) {
	resp, err := s.backend.TriggerPom(ctx, projectID)
	return s.finish(ActionGeneratePom, projectID, resp, err)
}

// GenerateTests triggers test generation. With an empty pomID the most
// recent POM is used.
func (s *WorkflowService) GenerateTests(ctx context.Context, projectID, pomID string) (*models.ActionResponse, error) {
	if pomID == "" {
		pom, err := s.LatestPom(ctx, projectID)
		if err != nil {
			return s.finish(ActionGenerateTests, projectID, nil, err)
		}
		pomID = pom.ID
	}
	resp, err := s.backend.TriggerTests(ctx, projectID, pomID)
	return s.finish(ActionGenerateTests, projectID, resp, err)
}

// ExecuteTest starts one execution. The run completes asynchronously.
func (s *WorkflowService) ExecuteTest(ctx context.Context, projectID, testID string) (*models.ActionResponse, error) {
	resp, err := s.backend.TriggerExecution(ctx, projectID, testID)
	return s.finish(ActionExecute, projectID, resp, err)
}

// LatestPom returns the last POM in insertion order.
func (s *WorkflowService) LatestPom(ctx context.Context, projectID string) (*models.Pom, error) {
	poms, err := s.backend.ListPoms(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if len(poms) == 0 {
		return nil, errors.New("no POMs available")
	}
	return &poms[len(poms)-1], nil
}

// WaitForExecution polls the executions collection until it holds more than
// baseline records and returns the newest one.
func (s *WorkflowService) WaitForExecution(ctx context.Context, projectID string, baseline int, interval time.Duration) (*models.Execution, error) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		executions, err := s.backend.ListExecutions(ctx, projectID)
		if err != nil {
			s.logger.Warn("execution poll failed", "project_id", projectID, "error", err)
		} else if len(executions) > baseline {
			return &executions[len(executions)-1], nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, ErrWaitTimeout
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *WorkflowService) finish(action Action, projectID string, resp *models.ActionResponse, err error) (*models.ActionResponse, error) {
	if err != nil {
		s.logger.Error("action failed", "action", action, "project_id", projectID, "error", err)
		return nil, &ActionError{Action: action, ProjectID: projectID, Err: err}
	}
	s.logger.Info("action accepted", "action", action, "project_id", projectID)
	return resp, nil
}
