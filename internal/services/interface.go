package services

import (
	"context"
	"io"

	"pomflow/backend/pkg/models"
)

// ResourceFetcher reads the per-project collections the pipeline is derived
// from. Every method returns the backend's insertion order and an empty,
// non-nil slice when nothing exists yet. Reads are idempotent.
type ResourceFetcher interface {
	// ListElements returns the scanned UI elements of a project.
	ListElements(ctx context.Context, projectID string) ([]models.Element, error)
	// ListPoms returns every POM generated for a project.
	ListPoms(ctx context.Context, projectID string) ([]models.Pom, error)
	// ListTests returns every generated test case of a project.
	ListTests(ctx context.Context, projectID string) ([]models.TestCase, error)
	// ListExecutions returns every recorded execution of a project.
	ListExecutions(ctx context.Context, projectID string) ([]models.Execution, error)
}

// ActionTrigger starts backend work. A successful call only means the work
// was accepted; results show up in the matching collection later.
type ActionTrigger interface {
	TriggerScan(ctx context.Context, projectID string) (*models.ActionResponse, error)
	TriggerPom(ctx context.Context, projectID string) (*models.ActionResponse, error)
	TriggerTests(ctx context.Context, projectID, pomID string) (*models.ActionResponse, error)
	TriggerExecution(ctx context.Context, projectID, testID string) (*models.ActionResponse, error)
}

// UploadFile is one source file sent when creating a project.
type UploadFile struct {
	Name    string
	Content io.Reader
}

// BackendClient is the full contract of the scan/generate/execute backend.
type BackendClient interface {
	ResourceFetcher
	ActionTrigger
	ListProjects(ctx context.Context) ([]models.Project, error)
	GetProject(ctx context.Context, projectID string) (*models.Project, error)
	CreateProject(ctx context.Context, name, description string, files []UploadFile) (*models.Project, error)
	GetTestCode(ctx context.Context, testID string) (*models.TestCode, error)
}
