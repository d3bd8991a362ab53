package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/oapi-codegen/runtime"

	"pomflow/backend/pkg/models"
)

// ErrNotFound is matched by a StatusError carrying HTTP 404.
var ErrNotFound = errors.New("not found")

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	Method  string
	Path    string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: status code %d: %s", e.Method, e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s %s: status code %d", e.Method, e.Path, e.Code)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.Code == http.StatusNotFound
}

// HTTPBackendClient is an HTTP implementation of the BackendClient interface.
type HTTPBackendClient struct {
	baseURL string
	client  *http.Client
}

var _ BackendClient = (*HTTPBackendClient)(nil)

// NewHTTPBackendClient creates a client for the backend rooted at baseURL
// (without the /api suffix).
func NewHTTPBackendClient(baseURL string, timeout time.Duration) *HTTPBackendClient {
	return &HTTPBackendClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// ListProjects returns all projects.
func (c *HTTPBackendClient) ListProjects(ctx context.Context) ([]models.Project, error) {
	var projects []models.Project
	if err := c.do(ctx, http.MethodGet, "/api/projects", nil, "", &projects); err != nil {
		return nil, err
	}
	return nonNil(projects), nil
}

// GetProject returns one project.
func (c *HTTPBackendClient) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	path, err := projectPath(projectID)
	if err != nil {
		return nil, err
	}
	var project models.Project
	if err := c.do(ctx, http.MethodGet, path, nil, "", &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// CreateProject uploads source files as multipart form data.
func (c *HTTPBackendClient) CreateProject(ctx context.Context, name, description string, files []UploadFile) (*models.Project, error) {
	if len(files) == 0 {
		return nil, errors.New("at least one source file is required")
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("name", name); err != nil {
		return nil, fmt.Errorf("failed to write form field: %w", err)
	}
	if err := w.WriteField("description", description); err != nil {
		return nil, fmt.Errorf("failed to write form field: %w", err)
	}
	for _, f := range files {
		part, err := w.CreateFormFile("file", f.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to create form file: %w", err)
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return nil, fmt.Errorf("failed to copy %s: %w", f.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart body: %w", err)
	}

	var project models.Project
	if err := c.do(ctx, http.MethodPost, "/api/projects", &body, w.FormDataContentType(), &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// ListElements returns the scanned elements of a project.
func (c *HTTPBackendClient) ListElements(ctx context.Context, projectID string) ([]models.Element, error) {
	var out []models.Element
	if err := c.getCollection(ctx, projectID, "elements", &out); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

// ListPoms returns the POMs of a project.
func (c *HTTPBackendClient) ListPoms(ctx context.Context, projectID string) ([]models.Pom, error) {
	var out []models.Pom
	if err := c.getCollection(ctx, projectID, "poms", &out); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

// ListTests returns the test cases of a project.
func (c *HTTPBackendClient) ListTests(ctx context.Context, projectID string) ([]models.TestCase, error) {
	var out []models.TestCase
	if err := c.getCollection(ctx, projectID, "tests", &out); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

// ListExecutions returns the executions of a project.
func (c *HTTPBackendClient) ListExecutions(ctx context.Context, projectID string) ([]models.Execution, error) {
	var out []models.Execution
	if err := c.getCollection(ctx, projectID, "executions", &out); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

// GetTestCode returns the generated script of a test case.
func (c *HTTPBackendClient) GetTestCode(ctx context.Context, testID string) (*models.TestCode, error) {
	id, err := pathParam("testId", testID)
	if err != nil {
		return nil, err
	}
	var code models.TestCode
	if err := c.do(ctx, http.MethodGet, "/api/tests/"+id+"/code", nil, "", &code); err != nil {
		return nil, err
	}
	return &code, nil
}

// TriggerScan asks the backend to scan the project source.
func (c *HTTPBackendClient) TriggerScan(ctx context.Context, projectID string) (*models.ActionResponse, error) {
	return c.trigger(ctx, projectID, nil, "scan")
}

// TriggerPom asks the backend to build a POM from the current elements.
func (c *HTTPBackendClient) TriggerPom(ctx context.Context, projectID string) (*models.ActionResponse, error) {
	return c.trigger(ctx, projectID, nil, "pom")
}

// TriggerTests asks the backend to generate tests against a POM. An empty
// pomID lets the backend fall back to the project's first POM.
func (c *HTTPBackendClient) TriggerTests(ctx context.Context, projectID, pomID string) (*models.ActionResponse, error) {
	payload := map[string]string{}
	if pomID != "" {
		payload["pom_id"] = pomID
	}
	return c.trigger(ctx, projectID, payload, "tests")
}

// TriggerExecution starts one run of a test case.
func (c *HTTPBackendClient) TriggerExecution(ctx context.Context, projectID, testID string) (*models.ActionResponse, error) {
	id, err := pathParam("testId", testID)
	if err != nil {
		return nil, err
	}
	return c.trigger(ctx, projectID, nil, "tests", id, "execute")
}

func (c *HTTPBackendClient) trigger(ctx context.Context, projectID string, payload any, segments ...string) (*models.ActionResponse, error) {
	path, err := projectPath(projectID, segments...)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	contentType := ""
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	var resp models.ActionResponse
	if err := c.do(ctx, http.MethodPost, path, body, contentType, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPBackendClient) getCollection(ctx context.Context, projectID, collection string, out any) error {
	path, err := projectPath(projectID, collection)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodGet, path, nil, "", out)
}

func (c *HTTPBackendClient) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{Method: method, Path: path, Code: resp.StatusCode}
		var envelope struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if data, readErr := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); readErr == nil {
			if json.Unmarshal(data, &envelope) == nil {
				statusErr.Message = envelope.Error
				if statusErr.Message == "" {
					statusErr.Message = envelope.Message
				}
			}
		}
		return statusErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

// projectPath builds /api/projects/{id}[/segments...] with the id encoded as
// a simple-style path parameter.
func projectPath(projectID string, segments ...string) (string, error) {
	id, err := pathParam("id", projectID)
	if err != nil {
		return "", err
	}
	path := "/api/projects/" + id
	if len(segments) > 0 {
		path += "/" + strings.Join(segments, "/")
	}
	return path, nil
}

func pathParam(name, value string) (string, error) {
	if value == "" {
		return "", fmt.Errorf("%s must not be empty", name)
	}
	encoded, err := runtime.StyleParamWithLocation("simple", false, name, runtime.ParamLocationPath, value)
	if err != nil {
		return "", fmt.Errorf("failed to encode path parameter %s: %w", name, err)
	}
	return encoded, nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
