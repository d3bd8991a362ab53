// Package models defines the records exchanged with the scan/generate/execute backend
package models

// ExecutionStatus is the outcome of one test execution run
type ExecutionStatus string

const (
	ExecutionSuccess ExecutionStatus = "SUCCESS"
	ExecutionFailure ExecutionStatus = "FAILURE"
	ExecutionError   ExecutionStatus = "ERROR"
	ExecutionTimeout ExecutionStatus = "TIMEOUT"
)

// TestResultStatus is the outcome of a single test inside an execution
type TestResultStatus string

const (
	TestPassed  TestResultStatus = "PASSED"
	TestFailed  TestResultStatus = "FAILED"
	TestError   TestResultStatus = "ERROR"
	TestSkipped TestResultStatus = "SKIPPED"
)

// Project is an uploaded UI source bundle
type Project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	SourceFile  string `json:"source_file"`
	SourcePath  string `json:"source_path"`
	CreatedAt   string `json:"created_at"`
}

// ElementProperties holds what the scanner observed about an element
type ElementProperties struct {
	Text       string            `json:"text"`
	Attributes map[string]string `json:"attributes"`
	IsVisible  bool              `json:"is_visible"`
}

// Element is a detected interactive UI unit
type Element struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Type         string            `json:"type"` // button, input, link, ...
	Purpose      *string           `json:"purpose,omitempty"`
	Selector     string            `json:"selector"`
	SelectorType string            `json:"selector_type"`
	Properties   ElementProperties `json:"properties"`
}

// PomElement is an Element placed in a page -> element containment tree
type PomElement struct {
	Element
	ParentID *string  `json:"parent_id,omitempty"`
	Children []string `json:"children,omitempty"`
}

// Pom is a generated Page Object Model
type Pom struct {
	ID        string       `json:"id"`
	ProjectID string       `json:"project_id"`
	FilePath  string       `json:"file_path"`
	Elements  []PomElement `json:"elements"`
	CreatedAt string       `json:"created_at"`
	CodePath  *string      `json:"code_path,omitempty"`
}

// Roots returns the elements without a parent, i.e. the pages of the POM.
func (p *Pom) Roots() []PomElement {
	var roots []PomElement
	for _, el := range p.Elements {
		if el.ParentID == nil || *el.ParentID == "" {
			roots = append(roots, el)
		}
	}
	return roots
}

// TestCase is a generated test script bound to a POM
type TestCase struct {
	ID          string `json:"id"`
	ProjectID   string `json:"project_id"`
	PomID       string `json:"pom_id"`
	Name        string `json:"name"`
	ScriptPath  string `json:"script_path"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
}

// TestResult is the outcome of one test function within an execution
type TestResult struct {
	Name   string           `json:"name"`
	Status TestResultStatus `json:"status"`
}

// ExecutionResult is the payload captured from the test process
type ExecutionResult struct {
	ReturnCode int          `json:"return_code"`
	Tests      []TestResult `json:"tests"`
	Log        string       `json:"log"`
}

// Execution is one run of a TestCase
type Execution struct {
	ID         string          `json:"id"`
	ProjectID  string          `json:"project_id"`
	TestID     string          `json:"test_id"`
	Status     ExecutionStatus `json:"status"`
	Result     ExecutionResult `json:"result"`
	LogPath    string          `json:"log_path"`
	ExecutedAt string          `json:"executed_at"`
}

// Succeeded reports whether the run finished with status SUCCESS.
func (e *Execution) Succeeded() bool {
	return e.Status == ExecutionSuccess
}

// TestCode is the script source returned for a test case
type TestCode struct {
	Code string `json:"code"`
}

// ActionResponse is the acknowledgement returned by trigger endpoints.
// Completion is observed by re-reading the matching collection.
type ActionResponse struct {
	Success       bool            `json:"success"`
	Message       string          `json:"message,omitempty"`
	ElementsCount *int            `json:"elements_count,omitempty"`
	PomID         string          `json:"pom_id,omitempty"`
	TestID        string          `json:"test_id,omitempty"`
	ExecutionID   string          `json:"execution_id,omitempty"`
	Status        ExecutionStatus `json:"status,omitempty"`
}
