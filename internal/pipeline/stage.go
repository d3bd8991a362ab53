package pipeline

import (
	"fmt"
	"strings"
)

// Stage is one of the five ordered pipeline phases. The zero value is not a
// valid stage.
type Stage int

const (
	StageUpload Stage = iota + 1
	StageScan
	StageGeneratePom
	StageGenerateTests
	StageExecute
)

// StageCount is the number of pipeline stages.
const StageCount = 5

// Stages lists every stage in pipeline order.
var Stages = [StageCount]Stage{StageUpload, StageScan, StageGeneratePom, StageGenerateTests, StageExecute}

var stageNames = map[Stage]string{
	StageUpload:        "upload",
	StageScan:          "scan",
	StageGeneratePom:   "generate_pom",
	StageGenerateTests: "generate_tests",
	StageExecute:       "execute",
}

// String returns the snake_case name of the stage.
func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Valid reports whether s is one of the five stages.
func (s Stage) Valid() bool {
	return s >= StageUpload && s <= StageExecute
}

// Ordinal is the 1-based position of the stage.
func (s Stage) Ordinal() int {
	return int(s)
}

func (s Stage) index() int {
	return int(s) - 1
}

// MarshalText encodes the stage by name.
func (s Stage) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid stage %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a stage name.
func (s *Stage) UnmarshalText(text []byte) error {
	for stage, name := range stageNames {
		if name == string(text) {
			*s = stage
			return nil
		}
	}
	return fmt.Errorf("unknown stage %q", string(text))
}

// Dashboard sections. The empty section is the project overview.
const (
	SectionOverview   = ""
	SectionElements   = "elements"
	SectionPom        = "pom"
	SectionTests      = "tests"
	SectionExecutions = "executions"
)

// ActiveStageForSection maps the viewed section to the stage it highlights.
// Unrecognised sections fall back to Upload.
func ActiveStageForSection(section string) Stage {
	switch strings.ToLower(strings.Trim(section, "/ ")) {
	case SectionElements:
		return StageScan
	case SectionPom, "poms":
		return StageGeneratePom
	case SectionTests:
		return StageGenerateTests
	case SectionExecutions:
		return StageExecute
	default:
		return StageUpload
	}
}

// ParseDashboardPath splits a dashboard route of the form
// /dashboard/{projectId}[/{section}[/...]] into its project and section.
// Paths outside /dashboard yield empty strings.
func ParseDashboardPath(path string) (projectID, section string) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, part := range parts {
		if part != "dashboard" {
			continue
		}
		if i+1 < len(parts) {
			projectID = parts[i+1]
		}
		if i+2 < len(parts) {
			section = strings.ToLower(parts[i+2])
		}
		return projectID, section
	}
	return "", ""
}
