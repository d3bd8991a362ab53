package pipeline

import (
	"encoding/json"
	"fmt"
)

// Status is the evaluated outcome of a stage. Pending means the stage has not
// been reached; Succeeded and Failed both imply it has.
type Status int

const (
	StatusPending Status = iota
	StatusSucceeded
	StatusFailed
)

var statusNames = [...]string{"pending", "succeeded", "failed"}

func (s Status) String() string {
	if s >= 0 && int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Reached reports whether the stage has been entered, regardless of outcome.
func (s Status) Reached() bool {
	return s != StatusPending
}

// Succeeded reports whether the stage produced its expected artifacts.
func (s Status) Succeeded() bool {
	return s == StatusSucceeded
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(text []byte) error {
	for i, name := range statusNames {
		if name == string(text) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", string(text))
}

// StageResult is the evaluated slot of one stage. Unknown is set when the
// stage's own collection could not be fetched.
type StageResult struct {
	Stage   Stage
	Status  Status
	Unknown bool
}

type stageResultJSON struct {
	Stage     Stage  `json:"stage"`
	Status    Status `json:"status"`
	Reached   bool   `json:"reached"`
	Succeeded bool   `json:"succeeded"`
	Unknown   bool   `json:"unknown,omitempty"`
}

// MarshalJSON includes the derived reached/succeeded flags for clients that
// still consume the boolean pair.
func (r StageResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(stageResultJSON{
		Stage:     r.Stage,
		Status:    r.Status,
		Reached:   r.Status.Reached(),
		Succeeded: r.Status.Succeeded(),
		Unknown:   r.Unknown,
	})
}

// UnmarshalJSON restores a result; the boolean flags are derived, not read.
func (r *StageResult) UnmarshalJSON(data []byte) error {
	var raw stageResultJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = StageResult{Stage: raw.Stage, Status: raw.Status, Unknown: raw.Unknown}
	return nil
}

// State is the full evaluated pipeline of one project as seen from one
// section. It is recomputed wholesale on every evaluation and holds no
// timestamps, so equal inputs give equal states.
type State struct {
	ProjectID   string                  `json:"project_id"`
	Section     string                  `json:"section"`
	ActiveStage Stage                   `json:"active_stage"`
	Stages      [StageCount]StageResult `json:"stages"`
}

// Result returns the slot of the given stage.
func (s State) Result(stage Stage) StageResult {
	if !stage.Valid() {
		return StageResult{Stage: stage}
	}
	return s.Stages[stage.index()]
}

// Key identifies what an evaluation was started for.
func (s State) Key() Key {
	return Key{ProjectID: s.ProjectID, Section: s.Section}
}

// Key is the project + section pair an evaluation targets.
type Key struct {
	ProjectID string
	Section   string
}
