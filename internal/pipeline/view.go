package pipeline

// Tone is the colour family a node or connector is drawn with.
type Tone string

const (
	ToneInactive Tone = "inactive"
	ToneCurrent  Tone = "current"
	ToneSuccess  Tone = "success"
	ToneError    Tone = "error"
)

// Mark is what a node shows in its circle.
type Mark string

const (
	MarkOrdinal Mark = "ordinal"
	MarkCheck   Mark = "check"
	MarkCross   Mark = "cross"
)

// StageInfo is the static presentation metadata of a stage.
type StageInfo struct {
	Stage       Stage  `json:"stage"`
	Ordinal     int    `json:"ordinal"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

var stageInfo = [StageCount]StageInfo{
	{StageUpload, 1, "Upload Source Code", "Upload your UI source code files", "upload"},
	{StageScan, 2, "Scan UI Elements", "Extract interactive elements from source", "search"},
	{StageGeneratePom, 3, "Generate POM", "Create Page Object Models", "layers"},
	{StageGenerateTests, 4, "Generate Tests", "Create test scripts with AI assistance", "code"},
	{StageExecute, 5, "Execute Tests", "Run tests and view results", "play"},
}

// Info returns the metadata of a stage.
func Info(stage Stage) StageInfo {
	if !stage.Valid() {
		return StageInfo{Stage: stage}
	}
	return stageInfo[stage.index()]
}

// NodeView is the render-ready description of one pipeline node.
type NodeView struct {
	StageInfo
	Status  Status `json:"status"`
	Unknown bool   `json:"unknown,omitempty"`
	// Active is true for every stage up to and including the viewed one.
	Active bool `json:"active"`
	// Current is true only for the viewed stage.
	Current bool `json:"current"`
	Tone    Tone `json:"tone"`
	Mark    Mark `json:"mark"`
	// Connector styles the line below this node; empty for the last node.
	Connector Tone `json:"connector,omitempty"`
}

// View projects a State onto the five nodes of the progression. Node tone
// depends on the node's own status and the active stage; the connector below
// a node depends on the next node. It owns no state.
func View(state State) []NodeView {
	nodes := make([]NodeView, 0, StageCount)
	for i, stage := range Stages {
		result := state.Stages[i]
		active := stage <= state.ActiveStage
		node := NodeView{
			StageInfo: Info(stage),
			Status:    result.Status,
			Unknown:   result.Unknown,
			Active:    active,
			Current:   stage == state.ActiveStage,
			Tone:      tone(result.Status, active),
			Mark:      mark(result.Status),
		}
		if i+1 < StageCount {
			next := Stages[i+1]
			node.Connector = tone(state.Stages[i+1].Status, next <= state.ActiveStage)
		}
		nodes = append(nodes, node)
	}
	return nodes
}

func tone(status Status, active bool) Tone {
	if !active {
		return ToneInactive
	}
	switch status {
	case StatusSucceeded:
		return ToneSuccess
	case StatusFailed:
		return ToneError
	default:
		return ToneCurrent
	}
}

func mark(status Status) Mark {
	switch status {
	case StatusSucceeded:
		return MarkCheck
	case StatusFailed:
		return MarkCross
	default:
		return MarkOrdinal
	}
}
