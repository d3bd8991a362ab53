package render

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"pomflow/backend/internal/pipeline"
)

var sgr = regexp.MustCompile("\x1b\\[[0-9;]*m")

func TestPipeline(t *testing.T) {
	state := pipeline.Derive("shop", pipeline.SectionTests, pipeline.Observations{
		Elements:   pipeline.Observed(4),
		Poms:       pipeline.Observed(1),
		Tests:      pipeline.Observed(0),
		Executions: pipeline.Unknown,
	})

	out := sgr.ReplaceAllString(Pipeline(state), "")

	assert.Contains(t, out, "Workflow · shop")
	assert.Contains(t, out, "(✓) Scan UI Elements")
	assert.Contains(t, out, "(✗) Generate Tests")
	assert.Contains(t, out, "(5) Execute Tests")
	assert.Contains(t, out, "(status unknown)")
	assert.Equal(t, 1, strings.Count(out, "status unknown"))
	assert.Equal(t, pipeline.StageCount, strings.Count(out, "  │ "), "one description line per stage")
}
