package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"pomflow/backend/internal/logging"
	"pomflow/backend/internal/services"
	"pomflow/backend/pkg/models"
)

// Observation summarises one fetched collection. Known is false when the
// fetch failed; Count and AnySuccess are meaningless in that case.
type Observation struct {
	Known      bool
	Count      int
	AnySuccess bool
}

// Unknown is the observation of a collection whose fetch failed.
var Unknown = Observation{}

// Observed returns a known observation of n records.
func Observed(n int) Observation {
	return Observation{Known: true, Count: n}
}

func (o Observation) nonEmpty() bool {
	return o.Known && o.Count > 0
}

// Observations holds the four collections one evaluation is derived from.
type Observations struct {
	Elements   Observation
	Poms       Observation
	Tests      Observation
	Executions Observation
}

// Derive applies the gating rules to a complete set of observations. It is
// pure: the same inputs always produce the same State.
//
// Each later stage is gated on the computed result of the stage before it.
// When that upstream collection is unknown the stage falls back to its own
// evidence, so a failed read never fails more than its own stage. Execute is
// gated only on execution records existing.
func Derive(projectID, section string, obs Observations) State {
	active := ActiveStageForSection(section)
	state := State{ProjectID: projectID, Section: section, ActiveStage: active}

	upload := StageResult{Stage: StageUpload, Status: StatusSucceeded}
	scan := deriveScan(obs.Elements, active)
	pom := deriveGated(StageGeneratePom, scan, obs.Poms)
	tests := deriveGated(StageGenerateTests, pom, obs.Tests)
	execute := deriveExecute(obs.Executions)

	state.Stages = [StageCount]StageResult{upload, scan, pom, tests, execute}
	return state
}

func deriveScan(elements Observation, active Stage) StageResult {
	r := StageResult{Stage: StageScan, Unknown: !elements.Known}
	switch {
	case elements.nonEmpty():
		r.Status = StatusSucceeded
	case active >= StageScan:
		r.Status = StatusFailed
	default:
		r.Status = StatusPending
	}
	return r
}

func deriveGated(stage Stage, upstream StageResult, own Observation) StageResult {
	r := StageResult{Stage: stage, Unknown: !own.Known}

	reached := upstream.Status.Succeeded() || (upstream.Unknown && own.nonEmpty())
	switch {
	case !reached:
		r.Status = StatusPending
	case own.nonEmpty():
		r.Status = StatusSucceeded
	default:
		r.Status = StatusFailed
	}
	return r
}

func deriveExecute(executions Observation) StageResult {
	r := StageResult{Stage: StageExecute, Unknown: !executions.Known}
	switch {
	case !executions.nonEmpty():
		r.Status = StatusPending
	case executions.AnySuccess:
		r.Status = StatusSucceeded
	default:
		r.Status = StatusFailed
	}
	return r
}

// ObserveExecutions summarises executions with the any-success rule: order
// does not matter and earlier failures do not mask a success.
func ObserveExecutions(executions []models.Execution) Observation {
	obs := Observed(len(executions))
	for i := range executions {
		if executions[i].Succeeded() {
			obs.AnySuccess = true
			break
		}
	}
	return obs
}

// Evaluator fetches the four collections of a project and derives its State.
type Evaluator struct {
	fetcher services.ResourceFetcher
	logger  *logging.Logger
	metrics *metrics
}

// NewEvaluator creates a new Evaluator.
func NewEvaluator(fetcher services.ResourceFetcher, logger *logging.Logger) *Evaluator {
	return &Evaluator{
		fetcher: fetcher,
		logger:  logger.With("component", "evaluator"),
		metrics: newMetrics(),
	}
}

// Evaluate reads the four collections concurrently, waits for all of them,
// then derives the State. It never fails: a failed read is logged and
// treated as an unknown collection.
func (e *Evaluator) Evaluate(ctx context.Context, projectID, section string) State {
	var obs Observations
	var g errgroup.Group

	g.Go(func() error {
		elements, err := e.fetcher.ListElements(ctx, projectID)
		obs.Elements = e.observe(ctx, projectID, "elements", len(elements), err)
		return nil
	})
	g.Go(func() error {
		poms, err := e.fetcher.ListPoms(ctx, projectID)
		obs.Poms = e.observe(ctx, projectID, "poms", len(poms), err)
		return nil
	})
	g.Go(func() error {
		tests, err := e.fetcher.ListTests(ctx, projectID)
		obs.Tests = e.observe(ctx, projectID, "tests", len(tests), err)
		return nil
	})
	g.Go(func() error {
		executions, err := e.fetcher.ListExecutions(ctx, projectID)
		obs.Executions = e.observe(ctx, projectID, "executions", len(executions), err)
		if err == nil {
			obs.Executions = ObserveExecutions(executions)
		}
		return nil
	})
	_ = g.Wait()

	return Derive(projectID, section, obs)
}

func (e *Evaluator) observe(ctx context.Context, projectID, collection string, n int, err error) Observation {
	if err != nil {
		e.logger.Warn("collection fetch failed", "project_id", projectID, "collection", collection, "error", err)
		e.metrics.fetchFailed(ctx, collection)
		return Unknown
	}
	return Observed(n)
}
