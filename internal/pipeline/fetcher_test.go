package pipeline

import (
	"context"
	"errors"
	"sync"

	"pomflow/backend/pkg/models"
)

var errFetch = errors.New("backend unreachable")

// fakeFetcher serves fixed collections; a non-nil entry in errs fails that
// collection's read.
type fakeFetcher struct {
	mu         sync.Mutex
	elements   []models.Element
	poms       []models.Pom
	tests      []models.TestCase
	executions []models.Execution
	errs       map[string]error
	calls      int
}

func (f *fakeFetcher) fail(collection string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.errs[collection]
}

func (f *fakeFetcher) ListElements(ctx context.Context, projectID string) ([]models.Element, error) {
	if err := f.fail("elements"); err != nil {
		return nil, err
	}
	return f.elements, nil
}

func (f *fakeFetcher) ListPoms(ctx context.Context, projectID string) ([]models.Pom, error) {
	if err := f.fail("poms"); err != nil {
		return nil, err
	}
	return f.poms, nil
}

func (f *fakeFetcher) ListTests(ctx context.Context, projectID string) ([]models.TestCase, error) {
	if err := f.fail("tests"); err != nil {
		return nil, err
	}
	return f.tests, nil
}

func (f *fakeFetcher) ListExecutions(ctx context.Context, projectID string) ([]models.Execution, error) {
	if err := f.fail("executions"); err != nil {
		return nil, err
	}
	return f.executions, nil
}

func elements(n int) []models.Element {
	out := make([]models.Element, n)
	for i := range out {
		out[i] = models.Element{ID: string(rune('a' + i)), Type: "button"}
	}
	return out
}

func poms(n int) []models.Pom {
	out := make([]models.Pom, n)
	for i := range out {
		out[i] = models.Pom{ID: string(rune('a' + i))}
	}
	return out
}

func tests(n int) []models.TestCase {
	out := make([]models.TestCase, n)
	for i := range out {
		out[i] = models.TestCase{ID: string(rune('a' + i))}
	}
	return out
}

func executions(statuses ...models.ExecutionStatus) []models.Execution {
	out := make([]models.Execution, len(statuses))
	for i, s := range statuses {
		out[i] = models.Execution{ID: string(rune('a' + i)), Status: s}
	}
	return out
}

// gatedFetcher blocks every read for a project until its gate is closed and
// reports on started when the first read for a project begins.
type gatedFetcher struct {
	fakeFetcher
	gates   map[string]chan struct{}
	started chan string
	once    sync.Map
}

func newGatedFetcher(projects ...string) *gatedFetcher {
	g := &gatedFetcher{
		gates:   make(map[string]chan struct{}),
		started: make(chan string, len(projects)),
	}
	for _, p := range projects {
		g.gates[p] = make(chan struct{})
	}
	return g
}

func (g *gatedFetcher) wait(ctx context.Context, projectID string) error {
	if _, loaded := g.once.LoadOrStore(projectID, true); !loaded {
		g.started <- projectID
	}
	select {
	case <-g.gates[projectID]:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *gatedFetcher) ListElements(ctx context.Context, projectID string) ([]models.Element, error) {
	if err := g.wait(ctx, projectID); err != nil {
		return nil, err
	}
	if projectID == "x" {
		return nil, nil
	}
	return elements(2), nil
}

func (g *gatedFetcher) ListPoms(ctx context.Context, projectID string) ([]models.Pom, error) {
	if err := g.wait(ctx, projectID); err != nil {
		return nil, err
	}
	return nil, nil
}

func (g *gatedFetcher) ListTests(ctx context.Context, projectID string) ([]models.TestCase, error) {
	if err := g.wait(ctx, projectID); err != nil {
		return nil, err
	}
	return nil, nil
}

func (g *gatedFetcher) ListExecutions(ctx context.Context, projectID string) ([]models.Execution, error) {
	if err := g.wait(ctx, projectID); err != nil {
		return nil, err
	}
	return nil, nil
}
