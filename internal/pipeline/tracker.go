package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"pomflow/backend/internal/logging"
)

// ErrStaleEvaluation is returned by Trigger when a newer trigger started
// before this evaluation finished. The result was discarded; callers should
// drop it silently.
var ErrStaleEvaluation = errors.New("pipeline evaluation superseded")

// CommitFunc observes committed States in commit order. Hooks run one at a
// time outside the tracker lock; a commit overtaken by a newer one before its
// hooks start is skipped.
type CommitFunc func(ctx context.Context, state State)

// Tracker re-evaluates the pipeline whenever the viewed project or section
// changes and keeps only the newest result (last write wins).
type Tracker struct {
	evaluator *Evaluator
	logger    *logging.Logger
	onCommit  []CommitFunc

	mu         sync.Mutex
	generation uint64
	running    int
	target     Key
	committed  *State

	hookMu    sync.Mutex
	delivered uint64
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithCommitHook registers fn to run after each commit.
func WithCommitHook(fn CommitFunc) TrackerOption {
	return func(t *Tracker) {
		t.onCommit = append(t.onCommit, fn)
	}
}

// NewTracker creates a Tracker over the given evaluator.
func NewTracker(evaluator *Evaluator, logger *logging.Logger, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		evaluator: evaluator,
		logger:    logger.With("component", "tracker"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Ticket identifies one started evaluation.
type Ticket struct {
	Key        Key
	generation uint64
}

// Trigger starts a fresh evaluation for projectID/section and commits it
// unless a newer trigger has started in the meantime. Concurrent calls are
// safe; the evaluation itself runs without holding the tracker lock.
func (t *Tracker) Trigger(ctx context.Context, projectID, section string) (State, error) {
	return t.Run(ctx, t.Begin(projectID, section))
}

// Begin claims the next generation for projectID/section, superseding every
// earlier ticket. Callers that fan evaluations out to goroutines call Begin
// in arrival order and Run concurrently. Every ticket must be passed to Run.
func (t *Tracker) Begin(projectID, section string) Ticket {
	key := Key{ProjectID: projectID, Section: section}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.target = key
	return t.claim()
}

// Refresh claims a new generation for the current target. It reports false
// when nothing has been targeted yet or an evaluation is still running, so a
// refresh never supersedes a navigation.
func (t *Tracker) Refresh() (Ticket, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.target.ProjectID == "" || t.running > 0 {
		return Ticket{}, false
	}
	return t.claim(), true
}

// claim must be called with t.mu held.
func (t *Tracker) claim() Ticket {
	t.generation++
	t.running++
	return Ticket{Key: t.target, generation: t.generation}
}

// Run evaluates the ticket and commits the result if the ticket is still the
// newest one.
func (t *Tracker) Run(ctx context.Context, ticket Ticket) (State, error) {
	projectID, section := ticket.Key.ProjectID, ticket.Key.Section

	evalID := uuid.NewString()
	log := t.logger.With("evaluation_id", evalID, "project_id", projectID, "section", section)
	log.Debug("evaluation started")

	state := t.evaluator.Evaluate(ctx, projectID, section)

	t.mu.Lock()
	t.running--
	if err := ctx.Err(); err != nil {
		t.mu.Unlock()
		t.evaluator.metrics.evaluated(context.WithoutCancel(ctx), "canceled")
		log.Debug("evaluation canceled", "error", err)
		return State{}, err
	}
	if ticket.generation != t.generation {
		current := t.target
		t.mu.Unlock()
		t.evaluator.metrics.evaluated(ctx, "stale")
		log.Debug("stale evaluation discarded", "current_project_id", current.ProjectID, "current_section", current.Section)
		return state, ErrStaleEvaluation
	}
	t.committed = &state
	t.mu.Unlock()

	t.evaluator.metrics.evaluated(ctx, "committed")
	t.deliver(ctx, ticket.generation, state)
	log.Debug("evaluation committed")
	return state, nil
}

func (t *Tracker) deliver(ctx context.Context, generation uint64, state State) {
	if len(t.onCommit) == 0 {
		return
	}
	t.hookMu.Lock()
	defer t.hookMu.Unlock()
	if generation <= t.delivered {
		return
	}
	t.delivered = generation
	for _, fn := range t.onCommit {
		fn(ctx, state)
	}
}

// Current returns the last committed State, if any.
func (t *Tracker) Current() (State, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.committed == nil {
		return State{}, false
	}
	return *t.committed, true
}

// Target returns the key of the most recently started evaluation.
func (t *Tracker) Target() Key {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.target
}
