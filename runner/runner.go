package runner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/ragmesh"
	"github.com/hupe1980/ragmesh/engine"
	"github.com/hupe1980/ragmesh/logging"
)

// ErrTooManyRuns is returned when the concurrency limit is reached.
var ErrTooManyRuns = errors.New("runner: too many concurrent runs")

// ErrRunNotFound is returned by Cancel for unknown or finished runs.
var ErrRunNotFound = errors.New("runner: run not found")

// ErrDuplicateRun is returned when a run id is already in flight.
var ErrDuplicateRun = errors.New("runner: run id already active")

// Mesh answers questions. *ragmesh.RagMesh implements it.
type Mesh interface {
	Run(ctx context.Context, question string) (*ragmesh.Answer, error)
}

// Options holds configuration overrides passed to New().
type Options struct {
	// MaxConcurrentRuns limits concurrent runs. Zero means unlimited.
	MaxConcurrentRuns int
	// RunTimeout bounds a single run. Zero means no timeout beyond the
	// caller's context.
	RunTimeout time.Duration
	Logger     logging.Logger
}

// Runner coordinates runs of a Mesh. Public methods are safe for concurrent
// use.
type Runner struct {
	mesh    Mesh
	sem     chan struct{}
	timeout time.Duration
	logger  logging.Logger

	activeRuns map[string]context.CancelFunc
	mu         sync.Mutex
}

// New constructs a Runner with optional overrides.
func New(mesh Mesh, optFns ...func(o *Options)) *Runner {
	opts := Options{
		MaxConcurrentRuns: 10,
		Logger:            logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	r := &Runner{
		mesh:       mesh,
		timeout:    opts.RunTimeout,
		logger:     logging.OrNoOp(opts.Logger),
		activeRuns: make(map[string]context.CancelFunc),
	}
	if opts.MaxConcurrentRuns > 0 {
		r.sem = make(chan struct{}, opts.MaxConcurrentRuns)
	}

	return r
}

// Run answers question and blocks until the run finishes. An empty runID is
// replaced by a fresh uuid. The run id is returned even when the run fails.
func (r *Runner) Run(ctx context.Context, runID, question string) (string, *ragmesh.Answer, error) {
	if runID == "" {
		runID = uuid.NewString()
	}

	if r.sem != nil {
		select {
		case r.sem <- struct{}{}:
			defer func() { <-r.sem }()
		default:
			r.logger.Warn("runner.run.rejected", "run_id", runID, "reason", "concurrency limit")
			return runID, nil, ErrTooManyRuns
		}
	}

	var cancel context.CancelFunc
	if r.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	r.mu.Lock()
	if _, exists := r.activeRuns[runID]; exists {
		r.mu.Unlock()
		return runID, nil, fmt.Errorf("%w: %s", ErrDuplicateRun, runID)
	}
	r.activeRuns[runID] = cancel
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.activeRuns, runID)
		r.mu.Unlock()
	}()

	start := time.Now()
	r.logger.Debug("runner.run.start", "run_id", runID)

	answer, err := r.mesh.Run(engine.WithRunID(ctx, runID), question)
	if err != nil {
		r.logger.Warn("runner.run.failed", "run_id", runID, "duration", time.Since(start), "error", err.Error())
		return runID, nil, err
	}

	r.logger.Info("runner.run.done", "run_id", runID, "steps", answer.Steps, "duration", time.Since(start))

	return runID, answer, nil
}

// Cancel cancels a running run by ID.
func (r *Runner) Cancel(runID string) error {
	r.mu.Lock()
	cancel, exists := r.activeRuns[runID]
	r.mu.Unlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	cancel()
	r.logger.Info("runner.run.cancelled", "run_id", runID)

	return nil
}

// Active returns the ids of in-flight runs in sorted order.
func (r *Runner) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.activeRuns))
	for id := range r.activeRuns {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids
}
