package engine

import (
	"context"
	"errors"
	"time"

	"github.com/hupe1980/ragmesh/core"
	"github.com/hupe1980/ragmesh/logging"
)

// DefaultRecursionLimit is the default step budget of a run.
const DefaultRecursionLimit = 25

// TerminationGuard may veto an end label. It returns false to keep the run
// going, in which case the label is replaced by LabelContinue.
type TerminationGuard func(from NodeID, state core.State) bool

// Options configure an Executor.
type Options struct {
	// RecursionLimit is the maximum number of node invocations per run.
	// Values <= 0 select DefaultRecursionLimit.
	RecursionLimit int
	// Router picks the edge label after a node with conditional edges ran.
	Router Router
	// TerminationGuard is consulted whenever the Router returns LabelEnd.
	TerminationGuard TerminationGuard
	Callbacks        *CallbackManager
	Logger           logging.Logger
}

// Result is the outcome of a successful run.
type Result struct {
	State core.State
	// Steps is the number of node invocations.
	Steps int
	// Path lists the invoked nodes in order.
	Path []NodeID
}

// Answer returns the content of the final message.
func (r *Result) Answer() string {
	last, _ := r.State.Last()
	return last.Content
}

// Executor drives runs over a validated Graph. It is immutable after
// construction and safe for concurrent runs.
type Executor struct {
	graph *Graph
	opts  Options
}

// NewExecutor validates g and returns an Executor for it.
func NewExecutor(g *Graph, optFns ...func(o *Options)) (*Executor, error) {
	opts := Options{
		RecursionLimit: DefaultRecursionLimit,
		Router:         NewRouter(DefaultSentinel),
		Logger:         logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.RecursionLimit <= 0 {
		opts.RecursionLimit = DefaultRecursionLimit
	}
	if opts.Router == nil {
		opts.Router = NewRouter(DefaultSentinel)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	if err := g.Validate(); err != nil {
		return nil, err
	}

	return &Executor{graph: g, opts: opts}, nil
}

// RecursionLimit returns the step budget of a run.
func (e *Executor) RecursionLimit() int { return e.opts.RecursionLimit }

// Run executes the graph from its entry node over state until End is reached
// or the run fails.
//
// Failures:
//   - *core.TimeoutError when ctx expires or is cancelled
//   - *core.RecursionLimitError when the step budget is exhausted
//   - *core.RoutingError when no edge matches the routed label
//   - any error returned by a node or callback
func (e *Executor) Run(ctx context.Context, state core.State) (*Result, error) {
	start := time.Now()

	res, err := e.run(ctx, state)

	final := state
	steps := 0
	if res != nil {
		final, steps = res.State, res.Steps
	}

	var limitErr *core.RecursionLimitError
	if errors.As(err, &limitErr) {
		steps = limitErr.Steps
	}

	if cbErr := e.opts.Callbacks.ExecuteCallbacks(ctx, CallbackAfterRun, &CallbackContext{
		State:    final,
		Step:     steps,
		Duration: time.Since(start),
		Err:      err,
	}); cbErr != nil && err == nil {
		return nil, cbErr
	}

	if err != nil {
		return nil, err
	}

	return res, nil
}

func (e *Executor) run(ctx context.Context, state core.State) (*Result, error) {
	logger := e.opts.Logger
	limiter := core.NewStepLimiter(e.opts.RecursionLimit)
	current := e.graph.entry
	path := make([]NodeID, 0, e.opts.RecursionLimit)

	for {
		if err := ctx.Err(); err != nil {
			return nil, e.fail(ctx, current, limiter.Count(), state, &core.TimeoutError{Steps: limiter.Count(), Err: err})
		}

		if !limiter.Increment() {
			logger.Warn("engine.recursion_limit", "limit", e.opts.RecursionLimit, "node", string(current))
			return nil, e.fail(ctx, current, limiter.Count(), state, &core.RecursionLimitError{
				Limit:    e.opts.RecursionLimit,
				Steps:    limiter.Count(),
				Messages: state.Messages(),
			})
		}

		step := limiter.Count()
		node := e.graph.nodes[current]
		info := stepInfo{callbacks: e.opts.Callbacks, node: current, step: step}

		logger.Debug("engine.step", "step", step, "node", string(current), "messages", state.Len())

		if err := info.fire(ctx, CallbackBeforeNode, &CallbackContext{State: state}); err != nil {
			return nil, e.fail(ctx, current, step, state, err)
		}

		nodeStart := time.Now()

		out, err := node.Invoke(withStep(ctx, info), state)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = &core.TimeoutError{Steps: step, Err: ctxErr}
			}
			logger.Error("engine.step.failed", "step", step, "node", string(current), "error", err.Error())
			return nil, e.fail(ctx, current, step, state, err)
		}

		state = state.Append(out...)
		path = append(path, current)

		if err := info.fire(ctx, CallbackAfterNode, &CallbackContext{
			State:    state,
			Messages: out,
			Duration: time.Since(nodeStart),
		}); err != nil {
			return nil, e.fail(ctx, current, step, state, err)
		}

		next, label, err := e.transition(current, state)
		if err != nil {
			logger.Error("engine.route.failed", "step", step, "node", string(current), "error", err.Error())
			return nil, e.fail(ctx, current, step, state, err)
		}

		if err := info.fire(ctx, CallbackOnRoute, &CallbackContext{State: state, Label: label, Target: next}); err != nil {
			return nil, e.fail(ctx, current, step, state, err)
		}

		logger.Debug("engine.route", "step", step, "from", string(current), "label", string(label), "to", string(next))

		if next == End {
			logger.Info("engine.run.done", "steps", step, "messages", state.Len())
			return &Result{State: state, Steps: step, Path: path}, nil
		}

		current = next
	}
}

// transition resolves the node following from. Nodes with a fixed edge skip
// the Router and report an empty label.
func (e *Executor) transition(from NodeID, state core.State) (NodeID, Label, error) {
	var label Label
	if !e.graph.hasFixedEdge(from) {
		label = e.opts.Router(from, state)
		if label == LabelEnd && e.opts.TerminationGuard != nil && !e.opts.TerminationGuard(from, state) {
			e.opts.Logger.Info("engine.termination_vetoed", "node", string(from))
			label = LabelContinue
		}
	}

	target, _, ok := e.graph.next(from, label)
	if !ok {
		return "", label, &core.RoutingError{From: string(from), Label: string(label)}
	}

	if target == Sender {
		sender := NodeID(state.Sender())
		if _, registered := e.graph.nodes[sender]; !registered {
			return "", label, &core.RoutingError{From: string(from), Label: "sender:" + string(sender)}
		}
		target = sender
	}

	return target, label, nil
}

func (e *Executor) fail(ctx context.Context, node NodeID, step int, state core.State, err error) error {
	_ = e.opts.Callbacks.ExecuteCallbacks(ctx, CallbackOnError, &CallbackContext{
		Node:  node,
		Step:  step,
		State: state,
		Err:   err,
	})
	return err
}
