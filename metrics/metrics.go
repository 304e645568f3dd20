// Package metrics exports run, node and tool statistics to Prometheus by
// registering lifecycle callbacks with an engine.CallbackManager.
package metrics

import (
	"context"
	"errors"

	"github.com/hupe1980/ragmesh/core"
	"github.com/hupe1980/ragmesh/engine"
	"github.com/prometheus/client_golang/prometheus"
)

// Run and tool outcomes used as label values.
const (
	OutcomeSuccess        = "success"
	OutcomeRecursionLimit = "recursion_limit"
	OutcomeTimeout        = "timeout"
	OutcomeUnknownTool    = "unknown_tool"
	OutcomeToolError      = "tool_error"
	OutcomeModelError     = "model_error"
	OutcomeRoutingError   = "routing_error"
	OutcomeInputError     = "input_error"
	OutcomeError          = "error"
)

// Options configure a Collector.
type Options struct {
	Namespace string
	// Buckets for the duration histograms, in seconds.
	Buckets []float64
}

// Collector holds the Prometheus instruments.
type Collector struct {
	nodeVisits   *prometheus.CounterVec
	nodeDuration *prometheus.HistogramVec
	toolCalls    *prometheus.CounterVec
	toolDuration *prometheus.HistogramVec
	runs         *prometheus.CounterVec
	runSteps     prometheus.Histogram
	runDuration  prometheus.Histogram
}

// New creates a Collector and registers its instruments with reg.
func New(reg prometheus.Registerer, optFns ...func(o *Options)) (*Collector, error) {
	opts := Options{
		Namespace: "ragmesh",
		Buckets:   prometheus.DefBuckets,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	c := &Collector{
		nodeVisits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: opts.Namespace,
				Name:      "node_visits_total",
				Help:      "Number of node invocations.",
			},
			[]string{"node"},
		),
		nodeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: opts.Namespace,
				Name:      "node_duration_seconds",
				Help:      "Duration of node invocations.",
				Buckets:   opts.Buckets,
			},
			[]string{"node"},
		),
		toolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: opts.Namespace,
				Name:      "tool_calls_total",
				Help:      "Number of tool calls by outcome.",
			},
			[]string{"tool", "outcome"},
		),
		toolDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: opts.Namespace,
				Name:      "tool_duration_seconds",
				Help:      "Duration of tool calls.",
				Buckets:   opts.Buckets,
			},
			[]string{"tool"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: opts.Namespace,
				Name:      "runs_total",
				Help:      "Number of finished runs by outcome.",
			},
			[]string{"outcome"},
		),
		runSteps: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: opts.Namespace,
				Name:      "run_steps",
				Help:      "Steps taken per run.",
				Buckets:   prometheus.LinearBuckets(1, 3, 10),
			},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: opts.Namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of runs.",
				Buckets:   opts.Buckets,
			},
		),
	}

	for _, col := range []prometheus.Collector{
		c.nodeVisits, c.nodeDuration, c.toolCalls, c.toolDuration, c.runs, c.runSteps, c.runDuration,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Register hooks the collector into cm.
func (c *Collector) Register(cm *engine.CallbackManager) {
	cm.RegisterCallback(engine.NewFunctionCallback(engine.CallbackAfterNode, func(_ context.Context, cc *engine.CallbackContext) error {
		c.nodeVisits.WithLabelValues(string(cc.Node)).Inc()
		c.nodeDuration.WithLabelValues(string(cc.Node)).Observe(cc.Duration.Seconds())
		return nil
	}))

	cm.RegisterCallback(engine.NewFunctionCallback(engine.CallbackAfterTool, func(_ context.Context, cc *engine.CallbackContext) error {
		if cc.ToolCall == nil {
			return nil
		}
		c.toolCalls.WithLabelValues(cc.ToolCall.Name, Outcome(cc.Err)).Inc()
		c.toolDuration.WithLabelValues(cc.ToolCall.Name).Observe(cc.Duration.Seconds())
		return nil
	}))

	cm.RegisterCallback(engine.NewFunctionCallback(engine.CallbackAfterRun, func(_ context.Context, cc *engine.CallbackContext) error {
		c.runs.WithLabelValues(Outcome(cc.Err)).Inc()
		c.runSteps.Observe(float64(cc.Step))
		c.runDuration.Observe(cc.Duration.Seconds())
		return nil
	}))
}

// Outcome classifies err into one of the outcome label values.
func Outcome(err error) string {
	var (
		limitErr   *core.RecursionLimitError
		timeoutErr *core.TimeoutError
		unknownErr *core.UnknownToolError
		toolErr    *core.ToolExecutionError
		modelErr   *core.ModelInvocationError
		routeErr   *core.RoutingError
		inputErr   *core.InputError
	)

	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.As(err, &limitErr):
		return OutcomeRecursionLimit
	case errors.As(err, &timeoutErr), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return OutcomeTimeout
	case errors.As(err, &unknownErr):
		return OutcomeUnknownTool
	case errors.As(err, &toolErr):
		return OutcomeToolError
	case errors.As(err, &modelErr):
		return OutcomeModelError
	case errors.As(err, &routeErr):
		return OutcomeRoutingError
	case errors.As(err, &inputErr):
		return OutcomeInputError
	default:
		return OutcomeError
	}
}
