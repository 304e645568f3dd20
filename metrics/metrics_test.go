package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hupe1980/ragmesh/core"
	"github.com/hupe1980/ragmesh/engine"
	"github.com/hupe1980/ragmesh/tool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, OutcomeSuccess},
		{&core.RecursionLimitError{Limit: 25}, OutcomeRecursionLimit},
		{&core.TimeoutError{Err: context.DeadlineExceeded}, OutcomeTimeout},
		{context.Canceled, OutcomeTimeout},
		{&core.UnknownToolError{Tool: "x"}, OutcomeUnknownTool},
		{&core.ToolExecutionError{Tool: "x", Err: errors.New("boom")}, OutcomeToolError},
		{fmt.Errorf("wrapped: %w", &core.ModelInvocationError{Agent: "Rag", Err: errors.New("boom")}), OutcomeModelError},
		{&core.RoutingError{From: "a", Label: "continue"}, OutcomeRoutingError},
		{&core.InputError{Field: "question"}, OutcomeInputError},
		{errors.New("other"), OutcomeError},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Outcome(tt.err))
		})
	}
}

func TestCollector_RecordsRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	require.NoError(t, err)

	cm := engine.NewCallbackManager()
	c.Register(cm)

	echo := tool.NewFunctionTool("echo", "", nil, func(context.Context, map[string]any) (any, error) { return "ok", nil })
	registry, err := tool.NewRegistry(echo)
	require.NoError(t, err)

	calls := 0
	a := engine.NodeFunc(func(context.Context, core.State) ([]core.Message, error) {
		calls++
		if calls == 1 {
			return []core.Message{core.NewAssistantMessage("a", "", core.ToolCall{ID: "c1", Name: "echo"})}, nil
		}
		return []core.Message{core.NewAssistantMessage("a", "FINAL ANSWER")}, nil
	})

	g := engine.NewGraph().
		AddNode("a", a).
		AddNode("call_tool", engine.NewToolNode(tool.NewDispatcher(registry))).
		AddFixedEdge(engine.Start, "a").
		AddEdges("a", map[engine.Label]engine.NodeID{engine.LabelCallTool: "call_tool", engine.LabelEnd: engine.End}).
		AddFixedEdge("call_tool", engine.Sender)

	exec, err := engine.NewExecutor(g, func(o *engine.Options) { o.Callbacks = cm })
	require.NoError(t, err)

	_, err = exec.Run(context.Background(), core.NewState("q"))
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.nodeVisits.WithLabelValues("a")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.nodeVisits.WithLabelValues("call_tool")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.toolCalls.WithLabelValues("echo", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runs.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1, testutil.CollectAndCount(c.runSteps))
}

func TestNew_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	assert.Error(t, err)
}
