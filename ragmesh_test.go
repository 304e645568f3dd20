package ragmesh

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/hupe1980/ragmesh/core"
	"github.com/hupe1980/ragmesh/engine"
	"github.com/hupe1980/ragmesh/memory"
	"github.com/hupe1980/ragmesh/model"
	"github.com/hupe1980/ragmesh/retrieval"
	"github.com/hupe1980/ragmesh/tool"
	"github.com/hupe1980/ragmesh/websearch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	coordinator *model.MockModel
	rag         *model.MockModel
	tavily      *model.MockModel
	knowledge   *retrieval.Service
	webQueries  []string
	mu          sync.Mutex
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	svc, err := retrieval.NewService(memory.NewInMemoryStore())
	require.NoError(t, err)

	return &fixture{
		coordinator: model.NewMockModel("coordinator"),
		rag:         model.NewMockModel("rag"),
		tavily:      model.NewMockModel("tavily"),
		knowledge:   svc,
	}
}

func (f *fixture) web() websearch.Provider {
	return websearch.ProviderFunc(func(_ context.Context, q string) (*websearch.Result, error) {
		f.mu.Lock()
		f.webQueries = append(f.webQueries, q)
		f.mu.Unlock()
		return &websearch.Result{Query: q, Answer: "Paris"}, nil
	})
}

func (f *fixture) mesh(t *testing.T, optFns ...func(o *Options)) *RagMesh {
	t.Helper()

	rm, err := New(append([]func(o *Options){func(o *Options) {
		o.CoordinatorModel = f.coordinator
		o.RagModel = f.rag
		o.TavilyModel = f.tavily
		o.Knowledge = f.knowledge
		o.WebSearch = f.web()
	}}, optFns...)...)
	require.NoError(t, err)

	return rm
}

func TestRun_CapitalOfFrance(t *testing.T) {
	f := newFixture(t)
	question := "What is the capital of France?"

	f.coordinator.EnqueueText(question, "FINAL ANSWER\n\nDocuments:\nNo relevant documents.\n\nWeb:\nParis")
	f.rag.
		EnqueueToolCall("call_kb", tool.KnowledgeSearchToolName, `{"query":"capital of France"}`).
		EnqueueText("The knowledge base has no information about this.")
	f.tavily.
		EnqueueToolCall("call_web", tool.WebSearchToolName, `{"query":"capital of France"}`).
		EnqueueText("Paris")

	answer, err := f.mesh(t).Run(context.Background(), question)
	require.NoError(t, err)

	assert.Equal(t, 8, answer.Steps)
	assert.Equal(t, []engine.NodeID{
		NodeCoordinator,
		NodeRag, NodeCallTool, NodeRag,
		NodeTavily, NodeCallTool, NodeTavily,
		NodeCoordinator,
	}, answer.Path)
	assert.Contains(t, answer.Answer, "FINAL ANSWER")
	assert.Contains(t, answer.Answer, "Documents:")
	assert.Contains(t, answer.Answer, "Web:\nParis")

	// Rag saw the empty knowledge result
	ragReqs := f.rag.Requests()
	require.Len(t, ragReqs, 2)
	lastRag := ragReqs[1].Messages[len(ragReqs[1].Messages)-1]
	assert.Equal(t, core.RoleTool, lastRag.Role)
	assert.Equal(t, "call_kb", lastRag.ToolCallID)
	assert.Equal(t, "[]", lastRag.Content)

	// Tavily never saw anything from Rag or the knowledge tool
	tavilyReqs := f.tavily.Requests()
	require.Len(t, tavilyReqs, 2)
	for _, req := range tavilyReqs {
		for _, m := range req.Messages {
			assert.NotEqual(t, string(NodeRag), m.Name)
			assert.NotEqual(t, tool.KnowledgeSearchToolName, m.Name)
			assert.False(t, m.CallsTool(tool.KnowledgeSearchToolName))
		}
	}
	assert.Equal(t, []string{"capital of France"}, f.webQueries)

	// the Coordinator merges with the full log
	coordReqs := f.coordinator.Requests()
	require.Len(t, coordReqs, 2)
	assert.Len(t, coordReqs[1].Messages, 8)
}

func TestRun_KnowledgeBaseHit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rm := f.mesh(t)

	n, err := rm.Ingest(ctx, retrieval.Document{ID: "atlas", Content: "Paris is the capital and largest city of France."})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	f.coordinator.EnqueueText("capital of France?", "FINAL ANSWER\n\nDocuments:\nParis\n\nWeb:\nParis")
	f.rag.EnqueueToolCall("c1", tool.KnowledgeSearchToolName, `{"query":"capital of France"}`).EnqueueText("Paris")
	f.tavily.EnqueueText("Paris")

	answer, err := rm.Run(ctx, "capital of France?")
	require.NoError(t, err)
	assert.Equal(t, 6, answer.Steps)

	ragReqs := f.rag.Requests()
	require.Len(t, ragReqs, 2)
	toolMsg := ragReqs[1].Messages[len(ragReqs[1].Messages)-1]
	assert.Contains(t, toolMsg.Content, "Paris is the capital and largest city of France.")
	assert.Contains(t, toolMsg.Content, `"document_id":"atlas"`)
}

func TestRun_UnknownTool(t *testing.T) {
	f := newFixture(t)
	f.coordinator.EnqueueText("question")
	f.rag.EnqueueToolCall("c1", "stock_prices", `{}`)

	_, err := f.mesh(t).Run(context.Background(), "question")

	var unknown *core.UnknownToolError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "stock_prices", unknown.Tool)
	assert.Empty(t, f.tavily.Requests())
	assert.Len(t, f.coordinator.Requests(), 1)
}

func TestRun_RecursionLimit(t *testing.T) {
	f := newFixture(t)
	rm := f.mesh(t)
	assert.Equal(t, 25, rm.RecursionLimit())

	// unscripted mocks echo their input and never emit the sentinel
	_, err := rm.Run(context.Background(), "loop forever")

	var limitErr *core.RecursionLimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, 25, limitErr.Steps)
	assert.Len(t, limitErr.Messages, 26)

	total := len(f.coordinator.Requests()) + len(f.rag.Requests()) + len(f.tavily.Requests())
	assert.Equal(t, 25, total)
}

func TestRun_EmptyQuestion(t *testing.T) {
	f := newFixture(t)
	rm := f.mesh(t)

	for _, q := range []string{"", "   ", "\n\t"} {
		_, err := rm.Run(context.Background(), q)
		var inputErr *core.InputError
		require.ErrorAs(t, err, &inputErr)
		assert.Equal(t, "question", inputErr.Field)
	}

	assert.Empty(t, f.coordinator.Requests())
}

func TestRun_ModelFailure(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("upstream unavailable")
	f.coordinator.EnqueueText("q")
	f.rag.EnqueueError(boom)

	_, err := f.mesh(t).Run(context.Background(), "q")

	var invErr *core.ModelInvocationError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, "Rag", invErr.Agent)
	assert.ErrorIs(t, err, boom)
}

func TestRun_Cancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.mesh(t).Run(ctx, "q")
	var timeoutErr *core.TimeoutError
	assert.ErrorAs(t, err, &timeoutErr)
}

func TestRun_RequireSpecialistAnswers(t *testing.T) {
	script := func(f *fixture) {
		f.coordinator.EnqueueText("FINAL ANSWER too early", "FINAL ANSWER merged")
		f.rag.EnqueueText("from documents")
		f.tavily.EnqueueText("from the web")
	}

	t.Run("trusts the model by default", func(t *testing.T) {
		f := newFixture(t)
		script(f)

		answer, err := f.mesh(t).Run(context.Background(), "q")
		require.NoError(t, err)
		assert.Equal(t, 1, answer.Steps)
		assert.Equal(t, "FINAL ANSWER too early", answer.Answer)
	})

	t.Run("waits for both specialists", func(t *testing.T) {
		f := newFixture(t)
		script(f)

		answer, err := f.mesh(t, func(o *Options) { o.RequireSpecialistAnswers = true }).Run(context.Background(), "q")
		require.NoError(t, err)
		assert.Equal(t, 4, answer.Steps)
		assert.Equal(t, "FINAL ANSWER merged", answer.Answer)
	})
}

func TestRun_SpecialistSentinelDoesNotEndRun(t *testing.T) {
	f := newFixture(t)
	f.coordinator.EnqueueText("q", "FINAL ANSWER done")
	f.rag.EnqueueText("FINAL ANSWER from rag")
	f.tavily.EnqueueText("FINAL ANSWER from web")

	answer, err := f.mesh(t).Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []engine.NodeID{NodeCoordinator, NodeRag, NodeTavily, NodeCoordinator}, answer.Path)
}

func TestNew_Prompts(t *testing.T) {
	f := newFixture(t)
	f.coordinator.EnqueueText("q", "DONE")
	f.rag.EnqueueText("r")
	f.tavily.EnqueueText("t")

	rm := f.mesh(t, func(o *Options) { o.Sentinel = "DONE" })
	_, err := rm.Run(context.Background(), "q")
	require.NoError(t, err)

	coord := f.coordinator.Requests()[0]
	assert.Contains(t, coord.Instructions, "Prefix the merged answer with DONE")
	assert.Contains(t, coord.Instructions, "You have no tools.")
	assert.Empty(t, coord.Tools)

	rag := f.rag.Requests()[0]
	assert.Contains(t, rag.Instructions, "You have access to the following tools: knowledge_search.")
	require.Len(t, rag.Tools, 1)
	assert.Equal(t, tool.KnowledgeSearchToolName, rag.Tools[0].Name)

	tavily := f.tavily.Requests()[0]
	require.Len(t, tavily.Tools, 1)
	assert.Equal(t, tool.WebSearchToolName, tavily.Tools[0].Name)
}

func TestNew_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		fn   func(o *Options)
	}{
		{"no model", func(o *Options) { o.Knowledge = f.knowledge; o.WebSearch = f.web() }},
		{"no knowledge", func(o *Options) { o.Model = f.rag; o.WebSearch = f.web() }},
		{"no web search", func(o *Options) { o.Model = f.rag; o.Knowledge = f.knowledge }},
		{"blank sentinel", func(o *Options) {
			o.Model = f.rag
			o.Knowledge = f.knowledge
			o.WebSearch = f.web()
			o.Sentinel = " "
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.fn)
			assert.Error(t, err)
		})
	}
}

func TestIngest_Unsupported(t *testing.T) {
	rm, err := New(func(o *Options) {
		o.Model = model.NewMockModel("m")
		o.Knowledge = tool.KnowledgeSearcherFunc(func(context.Context, string) ([]core.SearchResult, error) { return nil, nil })
		o.WebSearch = websearch.ProviderFunc(func(context.Context, string) (*websearch.Result, error) { return nil, nil })
	})
	require.NoError(t, err)

	_, err = rm.Ingest(context.Background(), retrieval.Document{Content: "x"})
	assert.ErrorIs(t, err, ErrIngestUnsupported)
}

// roleModel answers deterministically from the request alone so it can be
// shared by concurrent runs.
type roleModel struct {
	respond func(req model.Request) core.Message
}

func (m roleModel) Generate(_ context.Context, req model.Request) (*model.Response, error) {
	return &model.Response{Message: m.respond(req)}, nil
}

func (m roleModel) Info() model.Info { return model.Info{Name: "role", Provider: "test"} }

func TestRun_ConcurrentRunsAreIsolated(t *testing.T) {
	question := func(req model.Request) string { return req.Messages[0].Content }
	last := func(req model.Request) core.Message { return req.Messages[len(req.Messages)-1] }

	coordinator := roleModel{respond: func(req model.Request) core.Message {
		if last(req).Role == core.RoleUser {
			return core.Message{Content: question(req)}
		}
		return core.Message{Content: "FINAL ANSWER " + last(req).Content}
	}}
	specialist := func(toolName string) roleModel {
		return roleModel{respond: func(req model.Request) core.Message {
			if last(req).Role == core.RoleTool {
				return core.Message{Content: "found: " + last(req).Content}
			}
			args := fmt.Sprintf(`{"query":%q}`, question(req))
			return core.Message{ToolCalls: []core.ToolCall{{ID: "c-" + toolName, Name: toolName, Arguments: args}}}
		}}
	}

	rm, err := New(func(o *Options) {
		o.CoordinatorModel = coordinator
		o.RagModel = specialist(tool.KnowledgeSearchToolName)
		o.TavilyModel = specialist(tool.WebSearchToolName)
		o.Knowledge = tool.KnowledgeSearcherFunc(func(context.Context, string) ([]core.SearchResult, error) { return nil, nil })
		o.WebSearch = websearch.ProviderFunc(func(_ context.Context, q string) (*websearch.Result, error) {
			return &websearch.Result{Query: q, Answer: "answer to " + q}, nil
		})
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			q := fmt.Sprintf("question %d", i)
			answer, err := rm.Run(context.Background(), q)
			if !assert.NoError(t, err) {
				return
			}
			assert.Equal(t, 8, answer.Steps)
			assert.True(t, strings.Contains(answer.Answer, "answer to "+q), answer.Answer)
		}(i)
	}
	wg.Wait()
}
