package ragmesh

import (
	"context"
	"errors"
	"strings"

	"github.com/hupe1980/ragmesh/agent"
	"github.com/hupe1980/ragmesh/core"
	"github.com/hupe1980/ragmesh/engine"
	"github.com/hupe1980/ragmesh/logging"
	"github.com/hupe1980/ragmesh/model"
	"github.com/hupe1980/ragmesh/retrieval"
	"github.com/hupe1980/ragmesh/tool"
	"github.com/hupe1980/ragmesh/websearch"
)

// Node ids of the orchestration graph.
const (
	NodeCoordinator engine.NodeID = "Coordinator"
	NodeRag         engine.NodeID = "Rag"
	NodeTavily      engine.NodeID = "Tavily"
	NodeCallTool    engine.NodeID = "call_tool"
)

// ErrIngestUnsupported is returned by Ingest when the knowledge searcher
// cannot store documents.
var ErrIngestUnsupported = errors.New("ragmesh: knowledge searcher does not support ingestion")

// Ingester adds documents to the knowledge base.
type Ingester interface {
	Ingest(ctx context.Context, doc retrieval.Document) (int, error)
}

// Options configure a RagMesh.
type Options struct {
	// Model is used by every agent without a dedicated model.
	Model            model.Model
	CoordinatorModel model.Model
	RagModel         model.Model
	TavilyModel      model.Model

	// Knowledge backs the knowledge_search tool. If it also implements
	// Ingester, Ingest delegates to it.
	Knowledge tool.KnowledgeSearcher
	// WebSearch backs the web_search tool.
	WebSearch websearch.Provider

	// RecursionLimit bounds the number of steps of a run (default 25).
	RecursionLimit int
	// Sentinel marks the Coordinator's final answer (default "FINAL ANSWER").
	Sentinel string
	// RequireSpecialistAnswers keeps a run going while Rag or Tavily has not
	// yet produced a plain answer, even if the Coordinator emitted the
	// sentinel. Off by default.
	RequireSpecialistAnswers bool

	Prompts   Prompts
	Callbacks *engine.CallbackManager
	Logger    logging.Logger
}

// Answer is the result of a successful run.
type Answer struct {
	Answer string          `json:"answer"`
	Steps  int             `json:"steps"`
	Path   []engine.NodeID `json:"path,omitempty"`
}

// RagMesh is the orchestration entry point. It is safe for concurrent use;
// every Run owns its own conversation state.
type RagMesh struct {
	opts     Options
	executor *engine.Executor
	ingester Ingester
}

// New wires the Coordinator, Rag, Tavily and call_tool nodes into a
// validated graph.
func New(optFns ...func(o *Options)) (*RagMesh, error) {
	opts := Options{
		RecursionLimit: engine.DefaultRecursionLimit,
		Sentinel:       engine.DefaultSentinel,
		Prompts:        DefaultPrompts(),
		Logger:         logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	coordinatorModel := firstModel(opts.CoordinatorModel, opts.Model)
	ragModel := firstModel(opts.RagModel, opts.Model)
	tavilyModel := firstModel(opts.TavilyModel, opts.Model)

	if coordinatorModel == nil || ragModel == nil || tavilyModel == nil {
		return nil, errors.New("ragmesh: a model is required for every agent")
	}
	if opts.Knowledge == nil {
		return nil, errors.New("ragmesh: knowledge searcher is required")
	}
	if opts.WebSearch == nil {
		return nil, errors.New("ragmesh: web search provider is required")
	}
	if strings.TrimSpace(opts.Sentinel) == "" {
		return nil, errors.New("ragmesh: sentinel must not be empty")
	}

	knowledgeTool := tool.NewKnowledgeSearchTool(opts.Knowledge)
	webTool := tool.NewWebSearchTool(opts.WebSearch)

	registry, err := tool.NewRegistry(knowledgeTool, webTool)
	if err != nil {
		return nil, err
	}

	newAgent := func(id engine.NodeID, llm model.Model, role string, tools ...tool.Tool) *agent.Agent {
		return agent.New(string(id), llm, func(o *agent.Options) {
			o.Instruction = agent.NewInstructionFromText(opts.Prompts.instruction(role))
			o.Tools = tools
			o.Data = map[string]any{"sentinel": opts.Sentinel}
			o.Logger = opts.Logger
		})
	}

	coordinator := newAgent(NodeCoordinator, coordinatorModel, opts.Prompts.Coordinator)
	rag := newAgent(NodeRag, ragModel, opts.Prompts.Rag, knowledgeTool)
	tavily := newAgent(NodeTavily, tavilyModel, opts.Prompts.Tavily, webTool)

	dispatcher := tool.NewDispatcher(registry, func(o *tool.DispatcherOptions) {
		o.Logger = opts.Logger
	})

	graph := engine.NewGraph().
		AddNode(NodeCoordinator, engine.NewAgentNode(coordinator, nil)).
		AddNode(NodeRag, engine.NewAgentNode(rag, nil)).
		AddNode(NodeTavily, engine.NewAgentNode(tavily, agent.ExcludeSource(string(NodeRag), tool.KnowledgeSearchToolName))).
		AddNode(NodeCallTool, engine.NewToolNode(dispatcher)).
		AddFixedEdge(engine.Start, NodeCoordinator).
		AddEdges(NodeCoordinator, map[engine.Label]engine.NodeID{
			engine.LabelEnd:      engine.End,
			engine.LabelContinue: NodeRag,
		}).
		// a specialist using the sentinel does not end the run
		AddEdges(NodeRag, map[engine.Label]engine.NodeID{
			engine.LabelContinue: NodeTavily,
			engine.LabelEnd:      NodeTavily,
			engine.LabelCallTool: NodeCallTool,
		}).
		AddEdges(NodeTavily, map[engine.Label]engine.NodeID{
			engine.LabelContinue: NodeCoordinator,
			engine.LabelEnd:      NodeCoordinator,
			engine.LabelCallTool: NodeCallTool,
		}).
		AddFixedEdge(NodeCallTool, engine.Sender)

	executor, err := engine.NewExecutor(graph, func(o *engine.Options) {
		o.RecursionLimit = opts.RecursionLimit
		o.Router = engine.NewRouter(opts.Sentinel)
		o.Callbacks = opts.Callbacks
		o.Logger = opts.Logger
		if opts.RequireSpecialistAnswers {
			o.TerminationGuard = RequireAuthors(string(NodeRag), string(NodeTavily))
		}
	})
	if err != nil {
		return nil, err
	}

	ingester, _ := opts.Knowledge.(Ingester)

	return &RagMesh{opts: opts, executor: executor, ingester: ingester}, nil
}

// Run answers question. An empty question fails with *core.InputError before
// any model is called. Other failures are those of engine.Executor.Run.
func (r *RagMesh) Run(ctx context.Context, question string) (*Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, &core.InputError{Field: "question", Reason: "must not be empty"}
	}

	r.opts.Logger.Info("ragmesh.run.start", "run_id", engine.RunIDFromContext(ctx))

	res, err := r.executor.Run(ctx, core.NewState(question))
	if err != nil {
		r.opts.Logger.Error("ragmesh.run.error", "run_id", engine.RunIDFromContext(ctx), "error", err.Error())
		return nil, err
	}

	return &Answer{Answer: res.Answer(), Steps: res.Steps, Path: res.Path}, nil
}

// Ingest adds doc to the knowledge base.
func (r *RagMesh) Ingest(ctx context.Context, doc retrieval.Document) (int, error) {
	if r.ingester == nil {
		return 0, ErrIngestUnsupported
	}
	return r.ingester.Ingest(ctx, doc)
}

// RecursionLimit returns the step budget of a run.
func (r *RagMesh) RecursionLimit() int { return r.executor.RecursionLimit() }

// RequireAuthors returns a termination guard that only lets a run end once
// every named agent has produced a plain answer.
func RequireAuthors(names ...string) engine.TerminationGuard {
	return func(_ engine.NodeID, state core.State) bool {
		for _, name := range names {
			if !state.AuthoredBy(name) {
				return false
			}
		}
		return true
	}
}

func firstModel(models ...model.Model) model.Model {
	for _, m := range models {
		if m != nil {
			return m
		}
	}
	return nil
}
