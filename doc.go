// Package ragmesh answers questions by running three cooperating agents over
// a shared conversation:
//
//   - Coordinator forwards the question and merges the specialists' findings
//     into a final answer carrying the termination sentinel
//   - Rag answers from the knowledge base through the knowledge_search tool
//   - Tavily answers from the web through the web_search tool and never sees
//     what Rag found
//
// Tool calls from either specialist are executed by the call_tool node, which
// hands control back to the agent that issued them. Every run is bounded by a
// recursion limit (25 steps by default).
//
// Basic usage:
//
//	rm, err := ragmesh.New(func(o *ragmesh.Options) {
//		o.Model = openai.NewModel()
//		o.Knowledge = retrievalService
//		o.WebSearch = tavilyClient
//	})
//	if err != nil { ... }
//	answer, err := rm.Run(ctx, "What is the capital of France?")
package ragmesh
