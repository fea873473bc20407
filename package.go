// Package spindle turns a bare text-completion session into structured
// outputs, function calls, and bounded agent loops.
//
// The underlying completion primitive is deliberately minimal: a [Session]
// takes a prompt string and returns a completion string (or a stream of
// snapshots of it). Everything above that - eliciting JSON that validates
// against a schema, asking the model to invoke registered functions, running
// an iterative task loop with planning and reflection - is what this module
// provides.
//
// # Quick Start: Agent With One Function
//
//	package main
//
//	import (
//	    "context"
//	    "fmt"
//
//	    "github.com/spindle-ai/spindle/agent"
//	    "github.com/spindle-ai/spindle/funcs"
//	    "github.com/spindle-ai/spindle/schema"
//	    "github.com/spindle-ai/spindle/sessions"
//	)
//
//	func main() {
//	    factory := sessions.NewLangChainFactory(llm)
//
//	    reg := funcs.NewRegistry()
//	    reg.Register(&funcs.FunctionDefinition{
//	        Name:        "get_time",
//	        Description: "Returns the current time",
//	        Parameters:  schema.Object(nil),
//	        Handler: func(ctx context.Context, args map[string]any) (any, error) {
//	            return "12:00", nil
//	        },
//	    })
//
//	    ag := agent.New(factory).
//	        WithRegistry(reg).
//	        WithMaxIterations(10)
//
//	    result := ag.Run(context.Background(), "What time is it?")
//	    if result.Status == agent.StatusCompleted {
//	        fmt.Println(result.FinalAnswer)
//	    }
//	}
//
// # Structured Output
//
// One-shot schema-validated extraction is independent of the agent loop:
//
//	s := schema.Object(map[string]*schema.Schema{
//	    "name": schema.String("The person's name"),
//	}, "name")
//
//	value, err := structured.Extract(ctx, session, "Who wrote Hamlet?", s,
//	    structured.Options{MaxAttempts: 3})
//
// Invalid responses are fed back to the model ("the previous response was
// invalid because X, try again") until the attempt budget is spent, at which
// point a *structured.ExhaustedError carrying the last underlying error is
// returned.
//
// # The Function-Calling Protocol
//
// The protocol package is the single source of truth for the textual contract
// between the loop and the model. The model is instructed to answer with a
// single JSON envelope when it wants a function executed:
//
//	{"functionCall": {"name": "get_time", "arguments": {}}, "reasoning": "..."}
//
// and with plain prose otherwise. Parsing is deliberately permissive: the
// first balanced {...} substring is tried as JSON, and anything that does not
// parse - or parses but carries no functionCall field - degrades to a regular
// response. The codec never fails; malformed model output is treated as
// prose, never as an error. A YAML flavor of the same envelope is available
// via protocol.NewYAML for models that emit cleaner YAML than JSON.
//
// # Sessions
//
// Session is the external collaborator this module sits atop. Implementations
// only need to provide prompt/stream/clone/dispose plus a token budget; the
// sessions package ships an adapter for any LangChainGo llms.Model. Each
// agent run owns exactly one session for its lifetime and disposes it on
// every exit path. Dispose is idempotent by contract.
//
// # Error Philosophy
//
// Model unreliability never crashes the loop. Parse ambiguity, a failed tool
// call, or one bad JSON attempt are absorbed and fed back into the
// conversation as corrective context. Only resource-level failures (session
// creation or prompt transport errors) and structured-output exhaustion
// surface to the caller.
package spindle
