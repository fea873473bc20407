// Package main is an interactive harness for exercising the agent loop
// against a real model backend. Tasks typed at the prompt run through the
// planner; step activity streams to the terminal as it happens.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/joho/godotenv"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/spindle-ai/spindle/agent"
	"github.com/spindle-ai/spindle/funcs"
	"github.com/spindle-ai/spindle/planner"
	"github.com/spindle-ai/spindle/schema"
	"github.com/spindle-ai/spindle/sessions"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorDim    = "\033[2m"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%sError: %v%s\n", colorRed, err, colorReset)
		os.Exit(1)
	}
}

func run() error {
	// Missing .env is fine; the key may come from the environment directly.
	_ = godotenv.Load()

	apiKey := os.Getenv("SPINDLE_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return fmt.Errorf("set SPINDLE_API_KEY or OPENAI_API_KEY (a .env file works too)")
	}

	modelName := os.Getenv("SPINDLE_MODEL")
	if modelName == "" {
		modelName = "gpt-4"
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Logger().Level(zerolog.WarnLevel)
	if os.Getenv("SPINDLE_DEBUG") != "" {
		logger = logger.Level(zerolog.DebugLevel)
	}

	clientOpts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithModel(modelName),
	}
	if baseURL := os.Getenv("SPINDLE_BASE_URL"); baseURL != "" {
		clientOpts = append(clientOpts, openai.WithBaseURL(baseURL))
	}
	llm, err := openai.New(clientOpts...)
	if err != nil {
		return fmt.Errorf("create model client: %w", err)
	}

	factory := sessions.NewLangChainFactory(llm).WithModelName(modelName)

	ag := agent.New(factory).
		WithRegistry(demoRegistry()).
		WithSystemPrompt("You are a helpful assistant. Use the available functions when they help.").
		WithLogger(logger).
		OnStep(printStep)

	pl := planner.New(ag, factory).WithLogger(logger)

	rl, err := readline.New(colorCyan + "task> " + colorReset)
	if err != nil {
		return fmt.Errorf("create readline: %w", err)
	}
	defer rl.Close()

	// Ctrl-C stops the in-flight run cooperatively instead of killing the
	// process; the loop notices at its next iteration boundary.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for range sigCh {
			fmt.Println("\nstopping after the current iteration...")
			ag.Stop()
		}
	}()

	fmt.Println("Type a task to run it, '/plan' to show the current plan, 'q' to quit.")

	var previousPlan *planner.Plan
	for {
		line, err := rl.Readline()
		if err != nil {
			return nil
		}
		line = strings.TrimSpace(line)

		switch {
		case line == "":
			continue
		case line == "q" || line == "quit":
			return nil
		case line == "/plan":
			printPlan(pl.Plan())
			continue
		}

		ag.Reset()
		result := pl.Run(context.Background(), line)

		if previousPlan != nil && pl.Plan() != nil {
			printPlanDiff(previousPlan, pl.Plan())
		}
		previousPlan = pl.Plan()

		printResult(result)
	}
}

func demoRegistry() *funcs.Registry {
	reg := funcs.NewRegistry()

	reg.Register(&funcs.FunctionDefinition{
		Name:        "word_count",
		Description: "Count the words in a piece of text",
		Parameters: schema.Object(map[string]*schema.Schema{
			"text": schema.String("The text to count"),
		}),
		Handler: funcs.FuncOf(func(_ context.Context, in struct {
			Text string `json:"text"`
		}) (any, error) {
			return map[string]any{"words": len(strings.Fields(in.Text))}, nil
		}),
	})

	reg.Register(&funcs.FunctionDefinition{
		Name:        "remember",
		Description: "Store a short note under a key for later in the conversation",
		Parameters: schema.Object(map[string]*schema.Schema{
			"key":  schema.String("Note identifier"),
			"note": schema.String("The note text"),
		}),
		Handler: newNotepad().store,
	})

	return reg
}

// notepad is in-memory demo state shared across a CLI session.
type notepad struct {
	notes map[string]string
}

func newNotepad() *notepad {
	return &notepad{notes: make(map[string]string)}
}

func (n *notepad) store(_ context.Context, args map[string]any) (any, error) {
	key, _ := args["key"].(string)
	note, _ := args["note"].(string)
	n.notes[key] = note
	return map[string]any{"stored": key, "total": len(n.notes)}, nil
}

func printStep(step *agent.Step) {
	if step.Action != nil {
		fmt.Printf("%s[%d] %s(%v)%s\n",
			colorYellow, step.Iteration, step.Action.Name, step.Action.Arguments, colorReset)
		if step.Observation != nil && !step.Observation.Success {
			fmt.Printf("%s    error: %s%s\n", colorRed, step.Observation.Error, colorReset)
		}
		return
	}
	fmt.Printf("%s[%d] %s%s\n", colorDim, step.Iteration, step.Thought, colorReset)
}

func printPlan(plan *planner.Plan) {
	if plan == nil || len(plan.Steps) == 0 {
		fmt.Println("(no plan yet)")
		return
	}
	for i, step := range plan.Steps {
		fmt.Printf("%d. %s\n", i+1, step)
	}
}

// printPlanDiff shows how the plan changed between runs.
func printPlanDiff(before, after *planner.Plan) {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(strings.Join(before.Steps, "\n")),
		B:        difflib.SplitLines(strings.Join(after.Steps, "\n")),
		FromFile: "previous plan",
		ToFile:   "current plan",
		Context:  2,
	})
	if err != nil || diff == "" {
		return
	}
	fmt.Printf("%s%s%s", colorDim, diff, colorReset)
}

func printResult(result *agent.Result) {
	switch result.Status {
	case agent.StatusCompleted:
		fmt.Printf("%s%s%s\n", colorGreen, result.FinalAnswer, colorReset)
	case agent.StatusStopped:
		fmt.Printf("%sstopped after %d iterations%s\n", colorYellow, result.Iterations, colorReset)
	default:
		fmt.Printf("%srun %s: %v%s\n", colorRed, result.Status, result.Err, colorReset)
	}
	fmt.Printf("%siterations=%d prompts=%d tool_calls=%d tokens=%d/%d%s\n",
		colorDim, result.Iterations, result.Stats.PromptCount, result.Stats.ToolCalls,
		result.Stats.Budget.Used, result.Stats.Budget.Max, colorReset)
}
