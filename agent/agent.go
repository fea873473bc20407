// Package agent implements the bounded iteration loop: prompt the model,
// classify the response, dispatch tool calls, and terminate on a stop
// condition, an iteration budget, or a cooperative cancellation signal.
package agent

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/spindle-ai/spindle"
	"github.com/spindle-ai/spindle/funcs"
	"github.com/spindle-ai/spindle/protocol"
)

// DefaultMaxIterations bounds a run when WithMaxIterations is not called.
const DefaultMaxIterations = 10

const continuePrompt = "Continue with the task."

// Agent runs bounded agent loops. Configure with the WithX methods, then
// call Run. An Agent may be reused for sequential runs; each run creates and
// disposes its own session. Concurrent runs of the same Agent share only the
// registry and the stop flag.
type Agent struct {
	factory       spindle.SessionFactory
	registry      *funcs.Registry
	codec         protocol.Codec
	systemPrompt  string
	maxIterations int
	stopCondition StopCondition
	onStep        func(step *Step)
	logger        zerolog.Logger
	temperature   *float64
	topK          *int

	stopped atomic.Bool
}

// New creates an Agent with defaults: JSON codec, empty registry,
// DefaultMaxIterations, the default stop heuristic, and no logging.
func New(factory spindle.SessionFactory) *Agent {
	return &Agent{
		factory:       factory,
		registry:      funcs.NewRegistry(),
		codec:         protocol.NewJSON(),
		maxIterations: DefaultMaxIterations,
		stopCondition: DefaultStopCondition,
		logger:        zerolog.Nop(),
	}
}

// WithRegistry sets the function registry shared by the agent's runs.
func (a *Agent) WithRegistry(reg *funcs.Registry) *Agent {
	if reg != nil {
		a.registry = reg
	}
	return a
}

// WithCodec sets the protocol codec.
func (a *Agent) WithCodec(codec protocol.Codec) *Agent {
	if codec != nil {
		a.codec = codec
	}
	return a
}

// WithSystemPrompt sets behavior instructions prepended to the generated
// function-calling instructions.
func (a *Agent) WithSystemPrompt(prompt string) *Agent {
	a.systemPrompt = prompt
	return a
}

// WithMaxIterations sets the iteration budget. Values below 1 are ignored.
func (a *Agent) WithMaxIterations(n int) *Agent {
	if n > 0 {
		a.maxIterations = n
	}
	return a
}

// WithStopCondition replaces the default completion heuristic with a
// caller-supplied predicate over the full step history.
func (a *Agent) WithStopCondition(cond StopCondition) *Agent {
	if cond != nil {
		a.stopCondition = cond
	}
	return a
}

// OnStep registers an observer invoked synchronously after each step is
// appended. The observer may call Stop.
func (a *Agent) OnStep(fn func(step *Step)) *Agent {
	a.onStep = fn
	return a
}

// WithLogger sets the logger for iteration progress.
func (a *Agent) WithLogger(logger zerolog.Logger) *Agent {
	a.logger = logger
	return a
}

// WithTemperature sets the sampling temperature for created sessions.
func (a *Agent) WithTemperature(t float64) *Agent {
	a.temperature = &t
	return a
}

// WithTopK sets top-K sampling for created sessions.
func (a *Agent) WithTopK(k int) *Agent {
	a.topK = &k
	return a
}

// Stop signals cooperative cancellation. The flag is observed at the top of
// each iteration, never mid-prompt: an in-flight model call cannot be
// pre-empted, only its result discarded once control returns to the loop.
// The signal applies to the in-flight run and stays set until Reset.
func (a *Agent) Stop() {
	a.stopped.Store(true)
}

// Reset clears a previous Stop signal so the agent can run again.
func (a *Agent) Reset() {
	a.stopped.Store(false)
}

// Registry returns the agent's function registry.
func (a *Agent) Registry() *funcs.Registry {
	return a.registry
}

// Run executes the loop for the given task until a stop condition is
// satisfied, the iteration budget is exhausted, Stop is called, or the
// session fails. The returned Result is an immutable snapshot; errors are
// carried in Result.Err with StatusFailed rather than returned separately.
//
// The session is released on every exit path.
func (a *Agent) Run(ctx context.Context, task string) *Result {
	runID := uuid.NewString()
	result := &Result{
		RunID:  runID,
		Status: StatusRunning,
		Stats:  Stats{ToolCallsByName: make(map[string]int)},
	}

	a.logger.Info().
		Str("run_id", runID).
		Int("max_iterations", a.maxIterations).
		Msg("agent run starting")

	session, err := a.factory.Create(ctx, spindle.SessionOptions{
		SystemPrompt: a.buildSystemPrompt(),
		Temperature:  a.temperature,
		TopK:         a.topK,
	})
	if err != nil {
		result.Status = StatusFailed
		result.Err = fmt.Errorf("create session: %w", err)
		return result
	}
	defer func() {
		if budget, err := session.TokenBudget(); err == nil {
			result.Stats.Budget = budget
		}
		session.Dispose()
	}()

	currentPrompt := task

	for iteration := 1; iteration <= a.maxIterations; iteration++ {
		if a.stopped.Load() || ctx.Err() != nil {
			result.Status = StatusStopped
			a.logger.Info().Str("run_id", runID).Int("iteration", iteration).
				Msg("agent run stopped")
			return result
		}

		result.Iterations = iteration

		response, err := session.Prompt(ctx, currentPrompt)
		if err != nil {
			result.Status = StatusFailed
			result.Err = fmt.Errorf("prompt (iteration %d): %w", iteration, err)
			return result
		}
		result.Stats.PromptCount++

		parsed := a.codec.ParseResponse(response)

		if parsed.IsFunctionCall() {
			currentPrompt = a.dispatch(ctx, result, iteration, parsed)
			continue
		}

		a.appendStep(result, &Step{
			Iteration: iteration,
			Timestamp: time.Now(),
			Thought:   parsed.RegularResponse,
		})

		if a.stopCondition(result.Steps) {
			result.Status = StatusCompleted
			result.FinalAnswer = parsed.RegularResponse
			a.logger.Info().Str("run_id", runID).Int("iterations", iteration).
				Msg("agent run completed")
			return result
		}

		currentPrompt = continuePrompt
	}

	// Iteration budget exhausted without an explicit stop.
	if a.stopped.Load() {
		result.Status = StatusStopped
	} else {
		result.Status = StatusCompleted
	}
	if n := len(result.Steps); n > 0 {
		result.FinalAnswer = result.Steps[n-1].Thought
	}
	a.logger.Info().Str("run_id", runID).Int("iterations", result.Iterations).
		Msg("agent run exhausted iteration budget")
	return result
}

// dispatch executes a classified function call, records the step, and
// returns the next prompt.
func (a *Agent) dispatch(ctx context.Context, result *Result, iteration int, parsed *protocol.Parsed) string {
	call := parsed.FunctionCall

	a.logger.Debug().
		Str("run_id", result.RunID).
		Int("iteration", iteration).
		Str("function", call.Name).
		Msg("executing function call")

	observation := funcs.Execute(ctx, call, a.registry)
	result.Stats.ToolCalls++
	result.Stats.ToolCallsByName[call.Name]++

	a.appendStep(result, &Step{
		Iteration:   iteration,
		Timestamp:   time.Now(),
		Thought:     parsed.Reasoning,
		Action:      call,
		Observation: observation,
	})

	return fmt.Sprintf(
		"%s\n\nContinue with the task, or give your final answer without calling functions.",
		funcs.FormatResult(call.Name, observation),
	)
}

func (a *Agent) appendStep(result *Result, step *Step) {
	result.Steps = append(result.Steps, step)
	if a.onStep != nil {
		a.onStep(step)
	}
}

func (a *Agent) buildSystemPrompt() string {
	functionPrompt := a.codec.BuildFunctionSystemPrompt(a.registry.Catalog())
	switch {
	case a.systemPrompt == "":
		return functionPrompt
	case functionPrompt == "":
		return a.systemPrompt
	}
	return a.systemPrompt + "\n\n" + functionPrompt
}
