// Package planner wraps the agent loop with a plan phase before execution
// and a bounded reflection phase after non-completed runs.
package planner

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/rs/zerolog"

	"github.com/spindle-ai/spindle"
	"github.com/spindle-ai/spindle/agent"
)

// DefaultMaxReflections bounds the reflection phase when WithMaxReflections
// is not called.
const DefaultMaxReflections = 2

// DefaultPlanningTemplate renders the plan-phase prompt. Override with
// WithPlanningTemplate; the template receives {{.Task}}.
var DefaultPlanningTemplate = template.Must(template.New("planning").Parse(
	`Break the following task into a short sequence of concrete steps.

Task: {{.Task}}

Respond with a numbered list only, one step per line:
1. First step
2. Second step

No other prose.`))

// DefaultReflectionTemplate renders the reflection prompt. Override with
// WithReflectionTemplate; the template receives {{.Task}} and {{.History}}.
var DefaultReflectionTemplate = template.Must(template.New("reflection").Parse(
	`You attempted the following task but did not complete it.

Task: {{.Task}}

Here is what happened:
{{.History}}

Reflect on the attempt. Summarize:
- What was accomplished
- What challenges were hit
- What should be corrected
- What to do next`))

type planningData struct {
	Task string
}

type reflectionData struct {
	Task    string
	History string
}

// Planner runs the plan/execute/reflect super-loop around an Agent.
type Planner struct {
	agent          *agent.Agent
	factory        spindle.SessionFactory
	maxReflections int
	planningTmpl   *template.Template
	reflectionTmpl *template.Template
	logger         zerolog.Logger

	plan *Plan
}

// New creates a Planner around the given agent. The factory provides the
// short-lived sessions used for planning and reflection prompts; they are
// separate from the agent's own per-run session.
func New(ag *agent.Agent, factory spindle.SessionFactory) *Planner {
	return &Planner{
		agent:          ag,
		factory:        factory,
		maxReflections: DefaultMaxReflections,
		planningTmpl:   DefaultPlanningTemplate,
		reflectionTmpl: DefaultReflectionTemplate,
		logger:         zerolog.Nop(),
	}
}

// WithMaxReflections sets the reflection budget. Zero disables reflection;
// negative values are ignored.
func (p *Planner) WithMaxReflections(n int) *Planner {
	if n >= 0 {
		p.maxReflections = n
	}
	return p
}

// WithPlanningTemplate overrides the planning prompt template.
func (p *Planner) WithPlanningTemplate(tmpl *template.Template) *Planner {
	if tmpl != nil {
		p.planningTmpl = tmpl
	}
	return p
}

// WithReflectionTemplate overrides the reflection prompt template.
func (p *Planner) WithReflectionTemplate(tmpl *template.Template) *Planner {
	if tmpl != nil {
		p.reflectionTmpl = tmpl
	}
	return p
}

// WithLogger sets the logger for phase progress.
func (p *Planner) WithLogger(logger zerolog.Logger) *Planner {
	p.logger = logger
	return p
}

// Plan returns the current plan, or nil before the first Run.
func (p *Planner) Plan() *Plan {
	return p.plan
}

// Run executes the super-loop: generate a plan, run the agent on the task,
// then - while the run did not complete, the reflection budget is not spent,
// and no cancellation occurred - request a reflection over the step history
// and re-run the agent with a continuation prompt embedding it.
//
// The terminal result is whatever the agent last produced. A session failure
// during the plan phase fails the run; a failure during reflection logs and
// returns the current result.
func (p *Planner) Run(ctx context.Context, task string) *agent.Result {
	plan, err := p.generatePlan(ctx, task)
	if err != nil {
		return &agent.Result{
			Status: agent.StatusFailed,
			Err:    fmt.Errorf("plan phase: %w", err),
		}
	}
	p.plan = plan
	p.logger.Info().Int("plan_steps", len(plan.Steps)).Msg("plan generated")

	result := p.agent.Run(ctx, task)

	for reflections := 0; p.shouldReflect(ctx, result, reflections); reflections++ {
		reflection, err := p.reflect(ctx, task, result.Steps)
		if err != nil {
			p.logger.Warn().Err(err).Msg("reflection failed, keeping current result")
			return result
		}
		p.logger.Info().Int("reflection", reflections+1).Msg("re-running agent after reflection")

		result = p.agent.Run(ctx, continuationPrompt(task, reflection))
	}

	return result
}

// Replan rebuilds the plan from the given step history and overwrites the
// current plan. It does not re-run the agent.
func (p *Planner) Replan(ctx context.Context, task string, steps []*agent.Step) (*Plan, error) {
	prompt := fmt.Sprintf(
		"The task is in progress. Produce an updated numbered plan for what remains.\n\nTask: %s\n\nProgress so far:\n%s\n\nRespond with a numbered list only, one step per line.",
		task, FormatSteps(steps),
	)

	response, err := p.promptOnce(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("replan: %w", err)
	}

	p.plan = ParsePlan(response)
	return p.plan, nil
}

// shouldReflect gates the reflection loop. Completed is the goal state, and
// stopped means a human or deadline said quit; re-running after either would
// override an explicit signal, so only failed runs reflect.
func (p *Planner) shouldReflect(ctx context.Context, result *agent.Result, reflections int) bool {
	if reflections >= p.maxReflections {
		return false
	}
	if result.Status == agent.StatusCompleted || result.Status == agent.StatusStopped {
		return false
	}
	return ctx.Err() == nil
}

func (p *Planner) generatePlan(ctx context.Context, task string) (*Plan, error) {
	var sb strings.Builder
	if err := p.planningTmpl.Execute(&sb, planningData{Task: task}); err != nil {
		return nil, fmt.Errorf("render planning prompt: %w", err)
	}

	response, err := p.promptOnce(ctx, sb.String())
	if err != nil {
		return nil, err
	}
	return ParsePlan(response), nil
}

func (p *Planner) reflect(ctx context.Context, task string, steps []*agent.Step) (string, error) {
	var sb strings.Builder
	err := p.reflectionTmpl.Execute(&sb, reflectionData{
		Task:    task,
		History: FormatSteps(steps),
	})
	if err != nil {
		return "", fmt.Errorf("render reflection prompt: %w", err)
	}

	return p.promptOnce(ctx, sb.String())
}

// promptOnce runs a single prompt on a fresh, immediately-disposed session.
func (p *Planner) promptOnce(ctx context.Context, prompt string) (string, error) {
	session, err := p.factory.Create(ctx, spindle.SessionOptions{})
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	defer session.Dispose()

	return session.Prompt(ctx, prompt)
}

func continuationPrompt(task, reflection string) string {
	return fmt.Sprintf(
		"You previously attempted this task and reflected on the attempt.\n\nReflection:\n%s\n\nOriginal task: %s\n\nContinue working on the task, taking the reflection into account.",
		reflection, task,
	)
}

// FormatSteps renders step history as a readable transcript for plan and
// reflection prompts.
func FormatSteps(steps []*agent.Step) string {
	if len(steps) == 0 {
		return "(no steps recorded)"
	}

	var sb strings.Builder
	for _, step := range steps {
		fmt.Fprintf(&sb, "Step %d:", step.Iteration)
		if step.Thought != "" {
			fmt.Fprintf(&sb, " %s", step.Thought)
		}
		sb.WriteString("\n")
		if step.Action != nil {
			fmt.Fprintf(&sb, "  Called %s(%v)", step.Action.Name, step.Action.Arguments)
			if step.Observation != nil {
				if step.Observation.Success {
					fmt.Fprintf(&sb, " -> %v", step.Observation.Result)
				} else {
					fmt.Fprintf(&sb, " -> error: %s", step.Observation.Error)
				}
			}
			sb.WriteString("\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
