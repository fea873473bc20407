package funcs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spindle-ai/spindle"
	"github.com/spindle-ai/spindle/schema"
)

// Execute looks up the called function, validates its arguments, and invokes
// the handler.
//
// Failure modes all produce a failed ToolResult rather than an error:
//
//   - unknown function name: the handler is never invoked
//   - missing required argument: validation short-circuits before invocation
//   - handler error or panic: caught and converted to a failure
//
// Unknown extra arguments are tolerated (logged, not rejected) to stay
// forgiving of model imprecision. The loop is never fatally affected by a
// single bad call.
func Execute(ctx context.Context, call *spindle.FunctionCall, reg *Registry) *spindle.ToolResult {
	if call == nil {
		return spindle.FailResult("no function call provided")
	}

	def := reg.Get(call.Name)
	if def == nil {
		return spindle.FailResult(fmt.Sprintf("%s: %s", spindle.ErrUnknownFunction, call.Name))
	}

	if result := validateArguments(call, def, reg); result != nil {
		return result
	}

	return invoke(ctx, def, call.Arguments)
}

// ExecuteAll executes calls strictly in order, accumulating results
// positionally. Sequential by design: later calls may depend on earlier
// results communicated through the same conversational session.
func ExecuteAll(ctx context.Context, calls []*spindle.FunctionCall, reg *Registry) []*spindle.ToolResult {
	results := make([]*spindle.ToolResult, len(calls))
	for i, call := range calls {
		results[i] = Execute(ctx, call, reg)
	}
	return results
}

// validateArguments checks the call against the declared parameter schema.
// Returns a failed result on violation, nil when the call may proceed.
func validateArguments(call *spindle.FunctionCall, def *FunctionDefinition, reg *Registry) *spindle.ToolResult {
	if def.Parameters == nil {
		return nil
	}
	if def.Parameters.Kind() != schema.KindObject {
		return spindle.FailResult(fmt.Sprintf(
			"function %s has a non-object parameter schema", def.Name))
	}

	for _, name := range def.Parameters.Required() {
		if _, present := call.Arguments[name]; !present {
			return spindle.FailResult(fmt.Sprintf(
				"%s: missing required argument %q for function %s",
				spindle.ErrInvalidArguments, name, def.Name))
		}
	}

	declared := make(map[string]bool, len(def.Parameters.Properties()))
	for _, name := range def.Parameters.Properties() {
		declared[name] = true
	}
	for name := range call.Arguments {
		if !declared[name] {
			reg.logger.Debug().
				Str("function", def.Name).
				Str("argument", name).
				Msg("ignoring undeclared argument")
		}
	}

	return nil
}

// invoke runs the handler, converting panics and errors into failed results.
func invoke(ctx context.Context, def *FunctionDefinition, args map[string]any) (result *spindle.ToolResult) {
	defer func() {
		if r := recover(); r != nil {
			result = spindle.FailResult(fmt.Sprintf("function %s panicked: %v", def.Name, r))
		}
	}()

	if def.Handler == nil {
		return spindle.FailResult(fmt.Sprintf("function %s has no handler", def.Name))
	}

	value, err := def.Handler(ctx, args)
	if err != nil {
		return spindle.FailResult(err.Error())
	}
	return spindle.OkResult(value)
}

// FormatResult renders a tool result as the canonical text re-injected into
// the conversation. The format is stable so a human reviewing the transcript
// can follow tool activity.
func FormatResult(name string, result *spindle.ToolResult) string {
	if result == nil {
		return fmt.Sprintf("Function %q produced no result.", name)
	}
	if !result.Success {
		return fmt.Sprintf("Function %q failed: %s", name, result.Error)
	}

	payload, err := json.Marshal(result.Result)
	if err != nil {
		return fmt.Sprintf("Function %q succeeded but its result could not be encoded: %v", name, err)
	}
	return fmt.Sprintf("Function %q returned: %s", name, payload)
}
