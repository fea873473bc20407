package spindle

// FunctionCall is a parsed request from the model to invoke a registered
// function. It lives for one loop iteration: produced by the protocol codec,
// consumed by the execution controller.
type FunctionCall struct {
	Name      string
	Arguments map[string]any
}

// ToolResult is the outcome of executing one FunctionCall. Exactly one of
// Result or Error is meaningful, selected by Success. Results are appended to
// step history and never mutated after creation.
type ToolResult struct {
	Success bool
	Result  any
	Error   string
}

// OkResult wraps a handler's return value as a successful ToolResult.
func OkResult(value any) *ToolResult {
	return &ToolResult{Success: true, Result: value}
}

// FailResult wraps an error message as a failed ToolResult.
func FailResult(msg string) *ToolResult {
	return &ToolResult{Success: false, Error: msg}
}
