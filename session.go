package spindle

import "context"

// Session is the single-turn completion primitive this module orchestrates.
//
// A session carries conversational state: each Prompt call appends to it, so
// the model sees its own earlier responses (and the corrective feedback the
// controllers inject). The module never implements Session itself - the
// sessions package provides adapters, and callers are free to bring their own.
//
// # Ownership
//
// Each agent run owns exactly one session exclusively for its lifetime and is
// responsible for disposing it on every exit path. Sessions must never be
// shared across concurrent runs; use Clone to fork conversational state.
type Session interface {
	// Prompt sends text to the model and blocks until the full response
	// arrives.
	Prompt(ctx context.Context, text string) (string, error)

	// PromptStreaming sends text to the model and returns a channel of
	// response snapshots. Each snapshot is the full accumulated text so far,
	// not a delta. The channel is closed when the response is complete or the
	// context is cancelled.
	PromptStreaming(ctx context.Context, text string) (<-chan string, error)

	// TokenBudget reports the session's token accounting.
	TokenBudget() (Budget, error)

	// Clone returns an independent continuation sharing this session's
	// context so far. Prompting the clone does not affect the original.
	Clone(ctx context.Context) (Session, error)

	// Dispose releases the session. Disposing twice is a no-op, never an
	// error. All other methods return ErrSessionClosed after disposal.
	Dispose()
}

// Budget is a snapshot of a session's token accounting.
type Budget struct {
	Max       int
	Used      int
	Remaining int
}

// SessionOptions configures session creation.
type SessionOptions struct {
	// SystemPrompt is prepended to the conversation, if the underlying
	// provider supports one.
	SystemPrompt string

	// InitialMessages seeds the conversation history. Each message alternates
	// user/assistant starting with user.
	InitialMessages []string

	// Temperature controls sampling randomness. Nil uses the provider default.
	Temperature *float64

	// TopK limits sampling to the K most likely tokens. Nil uses the provider
	// default.
	TopK *int
}

// SessionFactory creates sessions. Agent runs create one session per run
// through a factory so that concurrent runs never share state.
type SessionFactory interface {
	Create(ctx context.Context, opts SessionOptions) (Session, error)
}

// SessionFactoryFunc adapts a function to the SessionFactory interface.
type SessionFactoryFunc func(ctx context.Context, opts SessionOptions) (Session, error)

// Create implements SessionFactory.
func (f SessionFactoryFunc) Create(ctx context.Context, opts SessionOptions) (Session, error) {
	return f(ctx, opts)
}
