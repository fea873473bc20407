// Package sessions provides Session implementations over real model
// backends. The LangChain adapter makes any LangChainGo llms.Model usable as
// the completion primitive.
package sessions

import (
	"context"
	"sync"

	"github.com/tmc/langchaingo/llms"

	"github.com/spindle-ai/spindle"
)

// DefaultMaxTokens is the assumed context window when WithMaxTokens is not
// called.
const DefaultMaxTokens = 8192

// LangChainFactory creates sessions backed by a LangChainGo llms.Model.
type LangChainFactory struct {
	model     llms.Model
	modelName string
	maxTokens int
}

// NewLangChainFactory wraps a LangChainGo model.
func NewLangChainFactory(model llms.Model) *LangChainFactory {
	return &LangChainFactory{
		model:     model,
		modelName: "gpt-4",
		maxTokens: DefaultMaxTokens,
	}
}

// WithModelName sets the model name used for token counting.
func (f *LangChainFactory) WithModelName(name string) *LangChainFactory {
	f.modelName = name
	return f
}

// WithMaxTokens sets the context window size reported by TokenBudget.
func (f *LangChainFactory) WithMaxTokens(n int) *LangChainFactory {
	if n > 0 {
		f.maxTokens = n
	}
	return f
}

// Create implements spindle.SessionFactory.
func (f *LangChainFactory) Create(_ context.Context, opts spindle.SessionOptions) (spindle.Session, error) {
	s := &langChainSession{
		model:     f.model,
		modelName: f.modelName,
		maxTokens: f.maxTokens,
		opts:      opts,
	}

	if opts.SystemPrompt != "" {
		s.history = append(s.history,
			llms.TextParts(llms.ChatMessageTypeSystem, opts.SystemPrompt))
		s.used += llms.CountTokens(f.modelName, opts.SystemPrompt)
	}
	role := llms.ChatMessageTypeHuman
	for _, msg := range opts.InitialMessages {
		s.history = append(s.history, llms.TextParts(role, msg))
		s.used += llms.CountTokens(f.modelName, msg)
		if role == llms.ChatMessageTypeHuman {
			role = llms.ChatMessageTypeAI
		} else {
			role = llms.ChatMessageTypeHuman
		}
	}

	return s, nil
}

// langChainSession keeps the conversation history client-side; every Prompt
// call replays it through GenerateContent.
type langChainSession struct {
	mu        sync.Mutex
	model     llms.Model
	modelName string
	maxTokens int
	opts      spindle.SessionOptions
	history   []llms.MessageContent
	used      int
	disposed  bool
}

// Prompt implements spindle.Session.
func (s *langChainSession) Prompt(ctx context.Context, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return "", spindle.ErrSessionClosed
	}

	s.history = append(s.history, llms.TextParts(llms.ChatMessageTypeHuman, text))

	response, err := s.model.GenerateContent(ctx, s.history, s.callOptions()...)
	if err != nil {
		// Roll back the user message so a retry does not duplicate it.
		s.history = s.history[:len(s.history)-1]
		return "", err
	}

	content := ""
	if len(response.Choices) > 0 {
		content = response.Choices[0].Content
	}

	s.history = append(s.history, llms.TextParts(llms.ChatMessageTypeAI, content))
	s.used += llms.CountTokens(s.modelName, text) + llms.CountTokens(s.modelName, content)
	return content, nil
}

// PromptStreaming implements spindle.Session. Each value on the returned
// channel is the full accumulated response so far. The channel closes when
// the response completes or the stream errors.
func (s *langChainSession) PromptStreaming(ctx context.Context, text string) (<-chan string, error) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil, spindle.ErrSessionClosed
	}
	s.history = append(s.history, llms.TextParts(llms.ChatMessageTypeHuman, text))
	history := make([]llms.MessageContent, len(s.history))
	copy(history, s.history)
	s.mu.Unlock()

	snapshots := make(chan string, 16)

	go func() {
		defer close(snapshots)

		var accumulated string
		opts := append(s.callOptions(), llms.WithStreamingFunc(
			func(ctx context.Context, chunk []byte) error {
				accumulated += string(chunk)
				select {
				case snapshots <- accumulated:
				case <-ctx.Done():
					return ctx.Err()
				}
				return nil
			}))

		response, err := s.model.GenerateContent(ctx, history, opts...)

		s.mu.Lock()
		defer s.mu.Unlock()
		if err != nil {
			// Roll back the user message, mirroring Prompt.
			if n := len(s.history); n > 0 {
				s.history = s.history[:n-1]
			}
			return
		}

		final := accumulated
		if len(response.Choices) > 0 && response.Choices[0].Content != "" {
			final = response.Choices[0].Content
		}
		s.history = append(s.history, llms.TextParts(llms.ChatMessageTypeAI, final))
		s.used += llms.CountTokens(s.modelName, text) + llms.CountTokens(s.modelName, final)
	}()

	return snapshots, nil
}

// TokenBudget implements spindle.Session. Counts are tiktoken estimates, not
// provider-reported usage.
func (s *langChainSession) TokenBudget() (spindle.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return spindle.Budget{}, spindle.ErrSessionClosed
	}

	remaining := s.maxTokens - s.used
	if remaining < 0 {
		remaining = 0
	}
	return spindle.Budget{Max: s.maxTokens, Used: s.used, Remaining: remaining}, nil
}

// Clone implements spindle.Session. The clone shares the conversation so far
// but diverges from here on.
func (s *langChainSession) Clone(_ context.Context) (spindle.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return nil, spindle.ErrSessionClosed
	}

	history := make([]llms.MessageContent, len(s.history))
	copy(history, s.history)

	return &langChainSession{
		model:     s.model,
		modelName: s.modelName,
		maxTokens: s.maxTokens,
		opts:      s.opts,
		history:   history,
		used:      s.used,
	}, nil
}

// Dispose implements spindle.Session. Idempotent.
func (s *langChainSession) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disposed = true
}

func (s *langChainSession) callOptions() []llms.CallOption {
	var opts []llms.CallOption
	if s.opts.Temperature != nil {
		opts = append(opts, llms.WithTemperature(*s.opts.Temperature))
	}
	if s.opts.TopK != nil {
		opts = append(opts, llms.WithTopK(*s.opts.TopK))
	}
	return opts
}

// Compile-time checks.
var (
	_ spindle.Session        = (*langChainSession)(nil)
	_ spindle.SessionFactory = (*LangChainFactory)(nil)
)
