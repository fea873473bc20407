// Package tt provides shared test doubles for the module's test suites.
package tt

import (
	"context"
	"sync"

	"github.com/spindle-ai/spindle"
)

// MockSession is a scripted spindle.Session. Responses are queued with
// AddResponse/AddError and consumed one per Prompt call; prompts are captured
// for verification.
type MockSession struct {
	mu sync.Mutex

	responses []string
	errors    []error
	callIdx   int

	// CapturedPrompts stores every prompt passed to Prompt or
	// PromptStreaming, in order.
	CapturedPrompts []string

	// DisposeCount counts Dispose calls, for idempotency assertions.
	DisposeCount int

	disposed bool

	maxTokens int
	used      int

	// StreamChunkSize controls how many bytes each streaming snapshot grows
	// by. Zero streams the whole response as a single snapshot.
	StreamChunkSize int
}

// NewMockSession creates an empty scripted session with an 8k token budget.
func NewMockSession() *MockSession {
	return &MockSession{maxTokens: 8192}
}

// AddResponse queues a response for the next Prompt call.
func (m *MockSession) AddResponse(text string) *MockSession {
	m.responses = append(m.responses, text)
	m.errors = append(m.errors, nil)
	return m
}

// AddResponses queues several responses at once.
func (m *MockSession) AddResponses(texts ...string) *MockSession {
	for _, t := range texts {
		m.AddResponse(t)
	}
	return m
}

// AddError queues an error for the next Prompt call.
func (m *MockSession) AddError(err error) *MockSession {
	m.responses = append(m.responses, "")
	m.errors = append(m.errors, err)
	return m
}

// CallCount returns how many prompts have been consumed.
func (m *MockSession) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callIdx
}

// Disposed reports whether Dispose has been called at least once.
func (m *MockSession) Disposed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disposed
}

func (m *MockSession) next(text string) (string, error) {
	if m.disposed {
		return "", spindle.ErrSessionClosed
	}
	m.CapturedPrompts = append(m.CapturedPrompts, text)

	idx := m.callIdx
	m.callIdx++

	if idx >= len(m.responses) {
		return "Task complete.", nil
	}
	if m.errors[idx] != nil {
		return "", m.errors[idx]
	}
	m.used += len(text)/4 + len(m.responses[idx])/4
	return m.responses[idx], nil
}

// Prompt implements spindle.Session.
func (m *MockSession) Prompt(_ context.Context, text string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.next(text)
}

// PromptStreaming implements spindle.Session. The scripted response is
// emitted as accumulating snapshots of StreamChunkSize bytes each.
func (m *MockSession) PromptStreaming(_ context.Context, text string) (<-chan string, error) {
	m.mu.Lock()
	response, err := m.next(text)
	chunkSize := m.StreamChunkSize
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}

	snapshots := make(chan string, len(response)+1)
	go func() {
		defer close(snapshots)
		if chunkSize <= 0 {
			snapshots <- response
			return
		}
		for end := chunkSize; end < len(response); end += chunkSize {
			snapshots <- response[:end]
		}
		snapshots <- response
	}()
	return snapshots, nil
}

// TokenBudget implements spindle.Session.
func (m *MockSession) TokenBudget() (spindle.Budget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed {
		return spindle.Budget{}, spindle.ErrSessionClosed
	}
	return spindle.Budget{
		Max:       m.maxTokens,
		Used:      m.used,
		Remaining: m.maxTokens - m.used,
	}, nil
}

// Clone implements spindle.Session. The clone shares the remaining scripted
// responses by reference; tests that need divergent scripts should build two
// sessions instead.
func (m *MockSession) Clone(_ context.Context) (spindle.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed {
		return nil, spindle.ErrSessionClosed
	}
	clone := NewMockSession()
	clone.responses = m.responses[m.callIdx:]
	clone.errors = m.errors[m.callIdx:]
	clone.used = m.used
	return clone, nil
}

// Dispose implements spindle.Session. Idempotent; every call is counted.
func (m *MockSession) Dispose() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DisposeCount++
	m.disposed = true
}

// Compile-time check.
var _ spindle.Session = (*MockSession)(nil)

// MockFactory hands out queued sessions in order. When the queue is
// exhausted it returns fresh empty MockSessions.
type MockFactory struct {
	mu       sync.Mutex
	sessions []*MockSession
	idx      int

	// CapturedOptions stores the options of every Create call.
	CapturedOptions []spindle.SessionOptions

	// CreateErr, when set, fails every Create call.
	CreateErr error
}

// NewMockFactory creates a factory that will hand out the given sessions.
func NewMockFactory(sessions ...*MockSession) *MockFactory {
	return &MockFactory{sessions: sessions}
}

// Create implements spindle.SessionFactory.
func (f *MockFactory) Create(_ context.Context, opts spindle.SessionOptions) (spindle.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.CapturedOptions = append(f.CapturedOptions, opts)
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}

	if f.idx < len(f.sessions) {
		s := f.sessions[f.idx]
		f.idx++
		return s, nil
	}
	return NewMockSession(), nil
}

// Compile-time check.
var _ spindle.SessionFactory = (*MockFactory)(nil)
