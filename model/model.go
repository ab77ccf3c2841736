package model

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of a structured prompt.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SystemMessage builds a system-role message.
func SystemMessage(content string) Message { return Message{Role: RoleSystem, Content: content} }

// UserMessage builds a user-role message.
func UserMessage(content string) Message { return Message{Role: RoleUser, Content: content} }

// AssistantMessage builds an assistant-role message.
func AssistantMessage(content string) Message { return Message{Role: RoleAssistant, Content: content} }

// Chunk is one increment of a streaming completion. Done marks the final
// chunk; its Text holds the full accumulated completion.
type Chunk struct {
	Text string
	Done bool
}

// Info describes a backend implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
}

// Backend is the generative collaborator contract. Implementations carry
// their own timeout and retry policy; callers only pass a context.
type Backend interface {
	// Complete performs one synchronous completion.
	Complete(ctx context.Context, messages []Message) (string, error)

	// CompleteAll runs one completion per message list concurrently and
	// returns the results in input order. A failed slot leaves an empty
	// string at its index; the joined errors are returned alongside.
	CompleteAll(ctx context.Context, batches [][]Message) ([]string, error)

	// Stream performs one completion delivered incrementally. The chunk
	// channel is closed after the Done chunk; at most one error is sent on
	// the error channel.
	Stream(ctx context.Context, messages []Message) (<-chan Chunk, <-chan error)

	// Info returns metadata about the backend.
	Info() Info
}

// NewHTTPClient builds an HTTP client enforcing the connect and first-packet
// parts of a Timeouts contract. The total deadline is applied per call via
// context, not here.
func NewHTTPClient(t Timeouts) *http.Client {
	dialer := &net.Dialer{Timeout: t.Connect}
	return &http.Client{
		Transport: &http.Transport{
			DialContext:           dialer.DialContext,
			ResponseHeaderTimeout: t.FirstPacket,
			ForceAttemptHTTP2:     true,
		},
	}
}

// MockBackend is an in-memory Backend for tests and for the API-less demo
// path. Completions are canned per prompt text, with a default echo.
type MockBackend struct {
	mu        sync.Mutex
	responses map[string]string
	errs      []error
	calls     int
}

var _ Backend = (*MockBackend)(nil)

// NewMockBackend constructs an empty mock.
func NewMockBackend() *MockBackend {
	return &MockBackend{responses: make(map[string]string)}
}

// AddResponse registers a canned completion for a prompt. The prompt is
// matched against the last user message.
func (m *MockBackend) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// FailNext queues errors to be returned by the next calls, in order, before
// any canned response is considered.
func (m *MockBackend) FailNext(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = append(m.errs, errs...)
}

// Calls reports how many completions were attempted.
func (m *MockBackend) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Complete implements Backend.
func (m *MockBackend) Complete(ctx context.Context, messages []Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		return "", err
	}
	prompt := lastUserText(messages)
	if resp, ok := m.responses[prompt]; ok {
		return resp, nil
	}
	return fmt.Sprintf("mock response to: %s", prompt), nil
}

// CompleteAll implements Backend.
func (m *MockBackend) CompleteAll(ctx context.Context, batches [][]Message) ([]string, error) {
	return CompleteAll(ctx, m, batches)
}

// Stream implements Backend; the canned completion is emitted rune by rune.
func (m *MockBackend) Stream(ctx context.Context, messages []Message) (<-chan Chunk, <-chan error) {
	out := make(chan Chunk, 16)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)
		full, err := m.Complete(ctx, messages)
		if err != nil {
			errCh <- err
			return
		}
		for _, r := range full {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case out <- Chunk{Text: string(r)}:
			}
		}
		out <- Chunk{Text: full, Done: true}
	}()
	return out, errCh
}

// Info implements Backend.
func (m *MockBackend) Info() Info { return Info{Name: "mock", Provider: "mock"} }

// CompleteAll fans one Complete call out per batch, preserving input order.
// Backend implementations delegate their CompleteAll to this.
func CompleteAll(ctx context.Context, b Backend, batches [][]Message) ([]string, error) {
	results := make([]string, len(batches))
	errs := make([]error, len(batches))

	var wg sync.WaitGroup
	for i, batch := range batches {
		wg.Add(1)
		go func(i int, batch []Message) {
			defer wg.Done()
			text, err := b.Complete(ctx, batch)
			if err != nil {
				errs[i] = fmt.Errorf("batch %d: %w", i, err)
				return
			}
			results[i] = text
		}(i, batch)
	}
	wg.Wait()

	return results, joinErrs(errs)
}

func lastUserText(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content
		}
	}
	if len(messages) > 0 {
		return messages[len(messages)-1].Content
	}
	return ""
}
