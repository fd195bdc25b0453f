package chat

import (
	"context"
	"errors"
	"sync"
)

var errNoResponses = errors.New("no canned responses left")

// MockResponse is a canned reply for MockProvider.
type MockResponse struct {
	Text string
	Err  error
}

// MockCall records one Reply invocation.
type MockCall struct {
	History []Message
	Prompt  string
}

// MockProvider returns canned responses in FIFO order and records every call.
type MockProvider struct {
	mu        sync.Mutex
	responses []MockResponse
	Calls     []MockCall
}

// NewMockProvider creates a MockProvider with the given canned responses.
func NewMockProvider(responses ...MockResponse) *MockProvider {
	return &MockProvider{responses: responses}
}

// Reply returns the next canned response, or a ProviderError once the queue
// is empty.
func (m *MockProvider) Reply(_ context.Context, history []Message, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := make([]Message, len(history))
	copy(h, history)
	m.Calls = append(m.Calls, MockCall{History: h, Prompt: prompt})

	if len(m.responses) == 0 {
		return "", &ProviderError{Provider: "mock", Err: errNoResponses}
	}
	resp := m.responses[0]
	m.responses = m.responses[1:]
	if resp.Err != nil {
		return "", resp.Err
	}
	return resp.Text, nil
}

func (m *MockProvider) Name() string { return "mock" }

// AddResponse appends a canned response to the queue.
func (m *MockProvider) AddResponse(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
}

// CallCount returns the number of Reply calls made.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
