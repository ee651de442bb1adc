package llm

import (
	"context"
	"io"
	"sync"
	"time"
)

// MockProvider implements Provider for testing. It returns a fixed response
// and records every request.
type MockProvider struct {
	FixedContent  string
	Transcript    string
	PingErr       error
	GenerateErr   error
	TranscribeErr error

	mu       sync.Mutex
	requests []Request
}

// NewMockProvider creates a mock provider with a canned response.
func NewMockProvider(content string) *MockProvider {
	return &MockProvider{FixedContent: content}
}

func (p *MockProvider) Name() string { return "Mock" }

func (p *MockProvider) Ping(_ context.Context) error {
	return p.PingErr
}

func (p *MockProvider) Generate(_ context.Context, req Request) (*Response, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()

	if p.GenerateErr != nil {
		return nil, p.GenerateErr
	}
	return &Response{
		Content:    p.FixedContent,
		Model:      "mock",
		TokensUsed: 100,
		Duration:   time.Millisecond,
	}, nil
}

func (p *MockProvider) Transcribe(_ context.Context, _, _ string, audio io.Reader) (string, error) {
	if p.TranscribeErr != nil {
		return "", p.TranscribeErr
	}
	_, _ = io.Copy(io.Discard, audio)
	return p.Transcript, nil
}

// Requests returns the requests received so far.
func (p *MockProvider) Requests() []Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Request(nil), p.requests...)
}
