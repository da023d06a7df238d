package gateway

import (
	"context"
	"sync"
)

// MockService is a scriptable Service for tests. Unset hooks return empty
// successful responses. Every call is recorded.
type MockService struct {
	SendChatFunc      func(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	ApproveFunc       func(ctx context.Context, req *ApproveRequest) (*ApproveResponse, error)
	HistoryFunc       func(ctx context.Context, sessionID string) (*HistoryResponse, error)
	ClearHistoryFunc  func(ctx context.Context, sessionID string) (*ClearResponse, error)
	LinkStatusFunc    func(ctx context.Context, sessionID string) (*StatusResponse, error)
	StartLinkFunc     func(ctx context.Context, sessionID string) (*AuthURLResponse, error)
	LinkedProfileFunc func(ctx context.Context, sessionID string) (*ProfileResponse, error)

	mu       sync.Mutex
	chats    []ChatRequest
	approves []ApproveRequest
	calls    map[string]int
}

// NewMockService creates a new mock backend.
func NewMockService() *MockService {
	return &MockService{calls: make(map[string]int)}
}

func (m *MockService) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[name]++
}

// Calls returns how many times the named operation was invoked.
func (m *MockService) Calls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

// ChatRequests returns the recorded chat requests in call order.
func (m *MockService) ChatRequests() []ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ChatRequest(nil), m.chats...)
}

// ApproveRequests returns the recorded approve requests in call order.
func (m *MockService) ApproveRequests() []ApproveRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ApproveRequest(nil), m.approves...)
}

func (m *MockService) SendChat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	m.record("SendChat")
	m.mu.Lock()
	m.chats = append(m.chats, *req)
	m.mu.Unlock()
	if m.SendChatFunc != nil {
		return m.SendChatFunc(ctx, req)
	}
	return &ChatResponse{ID: "mock", Message: req.Message}, nil
}

func (m *MockService) Approve(ctx context.Context, req *ApproveRequest) (*ApproveResponse, error) {
	m.record("Approve")
	m.mu.Lock()
	m.approves = append(m.approves, *req)
	m.mu.Unlock()
	if m.ApproveFunc != nil {
		return m.ApproveFunc(ctx, req)
	}
	return &ApproveResponse{Success: true}, nil
}

func (m *MockService) History(ctx context.Context, sessionID string) (*HistoryResponse, error) {
	m.record("History")
	if m.HistoryFunc != nil {
		return m.HistoryFunc(ctx, sessionID)
	}
	return &HistoryResponse{}, nil
}

func (m *MockService) ClearHistory(ctx context.Context, sessionID string) (*ClearResponse, error) {
	m.record("ClearHistory")
	if m.ClearHistoryFunc != nil {
		return m.ClearHistoryFunc(ctx, sessionID)
	}
	return &ClearResponse{Success: true}, nil
}

func (m *MockService) LinkStatus(ctx context.Context, sessionID string) (*StatusResponse, error) {
	m.record("LinkStatus")
	if m.LinkStatusFunc != nil {
		return m.LinkStatusFunc(ctx, sessionID)
	}
	return &StatusResponse{Success: true, CredentialsConfigured: true}, nil
}

func (m *MockService) StartLink(ctx context.Context, sessionID string) (*AuthURLResponse, error) {
	m.record("StartLink")
	if m.StartLinkFunc != nil {
		return m.StartLinkFunc(ctx, sessionID)
	}
	return &AuthURLResponse{}, nil
}

func (m *MockService) LinkedProfile(ctx context.Context, sessionID string) (*ProfileResponse, error) {
	m.record("LinkedProfile")
	if m.LinkedProfileFunc != nil {
		return m.LinkedProfileFunc(ctx, sessionID)
	}
	return &ProfileResponse{}, nil
}

var _ Service = (*MockService)(nil)
