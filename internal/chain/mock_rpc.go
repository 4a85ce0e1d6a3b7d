package chain

import (
	"context"
	"sync"
)

// MockRPC implements NodeRPC for testing.
type MockRPC struct {
	mu sync.Mutex

	Tip              Tip
	ConnectionCount  int
	Template         *HeaderTemplate
	SubmittedHeaders []string

	// Error overrides
	GetChainTipErr        error
	GetConnectionCountErr error
	GetHeaderTemplateErr  error
	SubmitBlockHeaderErr  error
}

// NewMockRPC creates a mock node RPC client with sensible defaults.
func NewMockRPC() *MockRPC {
	return &MockRPC{
		Tip: Tip{
			Hash:   "0000000000000003fa0d845513ea5014a7859d411f5f4a91eaab24eb47a18f39",
			Height: 800000,
			Time:   1700000000,
		},
		ConnectionCount: 8,
	}
}

// SetTip replaces the mock's chain tip.
func (m *MockRPC) SetTip(tip Tip) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Tip = tip
}

// SetConnectionCount replaces the mock's peer count.
func (m *MockRPC) SetConnectionCount(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ConnectionCount = n
}

func (m *MockRPC) GetChainTip(_ context.Context) (Tip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetChainTipErr != nil {
		return Tip{}, m.GetChainTipErr
	}
	return m.Tip, nil
}

func (m *MockRPC) GetConnectionCount(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetConnectionCountErr != nil {
		return 0, m.GetConnectionCountErr
	}
	return m.ConnectionCount, nil
}

func (m *MockRPC) GetHeaderTemplate(_ context.Context) (*HeaderTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetHeaderTemplateErr != nil {
		return nil, m.GetHeaderTemplateErr
	}
	return m.Template, nil
}

func (m *MockRPC) SubmitBlockHeader(_ context.Context, headerHex string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SubmitBlockHeaderErr != nil {
		return m.SubmitBlockHeaderErr
	}
	m.SubmittedHeaders = append(m.SubmittedHeaders, headerHex)
	return nil
}

// Submitted returns a copy of the submitted header list.
func (m *MockRPC) Submitted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.SubmittedHeaders))
	copy(out, m.SubmittedHeaders)
	return out
}
