package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/archon-research/stl-market/internal/domain/entity"
	"github.com/archon-research/stl-market/internal/ports/outbound"
)

var _ outbound.Signer = (*MockSigner)(nil)

// MockSigner implements outbound.Signer for testing. Without SignFn it
// approves everything.
type MockSigner struct {
	mu            sync.Mutex
	SignFn        func(ctx context.Context, tx entity.UnsignedTx) (*entity.SignedTx, error)
	SignMessageFn func(ctx context.Context, account string, message []byte) ([]byte, error)
	Signed        []entity.UnsignedTx
}

func NewMockSigner() *MockSigner {
	return &MockSigner{}
}

// NewDecliningSigner returns a signer whose user declines every request.
func NewDecliningSigner() *MockSigner {
	return &MockSigner{
		SignFn: func(ctx context.Context, tx entity.UnsignedTx) (*entity.SignedTx, error) {
			return nil, nil
		},
		SignMessageFn: func(ctx context.Context, account string, message []byte) ([]byte, error) {
			return nil, nil
		},
	}
}

func (m *MockSigner) Sign(ctx context.Context, tx entity.UnsignedTx) (*entity.SignedTx, error) {
	m.mu.Lock()
	m.Signed = append(m.Signed, tx)
	m.mu.Unlock()
	if m.SignFn != nil {
		return m.SignFn(ctx, tx)
	}
	return &entity.SignedTx{Tx: tx, Raw: []byte("signed:" + tx.Call.Pallet + "." + tx.Call.Method)}, nil
}

func (m *MockSigner) SignMessage(ctx context.Context, account string, message []byte) ([]byte, error) {
	if m.SignMessageFn != nil {
		return m.SignMessageFn(ctx, account, message)
	}
	return append([]byte("sig:"), message...), nil
}

// SignCount returns how many transactions were presented for signing.
func (m *MockSigner) SignCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Signed)
}

// MockMetrics implements outbound.MetricsRecorder for testing.
type MockMetrics struct {
	mu         sync.Mutex
	Operations []string
	Attempts   map[string]int
}

var _ outbound.MetricsRecorder = (*MockMetrics)(nil)

func NewMockMetrics() *MockMetrics {
	return &MockMetrics{Attempts: make(map[string]int)}
}

func (m *MockMetrics) RecordOperation(ctx context.Context, operation, status string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Operations = append(m.Operations, operation+":"+status)
}

func (m *MockMetrics) RecordConfirmationAttempts(ctx context.Context, operation string, attempts int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Attempts[operation] += attempts
}

// Recorded returns the "operation:status" pairs seen so far.
func (m *MockMetrics) Recorded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Operations))
	copy(out, m.Operations)
	return out
}
