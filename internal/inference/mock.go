package inference

import (
	"context"
	"sync/atomic"

	"github.com/scangate/gateway/internal/protocol"
)

// MockClient is an in-memory Client used by pipeline and pool tests. It
// never dials anything; ProcessFrame returns whatever Result is configured,
// or a canned success with no detections.
type MockClient struct {
	Result    *ProcessFrameResult
	ErrToFail error
	calls     atomic.Int64
	closed    atomic.Bool
}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) ProcessFrame(ctx context.Context, frameBytes []byte, width, height, channels int32, format string) (*ProcessFrameResult, error) {
	m.calls.Add(1)
	if m.ErrToFail != nil {
		return nil, m.ErrToFail
	}
	if m.Result != nil {
		return m.Result, nil
	}
	return &ProcessFrameResult{
		Success:    true,
		Message:    "ok",
		Detections: []protocol.Detection{},
	}, nil
}

func (m *MockClient) GetModelInfo(ctx context.Context) (*ModelInfo, error) {
	return &ModelInfo{Name: "mock-model", Version: "test"}, nil
}

func (m *MockClient) GetServerStats(ctx context.Context) (*ServerStats, error) {
	return &ServerStats{FramesProcessed: m.calls.Load()}, nil
}

func (m *MockClient) Close() error {
	m.closed.Store(true)
	return nil
}

func (m *MockClient) Calls() int64 {
	return m.calls.Load()
}

func (m *MockClient) Closed() bool {
	return m.closed.Load()
}
