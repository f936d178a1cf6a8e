// Package inference talks to the downstream AI inference service: a fixed
// pool of long-lived RPC clients, selected round-robin, with connect-time
// retry and graceful degradation when no backend is reachable.
package inference

import (
	"context"

	"github.com/scangate/gateway/internal/protocol"
)

// ProcessFrameResult is the RPC response shape for one frame.
type ProcessFrameResult struct {
	Success          bool
	Message          string
	Detections       []protocol.Detection
	ProcessingTimeMs int64
}

// ModelInfo is the RPC response shape for GetModelInfo.
type ModelInfo struct {
	Name    string
	Version string
}

// ServerStats is the RPC response shape for GetServerStats.
type ServerStats struct {
	FramesProcessed int64
	UptimeSeconds   int64
}

// Client is the RPC surface the gateway needs from one inference backend
// connection. GRPCClient is the real implementation; MockClient backs
// pipeline and pool tests without a live backend, the same role
// escrow.MockJuryClient plays for the teacher's JuryClient interface.
type Client interface {
	ProcessFrame(ctx context.Context, frameBytes []byte, width, height, channels int32, format string) (*ProcessFrameResult, error)
	GetModelInfo(ctx context.Context) (*ModelInfo, error)
	GetServerStats(ctx context.Context) (*ServerStats, error)
	Close() error
}
