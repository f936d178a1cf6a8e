package inference

import (
	"context"
	"encoding/base64"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/scangate/gateway/internal/protocol"
)

// Full gRPC method names for the inference service. No .proto is compiled
// in this environment (the inference engine is an external collaborator;
// only its RPC contract matters), so requests and responses travel as
// google.protobuf.Struct — a real proto.Message, so the call is a genuine
// unary RPC on the wire rather than an in-process stub.
const (
	methodProcessFrame   = "/inference.InferenceService/ProcessFrame"
	methodGetModelInfo   = "/inference.InferenceService/GetModelInfo"
	methodGetServerStats = "/inference.InferenceService/GetServerStats"
)

// GRPCClient is the production Client implementation: one long-lived
// connection to the inference service.
type GRPCClient struct {
	conn *grpc.ClientConn
	addr string
}

// DialGRPCClient opens a connection to the inference service at addr. The
// caller is responsible for the liveness probe (see Pool construction).
func DialGRPCClient(addr string) (*GRPCClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial inference service %s: %w", addr, err)
	}
	return &GRPCClient{conn: conn, addr: addr}, nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

// ProcessFrame dispatches one frame to the inference backend. Channel
// count is derived by the caller from the format tag (rgba=4,
// grayscale=1, default=3) per the pipeline's dispatch rule.
func (c *GRPCClient) ProcessFrame(ctx context.Context, frameBytes []byte, width, height, channels int32, format string) (*ProcessFrameResult, error) {
	req, err := structpb.NewStruct(map[string]interface{}{
		"frame_bytes": base64.StdEncoding.EncodeToString(frameBytes),
		"width":       float64(width),
		"height":      float64(height),
		"channels":    float64(channels),
		"format":      format,
	})
	if err != nil {
		return nil, fmt.Errorf("build process_frame request: %w", err)
	}

	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, methodProcessFrame, req, resp); err != nil {
		return nil, fmt.Errorf("process_frame rpc: %w", err)
	}

	return parseProcessFrameResponse(resp), nil
}

func parseProcessFrameResponse(resp *structpb.Struct) *ProcessFrameResult {
	fields := resp.GetFields()
	result := &ProcessFrameResult{
		Success: fields["success"].GetBoolValue(),
		Message: fields["message"].GetStringValue(),
	}
	if v, ok := fields["processing_time_ms"]; ok {
		result.ProcessingTimeMs = int64(v.GetNumberValue())
	}
	for _, item := range fields["detections"].GetListValue().GetValues() {
		d := item.GetStructValue().GetFields()
		bbox := d["bbox"].GetStructValue().GetFields()
		result.Detections = append(result.Detections, protocol.Detection{
			ClassName:  d["class_name"].GetStringValue(),
			Confidence: d["confidence"].GetNumberValue(),
			BBox: protocol.BBox{
				XMin: bbox["x_min"].GetNumberValue(),
				YMin: bbox["y_min"].GetNumberValue(),
				XMax: bbox["x_max"].GetNumberValue(),
				YMax: bbox["y_max"].GetNumberValue(),
			},
		})
	}
	return result
}

// GetModelInfo is the lightweight metadata RPC used both by callers and by
// the pool's admission liveness probe.
func (c *GRPCClient) GetModelInfo(ctx context.Context) (*ModelInfo, error) {
	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, methodGetModelInfo, &emptypb.Empty{}, resp); err != nil {
		return nil, fmt.Errorf("get_model_info rpc: %w", err)
	}
	fields := resp.GetFields()
	return &ModelInfo{
		Name:    fields["name"].GetStringValue(),
		Version: fields["version"].GetStringValue(),
	}, nil
}

func (c *GRPCClient) GetServerStats(ctx context.Context) (*ServerStats, error) {
	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, methodGetServerStats, &emptypb.Empty{}, resp); err != nil {
		return nil, fmt.Errorf("get_server_stats rpc: %w", err)
	}
	fields := resp.GetFields()
	return &ServerStats{
		FramesProcessed: int64(fields["frames_processed"].GetNumberValue()),
		UptimeSeconds:   int64(fields["uptime_seconds"].GetNumberValue()),
	}, nil
}
