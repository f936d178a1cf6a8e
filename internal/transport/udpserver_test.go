package transport

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scangate/gateway/internal/auth"
	"github.com/scangate/gateway/internal/inference"
	"github.com/scangate/gateway/internal/pipeline"
	"github.com/scangate/gateway/internal/protocol"
	"github.com/scangate/gateway/internal/session"
)

type passVerifier struct{}

func (passVerifier) Verify(token string) (*auth.Claims, error) {
	return &auth.Claims{UserID: 1, Username: "alice", DeviceID: "dev-1"}, nil
}

type echoInference struct{}

func (echoInference) ProcessFrame(ctx context.Context, frameBytes []byte, width, height, channels int32, format string) (*inference.ProcessFrameResult, error) {
	return &inference.ProcessFrameResult{Success: true, Message: "ok"}, nil
}

func startTestUDPServer(t *testing.T) (*UDPServer, string) {
	t.Helper()
	p := pipeline.New(passVerifier{}, echoInference{}, nil, nil)
	srv := NewUDPServer("127.0.0.1:0", p, session.NewRegistry(), nil)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return srv, srv.conn.LocalAddr().String()
}

func buildBinaryEnvelope(t *testing.T) []byte {
	t.Helper()
	env := &protocol.Envelope{
		Token:      "tok",
		SessionID:  "sess-1",
		FrameSeq:   42,
		Width:      10,
		Height:     20,
		Format:     "jpeg",
		ImageBytes: []byte{1, 2, 3},
	}
	data, err := env.EncodeBinary()
	require.NoError(t, err)
	return data
}

func TestUDPServerSingleChunkRoundTrip(t *testing.T) {
	_, addr := startTestUDPServer(t)

	client, err := net.Dial("udp", addr)
	require.NoError(t, err)
	defer client.Close()

	payload := buildBinaryEnvelope(t)
	header := protocol.EncodeChunkHeader(protocol.ChunkHeader{MessageID: 1, ChunkIndex: 0, TotalChunks: 1})
	datagram := append(header, payload...)
	_, err = client.Write(datagram)
	require.NoError(t, err)

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 65535)
	n, err := client.Read(buf)
	require.NoError(t, err)
	require.Greater(t, n, protocol.ChunkHeaderSize)

	respHeader, err := protocol.DecodeChunkHeader(buf[:protocol.ChunkHeaderSize])
	require.NoError(t, err)
	assert.Equal(t, uint16(0), respHeader.ChunkIndex)
	assert.Equal(t, uint16(1), respHeader.TotalChunks)

	var resp protocol.Response
	require.NoError(t, json.Unmarshal(buf[protocol.ChunkHeaderSize:n], &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, uint64(42), resp.FrameSequence)
}

func TestUDPServerDropsShortDatagram(t *testing.T) {
	_, addr := startTestUDPServer(t)

	client, err := net.Dial("udp", addr)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Write([]byte{1, 2, 3})
	require.NoError(t, err)

	client.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	buf := make([]byte, 1024)
	_, err = client.Read(buf)
	assert.Error(t, err)
}
