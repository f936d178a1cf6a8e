package transport

import (
	"context"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scangate/gateway/internal/pipeline"
	"github.com/scangate/gateway/internal/protocol"
	"github.com/scangate/gateway/internal/session"
)

func startTestWSServer(t *testing.T) *WSServer {
	t.Helper()
	p := pipeline.New(passVerifier{}, echoInference{}, nil, nil)
	srv := NewWSServer("127.0.0.1:0", "/ws", time.Second, p, session.NewRegistry(), nil)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return srv
}

func TestWSServerRespondsToBinaryEnvelope(t *testing.T) {
	srv := startTestWSServer(t)

	url := "ws://" + srv.Addr() + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	env := &protocol.Envelope{Token: "tok", SessionID: "s1", Width: 1, Height: 1, ImageBytes: []byte{1}}
	data, err := env.EncodeBinary()
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, data))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), `"success":true`)
}

func TestWSServerRespondsMalformedOnBadPayload(t *testing.T) {
	srv := startTestWSServer(t)

	url := "ws://" + srv.Addr() + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), "malformed envelope")
}
