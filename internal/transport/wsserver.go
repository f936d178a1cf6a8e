package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/scangate/gateway/internal/metrics"
	"github.com/scangate/gateway/internal/pipeline"
	"github.com/scangate/gateway/internal/protocol"
	"github.com/scangate/gateway/internal/session"
)

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsWriteWait  = 10 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSServer is the binary-over-connection transport: one long-lived
// websocket per client, each inbound message a complete frame envelope,
// handled by the shared pipeline.
type WSServer struct {
	addr        string
	path        string
	idleTimeout time.Duration
	pipeline    *pipeline.Pipeline
	sessions    *session.Registry
	logger      *slog.Logger
	metrics     *metrics.Metrics

	httpServer *http.Server
	listener   net.Listener
}

func NewWSServer(addr, path string, idleTimeout time.Duration, p *pipeline.Pipeline, sessions *session.Registry, logger *slog.Logger) *WSServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSServer{addr: addr, path: path, idleTimeout: idleTimeout, pipeline: p, sessions: sessions, logger: logger}
}

// SetMetrics wires Prometheus collectors into the server. Optional.
func (s *WSServer) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

func (s *WSServer) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.handleUpgrade)
	s.httpServer = &http.Server{Addr: s.addr, Handler: mux}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen websocket transport: %w", err)
	}
	s.listener = ln

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("websocket server stopped", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound listener address, useful when addr was ":0".
func (s *WSServer) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

func (s *WSServer) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *WSServer) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	go s.serveConn(conn)
}

func (s *WSServer) serveConn(conn *websocket.Conn) {
	defer recoverFatal(s.logger, "wsserver.serveConn")

	var writeMu sync.Mutex
	responder := &wsResponder{conn: conn, mu: &writeMu}

	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(s.idleTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.idleTimeout))
		return nil
	})

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				writeMu.Lock()
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				err := conn.WriteMessage(websocket.PingMessage, nil)
				writeMu.Unlock()
				if err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()
	defer close(done)

	for {
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.BinaryMessage && msgType != websocket.TextMessage {
			continue
		}

		conn.SetReadDeadline(time.Now().Add(s.idleTimeout))

		if s.metrics != nil {
			s.metrics.FramesReceived.WithLabelValues("websocket").Inc()
		}

		env, decodeErr := protocol.DecodeEnvelope(payload)
		if decodeErr != nil {
			responder.Respond(protocol.NewResponse(false, "malformed envelope", "", 0, 0, 0, nil))
			if s.metrics != nil {
				s.metrics.MalformedEnvelopes.WithLabelValues("websocket").Inc()
			}
			continue
		}
		if s.sessions != nil {
			s.sessions.Touch(env.SessionID, conn.RemoteAddr())
		}
		s.pipeline.Handle(context.Background(), env, responder)
	}
}

// wsResponder writes a Response back over the websocket connection as a
// single text frame, serialized through a per-connection mutex since
// gorilla/websocket forbids concurrent writers.
type wsResponder struct {
	conn *websocket.Conn
	mu   *sync.Mutex
}

func (r *wsResponder) Respond(resp *protocol.Response) error {
	body, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return r.conn.WriteMessage(websocket.TextMessage, body)
}
