package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"

	"github.com/scangate/gateway/internal/metrics"
	"github.com/scangate/gateway/internal/pipeline"
	"github.com/scangate/gateway/internal/protocol"
	"github.com/scangate/gateway/internal/reassembly"
	"github.com/scangate/gateway/internal/session"
)

const udpChunkSize = 1400

// UDPServer owns one UDP socket. A single goroutine reads datagrams and
// hands each one to a worker goroutine, which adds it to the reassembler
// and runs the pipeline once its message is complete, so the receive loop
// is never blocked by pipeline work.
type UDPServer struct {
	addr        string
	pipeline    *pipeline.Pipeline
	reassembler *reassembly.Reassembler
	sessions    *session.Registry
	logger      *slog.Logger
	metrics     *metrics.Metrics

	conn      net.PacketConn
	nextMsgID atomic.Uint64
	done      chan struct{}
}

// SetMetrics wires Prometheus collectors into the server. Optional.
func (s *UDPServer) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// ReassemblyLen reports the number of in-flight partial multi-chunk
// messages, for the periodic gauge updater in cmd/server.
func (s *UDPServer) ReassemblyLen() int {
	return s.reassembler.Len()
}

func NewUDPServer(addr string, p *pipeline.Pipeline, sessions *session.Registry, logger *slog.Logger) *UDPServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &UDPServer{
		addr:        addr,
		pipeline:    p,
		reassembler: reassembly.New(0, 0),
		sessions:    sessions,
		logger:      logger,
		done:        make(chan struct{}),
	}
}

func (s *UDPServer) Start(ctx context.Context) error {
	conn, err := net.ListenPacket("udp", s.addr)
	if err != nil {
		return fmt.Errorf("listen udp transport: %w", err)
	}
	s.conn = conn

	go s.receiveLoop()
	return nil
}

func (s *UDPServer) Shutdown(ctx context.Context) error {
	close(s.done)
	s.reassembler.Stop()
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func (s *UDPServer) receiveLoop() {
	buf := make([]byte, 65535)
	for {
		n, peer, err := s.conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				s.logger.Warn("udp read error", "error", err)
				continue
			}
		}
		if n < protocol.ChunkHeaderSize {
			continue
		}

		datagram := make([]byte, n)
		copy(datagram, buf[:n])
		go s.handleDatagram(datagram, peer)
	}
}

func (s *UDPServer) handleDatagram(datagram []byte, peer net.Addr) {
	defer recoverFatal(s.logger, "udpserver.handleDatagram")

	header, err := protocol.DecodeChunkHeader(datagram[:protocol.ChunkHeaderSize])
	if err != nil {
		return
	}
	payload := datagram[protocol.ChunkHeaderSize:]

	envelopeBytes, complete := s.reassembler.AddChunk(header.MessageID, header.ChunkIndex, header.TotalChunks, payload)
	if !complete {
		return
	}

	if s.metrics != nil {
		s.metrics.FramesReceived.WithLabelValues("udp").Inc()
	}

	env, err := protocol.DecodeEnvelope(envelopeBytes)
	if err != nil {
		s.respond(peer, protocol.NewResponse(false, "malformed envelope", "", 0, 0, 0, nil))
		if s.metrics != nil {
			s.metrics.MalformedEnvelopes.WithLabelValues("udp").Inc()
		}
		return
	}
	if s.sessions != nil {
		s.sessions.Touch(env.SessionID, peer)
	}

	responder := &udpResponder{server: s, peer: peer}
	s.pipeline.Handle(context.Background(), env, responder)
}

func (s *UDPServer) respond(peer net.Addr, resp *protocol.Response) {
	(&udpResponder{server: s, peer: peer}).Respond(resp)
}

// udpResponder chunks a Response under a fresh message id and writes each
// chunk back to the originating peer address.
type udpResponder struct {
	server *UDPServer
	peer   net.Addr
}

func (r *udpResponder) Respond(resp *protocol.Response) error {
	body, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}

	msgID := r.server.nextMsgID.Add(1)
	totalChunks := (len(body) + udpChunkSize - 1) / udpChunkSize
	if totalChunks == 0 {
		totalChunks = 1
	}

	for i := 0; i < totalChunks; i++ {
		start := i * udpChunkSize
		end := start + udpChunkSize
		if end > len(body) {
			end = len(body)
		}
		header := protocol.EncodeChunkHeader(protocol.ChunkHeader{
			MessageID:   msgID,
			ChunkIndex:  uint16(i),
			TotalChunks: uint16(totalChunks),
		})
		datagram := append(header, body[start:end]...)
		if _, err := r.server.conn.WriteTo(datagram, r.peer); err != nil {
			return fmt.Errorf("write udp chunk %d/%d: %w", i+1, totalChunks, err)
		}
	}
	return nil
}
