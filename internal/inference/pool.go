package inference

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"
)

// ErrDegraded's text is the Message of the result ProcessFrame returns
// (with Success=false and a nil error) when the pool holds no backend
// connections.
var ErrDegraded = errors.New("no inference backend available")

const (
	backoffStart = time.Second
	backoffFCap  = 30 * time.Second
	connectTries = 10
	probeTimeout = 5 * time.Second
)

// Pool is a fixed-size set of inference backend connections, selected
// round-robin. Construction may succeed with zero members when
// allowDegraded is set, in which case every ProcessFrame call returns an
// unsuccessful result carrying ErrDegraded's text instead of the caller
// crashing the ingestion path.
type Pool struct {
	clients []Client
	next    atomic.Uint64
	logger  *log.Logger
}

// NewPool dials size backend connections sequentially at addr, retrying
// each with exponential backoff (1s, factor 2, capped at 30s, up to 10
// attempts). If a connection cannot be established after exhausting
// retries: when allowDegraded is true the pool simply holds fewer
// clients (down to zero); otherwise construction fails.
func NewPool(ctx context.Context, addr string, size int, allowDegraded bool, logger *log.Logger) (*Pool, error) {
	if logger == nil {
		logger = log.Default()
	}
	p := &Pool{logger: logger}

	for i := 0; i < size; i++ {
		client, err := connectWithRetry(ctx, addr, logger)
		if err != nil {
			if allowDegraded {
				logger.Printf("[INFERENCE] backend %d/%d unavailable, proceeding degraded with %d: %v", i+1, size, len(p.clients), err)
				break
			}
			p.Close()
			return nil, fmt.Errorf("connect inference backend %d/%d: %w", i+1, size, err)
		}
		p.clients = append(p.clients, client)
	}

	if len(p.clients) == 0 && !allowDegraded {
		return nil, errors.New("no inference backends available and degraded mode disabled")
	}
	return p, nil
}

// NewPoolFromClients builds a pool directly from already-constructed
// clients, bypassing dialing. Used by tests to inject MockClient members.
func NewPoolFromClients(clients []Client) *Pool {
	return &Pool{clients: clients, logger: log.Default()}
}

func connectWithRetry(ctx context.Context, addr string, logger *log.Logger) (Client, error) {
	backoff := backoffStart
	var lastErr error
	for attempt := 1; attempt <= connectTries; attempt++ {
		client, err := DialGRPCClient(addr)
		if err == nil {
			probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
			_, probeErr := client.GetModelInfo(probeCtx)
			cancel()
			if probeErr == nil {
				return client, nil
			}
			client.Close()
			err = probeErr
		}
		lastErr = err
		logger.Printf("[INFERENCE] connect attempt %d/%d to %s failed: %v", attempt, connectTries, addr, err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > backoffFCap {
			backoff = backoffFCap
		}
	}
	return nil, fmt.Errorf("exhausted %d connect attempts: %w", connectTries, lastErr)
}

// Size reports the number of live backend connections held by the pool.
func (p *Pool) Size() int {
	return len(p.clients)
}

// Degraded reports whether the pool holds no backend connections.
func (p *Pool) Degraded() bool {
	return len(p.clients) == 0
}

// Pick selects the next backend round-robin.
func (p *Pool) pick() (Client, bool) {
	if len(p.clients) == 0 {
		return nil, false
	}
	idx := p.next.Add(1) % uint64(len(p.clients))
	return p.clients[idx], true
}

// ProcessFrame dispatches to the next backend in round-robin order. If the
// pool holds no backends it returns a result with Success=false and
// ErrDegraded's text as Message, and a nil error.
func (p *Pool) ProcessFrame(ctx context.Context, frameBytes []byte, width, height, channels int32, format string) (*ProcessFrameResult, error) {
	client, ok := p.pick()
	if !ok {
		return &ProcessFrameResult{Success: false, Message: ErrDegraded.Error()}, nil
	}
	return client.ProcessFrame(ctx, frameBytes, width, height, channels, format)
}

// Close shuts down every backend connection held by the pool.
func (p *Pool) Close() error {
	var firstErr error
	for _, c := range p.clients {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
