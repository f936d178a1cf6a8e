// Package reassembly buffers UDP datagram chunks belonging to the same
// message id until all chunks have arrived, or evicts them once they go
// stale.
package reassembly

import (
	"bytes"
	"log"
	"sync"
	"time"

	"github.com/scangate/gateway/internal/protocol"
)

// DefaultSweepInterval and DefaultStaleness match the gateway's recommended
// defaults: sweep every 2s, evict partials idle for more than 3s.
const (
	DefaultSweepInterval = 2 * time.Second
	DefaultStaleness     = 3 * time.Second
)

// partial buffers the chunks of one in-flight message.
type partial struct {
	totalChunks uint16
	chunks      map[uint16][]byte
	lastUpdated time.Time
}

// Reassembler maintains the in-memory map of in-flight UDP partial
// messages and runs a background staleness sweeper.
type Reassembler struct {
	mu        sync.Mutex
	partials  map[uint64]*partial
	staleness time.Duration
	logger    *log.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New creates a Reassembler and starts its background sweeper goroutine.
func New(sweepInterval, staleness time.Duration) *Reassembler {
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	if staleness <= 0 {
		staleness = DefaultStaleness
	}

	r := &Reassembler{
		partials:  make(map[uint64]*partial),
		staleness: staleness,
		logger:    log.New(log.Writer(), "[REASSEMBLY] ", log.LstdFlags),
		stopCh:    make(chan struct{}),
	}

	go r.sweep(sweepInterval)

	return r
}

// Stop terminates the background sweeper. Safe to call multiple times.
func (r *Reassembler) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

// AddChunk inserts one chunk for messageID. If this was the last missing
// chunk, it returns the concatenated envelope bytes and true; the partial
// is removed from the map before the bytes are handed back, so a
// concurrent reader of Len() never observes a completed-but-still-present
// entry.
func (r *Reassembler) AddChunk(messageID uint64, chunkIndex, totalChunks uint16, payload []byte) (envelope []byte, complete bool) {
	if totalChunks == 0 || chunkIndex >= totalChunks {
		return nil, false
	}

	r.mu.Lock()
	p, ok := r.partials[messageID]
	if !ok {
		p = &partial{
			totalChunks: totalChunks,
			chunks:      make(map[uint16][]byte),
		}
		r.partials[messageID] = p
	}

	buf := make([]byte, len(payload))
	copy(buf, payload)
	p.chunks[chunkIndex] = buf
	p.lastUpdated = time.Now()

	done := len(p.chunks) == int(p.totalChunks)
	if done {
		delete(r.partials, messageID)
	}
	r.mu.Unlock()

	if !done {
		return nil, false
	}

	out := new(bytes.Buffer)
	for i := uint16(0); i < p.totalChunks; i++ {
		out.Write(p.chunks[i])
	}
	if out.Len() == 0 {
		return nil, false
	}
	return out.Bytes(), true
}

// Len reports the number of in-flight partial messages, for tests and
// metrics.
func (r *Reassembler) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.partials)
}

// Has reports whether a partial exists for messageID, for tests.
func (r *Reassembler) Has(messageID uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.partials[messageID]
	return ok
}

func (r *Reassembler) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.evictStale()
		}
	}
}

func (r *Reassembler) evictStale() {
	now := time.Now()
	r.mu.Lock()
	evicted := 0
	for id, p := range r.partials {
		if now.Sub(p.lastUpdated) > r.staleness {
			delete(r.partials, id)
			evicted++
		}
	}
	r.mu.Unlock()
	if evicted > 0 {
		r.logger.Printf("evicted %d stale partial message(s)", evicted)
	}
}

// DecodeChunkHeader is re-exported for transport callers that need to peel
// the 12-byte header off a raw datagram before calling AddChunk.
var DecodeChunkHeader = protocol.DecodeChunkHeader
