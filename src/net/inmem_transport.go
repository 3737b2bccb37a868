package net

import (
	"sync"
	"time"
)

// InmemTransport implements Transport by routing directly to other
// InmemTransport instances in the same process, skipping the real network.
// Used by tests that need many nodes without binding real sockets.
type InmemTransport struct {
	failGate

	mu         sync.RWMutex
	consumerCh chan Message
	localAddr  string
	peers      map[string]*InmemTransport
	delay      time.Duration
	shutdownCh chan struct{}
}

// NewInmemTransport creates a transport addressed by addr. delay is the
// artificial latency applied before delivery; tests typically pass a much
// smaller value than the real NetDelay.
func NewInmemTransport(addr string, delay time.Duration) *InmemTransport {
	return &InmemTransport{
		consumerCh: make(chan Message, 128),
		localAddr:  addr,
		peers:      make(map[string]*InmemTransport),
		delay:      delay,
		shutdownCh: make(chan struct{}),
	}
}

// Listen implements Transport; there is nothing to bind for an in-memory
// transport.
func (i *InmemTransport) Listen() error { return nil }

// Consumer implements Transport.
func (i *InmemTransport) Consumer() <-chan Message {
	return i.consumerCh
}

// LocalAddr implements Transport.
func (i *InmemTransport) LocalAddr() string {
	return i.localAddr
}

// Send implements Transport.
func (i *InmemTransport) Send(addr string, msg Message) {
	if i.isFailed() {
		return
	}

	i.mu.RLock()
	peer, ok := i.peers[addr]
	i.mu.RUnlock()
	if !ok {
		return
	}

	go func() {
		select {
		case <-time.After(i.delay):
		case <-i.shutdownCh:
			return
		}

		if i.isFailed() || peer.isFailed() {
			return
		}

		select {
		case peer.consumerCh <- msg:
		case <-peer.shutdownCh:
		}
	}()
}

// Connect registers peer as reachable at addr from this transport.
func (i *InmemTransport) Connect(addr string, peer *InmemTransport) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.peers[addr] = peer
}

// Close implements Transport.
func (i *InmemTransport) Close() error {
	close(i.shutdownCh)
	return nil
}
