package net

import (
	"sync/atomic"
	"time"
)

// Transport provides addressed, best-effort delivery of Messages between
// nodes. Send schedules delivery after a fixed artificial delay and drops
// the message silently if either side is in failed mode or no connection
// can be established; there are no retries and no cross-target ordering
// guarantee.
type Transport interface {
	// Listen starts accepting inbound connections. It returns once the
	// transport is ready to receive.
	Listen() error

	// Consumer returns the channel on which inbound messages are delivered.
	Consumer() <-chan Message

	// Send delivers msg to the peer at addr after the transport's configured
	// delay, unless this transport or the peer is unreachable/failed.
	Send(addr string, msg Message)

	// LocalAddr returns the address other peers dial to reach this transport.
	LocalAddr() string

	// SetFailed toggles whether this transport currently drops all inbound
	// and outbound traffic.
	SetFailed(failed bool)

	// Close releases the transport's resources.
	Close() error
}

// failGate is embedded by transport implementations to provide the shared
// RUNNING/FAILED toggle without duplicating the atomic bookkeeping.
type failGate struct {
	failed uint32
}

func (f *failGate) SetFailed(failed bool) {
	if failed {
		atomic.StoreUint32(&f.failed, 1)
	} else {
		atomic.StoreUint32(&f.failed, 0)
	}
}

func (f *failGate) isFailed() bool {
	return atomic.LoadUint32(&f.failed) == 1
}

// NetDelay is the default artificial latency applied before every outbound
// delivery; node.Config.NetDelay (§6/§7) overrides it per-deployment, and
// tests pass a much smaller value so multi-node scenarios run quickly.
const NetDelay = 3 * time.Second

// DialTimeout bounds how long a TCP connection attempt may take, independent
// of the artificial delay a Send waits out beforehand.
const DialTimeout = 3 * time.Second
