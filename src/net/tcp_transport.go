package net

import (
	"encoding/json"
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

// TCPTransport is a Transport built on plain TCP streams. Each outbound
// Message opens a fresh connection and is written as one JSON document;
// inbound connections are decoded until EOF.
type TCPTransport struct {
	failGate

	bindAddr   string
	listener   net.Listener
	consumerCh chan Message
	logger     *logrus.Entry
	delay      time.Duration

	shutdownCh chan struct{}
}

// NewTCPTransport returns a transport that will bind bindAddr when Listen is
// called. delay is the artificial one-way latency applied before every Send;
// a deployment configures it from node.Config.NetDelay (default NetDelay).
func NewTCPTransport(bindAddr string, delay time.Duration, logger *logrus.Entry) (*TCPTransport, error) {
	t := &TCPTransport{
		bindAddr:   bindAddr,
		consumerCh: make(chan Message, 128),
		logger:     logger,
		delay:      delay,
		shutdownCh: make(chan struct{}),
	}
	return t, nil
}

// Listen implements Transport.
func (t *TCPTransport) Listen() error {
	ln, err := net.Listen("tcp", t.bindAddr)
	if err != nil {
		return err
	}
	t.listener = ln

	go t.acceptLoop()

	return nil
}

func (t *TCPTransport) acceptLoop() {
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			select {
			case <-t.shutdownCh:
				return
			default:
				t.logger.WithError(err).Error("accept failed")
				continue
			}
		}
		go t.handleConn(conn)
	}
}

func (t *TCPTransport) handleConn(conn net.Conn) {
	defer conn.Close()

	dec := json.NewDecoder(conn)
	for {
		var msg Message
		if err := dec.Decode(&msg); err != nil {
			return
		}
		if t.isFailed() {
			continue
		}
		t.consumerCh <- msg
	}
}

// Consumer implements Transport.
func (t *TCPTransport) Consumer() <-chan Message {
	return t.consumerCh
}

// LocalAddr implements Transport.
func (t *TCPTransport) LocalAddr() string {
	if t.listener != nil {
		return t.listener.Addr().String()
	}
	return t.bindAddr
}

// Send implements Transport. It waits the configured delay, dials, and
// writes one JSON message, dropping silently on any error or if this side
// is failed.
func (t *TCPTransport) Send(addr string, msg Message) {
	if t.isFailed() {
		return
	}

	go func() {
		select {
		case <-time.After(t.delay):
		case <-t.shutdownCh:
			return
		}

		if t.isFailed() {
			return
		}

		conn, err := net.DialTimeout("tcp", addr, DialTimeout)
		if err != nil {
			t.logger.WithError(err).WithField("addr", addr).Debug("dial failed, dropping message")
			return
		}
		defer conn.Close()

		if err := json.NewEncoder(conn).Encode(msg); err != nil {
			t.logger.WithError(err).WithField("addr", addr).Debug("send failed, dropping message")
		}
	}()
}

// Close implements Transport.
func (t *TCPTransport) Close() error {
	close(t.shutdownCh)
	if t.listener != nil {
		return t.listener.Close()
	}
	return nil
}
