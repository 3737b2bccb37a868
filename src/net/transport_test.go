package net

import (
	"testing"
	"time"
)

func connectedPair(t *testing.T) (*InmemTransport, *InmemTransport) {
	t.Helper()
	a := NewInmemTransport("a", time.Millisecond)
	b := NewInmemTransport("b", time.Millisecond)
	a.Connect("b", b)
	b.Connect("a", a)
	return a, b
}

func TestInmemTransportDelivers(t *testing.T) {
	a, b := connectedPair(t)
	defer a.Close()
	defer b.Close()

	a.Send("b", Message{Type: MsgPrepare, From: 1, Ballot: Ballot{Seq: 1, NodeID: 1, Depth: 0}})

	select {
	case msg := <-b.Consumer():
		if msg.Type != MsgPrepare || msg.From != 1 {
			t.Fatalf("unexpected message: %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestInmemTransportDropsWhenSenderFailed(t *testing.T) {
	a, b := connectedPair(t)
	defer a.Close()
	defer b.Close()

	a.SetFailed(true)
	a.Send("b", Message{Type: MsgPrepare, From: 1})

	select {
	case msg := <-b.Consumer():
		t.Fatalf("expected no delivery while sender failed, got %+v", msg)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestInmemTransportDropsWhenReceiverFailed(t *testing.T) {
	a, b := connectedPair(t)
	defer a.Close()
	defer b.Close()

	b.SetFailed(true)
	a.Send("b", Message{Type: MsgPrepare, From: 1})

	select {
	case msg := <-b.Consumer():
		t.Fatalf("expected no delivery while receiver failed, got %+v", msg)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestInmemTransportDropsUnknownPeer(t *testing.T) {
	a := NewInmemTransport("a", time.Millisecond)
	defer a.Close()

	a.Send("nowhere", Message{Type: MsgPrepare, From: 1})
}
