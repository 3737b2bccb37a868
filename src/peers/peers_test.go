package peers

import "testing"

func sampleList() []Peer {
	return []Peer{
		{NodeID: 1, Addr: "127.0.0.1:9001"},
		{NodeID: 2, Addr: "127.0.0.1:9002"},
		{NodeID: 3, Addr: "127.0.0.1:9003"},
		{NodeID: 4, Addr: "127.0.0.1:9004"},
		{NodeID: 5, Addr: "127.0.0.1:9005"},
	}
}

func TestNewPeerSet(t *testing.T) {
	ps, err := New(sampleList(), 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if ps.SelfID() != 2 {
		t.Fatalf("SelfID = %d, want 2", ps.SelfID())
	}
	if ps.SelfAddr() != "127.0.0.1:9002" {
		t.Fatalf("SelfAddr = %s", ps.SelfAddr())
	}
	if ps.Count() != 5 {
		t.Fatalf("Count = %d, want 5", ps.Count())
	}
}

func TestOthersExcludesSelf(t *testing.T) {
	ps, err := New(sampleList(), 3)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	others := ps.Others()
	if len(others) != 4 {
		t.Fatalf("expected 4 others, got %d", len(others))
	}
	for _, id := range others {
		if id == 3 {
			t.Fatalf("Others() included self")
		}
	}
}

func TestNewRejectsUnknownSelf(t *testing.T) {
	if _, err := New(sampleList(), 99); err == nil {
		t.Fatalf("expected error for unknown self id")
	}
}
