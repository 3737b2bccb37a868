package store

import (
	"io/ioutil"
	"os"
	"testing"

	"github.com/ledgernode/ledgernode/src/ledger"
)

func nodeIDs() []int { return []int{1, 2, 3, 4, 5} }

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir, err := ioutil.TempDir("", "ledgernode-store")
	if err != nil {
		t.Fatalf("tempdir: %v", err)
	}
	defer os.RemoveAll(dir)

	s, err := New(dir, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	l := ledger.New(nodeIDs())
	b := l.BuildCandidate(1, 2, 25)
	if err := l.Apply(b); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if err := s.Save(l); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded := ledger.New(nodeIDs())
	found, err := s.Load(loaded)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !found {
		t.Fatalf("expected snapshot to be found")
	}

	if loaded.Depth() != l.Depth() {
		t.Fatalf("depth mismatch: got %d, want %d", loaded.Depth(), l.Depth())
	}
	if loaded.Balance(1) != l.Balance(1) || loaded.Balance(2) != l.Balance(2) {
		t.Fatalf("balance mismatch after reload")
	}
}

func TestLoadMissingFileReturnsNotFound(t *testing.T) {
	dir, err := ioutil.TempDir("", "ledgernode-store")
	if err != nil {
		t.Fatalf("tempdir: %v", err)
	}
	defer os.RemoveAll(dir)

	s, err := New(dir, 9)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	l := ledger.New(nodeIDs())
	found, err := s.Load(l)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if found {
		t.Fatalf("expected no snapshot to be found")
	}
}
