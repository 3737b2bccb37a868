package node

import (
	"testing"
	"time"

	"github.com/ledgernode/ledgernode/src/common"
	"github.com/ledgernode/ledgernode/src/ledger"
	lnet "github.com/ledgernode/ledgernode/src/net"
	"github.com/ledgernode/ledgernode/src/peers"
	"github.com/ledgernode/ledgernode/src/store"
)

const testDelay = 5 * time.Millisecond

func testAddr(id int) string {
	switch id {
	case 1:
		return "node-1"
	case 2:
		return "node-2"
	case 3:
		return "node-3"
	case 4:
		return "node-4"
	default:
		return "node-5"
	}
}

func peerList() []peers.Peer {
	list := make([]peers.Peer, 5)
	for i := range list {
		list[i] = peers.Peer{NodeID: i + 1, Addr: testAddr(i + 1)}
	}
	return list
}

// buildCluster wires 5 nodes over in-memory transports, fully connected,
// each with its own temp-dir store. It starts every node's Run loop and
// returns a cleanup func that shuts them all down.
func buildCluster(t *testing.T) ([]*Node, func()) {
	t.Helper()

	list := peerList()
	transports := make(map[int]*lnet.InmemTransport, 5)
	for _, p := range list {
		transports[p.NodeID] = lnet.NewInmemTransport(p.Addr, testDelay)
	}
	for _, from := range transports {
		for _, p := range list {
			from.Connect(p.Addr, transports[p.NodeID])
		}
	}

	nodes := make([]*Node, 5)
	for i, p := range list {
		ps, err := peers.New(list, p.NodeID)
		if err != nil {
			t.Fatalf("peers.New: %v", err)
		}

		st, err := store.New(t.TempDir(), p.NodeID)
		if err != nil {
			t.Fatalf("store.New: %v", err)
		}

		cfg := NewDefaultConfig()
		cfg.NodeID = p.NodeID
		cfg.ProposalTimeout = 2 * time.Second
		cfg.CatchupWindow = 200 * time.Millisecond

		n, err := New(cfg, ps, transports[p.NodeID], st)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		n.logger = common.NewTestLogger(t).WithField("node_id", p.NodeID)
		nodes[i] = n

		go n.Run()
	}

	return nodes, func() {
		for _, n := range nodes {
			n.Shutdown()
		}
	}
}

func awaitDepth(t *testing.T, n *Node, depth int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if _, d := n.Stats(); d >= depth {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	_, d := n.Stats()
	t.Fatalf("timed out waiting for depth %d, got %d", depth, d)
}

func TestSubmitTransferReplicatesToAllNodes(t *testing.T) {
	nodes, cleanup := buildCluster(t)
	defer cleanup()

	if err := nodes[0].SubmitTransfer(2, 10); err != nil {
		t.Fatalf("SubmitTransfer: %v", err)
	}

	for _, n := range nodes {
		awaitDepth(t, n, 1)
	}

	tip := nodes[0].ReadLedger()[0]
	for _, n := range nodes[1:] {
		chain := n.ReadLedger()
		if len(chain) != 1 || chain[0].Hash != tip.Hash {
			t.Fatalf("node diverged from committed block")
		}
	}

	balances := nodes[0].ReadBalances()
	if balances[1] != ledger.InitialBalance-10 {
		t.Fatalf("sender balance = %d, want %d", balances[1], ledger.InitialBalance-10)
	}
	if balances[2] != ledger.InitialBalance+10 {
		t.Fatalf("receiver balance = %d, want %d", balances[2], ledger.InitialBalance+10)
	}
}

func TestSubmitTransferRejectsInsufficientFunds(t *testing.T) {
	nodes, cleanup := buildCluster(t)
	defer cleanup()

	err := nodes[0].SubmitTransfer(2, ledger.InitialBalance+1)
	if err == nil {
		t.Fatal("expected an error for an overdraft transfer")
	}
}

func TestSubmitTransferRejectsSelfTransfer(t *testing.T) {
	nodes, cleanup := buildCluster(t)
	defer cleanup()

	err := nodes[0].SubmitTransfer(1, 10)
	if err == nil {
		t.Fatal("expected an error for a self-transfer")
	}
}

func TestSubmitTransferRejectsNonPositiveAmount(t *testing.T) {
	nodes, cleanup := buildCluster(t)
	defer cleanup()

	if err := nodes[0].SubmitTransfer(2, 0); err == nil {
		t.Fatal("expected an error for a zero amount")
	}
	if err := nodes[0].SubmitTransfer(2, -10); err == nil {
		t.Fatal("expected an error for a negative amount")
	}
}

func TestFailedNodeCatchesUpAfterRecover(t *testing.T) {
	nodes, cleanup := buildCluster(t)
	defer cleanup()

	nodes[4].Fail()

	if err := nodes[0].SubmitTransfer(2, 10); err != nil {
		t.Fatalf("SubmitTransfer: %v", err)
	}
	for _, n := range nodes[:4] {
		awaitDepth(t, n, 1)
	}

	if err := nodes[1].SubmitTransfer(3, 5); err != nil {
		t.Fatalf("SubmitTransfer: %v", err)
	}
	for _, n := range nodes[:4] {
		awaitDepth(t, n, 2)
	}

	mode, depth := nodes[4].Stats()
	if mode != Failed || depth != 0 {
		t.Fatalf("failed node state = (%s, %d), want (FAILED, 0)", mode, depth)
	}

	nodes[4].Recover()
	awaitDepth(t, nodes[4], 2)

	wantChain := nodes[0].ReadLedger()
	gotChain := nodes[4].ReadLedger()
	if len(gotChain) != len(wantChain) {
		t.Fatalf("caught-up chain depth = %d, want %d", len(gotChain), len(wantChain))
	}
	for i := range wantChain {
		if gotChain[i].Hash != wantChain[i].Hash {
			t.Fatalf("caught-up chain diverges at block %d", i)
		}
	}
}
