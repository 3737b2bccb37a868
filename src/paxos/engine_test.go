package paxos

import (
	"testing"

	"github.com/ledgernode/ledgernode/src/ledger"
	lnet "github.com/ledgernode/ledgernode/src/net"
)

// cluster wires five engines together in-process: broadcast/send fan out
// directly into the target engine's handler, bypassing any real transport,
// so tests can drive a full Paxos round synchronously.
type cluster struct {
	engines  map[int]*Engine
	depth    int
	decided  map[int]*ledger.Block
	failed   map[int]bool
	nodeIDs  []int
}

func newCluster() *cluster {
	c := &cluster{
		engines: make(map[int]*Engine),
		decided: make(map[int]*ledger.Block),
		failed:  make(map[int]bool),
		nodeIDs: []int{1, 2, 3, 4, 5},
	}
	for _, id := range c.nodeIDs {
		id := id
		c.engines[id] = NewEngine(Config{
			NodeID:   id,
			NumNodes: len(c.nodeIDs),
			Depth:    func() int { return c.depth },
			AddrOf:   func(n int) string { return addr(n) },
			Broadcast: func(msg lnet.Message) {
				for _, other := range c.nodeIDs {
					if other == id || c.failed[other] {
						continue
					}
					c.deliver(other, msg)
				}
			},
			Send: func(addrStr string, msg lnet.Message) {
				target := nodeOf(addrStr)
				if c.failed[target] {
					return
				}
				c.deliver(target, msg)
			},
			Commit: func(b *ledger.Block) { c.decided[id] = b },
		})
	}
	return c
}

func addr(n int) string   { return "node-" + string(rune('0'+n)) }
func nodeOf(a string) int { return int(a[len(a)-1] - '0') }

func (c *cluster) deliver(target int, msg lnet.Message) {
	e := c.engines[target]
	switch msg.Type {
	case lnet.MsgPrepare:
		e.HandlePrepare(msg)
	case lnet.MsgPromise:
		e.HandlePromise(msg)
	case lnet.MsgAccept:
		e.HandleAccept(msg)
	case lnet.MsgAccepted:
		e.HandleAccepted(msg)
	case lnet.MsgDecide:
		e.HandleDecide(msg)
	}
}

func TestSingleProposerReachesConsensus(t *testing.T) {
	c := newCluster()
	block := &ledger.Block{Sender: 1, Receiver: 2, Amount: 10, Hash: "h1"}

	c.engines[1].Propose(block)

	for _, id := range c.nodeIDs {
		got := c.decided[id]
		if got == nil {
			t.Fatalf("node %d did not decide", id)
		}
		if got.Hash != block.Hash {
			t.Fatalf("node %d decided wrong block: %+v", id, got)
		}
	}
}

func TestCompetingProposersConvergeOnOneValue(t *testing.T) {
	c := newCluster()
	blockA := &ledger.Block{Sender: 1, Receiver: 2, Amount: 10, Hash: "hA"}
	blockB := &ledger.Block{Sender: 3, Receiver: 4, Amount: 5, Hash: "hB"}

	c.engines[5].Propose(blockA)
	c.engines[3].Propose(blockB)

	decidedHashes := map[string]bool{}
	for _, id := range c.nodeIDs {
		got := c.decided[id]
		if got == nil {
			t.Fatalf("node %d did not decide", id)
		}
		decidedHashes[got.Hash] = true
	}

	if len(decidedHashes) != 1 {
		t.Fatalf("expected all nodes to converge on one value, got %v", decidedHashes)
	}
}

func TestHandleDecideIsIdempotent(t *testing.T) {
	c := newCluster()
	block := &ledger.Block{Sender: 1, Receiver: 2, Amount: 10, Hash: "h1"}

	commits := 0
	c.engines[2] = NewEngine(Config{
		NodeID:    2,
		NumNodes:  5,
		Depth:     func() int { return 0 },
		AddrOf:    addr,
		Broadcast: func(lnet.Message) {},
		Send:      func(string, lnet.Message) {},
		Commit:    func(*ledger.Block) { commits++ },
	})

	msg := lnet.Message{Type: lnet.MsgDecide, Block: block}
	c.engines[2].HandleDecide(msg)
	c.engines[2].HandleDecide(msg)

	if commits != 1 {
		t.Fatalf("expected exactly one commit, got %d", commits)
	}
}
