// Package paxos drives one classic Paxos instance per ledger slot: a single
// depth is proposed, promised, accepted and decided before the next depth's
// instance begins. Ballots encode their depth, so messages belonging to a
// slot a node has already moved past are trivially recognized as stale.
package paxos

import (
	"github.com/ledgernode/ledgernode/src/ledger"
	lnet "github.com/ledgernode/ledgernode/src/net"
)

// promise is what an acceptor reported back in a PROMISE: the highest
// ballot/value it had already accepted for this slot, if any.
type promise struct {
	ballot lnet.Ballot
	value  *ledger.Block
}

// Engine holds the Paxos state for the slot at the current depth. It is not
// safe for concurrent use: the node controller drives it exclusively from
// its single event-loop goroutine, per the serialization contract it shares
// with the Ledger and the FAILED flag.
type Engine struct {
	nodeID   int
	numNodes int
	depth    func() int

	broadcast func(lnet.Message)
	send      func(addr string, msg lnet.Message)
	commit    func(*ledger.Block)
	addrOf    func(nodeID int) string

	// Proposer state.
	seq           int
	myProposal    *ledger.Block
	promises      map[int]promise
	acceptsFrom   map[int]bool
	isLeader      bool
	currentBallot lnet.Ballot

	// Acceptor state.
	maxBallotPromised lnet.Ballot
	acceptedBallot    lnet.Ballot
	acceptedValue     *ledger.Block

	decided map[string]bool
}

// Config bundles Engine's collaborators: addrOf resolves a node id to its
// transport address, depth reports the ledger's current depth (the slot
// number this engine instance is deciding), and commit is invoked exactly
// once per decided block.
type Config struct {
	NodeID    int
	NumNodes  int
	Depth     func() int
	AddrOf    func(nodeID int) string
	Broadcast func(lnet.Message)
	Send      func(addr string, msg lnet.Message)
	Commit    func(*ledger.Block)
}

// NewEngine constructs an Engine for a single node.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		nodeID:    cfg.NodeID,
		numNodes:  cfg.NumNodes,
		depth:     cfg.Depth,
		addrOf:    cfg.AddrOf,
		broadcast: cfg.Broadcast,
		send:      cfg.Send,
		commit:    cfg.Commit,
		promises:  make(map[int]promise),
		decided:   make(map[string]bool),
	}
}

func (e *Engine) majority() int {
	return e.numNodes/2 + 1
}

// Propose starts a new ballot for block at the current depth. It broadcasts
// PREPARE to every peer and self-handles it as an acceptor.
func (e *Engine) Propose(block *ledger.Block) {
	e.myProposal = block
	e.seq++
	b := lnet.Ballot{Seq: e.seq, NodeID: e.nodeID, Depth: e.depth()}
	e.currentBallot = b
	e.promises = make(map[int]promise)
	e.acceptsFrom = make(map[int]bool)
	e.isLeader = false

	msg := lnet.Message{Type: lnet.MsgPrepare, From: e.nodeID, Ballot: b}
	e.broadcast(msg)
	e.HandlePrepare(msg)
}

// Retry is called when the proposal timer fires: it restarts the ballot for
// the block this node is still trying to commit, with a higher seq. It is a
// no-op only if this node has nothing in flight; a node that already became
// leader but has not yet seen its block decided starts a new ballot too.
func (e *Engine) Retry() {
	if e.myProposal == nil {
		return
	}
	e.Propose(e.myProposal)
}

// HasPendingProposal reports whether this node is still trying to commit a
// block it proposed for the current depth.
func (e *Engine) HasPendingProposal() bool {
	return e.myProposal != nil
}

// CancelProposal discards any in-flight proposer state, used when the node
// transitions to FAILED.
func (e *Engine) CancelProposal() {
	e.myProposal = nil
	e.isLeader = false
	e.promises = make(map[int]promise)
	e.acceptsFrom = make(map[int]bool)
}

// HandlePrepare handles an acceptor's view of a PREPARE message, replying
// PROMISE to the sender if the ballot is newer than anything promised so
// far, or dropping silently otherwise.
func (e *Engine) HandlePrepare(msg lnet.Message) {
	if !e.maxBallotPromised.Less(msg.Ballot) {
		return
	}
	e.maxBallotPromised = msg.Ballot

	reply := lnet.Message{
		Type:           lnet.MsgPromise,
		From:           e.nodeID,
		Ballot:         msg.Ballot,
		AcceptedBallot: e.acceptedBallot,
		AcceptedValue:  e.acceptedValue,
	}
	e.reply(msg.From, reply)
}

// HandlePromise handles a proposer's receipt of a PROMISE. Once a majority
// has promised, it becomes leader, adopts the highest previously-accepted
// value (Paxos P2c) if any acceptor reported one, and broadcasts ACCEPT.
func (e *Engine) HandlePromise(msg lnet.Message) {
	if msg.Ballot != e.currentBallot {
		return
	}

	e.promises[msg.From] = promise{ballot: msg.AcceptedBallot, value: msg.AcceptedValue}

	if len(e.promises) < e.majority() || e.isLeader {
		return
	}
	e.isLeader = true

	valToPropose := e.myProposal
	var highest lnet.Ballot
	for _, p := range e.promises {
		if p.value != nil && highest.Less(p.ballot) {
			highest = p.ballot
			valToPropose = p.value
		}
	}

	acceptMsg := lnet.Message{Type: lnet.MsgAccept, From: e.nodeID, Ballot: e.currentBallot, Block: valToPropose}
	e.acceptsFrom = make(map[int]bool)
	e.broadcast(acceptMsg)
	e.HandleAccept(acceptMsg)
}

// HandleAccept handles an acceptor's view of an ACCEPT message, accepting
// and replying ACCEPTED if the ballot is at least as new as anything
// promised, or dropping silently otherwise.
func (e *Engine) HandleAccept(msg lnet.Message) {
	if msg.Ballot.Less(e.maxBallotPromised) {
		return
	}
	e.maxBallotPromised = msg.Ballot
	e.acceptedBallot = msg.Ballot
	e.acceptedValue = msg.Block

	accepted := lnet.Message{Type: lnet.MsgAccepted, From: e.nodeID, Ballot: msg.Ballot, Block: msg.Block}
	e.reply(msg.From, accepted)
}

// HandleAccepted handles a leader's receipt of an ACCEPTED. Once a majority
// has accepted, it broadcasts DECIDE and commits locally.
func (e *Engine) HandleAccepted(msg lnet.Message) {
	if msg.Ballot != e.currentBallot {
		return
	}

	if e.acceptsFrom == nil {
		e.acceptsFrom = make(map[int]bool)
	}
	e.acceptsFrom[msg.From] = true

	if len(e.acceptsFrom) < e.majority() {
		return
	}

	if msg.Block != nil && e.decided[msg.Block.Hash] {
		return
	}

	decideMsg := lnet.Message{Type: lnet.MsgDecide, From: e.nodeID, Block: msg.Block}
	e.broadcast(decideMsg)
	e.HandleDecide(decideMsg)
}

// HandleDecide handles a learner's receipt of a DECIDE, committing the block
// exactly once and resetting per-slot acceptor state for the next depth.
func (e *Engine) HandleDecide(msg lnet.Message) {
	if msg.Block == nil {
		return
	}
	if e.decided[msg.Block.Hash] {
		return
	}
	e.decided[msg.Block.Hash] = true

	e.commit(msg.Block)

	e.acceptedValue = nil
	e.acceptedBallot = lnet.Ballot{}
	e.myProposal = nil
	e.isLeader = false
}

// reply delivers a PROMISE or ACCEPTED to targetNodeID. When the target is
// this node itself, it is dispatched directly to the matching handler rather
// than round-tripped through the transport, mirroring how a proposer's
// self-sent PREPARE is handled locally in Propose.
func (e *Engine) reply(targetNodeID int, msg lnet.Message) {
	if targetNodeID != e.nodeID {
		e.send(e.addrOf(targetNodeID), msg)
		return
	}
	switch msg.Type {
	case lnet.MsgPromise:
		e.HandlePromise(msg)
	case lnet.MsgAccepted:
		e.HandleAccepted(msg)
	}
}
