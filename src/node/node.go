// Package node owns a node's run/fail lifecycle, sequences user requests
// into Paxos proposals, and drives the catch-up protocol on recovery. A
// single goroutine (Run) owns the Ledger, the Paxos Slot Engine, the
// RUNNING/FAILED flag, and receives every mutation as a message on its
// mailbox channel, so no additional locking is required among them.
package node

import (
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ledgernode/ledgernode/src/ledger"
	lnet "github.com/ledgernode/ledgernode/src/net"
	"github.com/ledgernode/ledgernode/src/paxos"
	"github.com/ledgernode/ledgernode/src/peers"
	"github.com/ledgernode/ledgernode/src/store"
)

// Mode reports whether a node is currently able to participate in the
// protocol.
type Mode string

const (
	// Running is a node's normal operating mode.
	Running Mode = "RUNNING"
	// Failed is a locally-induced outage: the node drops all network I/O
	// until Recover is called.
	Failed Mode = "FAILED"
)

type reqKind int

const (
	reqSubmitTransfer reqKind = iota
	reqFail
	reqRecover
	reqReadLedger
	reqReadBalances
	reqStats
)

type request struct {
	kind     reqKind
	receiver int
	amount   int
	respCh   chan response
}

type response struct {
	err      error
	chain    []*ledger.Block
	balances map[int]int
	mode     Mode
	depth    int
}

// Node is a single replica: it owns the Ledger, drives the Paxos Slot Engine
// for the current depth, and runs the catch-up protocol on recovery.
type Node struct {
	config *Config
	peers  *peers.PeerSet
	ledger *ledger.Ledger
	trans  lnet.Transport
	store  *store.Store
	engine *paxos.Engine
	logger *logrus.Entry

	failed uint32

	reqCh      chan request
	shutdownCh chan struct{}

	proposalTimer *time.Timer
	catchupTimer  *time.Timer

	catchupActive    bool
	catchupResponses []lnet.Message
}

// New builds a Node ready to Run. It loads any existing persisted ledger
// before returning.
func New(cfg *Config, ps *peers.PeerSet, trans lnet.Transport, st *store.Store) (*Node, error) {
	l := ledger.New(ps.IDs())

	if _, err := st.Load(l); err != nil {
		return nil, errors.Wrap(err, "loading persisted ledger")
	}

	n := &Node{
		config:     cfg,
		peers:      ps,
		ledger:     l,
		trans:      trans,
		store:      st,
		logger:     cfg.Logger(),
		reqCh:      make(chan request),
		shutdownCh: make(chan struct{}),
	}

	n.engine = paxos.NewEngine(paxos.Config{
		NodeID:    ps.SelfID(),
		NumNodes:  ps.Count(),
		Depth:     n.ledger.Depth,
		AddrOf:    ps.Addr,
		Broadcast: n.broadcast,
		Send:      n.trans.Send,
		Commit:    n.onCommit,
	})

	return n, nil
}

func (n *Node) broadcast(msg lnet.Message) {
	for _, id := range n.peers.Others() {
		n.trans.Send(n.peers.Addr(id), msg)
	}
}

func (n *Node) onCommit(b *ledger.Block) {
	if err := n.ledger.Apply(b); err != nil {
		n.logger.WithError(err).Error("failed to apply decided block")
		return
	}
	if err := n.store.Save(n.ledger); err != nil {
		n.logger.WithError(err).Fatal("failed to persist ledger after commit")
	}
	n.logger.WithField("block", b.String()).Info("committed block")

	n.stopProposalTimer()

	n.maybePropose()
}

// Run is the node's single event-loop goroutine. It must be started exactly
// once, typically in its own goroutine, before the transport is dialed by
// any peer.
func (n *Node) Run() {
	if err := n.trans.Listen(); err != nil {
		n.logger.WithError(err).Fatal("failed to start transport")
	}

	for {
		select {
		case msg := <-n.trans.Consumer():
			n.handleMessage(msg)
		case req := <-n.reqCh:
			n.handleRequest(req)
		case <-n.proposalTimerC():
			n.handleProposalTimeout()
		case <-n.catchupTimerC():
			n.handleCatchupTimeout()
		case <-n.shutdownCh:
			return
		}
	}
}

// Shutdown stops the event loop and closes the transport.
func (n *Node) Shutdown() {
	close(n.shutdownCh)
	n.trans.Close()
}

func (n *Node) isFailed() bool {
	return atomic.LoadUint32(&n.failed) == 1
}

func (n *Node) handleMessage(msg lnet.Message) {
	if n.isFailed() {
		return
	}

	// Ballots carry their slot's depth: a Paxos message for any depth other
	// than the current one is stale (or from the future) and is dropped.
	switch msg.Type {
	case lnet.MsgPrepare, lnet.MsgPromise, lnet.MsgAccept, lnet.MsgAccepted:
		if msg.Ballot.Depth != n.ledger.Depth() {
			return
		}
	}

	switch msg.Type {
	case lnet.MsgPrepare:
		n.engine.HandlePrepare(msg)
	case lnet.MsgPromise:
		n.engine.HandlePromise(msg)
	case lnet.MsgAccept:
		n.engine.HandleAccept(msg)
	case lnet.MsgAccepted:
		n.engine.HandleAccepted(msg)
	case lnet.MsgDecide:
		n.engine.HandleDecide(msg)
	case lnet.MsgRequestLedger:
		n.handleRequestLedger(msg)
	case lnet.MsgLedgerResponse:
		n.handleLedgerResponse(msg)
	}
}

func (n *Node) handleRequest(req request) {
	switch req.kind {
	case reqSubmitTransfer:
		req.respCh <- response{err: n.submitTransfer(req.receiver, req.amount)}
	case reqFail:
		n.doFail()
		req.respCh <- response{}
	case reqRecover:
		n.doRecover()
		req.respCh <- response{}
	case reqReadLedger:
		req.respCh <- response{chain: n.ledger.Chain()}
	case reqReadBalances:
		req.respCh <- response{balances: n.ledger.Balances()}
	case reqStats:
		mode := Running
		if n.isFailed() {
			mode = Failed
		}
		req.respCh <- response{mode: mode, depth: n.ledger.Depth()}
	}
}

func (n *Node) submitTransfer(receiver, amount int) error {
	if n.isFailed() {
		return errors.New("node is in failed mode")
	}
	if n.engine.HasPendingProposal() {
		return errors.New("a proposal is already in flight for this node")
	}
	if receiver == n.peers.SelfID() {
		return errors.New("cannot transfer to self")
	}
	if amount <= 0 {
		return errors.New("amount must be positive")
	}

	block := n.ledger.BuildCandidate(n.peers.SelfID(), receiver, amount)
	if block == nil {
		return errors.New("insufficient funds")
	}

	n.engine.Propose(block)
	n.resetProposalTimer()
	return nil
}

// maybePropose is a no-op placeholder for symmetry with onCommit: this
// implementation never auto-retries a committed node's next transfer, only
// user-submitted ones.
func (n *Node) maybePropose() {}

func (n *Node) handleProposalTimeout() {
	if n.isFailed() {
		return
	}
	if !n.engine.HasPendingProposal() {
		return
	}
	n.logger.Debug("proposal timed out, retrying with higher ballot")
	n.engine.Retry()
	n.resetProposalTimer()
}

// SubmitTransfer proposes a transfer of amount from this node to receiver.
// It blocks until the proposal has been accepted for broadcast (not until
// consensus completes).
func (n *Node) SubmitTransfer(receiver, amount int) error {
	return n.do(request{kind: reqSubmitTransfer, receiver: receiver, amount: amount}).err
}

// Fail transitions the node into FAILED mode.
func (n *Node) Fail() {
	n.do(request{kind: reqFail})
}

// Recover transitions the node back into RUNNING mode and starts catch-up.
func (n *Node) Recover() {
	n.do(request{kind: reqRecover})
}

// ReadLedger returns a snapshot of the committed chain.
func (n *Node) ReadLedger() []*ledger.Block {
	return n.do(request{kind: reqReadLedger}).chain
}

// ReadBalances returns a snapshot of the balance table.
func (n *Node) ReadBalances() map[int]int {
	return n.do(request{kind: reqReadBalances}).balances
}

// Stats returns the node's mode and current ledger depth.
func (n *Node) Stats() (Mode, int) {
	r := n.do(request{kind: reqStats})
	return r.mode, r.depth
}

func (n *Node) do(req request) response {
	req.respCh = make(chan response, 1)
	select {
	case n.reqCh <- req:
	case <-n.shutdownCh:
		return response{err: errors.New("node is shut down")}
	}
	select {
	case r := <-req.respCh:
		return r
	case <-n.shutdownCh:
		return response{err: errors.New("node is shut down")}
	}
}

func (n *Node) doFail() {
	if n.isFailed() {
		return
	}
	atomic.StoreUint32(&n.failed, 1)
	n.trans.SetFailed(true)
	n.engine.CancelProposal()
	n.stopProposalTimer()
	n.cancelCatchup()
	n.logger.Info("node failed")
}

func (n *Node) doRecover() {
	if !n.isFailed() {
		return
	}
	atomic.StoreUint32(&n.failed, 0)
	n.trans.SetFailed(false)
	n.logger.Info("node recovered, starting catch-up")
	n.startCatchup()
}

func (n *Node) proposalTimerC() <-chan time.Time {
	if n.proposalTimer == nil {
		return nil
	}
	return n.proposalTimer.C
}

func (n *Node) catchupTimerC() <-chan time.Time {
	if n.catchupTimer == nil {
		return nil
	}
	return n.catchupTimer.C
}
