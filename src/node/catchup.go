package node

import (
	"time"

	"github.com/ledgernode/ledgernode/src/ledger"
	lnet "github.com/ledgernode/ledgernode/src/net"
)

func (n *Node) resetProposalTimer() {
	if n.proposalTimer != nil {
		n.proposalTimer.Stop()
	}
	n.proposalTimer = time.NewTimer(n.config.ProposalTimeout)
}

func (n *Node) stopProposalTimer() {
	if n.proposalTimer != nil {
		n.proposalTimer.Stop()
		n.proposalTimer = nil
	}
}

// startCatchup broadcasts REQUEST_LEDGER and opens the collection window.
// Any responses that arrive before the window closes are buffered; the
// winner is picked in handleCatchupTimeout.
func (n *Node) startCatchup() {
	n.catchupActive = true
	n.catchupResponses = nil

	n.broadcast(lnet.Message{Type: lnet.MsgRequestLedger, From: n.peers.SelfID()})

	if n.catchupTimer != nil {
		n.catchupTimer.Stop()
	}
	n.catchupTimer = time.NewTimer(n.config.CatchupWindow)
}

func (n *Node) cancelCatchup() {
	n.catchupActive = false
	n.catchupResponses = nil
	if n.catchupTimer != nil {
		n.catchupTimer.Stop()
		n.catchupTimer = nil
	}
}

func (n *Node) handleRequestLedger(msg lnet.Message) {
	reply := lnet.Message{
		Type:     lnet.MsgLedgerResponse,
		From:     n.peers.SelfID(),
		Chain:    n.ledger.Chain(),
		Balances: n.ledger.Balances(),
	}
	n.trans.Send(n.peers.Addr(msg.From), reply)
}

func (n *Node) handleLedgerResponse(msg lnet.Message) {
	if !n.catchupActive {
		return
	}
	n.catchupResponses = append(n.catchupResponses, msg)
}

// handleCatchupTimeout picks, among the buffered responses, the longest
// chain that also replays cleanly from genesis, and replaces the local
// ledger with it if it is longer than what this node already has. Ties in
// length are broken in favor of the first validated response collected.
func (n *Node) handleCatchupTimeout() {
	if !n.catchupActive {
		return
	}
	n.catchupActive = false
	n.catchupTimer = nil

	var best []*ledger.Block
	for _, resp := range n.catchupResponses {
		if len(resp.Chain) <= len(best) {
			continue
		}
		if err := ledger.Validate(n.peers.IDs(), resp.Chain); err != nil {
			n.logger.WithError(err).Debug("rejecting invalid chain during catch-up")
			continue
		}
		best = resp.Chain
	}
	n.catchupResponses = nil

	if len(best) <= n.ledger.Depth() {
		n.logger.Debug("catch-up found no longer valid chain")
		return
	}

	n.ledger.Replace(best)
	if err := n.store.Save(n.ledger); err != nil {
		n.logger.WithError(err).Fatal("failed to persist ledger after catch-up")
	}
	n.logger.WithField("depth", len(best)).Info("replaced ledger via catch-up")
}
