package net

import (
	"fmt"

	"github.com/ledgernode/ledgernode/src/ledger"
)

// MessageType identifies the payload carried by a Message.
type MessageType string

// The wire message types exchanged between nodes. Paxos messages drive
// consensus for a single ledger slot; the REQUEST/RESPONSE pair drives
// catch-up.
const (
	MsgPrepare        MessageType = "PREPARE"
	MsgPromise        MessageType = "PROMISE"
	MsgAccept         MessageType = "ACCEPT"
	MsgAccepted       MessageType = "ACCEPTED"
	MsgDecide         MessageType = "DECIDE"
	MsgRequestLedger  MessageType = "REQUEST_LEDGER"
	MsgLedgerResponse MessageType = "LEDGER_RESPONSE"
)

// Ballot totally orders proposers within a single slot. Depth is included so
// that a ballot carries its own slot identity: a message for a slot this
// node has already moved past is immediately recognizable as stale.
type Ballot struct {
	Seq    int `json:"seq"`
	NodeID int `json:"node_id"`
	Depth  int `json:"depth"`
}

// Less reports whether b is ordered strictly before other, comparing depth
// first, then seq, then node id.
func (b Ballot) Less(other Ballot) bool {
	if b.Depth != other.Depth {
		return b.Depth < other.Depth
	}
	if b.Seq != other.Seq {
		return b.Seq < other.Seq
	}
	return b.NodeID < other.NodeID
}

// Zero reports whether b is the zero-value ballot, used to mean "no ballot
// promised or accepted yet".
func (b Ballot) Zero() bool {
	return b == Ballot{}
}

func (b Ballot) String() string {
	return fmt.Sprintf("(%d,%d,%d)", b.Seq, b.NodeID, b.Depth)
}

// Message is the single envelope type sent over the wire. Only the fields
// relevant to Type are populated by the sender; the rest carry zero values.
type Message struct {
	Type MessageType `json:"type"`
	From int         `json:"from"`

	Ballot Ballot `json:"ballot,omitempty"`

	// ACCEPT carries the value the leader asks acceptors to accept, ACCEPTED
	// echoes it back, and DECIDE carries the chosen block.
	Block *ledger.Block `json:"value,omitempty"`

	// PROMISE: the highest ballot/value this node had already accepted for
	// the slot, so the proposer can honor Paxos's P2c safety rule.
	AcceptedBallot Ballot        `json:"accepted_ballot,omitempty"`
	AcceptedValue  *ledger.Block `json:"accepted_value,omitempty"`

	// LEDGER_RESPONSE carries a full committed chain and the balances it
	// implies, as observed by the responder.
	Chain    []*ledger.Block `json:"chain,omitempty"`
	Balances map[int]int     `json:"balances,omitempty"`
}
