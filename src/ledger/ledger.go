package ledger

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/ledgernode/ledgernode/src/crypto"
)

// InitialBalance is the starting balance of every account.
const InitialBalance = 100

// Ledger is the append-only chain of committed blocks plus the balances they
// imply. Each method takes the ledger's own read/write lock, so single calls
// are safe for concurrent use; sequences of calls (e.g. BuildCandidate then
// Apply) are not atomic and are serialized by the node's event loop.
type Ledger struct {
	mu      sync.RWMutex
	chain   []*Block
	balance map[int]int
	seen    map[string]bool
	nodeIDs []int
}

// New builds an empty ledger seeded with InitialBalance for every id in
// nodeIDs.
func New(nodeIDs []int) *Ledger {
	l := &Ledger{
		balance: make(map[int]int, len(nodeIDs)),
		seen:    make(map[string]bool),
		nodeIDs: append([]int(nil), nodeIDs...),
	}
	for _, id := range nodeIDs {
		l.balance[id] = InitialBalance
	}
	return l
}

// Depth returns the number of committed blocks, i.e. the index the next
// block will occupy.
func (l *Ledger) Depth() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.chain)
}

// Tip returns the hash of the last committed block, or crypto.SentinelHash
// if the chain is empty.
func (l *Ledger) Tip() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tipLocked()
}

func (l *Ledger) tipLocked() string {
	if len(l.chain) == 0 {
		return crypto.SentinelHash
	}
	return l.chain[len(l.chain)-1].Hash
}

// Balance returns the current balance of an account.
func (l *Ledger) Balance(id int) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balance[id]
}

// Balances returns a snapshot copy of the full balance table.
func (l *Ledger) Balances() map[int]int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[int]int, len(l.balance))
	for k, v := range l.balance {
		out[k] = v
	}
	return out
}

// Chain returns a snapshot copy of the committed block sequence.
func (l *Ledger) Chain() []*Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Block, len(l.chain))
	copy(out, l.chain)
	return out
}

// CanAfford reports whether sender currently has at least amount.
func (l *Ledger) CanAfford(sender, amount int) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balance[sender] >= amount
}

// BuildCandidate creates (but does not apply) a new block transferring
// amount from sender to receiver, chained off the current tip. Returns nil
// if sender == receiver, amount isn't positive, or sender cannot afford the
// transfer.
func (l *Ledger) BuildCandidate(sender, receiver, amount int) *Block {
	if sender == receiver || amount <= 0 {
		return nil
	}

	l.mu.RLock()
	afford := l.balance[sender] >= amount
	tip := l.tipLocked()
	l.mu.RUnlock()

	if !afford {
		return nil
	}
	return NewBlock(sender, receiver, amount, tip)
}

// Apply validates block against the current chain tip and, if valid, appends
// it and updates balances. It is idempotent: re-applying a block already
// present (by hash) returns nil without side effects.
func (l *Ledger) Apply(b *Block) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.seen[b.Hash] {
		return nil
	}

	if err := l.validateAgainstTipLocked(b); err != nil {
		return err
	}

	l.chain = append(l.chain, b)
	l.seen[b.Hash] = true
	l.balance[b.Sender] -= b.Amount
	l.balance[b.Receiver] += b.Amount

	return nil
}

func (l *Ledger) validateAgainstTipLocked(b *Block) error {
	if b.Sender == b.Receiver {
		return errors.Errorf("sender and receiver must differ: %d", b.Sender)
	}
	if b.Amount <= 0 {
		return errors.Errorf("amount must be positive: %d", b.Amount)
	}
	if b.PrevHash != l.tipLocked() {
		return errors.Errorf("prev_hash mismatch: got %s, expected %s", b.PrevHash, l.tipLocked())
	}
	if err := b.verifyIntegrity(); err != nil {
		return err
	}
	if l.balance[b.Sender] < b.Amount {
		return errors.Errorf("sender %d has insufficient funds: %d < %d", b.Sender, l.balance[b.Sender], b.Amount)
	}
	return nil
}

// Replace atomically swaps the ledger's chain and balances for the ones
// implied by replaying chain from genesis. It is the caller's responsibility
// to have already decided (via Validate) that chain is longer and valid.
func (l *Ledger) Replace(chain []*Block) {
	l.mu.Lock()
	defer l.mu.Unlock()

	balances := make(map[int]int, len(l.nodeIDs))
	for _, id := range l.nodeIDs {
		balances[id] = InitialBalance
	}
	seen := make(map[string]bool, len(chain))
	for _, b := range chain {
		balances[b.Sender] -= b.Amount
		balances[b.Receiver] += b.Amount
		seen[b.Hash] = true
	}

	l.chain = append([]*Block(nil), chain...)
	l.balance = balances
	l.seen = seen
}

// Validate replays chain from genesis under the same rules as Apply,
// starting every account at InitialBalance. It returns an error describing
// the first invalid block, or nil if the whole chain replays cleanly.
func Validate(nodeIDs []int, chain []*Block) error {
	sim := New(nodeIDs)
	for i, b := range chain {
		if err := sim.Apply(b); err != nil {
			return errors.Wrapf(err, "block at depth %d invalid", i)
		}
	}
	return nil
}
