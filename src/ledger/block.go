// Package ledger holds the append-only chain of transfer blocks and the
// account balances derived from it.
package ledger

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/ledgernode/ledgernode/src/crypto"
)

// Block is a single committed (or candidate) money transfer.
type Block struct {
	Sender   int    `json:"sender"`
	Receiver int    `json:"receiver"`
	Amount   int    `json:"amount"`
	Nonce    string `json:"nonce"`
	PrevHash string `json:"prev_hash"`
	Hash     string `json:"hash"`
}

// NewBlock finds a nonce satisfying the proof-of-work tag and returns the
// resulting block. prevHash should be the hash of the current chain tip, or
// crypto.SentinelHash for the first block.
func NewBlock(sender, receiver, amount int, prevHash string) *Block {
	nonce := crypto.FindNonce(sender, receiver, amount)
	return &Block{
		Sender:   sender,
		Receiver: receiver,
		Amount:   amount,
		Nonce:    nonce,
		PrevHash: prevHash,
		Hash:     crypto.BlockHash(sender, receiver, amount, nonce, prevHash),
	}
}

// recomputeHash returns the hash this block should carry given its fields.
func (b *Block) recomputeHash() string {
	return crypto.BlockHash(b.Sender, b.Receiver, b.Amount, b.Nonce, b.PrevHash)
}

// verifyPow reports whether the block's own (sender, receiver, amount, nonce)
// tuple satisfies the proof-of-work tag, independent of prev_hash.
func (b *Block) verifyPow() bool {
	return crypto.HasPowTag(crypto.PowHash(b.Sender, b.Receiver, b.Amount, b.Nonce))
}

// verifyIntegrity checks the PoW tag and the recomputed content hash. It does
// not check prev-hash linkage or balances; callers validate those in context.
func (b *Block) verifyIntegrity() error {
	if !b.verifyPow() {
		return errors.New("block fails proof-of-work tag")
	}
	if got := b.recomputeHash(); got != b.Hash {
		return errors.Errorf("block hash mismatch: stored %s, recomputed %s", b.Hash, got)
	}
	return nil
}

func (b *Block) String() string {
	return fmt.Sprintf("Block{%d->%d $%d nonce=%s hash=%s}", b.Sender, b.Receiver, b.Amount, b.Nonce, b.Hash[:8])
}
