// Package crypto provides the hashing and proof-of-work primitives shared by
// the ledger and its catch-up validator.
package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand"
	"strings"
)

// NonceLength is the length, in characters, of a block's nonce.
const NonceLength = 8

const nonceAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// SentinelHash is the prev_hash of the first block in a ledger: 64 '0' characters.
var SentinelHash = strings.Repeat("0", 64)

// SHA256Hex returns the lowercase hex SHA-256 digest of data.
func SHA256Hex(data string) string {
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

func txnString(sender, receiver, amount int) string {
	return fmt.Sprintf("%d%d%d", sender, receiver, amount)
}

// PowHash returns the proof-of-work hash of a (sender, receiver, amount,
// nonce) tuple, before the predecessor block is known.
func PowHash(sender, receiver, amount int, nonce string) string {
	return SHA256Hex(txnString(sender, receiver, amount) + nonce)
}

// HasPowTag reports whether a hash's last hex digit lies in {'0'..'4'}.
func HasPowTag(hash string) bool {
	if hash == "" {
		return false
	}
	last := hash[len(hash)-1]
	return last >= '0' && last <= '4'
}

// BlockHash returns the content hash of a fully-formed block.
func BlockHash(sender, receiver, amount int, nonce, prevHash string) string {
	return SHA256Hex(txnString(sender, receiver, amount) + nonce + prevHash)
}

// RandomNonce draws a random alphanumeric token of length NonceLength.
func RandomNonce() string {
	b := make([]byte, NonceLength)
	for i := range b {
		b[i] = nonceAlphabet[rand.Intn(len(nonceAlphabet))]
	}
	return string(b)
}

// FindNonce searches for a nonce that satisfies the proof-of-work tag for the
// given transfer. It is the only place in the system that searches nonces.
func FindNonce(sender, receiver, amount int) (nonce string) {
	for {
		n := RandomNonce()
		if HasPowTag(PowHash(sender, receiver, amount, n)) {
			return n
		}
	}
}
