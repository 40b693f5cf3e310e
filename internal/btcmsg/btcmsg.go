// Package btcmsg implements the standard Bitcoin signed-message scheme:
// the double-SHA256 digest of a magic-prefixed message envelope, signed
// with a 65-byte compact recoverable signature.
package btcmsg

import (
	"bytes"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// messageMagic is the envelope prefix every conforming wallet prepends
// before hashing, so message signatures can never collide with
// transaction signatures.
const messageMagic = "Bitcoin Signed Message:\n"

// MessageHash returns the digest a wallet signs for the given message.
func MessageHash(message string) []byte {
	var buf bytes.Buffer
	// Writes to a bytes.Buffer cannot fail.
	_ = wire.WriteVarString(&buf, 0, messageMagic)
	_ = wire.WriteVarString(&buf, 0, message)
	return chainhash.DoubleHashB(buf.Bytes())
}

// RecoverPublicKey recovers the signing key from a compact signature over
// message. The boolean reports whether the signature committed to the
// compressed form of the key.
func RecoverPublicKey(message string, compactSig []byte) (*btcec.PublicKey, bool, error) {
	return ecdsa.RecoverCompact(compactSig, MessageHash(message))
}

// SignCompact produces a 65-byte recoverable signature over message.
// Used by tests and provisioning tooling; the service itself only verifies.
func SignCompact(key *btcec.PrivateKey, message string, compressedKey bool) []byte {
	return ecdsa.SignCompact(key, MessageHash(message), compressedKey)
}

// CompactSigLen is the exact length of a recoverable compact signature.
const CompactSigLen = 65
