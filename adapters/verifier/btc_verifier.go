package verifier

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/blgvbtc/poolauth/core"
	"github.com/blgvbtc/poolauth/internal/btcmsg"
	"github.com/blgvbtc/poolauth/ports"
)

// BTCVerifier checks Bitcoin message signatures against legacy (base58)
// and segwit (bech32) addresses.
type BTCVerifier struct {
	params *chaincfg.Params
}

// New creates a verifier for the given network, defaulting to mainnet.
func New(params *chaincfg.Params) ports.SignatureVerifier {
	if params == nil {
		params = &chaincfg.MainNetParams
	}
	return &BTCVerifier{params: params}
}

// Verify recovers the signing key from the compact signature and checks
// that it hashes to the supplied address. A recovery failure or key
// mismatch is VerifyInvalid with a nil error; only unparseable input is
// an error. There is deliberately no path that maps a library failure to
// success.
func (v *BTCVerifier) Verify(address, message, signature string) (ports.VerifyResult, error) {
	addr, err := btcutil.DecodeAddress(address, v.params)
	if err != nil {
		return ports.VerifyInvalid, fmt.Errorf("decode address: %w", core.ErrMalformedInput)
	}

	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return ports.VerifyInvalid, fmt.Errorf("decode signature: %w", core.ErrMalformedInput)
	}
	if len(sig) != btcmsg.CompactSigLen {
		return ports.VerifyInvalid, fmt.Errorf("signature must be %d bytes: %w", btcmsg.CompactSigLen, core.ErrMalformedInput)
	}

	// A well-formed signature that does not recover to any key is a
	// cryptographic mismatch, not malformed input.
	pubKey, wasCompressed, err := btcmsg.RecoverPublicKey(message, sig)
	if err != nil {
		return ports.VerifyInvalid, nil
	}

	switch a := addr.(type) {
	case *btcutil.AddressPubKeyHash:
		serialized := serializeKey(pubKey, wasCompressed)
		if bytes.Equal(btcutil.Hash160(serialized), a.Hash160()[:]) {
			return ports.VerifyValid, nil
		}
		return ports.VerifyInvalid, nil

	case *btcutil.AddressWitnessPubKeyHash:
		// Segwit addresses commit to the compressed key form.
		serialized := pubKey.SerializeCompressed()
		if bytes.Equal(btcutil.Hash160(serialized), a.Hash160()[:]) {
			return ports.VerifyValid, nil
		}
		return ports.VerifyInvalid, nil

	default:
		// Well-formed but unsupported script type (P2SH, taproot).
		return ports.VerifyInvalid, nil
	}
}

func serializeKey(pubKey *btcec.PublicKey, compressed bool) []byte {
	if compressed {
		return pubKey.SerializeCompressed()
	}
	return pubKey.SerializeUncompressed()
}
