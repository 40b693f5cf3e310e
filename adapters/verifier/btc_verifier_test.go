package verifier

import (
	"encoding/base64"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blgvbtc/poolauth/internal/btcmsg"
	"github.com/blgvbtc/poolauth/ports"
)

const testMessage = "mining_pool login:\nnonce: deadbeef\nissued: 2026-08-31T00:00:00Z"

func newKey(t *testing.T) *btcec.PrivateKey {
	t.Helper()
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return key
}

func p2pkhAddress(t *testing.T, key *btcec.PrivateKey, compressed bool) string {
	t.Helper()
	var serialized []byte
	if compressed {
		serialized = key.PubKey().SerializeCompressed()
	} else {
		serialized = key.PubKey().SerializeUncompressed()
	}
	addr, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(serialized), &chaincfg.MainNetParams)
	require.NoError(t, err)
	return addr.EncodeAddress()
}

func p2wpkhAddress(t *testing.T, key *btcec.PrivateKey) string {
	t.Helper()
	addr, err := btcutil.NewAddressWitnessPubKeyHash(
		btcutil.Hash160(key.PubKey().SerializeCompressed()), &chaincfg.MainNetParams)
	require.NoError(t, err)
	return addr.EncodeAddress()
}

func signB64(key *btcec.PrivateKey, message string, compressed bool) string {
	return base64.StdEncoding.EncodeToString(btcmsg.SignCompact(key, message, compressed))
}

func TestVerifyLegacyCompressed(t *testing.T) {
	v := New(nil)
	key := newKey(t)

	res, err := v.Verify(p2pkhAddress(t, key, true), testMessage, signB64(key, testMessage, true))
	require.NoError(t, err)
	assert.Equal(t, ports.VerifyValid, res)
}

func TestVerifyLegacyUncompressed(t *testing.T) {
	v := New(nil)
	key := newKey(t)

	res, err := v.Verify(p2pkhAddress(t, key, false), testMessage, signB64(key, testMessage, false))
	require.NoError(t, err)
	assert.Equal(t, ports.VerifyValid, res)
}

func TestVerifySegwit(t *testing.T) {
	v := New(nil)
	key := newKey(t)

	res, err := v.Verify(p2wpkhAddress(t, key), testMessage, signB64(key, testMessage, true))
	require.NoError(t, err)
	assert.Equal(t, ports.VerifyValid, res)
}

func TestVerifyWrongKey(t *testing.T) {
	v := New(nil)
	key := newKey(t)
	other := newKey(t)

	res, err := v.Verify(p2pkhAddress(t, key, true), testMessage, signB64(other, testMessage, true))
	require.NoError(t, err)
	assert.Equal(t, ports.VerifyInvalid, res)
}

func TestVerifyMutatedMessage(t *testing.T) {
	v := New(nil)
	key := newKey(t)

	res, err := v.Verify(p2pkhAddress(t, key, true), testMessage+".", signB64(key, testMessage, true))
	require.NoError(t, err)
	assert.Equal(t, ports.VerifyInvalid, res)
}

func TestVerifyFlippedSignatureBits(t *testing.T) {
	v := New(nil)
	key := newKey(t)
	addr := p2pkhAddress(t, key, true)
	sig := btcmsg.SignCompact(key, testMessage, true)

	// Flipping any single bit must never verify. Sample one bit per byte.
	for i := range sig {
		mutated := make([]byte, len(sig))
		copy(mutated, sig)
		mutated[i] ^= 0x01

		res, err := v.Verify(addr, testMessage, base64.StdEncoding.EncodeToString(mutated))
		assert.NoError(t, err, "byte %d", i)
		assert.Equal(t, ports.VerifyInvalid, res, "byte %d", i)
	}
}

func TestVerifyMalformedInput(t *testing.T) {
	v := New(nil)
	key := newKey(t)
	addr := p2pkhAddress(t, key, true)

	_, err := v.Verify("not-an-address", testMessage, signB64(key, testMessage, true))
	assert.Error(t, err)

	_, err = v.Verify(addr, testMessage, "%%% not base64 %%%")
	assert.Error(t, err)

	short := base64.StdEncoding.EncodeToString([]byte("too short"))
	_, err = v.Verify(addr, testMessage, short)
	assert.Error(t, err)
}

func TestVerifyUnsupportedAddressType(t *testing.T) {
	v := New(nil)
	key := newKey(t)

	// A well-formed P2SH address is rejected, not a crash and not an error.
	script := []byte{0x51} // OP_TRUE
	addr, err := btcutil.NewAddressScriptHash(script, &chaincfg.MainNetParams)
	require.NoError(t, err)

	res, err := v.Verify(addr.EncodeAddress(), testMessage, signB64(key, testMessage, true))
	require.NoError(t, err)
	assert.Equal(t, ports.VerifyInvalid, res)
}
