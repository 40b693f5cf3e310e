package ports

// VerifyResult is the tagged outcome of a signature check. There is no
// third "assume valid" branch: any failure inside the verifier maps to
// Invalid or to a malformed-input error, never to success.
type VerifyResult int

const (
	VerifyInvalid VerifyResult = iota
	VerifyValid
)

// SignatureVerifier checks that a signature over a message was produced
// by the key controlling a Bitcoin address. Implementations are pure and
// side-effect-free.
type SignatureVerifier interface {
	// Verify returns VerifyValid only for a cryptographically matching
	// signature. A syntactically valid but non-matching signature is
	// (VerifyInvalid, nil); an error is returned solely for malformed
	// input such as an unparseable address or signature encoding.
	Verify(address, message, signature string) (VerifyResult, error)
}
