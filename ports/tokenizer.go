package ports

import "github.com/blgvbtc/poolauth/core"

// Tokenizer converts between sessions and signed session tokens.
//
// Tokens are stateless: there is no server-side revocation list, so an
// issued token is valid until its expiry.
type Tokenizer interface {
	// Issue mints a signed token for the session.
	Issue(session *core.Session) (string, error)

	// Validate verifies signature and expiry and returns the session
	// claims. Expired or tampered tokens return an error, never partial
	// claims.
	Validate(token string) (*core.Session, error)
}
