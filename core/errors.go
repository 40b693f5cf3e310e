package core

import "errors"

var (
	ErrChallengeNotFound  = errors.New("challenge not found")
	ErrChallengeConsumed  = errors.New("challenge already consumed")
	ErrChallengeExpired   = errors.New("challenge has expired")
	ErrSignatureMismatch  = errors.New("signature does not match wallet address")
	ErrMalformedInput     = errors.New("malformed input")
	ErrMinerNotFound      = errors.New("miner not found")
	ErrTokenExpired       = errors.New("token has expired")
	ErrInvalidToken       = errors.New("invalid token")
	ErrStorageUnavailable = errors.New("storage unavailable")
)
