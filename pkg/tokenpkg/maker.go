// Package tokenpkg provides functionality to create and verify access tokens.
package tokenpkg

import "time"

const minSecretKeySize = 32

// Maker is an interface for managing tokens.
type Maker interface {
	// CreateToken creates a new token for username with role, valid for duration.
	CreateToken(username, role string, duration time.Duration) (string, *Payload, error)

	// VerifyToken checks if the token is valid or not.
	VerifyToken(token string) (*Payload, error)
}

// New returns the maker selected by tokenType: "jwt" or "paseto".
func New(tokenType, symmetricKey string) (Maker, error) {
	if tokenType == "jwt" {
		return NewJWTMaker(symmetricKey)
	}

	return NewPasetoMaker(symmetricKey)
}
