package token

import (
	"time"
)

// Maker is an interface for managing tokens.
type Maker interface {
	// CreateToken creates a new token for a specific user and duration.
	CreateToken(userID int64, duration time.Duration) (token string, payload *Payload, err error)

	// VerifyToken checks if the token is valid or not.
	VerifyToken(tokenString string) (payload *Payload, err error)
}
