package auth

import (
	"errors"

	"github.com/meridian-retail/backoffice/internal/shared"
)

// User is an account able to call the API. Store staff carry the location
// of their store; warehouse staff carry the warehouse location.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	Role         shared.Role
	LocationID   int64
	IsActive     bool
}

var (
	// ErrTokenInvalid indicates a missing, expired or revoked token.
	ErrTokenInvalid = errors.New("auth: invalid token")
)
