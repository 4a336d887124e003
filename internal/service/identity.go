// Package service holds the vault item lifecycle: deposits, admissions,
// destroy and owner listings, plus bearer credential resolution.
package service

import (
	"context"
	"fmt"

	"github.com/atinyakov/linkvault/internal/auth"
)

// AuthRepository defines the identity lookups required by IdentityService.
type AuthRepository interface {
	// UserExists returns true if an identity with the given id exists.
	UserExists(ctx context.Context, userID string) (bool, error)
}

// IdentityService turns bearer tokens into identity ids.
type IdentityService struct {
	repo   AuthRepository
	secret []byte
}

// NewIdentityService constructs an IdentityService verifying tokens with secret.
// With an empty secret no token ever resolves.
func NewIdentityService(repo AuthRepository, secret []byte) *IdentityService {
	return &IdentityService{repo: repo, secret: secret}
}

// Resolve returns the identity id named by token, or "" when the token is
// invalid or its identity no longer exists. An error means the lookup
// itself failed.
func (s *IdentityService) Resolve(ctx context.Context, token string) (string, error) {
	if len(s.secret) == 0 || token == "" {
		return "", nil
	}
	userID, err := auth.GetUserIDFromToken(token, s.secret)
	if err != nil {
		return "", nil
	}
	ok, err := s.repo.UserExists(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("lookup identity: %w", err)
	}
	if !ok {
		return "", nil
	}
	return userID, nil
}
