package domain

import "context"

// AuthService resolves a bearer token into the calling user.
type AuthService interface {
	ValidateToken(ctx context.Context, token string) (*SupabaseUser, error)
}
