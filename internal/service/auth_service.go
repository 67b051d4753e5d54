package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"ebook-library/internal/domain"
)

// supabaseClaims are the claims Supabase puts in its access tokens.
type supabaseClaims struct {
	Email        string                 `json:"email"`
	Role         string                 `json:"role"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
	jwt.RegisteredClaims
}

type authService struct {
	supabaseClient domain.SupabaseClient
	jwtSecret      []byte
	logger         domain.Logger
}

// NewAuthService verifies tokens locally with the project JWT secret when
// one is configured and asks Supabase Auth otherwise.
func NewAuthService(
	supabaseClient domain.SupabaseClient,
	jwtSecret string,
	logger domain.Logger,
) domain.AuthService {
	return &authService{
		supabaseClient: supabaseClient,
		jwtSecret:      []byte(jwtSecret),
		logger:         logger,
	}
}

// ValidateToken validates a token and returns the calling user
func (s *authService) ValidateToken(ctx context.Context, token string) (*domain.SupabaseUser, error) {
	if token == "" {
		return nil, domain.ErrInvalidToken
	}
	if len(s.jwtSecret) > 0 {
		return s.verifyLocally(token)
	}

	user, err := s.supabaseClient.ValidateToken(token)
	if err != nil {
		s.logger.Error("Failed to validate token with Supabase", err)
		if errors.Is(err, domain.ErrInvalidToken) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	return user, nil
}

func (s *authService) verifyLocally(token string) (*domain.SupabaseUser, error) {
	claims := supabaseClaims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return s.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		s.logger.Debug("Rejected access token", "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", domain.ErrInvalidToken)
	}

	user := &domain.SupabaseUser{
		ID:           claims.Subject,
		Email:        claims.Email,
		UserMetadata: claims.UserMetadata,
	}
	if claims.IssuedAt != nil {
		user.CreatedAt = claims.IssuedAt.Time.Format("2006-01-02T15:04:05Z07:00")
	}
	return user, nil
}
