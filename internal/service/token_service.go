package service

import (
	"errors"
	"fmt"
	"time"

	"rebooked-marketplace/internal/core/ports"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// supabaseAudience is the aud claim Supabase puts on signed-in user tokens.
const supabaseAudience = "authenticated"

// supabaseClaims mirrors the parts of a Supabase access token we read.
type supabaseClaims struct {
	Email       string `json:"email"`
	Role        string `json:"role"`
	AppMetadata struct {
		Role string `json:"role"`
	} `json:"app_metadata"`
	jwt.RegisteredClaims
}

// SupabaseTokenService implements ports.TokenService for HS256 tokens
// issued by Supabase Auth.
type SupabaseTokenService struct {
	secret []byte
	now    func() time.Time
}

func NewSupabaseTokenService(secret string) *SupabaseTokenService {
	return &SupabaseTokenService{secret: []byte(secret), now: time.Now}
}

// Validate checks signature, expiry and audience and returns the user id
// from sub.
func (s *SupabaseTokenService) Validate(tokenString string) (*ports.TokenClaims, error) {
	if len(s.secret) == 0 {
		return nil, errors.New("token validation is not configured")
	}

	var claims supabaseClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(supabaseAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("invalid user id in token: %w", err)
	}

	role := claims.AppMetadata.Role
	if role == "" {
		role = claims.Role
	}

	return &ports.TokenClaims{UserID: userID, Email: claims.Email, Role: role}, nil
}

// Issue signs a token shaped like Supabase's. Used by tooling and tests.
func (s *SupabaseTokenService) Issue(userID uuid.UUID, email, appRole string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := supabaseClaims{
		Email: email,
		Role:  supabaseAudience,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Audience:  jwt.ClaimStrings{supabaseAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	claims.AppMetadata.Role = appRole

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}
