package service

import (
	"fmt"
	"time"

	"adwallet/config"
	"adwallet/internal/core/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// actorClaims is the JWT payload identifying a wallet caller.
type actorClaims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// JWTTokenService implements ports.TokenService using HS256 JWT.
type JWTTokenService struct {
	secret []byte
	expiry time.Duration
	issuer string
	now    func() time.Time
}

// NewJWTTokenService creates a new JWT token service.
func NewJWTTokenService(cfg config.JWTConfig) *JWTTokenService {
	return &JWTTokenService{
		secret: []byte(cfg.Secret),
		expiry: cfg.Expiry,
		issuer: cfg.Issuer,
		now:    time.Now,
	}
}

// Generate creates a signed JWT for the given actor.
func (s *JWTTokenService) Generate(actor domain.Actor) (string, time.Time, error) {
	switch actor.Role {
	case domain.RoleCustomer, domain.RoleAdmin:
		if actor.UserID == uuid.Nil {
			return "", time.Time{}, fmt.Errorf("actor with role %s needs a user id", actor.Role)
		}
	case domain.RoleSystem:
	default:
		return "", time.Time{}, fmt.Errorf("unknown role %q", actor.Role)
	}

	now := s.now()
	expiresAt := now.Add(s.expiry)

	claims := actorClaims{
		Role: actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}

	return tokenString, expiresAt, nil
}

// Validate parses and validates a JWT, returning the actor it was issued for.
func (s *JWTTokenService) Validate(tokenString string) (*domain.Actor, error) {
	var claims actorClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("invalid user ID in token: %w", err)
	}

	actor := &domain.Actor{UserID: userID, Role: claims.Role}
	switch actor.Role {
	case domain.RoleCustomer, domain.RoleAdmin:
		if userID == uuid.Nil {
			return nil, fmt.Errorf("missing subject claim")
		}
	case domain.RoleSystem:
	default:
		return nil, fmt.Errorf("unknown role %q", actor.Role)
	}
	return actor, nil
}
