package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Roles carried by access tokens.
const (
	RoleUser     = "user"
	RoleOperator = "operator"
	RoleAdmin    = "admin"
)

var (
	ErrUnknownRole = errors.New("unknown role")
	ErrNoSubject   = errors.New("jwt has no subject")
)

func knownRole(role string) bool {
	switch role {
	case RoleUser, RoleOperator, RoleAdmin:
		return true
	}
	return false
}

// Claims are the access token claims. The user ID is the registered subject.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTManager issues and verifies HS256 access tokens for one issuer.
// Tokens normally come from the identity service sharing the secret; the
// issuetoken command mints staff tokens with the same settings.
type JWTManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	parser *jwt.Parser
}

func NewJWTManager(secret, issuer string, ttl time.Duration) *JWTManager {
	return &JWTManager{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
			jwt.WithLeeway(5*time.Second),
		),
	}
}

// GenerateAccessToken signs a token for userID. An empty role means RoleUser.
func (m *JWTManager) GenerateAccessToken(userID, role string) (string, error) {
	if userID == "" {
		return "", ErrNoSubject
	}
	if role == "" {
		role = RoleUser
	}
	if !knownRole(role) {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}

	now := time.Now().UTC()
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign jwt: %w", err)
	}
	return signed, nil
}

// ParseAndValidate verifies signature, issuer and expiry and returns the claims.
// A token without a role is a RoleUser token; any other unknown role is rejected.
func (m *JWTManager) ParseAndValidate(tokenStr string) (*Claims, error) {
	var claims Claims
	if _, err := m.parser.ParseWithClaims(tokenStr, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}); err != nil {
		return nil, fmt.Errorf("failed to parse jwt: %w", err)
	}

	if claims.Subject == "" {
		return nil, ErrNoSubject
	}
	if claims.Role == "" {
		claims.Role = RoleUser
	}
	if !knownRole(claims.Role) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, claims.Role)
	}
	return &claims, nil
}
