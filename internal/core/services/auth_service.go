package services

import (
	"errors"
	"time"

	"livecast/internal/core/domain"
	"livecast/internal/core/ports"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Claims carried by platform identity tokens. Token issuance belongs to the
// auth collaborator; this side only verifies.
type Claims struct {
	UserID   domain.UserID `json:"user_id"`
	Username string        `json:"username"`
	Role     string        `json:"role"`
	jwt.RegisteredClaims
}

// TokenService is ports.TokenVerifier plus the test/dev token mint.
type TokenService interface {
	ports.TokenVerifier
	GenerateToken(userID domain.UserID, username string, role domain.Role) (string, error)
}

type authService struct {
	jwtSecret []byte
	tokenTTL  time.Duration
}

// NewTokenVerifier builds the HS256 verifier for platform identity tokens.
func NewTokenVerifier(jwtSecret string, tokenTTL time.Duration) TokenService {
	return &authService{
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
	}
}

func (s *authService) Verify(tokenString string) (*domain.VerifiedIdentity, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" {
		return nil, ErrInvalidToken
	}

	role := domain.Role(claims.Role)
	switch role {
	case domain.RoleStaff, domain.RoleAdmin:
	default:
		role = domain.RoleAuthenticatedViewer
	}

	return &domain.VerifiedIdentity{
		UserID:   claims.UserID,
		Username: claims.Username,
		Role:     role,
	}, nil
}

// GenerateToken mints a token with this verifier's secret. The production
// issuer lives in the auth collaborator; this exists for tests and local
// development tooling.
func (s *authService) GenerateToken(userID domain.UserID, username string, role domain.Role) (string, error) {
	claims := &Claims{
		UserID:   userID,
		Username: username,
		Role:     string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
