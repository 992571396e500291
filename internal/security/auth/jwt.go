package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/yourorg/bookinglean/internal/domain"
)

type Claims struct {
	SessionID string `json:"session_id"`
	SubjectID string `json:"subject_id"`
	Role      string `json:"role"`
	TenantID  string `json:"tenant_id,omitempty"`
	jwt.RegisteredClaims
}

type TokenManager struct {
	secret string
	issuer string
}

func NewTokenManager(secret, issuer string) *TokenManager {
	if secret == "" {
		secret = "change-me-in-production"
	}
	if issuer == "" {
		issuer = "bookinglean"
	}
	return &TokenManager{secret: secret, issuer: issuer}
}

// GenerateToken signs a session token. TenantID may be empty only for
// super admin sessions.
func (tm *TokenManager) GenerateToken(sessionID, subjectID string, role domain.Role, tenantID string, expiresIn time.Duration) (string, error) {
	if sessionID == "" || subjectID == "" {
		return "", fmt.Errorf("session_id and subject_id required")
	}
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q", role)
	}
	if tenantID == "" && role != domain.RoleSuperAdmin {
		return "", fmt.Errorf("tenant_id required for role %q", role)
	}
	now := time.Now()
	claims := Claims{
		SessionID: sessionID,
		SubjectID: subjectID,
		Role:      string(role),
		TenantID:  tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			Issuer:    tm.issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(tm.secret))
}

func (tm *TokenManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(tm.secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token failed: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

func ExtractToken(authHeader string) (string, error) {
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", fmt.Errorf("invalid authorization header")
	}
	return parts[1], nil
}
