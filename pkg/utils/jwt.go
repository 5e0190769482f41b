package utils

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"taskboard-backend/pkg/models"
)

// JWTVerifier validates tokens minted by the hosted auth provider.
// This service never issues tokens itself; authentication is delegated.
type JWTVerifier struct {
	secretKey []byte
}

// NewJWTVerifier creates a verifier for the shared HS256 secret.
func NewJWTVerifier(secretKey string) *JWTVerifier {
	return &JWTVerifier{secretKey: []byte(secretKey)}
}

// ValidateAccessToken parses and validates an access token, returning
// its claims.
func (j *JWTVerifier) ValidateAccessToken(tokenString string) (*models.TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(*models.TokenClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}

	if claims.Type != "access" {
		return nil, fmt.Errorf("invalid token type: expected access, got %s", claims.Type)
	}

	if time.Now().Unix() > claims.Exp {
		return nil, fmt.Errorf("token expired")
	}

	return claims, nil
}

// UserFromToken validates a token and returns the identity it carries.
func (j *JWTVerifier) UserFromToken(tokenString string) (*models.User, error) {
	claims, err := j.ValidateAccessToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &models.User{ID: claims.UserID, Email: claims.Email}, nil
}
