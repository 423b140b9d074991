package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/salespulse/realtime/internal/utils"
)

var (
	ErrInvalidAPIKey = errors.New("invalid api key")
	ErrInvalidToken  = errors.New("invalid token")
)

// TokenService exchanges the shared API key for short-lived connect tokens
// and verifies them at the realtime endpoint. Tokens are stateless JWTs
// carrying the user and organization the connection is scoped to.
type TokenService struct {
	tokenSecret string
	apiKeyHash  string
	tokenExpiry time.Duration
}

type TokenClaims struct {
	UserID         string
	OrganizationID string
}

type IssueRequest struct {
	UserID         string
	OrganizationID string
	APIKey         string
}

type IssueResponse struct {
	Token     string
	ExpiresAt time.Time
}

func NewTokenService(tokenSecret, apiKeyHash string, tokenExpiry time.Duration) *TokenService {
	return &TokenService{
		tokenSecret: tokenSecret,
		apiKeyHash:  apiKeyHash,
		tokenExpiry: tokenExpiry,
	}
}

// IssueFromAPIKey validates the presented API key against the configured
// hash and mints a connect token for the given user and organization.
func (s *TokenService) IssueFromAPIKey(req IssueRequest) (*IssueResponse, error) {
	if req.UserID == "" || req.OrganizationID == "" {
		return nil, errors.New("userId and organizationId are required")
	}
	if !utils.CheckAPIKey(s.apiKeyHash, req.APIKey) {
		return nil, ErrInvalidAPIKey
	}

	expiresAt := time.Now().Add(s.tokenExpiry)
	claims := jwt.MapClaims{
		"sub": req.UserID,
		"org": req.OrganizationID,
		"exp": expiresAt.Unix(),
		"iat": time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.tokenSecret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &IssueResponse{Token: signed, ExpiresAt: expiresAt}, nil
}

// Verify parses and validates a connect token and returns its claims.
func (s *TokenService) Verify(tokenString string) (*TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.tokenSecret), nil
	})

	if err != nil {
		return nil, ErrInvalidToken
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	userID, ok := claims["sub"].(string)
	if !ok || userID == "" {
		return nil, ErrInvalidToken
	}

	organizationID, ok := claims["org"].(string)
	if !ok || organizationID == "" {
		return nil, ErrInvalidToken
	}

	return &TokenClaims{
		UserID:         userID,
		OrganizationID: organizationID,
	}, nil
}
